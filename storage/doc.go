// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - maintain the on-disk data store
//
// maintains a memory pool for each type of data along with
// persistent storage in two LevelDB databases:
//
// the blocks database holds the chain itself plus its metadata:
//
//	B<block-digest>  - block store: packed block record
//	H<height-BE>     - height index: block digest
//	M<name>          - metadata: chain tip (height + digest)
//
// the index database holds data derived from confirmed blocks:
//
//	D<block-digest>  - undo data: the block's UTXO diff
//	T<txid>          - transaction store: raw transaction bytes
//	U<outpoint>      - unspent output set: packed UTXO record
//	Z<key>           - testing data
//
// every multi-key mutation is staged into a LevelDB batch and
// committed in one write, so a batch is either fully applied or not
// at all; keyspaces are placed so that no atomic mutation ever spans
// the two databases
package storage
