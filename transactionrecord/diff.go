// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

// UTXODiff - the unspent set changes caused by one block
//
// spent entries carry the full record, not just the outpoint, so
// that a rollback can restore them exactly; apply and rollback are
// algebraic inverses of each other
type UTXODiff struct {
	Spent   []*UTXO `json:"spent"`
	Created []*UTXO `json:"created"`
}
