// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
	"github.com/bitknots/bitknotsd/transactionrecord"
)

// TipInfo - consistent snapshot of the best tip
type TipInfo struct {
	Height uint64
	Digest blockdigest.Digest
	Work   uint64
}

// chain worker mailbox items

type blockSubmission struct {
	packed blockrecord.PackedBlock
	txs    []*transactionrecord.Transaction
	diff   *transactionrecord.UTXODiff
	reply  chan error
}

type tipQuery struct {
	reply chan TipInfo
}

// storage worker mailbox items

// extension of the current best chain: apply the diff, store the
// block, its transactions and undo data, then move the tip
type extendRequest struct {
	packed blockrecord.PackedBlock
	txs    []*transactionrecord.Transaction
	diff   *transactionrecord.UTXODiff
	height uint64
	digest blockdigest.Digest
	reply  chan error
}

// fork block kept off the height index
type sideBlockRequest struct {
	packed blockrecord.PackedBlock
	txs    []*transactionrecord.Transaction
	diff   *transactionrecord.UTXODiff
	reply  chan error
}

// reorg step: undo one block of the losing branch
type disconnectRequest struct {
	height uint64
	digest blockdigest.Digest
	reply  chan error
}

// reorg step: apply one block of the winning branch
type connectRequest struct {
	height uint64
	digest blockdigest.Digest
	reply  chan error
}

// final tip move, after every other step succeeded
type setTipRequest struct {
	height uint64
	digest blockdigest.Digest
	reply  chan error
}

// mempool worker mailbox items

type admitRequest struct {
	tx    *transactionrecord.Transaction
	fee   uint64
	reply chan error
}

type confirmedNotice struct {
	txIds []blockdigest.Digest
}

// metrics worker mailbox items

type peerNotice struct {
	peer      string
	connected bool
}
