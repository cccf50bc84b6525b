// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coordinator - the worker mesh over the ledger
//
// four workers own disjoint state slices and talk only through the
// message queues: the chain worker owns tip advancement, the storage
// worker owns every ledger write, the mempool worker owns admissions
// and confirmations, the metrics worker owns the peer registry;
// submitters await typed replies so failures surface synchronously
package coordinator

import (
	"sync"

	"github.com/bitknots/bitknotsd/background"
	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
	"github.com/bitknots/bitknotsd/chainstate"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/mempool"
	"github.com/bitknots/bitknotsd/messagebus"
	"github.com/bitknots/bitknotsd/metrics"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitknots/bitknotsd/transactionrecord"
	"github.com/bitmark-inc/logger"
)

// globals for the coordinator
type coordinatorData struct {
	sync.RWMutex // to allow locking

	log *logger.L

	// for background
	background *background.T

	// set once during initialise
	initialised bool
}

// global data
var globalData coordinatorData

// Initialise - start the worker mesh
//
// storage, chainstate, mempool, metrics and publish must already be
// initialised
func Initialise() error {
	globalData.Lock()
	defer globalData.Unlock()

	// no need to start if already started
	if globalData.initialised {
		return fault.AlreadyInitialised
	}

	globalData.log = logger.New("coordinator")
	globalData.log.Info("starting…")

	// all data initialised
	globalData.initialised = true

	// start background processes
	globalData.log.Info("start background…")
	processes := background.Processes{
		&storageWorker{},
		&chainWorker{},
		&mempoolWorker{},
		&metricsWorker{},
	}
	globalData.background = background.Start(processes, globalData.log)

	return nil
}

// Finalise - stop all workers
func Finalise() error {
	if !globalData.initialised {
		return fault.NotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	globalData.background.Stop()

	messagebus.Bus.Storage.Release()
	messagebus.Bus.Chain.Release()
	messagebus.Bus.Mempool.Release()
	messagebus.Bus.Metrics.Release()

	globalData.Lock()
	globalData.initialised = false
	globalData.Unlock()

	return nil
}

// SubmitBlock - hand a validated block and its UTXO diff to the
// chain worker and await the acceptance decision
func SubmitBlock(packed blockrecord.PackedBlock, txs []*transactionrecord.Transaction, diff *transactionrecord.UTXODiff) error {
	if !initialised() {
		return fault.NotInitialised
	}

	reply := make(chan error, 1)
	messagebus.Bus.Chain.Send("block", &blockSubmission{
		packed: packed,
		txs:    txs,
		diff:   diff,
		reply:  reply,
	})
	return <-reply
}

// SubmitTransaction - hand a validated transaction to the mempool
// worker and await the admission decision
func SubmitTransaction(tx *transactionrecord.Transaction, fee uint64) error {
	if !initialised() {
		return fault.NotInitialised
	}

	reply := make(chan error, 1)
	messagebus.Bus.Mempool.Send("admit", &admitRequest{
		tx:    tx,
		fee:   fee,
		reply: reply,
	})
	return <-reply
}

// PeerChange - notify the metrics worker of a peer state change
func PeerChange(peer string, connected bool) {
	if !initialised() {
		return
	}
	messagebus.Bus.Metrics.Send("peer", &peerNotice{
		peer:      peer,
		connected: connected,
	})
}

// Tip - the best tip as the chain worker sees it
//
// answered through the chain mailbox so the reply reflects every
// submission processed before this call
func Tip() (TipInfo, error) {
	if !initialised() {
		return TipInfo{}, fault.NotInitialised
	}

	reply := make(chan TipInfo, 1)
	messagebus.Bus.Chain.Send("tip", &tipQuery{reply: reply})
	return <-reply, nil
}

// query passthroughs: point reads run concurrently against storage,
// never serialised through a worker

// BlockByDigest - fetch a block by its digest
func BlockByDigest(digest blockdigest.Digest) (blockrecord.PackedBlock, error) {
	return storage.GetBlock(digest)
}

// BlockByHeight - fetch the best chain block at a height
func BlockByHeight(height uint64) (blockrecord.PackedBlock, error) {
	return storage.GetBlockByHeight(height)
}

// TransactionByTxId - fetch stored raw transaction bytes
func TransactionByTxId(txId blockdigest.Digest) ([]byte, error) {
	return storage.GetTransaction(txId)
}

// UTXOByOutpoint - fetch an unspent output
func UTXOByOutpoint(outpoint transactionrecord.Outpoint) (*transactionrecord.UTXO, error) {
	return storage.GetUTXO(outpoint)
}

// UTXOPage - one page of the unspent set for a range scan
//
// start nil begins the scan; pass the returned key to continue it
func UTXOPage(start []byte, count int) ([]*transactionrecord.UTXO, []byte, error) {
	return storage.FetchUTXOs(start, count)
}

// MempoolSnapshot - immutable copy of the pending set
func MempoolSnapshot() []mempool.Entry {
	return mempool.Snapshot()
}

// PeerCount - currently connected peers
func PeerCount() int {
	return metrics.PeerCount()
}

// ChainHeight - current best height without a mailbox round trip
func ChainHeight() uint64 {
	return chainstate.Height()
}

func initialised() bool {
	globalData.RLock()
	defer globalData.RUnlock()
	return globalData.initialised
}
