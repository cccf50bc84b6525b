// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool - the pending transaction store
//
// every entry's inputs are satisfied by the unspent set or by another
// pending entry, both at admission and after any eviction; lowest fee
// rate is evicted first, oldest admission first on equal rates
package mempool

import (
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/bitknots/bitknotsd/background"
	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/counter"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitknots/bitknotsd/transactionrecord"
	"github.com/bitmark-inc/logger"
)

// Entry - one pending transaction
type Entry struct {
	Tx       *transactionrecord.Transaction
	Fee      uint64
	Size     uint64
	Admitted time.Time
}

// Counters - totals for the metrics snapshot
type Counters struct {
	Admitted  uint64
	Confirmed uint64
	Evicted   uint64
	Expired   uint64
}

// globals for the mempool
type mempoolData struct {
	sync.RWMutex // to allow locking

	log *logger.L

	entries       map[blockdigest.Digest]*Entry
	totalBytes    uint64
	capacityBytes uint64
	lifetime      time.Duration

	admitted  counter.Counter
	confirmed counter.Counter
	evicted   counter.Counter
	expired   counter.Counter

	// for background
	background *background.T

	// set once during initialise
	initialised bool
}

// global data
var globalData mempoolData

// Initialise - start the mempool
func Initialise(capacityBytes uint64, lifetime time.Duration) error {
	globalData.Lock()
	defer globalData.Unlock()

	// no need to start if already started
	if globalData.initialised {
		return fault.AlreadyInitialised
	}

	globalData.log = logger.New("mempool")
	globalData.log.Info("starting…")

	globalData.entries = make(map[blockdigest.Digest]*Entry)
	globalData.totalBytes = 0
	globalData.capacityBytes = capacityBytes
	globalData.lifetime = lifetime

	globalData.admitted.Set(0)
	globalData.confirmed.Set(0)
	globalData.evicted.Set(0)
	globalData.expired.Set(0)

	// all data initialised
	globalData.initialised = true

	// start background processes
	globalData.log.Info("start background…")
	processes := background.Processes{
		&expiry{},
	}
	globalData.background = background.Start(processes, globalData.log)

	return nil
}

// Finalise - stop the mempool
func Finalise() error {
	if !globalData.initialised {
		return fault.NotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	globalData.background.Stop()

	globalData.Lock()
	globalData.entries = nil
	globalData.initialised = false
	globalData.Unlock()

	return nil
}

// Admit - accept a validated transaction into the pending set
//
// inputs must reference unspent outputs or outputs of other pending
// entries; eviction runs afterwards so the pool stays under capacity
func Admit(tx *transactionrecord.Transaction, fee uint64) error {
	globalData.Lock()
	defer globalData.Unlock()

	if nil == globalData.entries {
		return fault.NotInitialised
	}

	if _, ok := globalData.entries[tx.TxId]; ok {
		return fault.TransactionAlreadyExists
	}

	for _, input := range tx.Inputs {
		if !inputAvailable(input) {
			return fault.MissingTransactionInput
		}
	}

	entry := &Entry{
		Tx:       tx,
		Fee:      fee,
		Size:     uint64(len(tx.Raw)),
		Admitted: time.Now(),
	}
	globalData.entries[tx.TxId] = entry
	globalData.totalBytes += entry.Size
	globalData.admitted.Increment()

	evictToCapacity(globalData.capacityBytes)
	return nil
}

// must hold lock
func inputAvailable(outpoint transactionrecord.Outpoint) bool {
	if storage.HasUTXO(outpoint) {
		return true
	}
	parent, ok := globalData.entries[outpoint.TxId]
	return ok && outpoint.Index < uint32(len(parent.Tx.Outputs))
}

// RemoveConfirmed - drop an entry whose transaction was confirmed
//
// absence is not an error: the transaction may have bypassed the
// mempool entirely, e.g. during initial sync
func RemoveConfirmed(txId blockdigest.Digest) {
	globalData.Lock()
	defer globalData.Unlock()

	if nil == globalData.entries {
		return
	}
	if _, ok := globalData.entries[txId]; ok {
		deleteEntry(txId)
		globalData.confirmed.Increment()

		// dependants of the removed outputs stay valid: the confirmed
		// transaction's outputs are now in the unspent set
	}
}

// must hold lock
func deleteEntry(txId blockdigest.Digest) {
	entry := globalData.entries[txId]
	globalData.totalBytes -= entry.Size
	delete(globalData.entries, txId)
}

// EvictToCapacity - shrink the pool to at most maxBytes
//
// returns the txids removed, lowest fee rate first, oldest first on
// equal rates; dependants left without their inputs are removed too
func EvictToCapacity(maxBytes uint64) []blockdigest.Digest {
	globalData.Lock()
	defer globalData.Unlock()
	return evictToCapacity(maxBytes)
}

// must hold lock
func evictToCapacity(maxBytes uint64) []blockdigest.Digest {

	if globalData.totalBytes <= maxBytes {
		return nil
	}

	order := make([]*Entry, 0, len(globalData.entries))
	for _, entry := range globalData.entries {
		order = append(order, entry)
	}

	// lowest fee rate first; compare fee/size by cross multiplication
	// in 128 bits so large fees cannot wrap, then oldest admission
	// first
	sort.Slice(order, func(i, j int) bool {
		a := order[i]
		b := order[j]
		leftHi, leftLo := bits.Mul64(a.Fee, b.Size)
		rightHi, rightLo := bits.Mul64(b.Fee, a.Size)
		if leftHi != rightHi {
			return leftHi < rightHi
		}
		if leftLo != rightLo {
			return leftLo < rightLo
		}
		return a.Admitted.Before(b.Admitted)
	})

	removed := make([]blockdigest.Digest, 0, 4)
	for _, entry := range order {
		if globalData.totalBytes <= maxBytes {
			break
		}
		deleteEntry(entry.Tx.TxId)
		globalData.evicted.Increment()
		removed = append(removed, entry.Tx.TxId)
	}

	removed = append(removed, removeUnsatisfied()...)
	return removed
}

// must hold lock: drop entries whose inputs are no longer available,
// repeating until stable
func removeUnsatisfied() []blockdigest.Digest {
	removed := []blockdigest.Digest(nil)
	for {
		stable := true
	scanning:
		for txId, entry := range globalData.entries {
			for _, input := range entry.Tx.Inputs {
				if !inputAvailable(input) {
					deleteEntry(txId)
					globalData.evicted.Increment()
					removed = append(removed, txId)
					stable = false
					continue scanning
				}
			}
		}
		if stable {
			return removed
		}
	}
}

// Has - check whether a txid is pending
func Has(txId blockdigest.Digest) bool {
	globalData.RLock()
	defer globalData.RUnlock()

	_, ok := globalData.entries[txId]
	return ok
}

// Snapshot - copy of all current entries
//
// the copy is detached from the pool so callers can iterate at leisure
// while admissions continue
func Snapshot() []Entry {
	globalData.RLock()
	defer globalData.RUnlock()

	snapshot := make([]Entry, 0, len(globalData.entries))
	for _, entry := range globalData.entries {
		snapshot = append(snapshot, *entry)
	}
	return snapshot
}

// Size - current entry count and aggregate bytes
func Size() (int, uint64) {
	globalData.RLock()
	defer globalData.RUnlock()

	return len(globalData.entries), globalData.totalBytes
}

// ReadCounters - totals since start
func ReadCounters() Counters {
	return Counters{
		Admitted:  globalData.admitted.Uint64(),
		Confirmed: globalData.confirmed.Uint64(),
		Evicted:   globalData.evicted.Uint64(),
		Expired:   globalData.expired.Uint64(),
	}
}
