// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package metrics - pull based counters and gauges
//
// counters are bumped by the workers as they process; gauges are
// refreshed by a background sampler; ReadSnapshot never blocks any of
// them beyond the registry lock
package metrics

import (
	"sync"
	"time"

	"github.com/bitknots/bitknotsd/background"
	"github.com/bitknots/bitknotsd/counter"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitmark-inc/logger"
)

// Snapshot - one consistent reading of all counters and gauges
type Snapshot struct {
	BlocksProcessed       uint64 `json:"blocksProcessed"`
	TransactionsProcessed uint64 `json:"transactionsProcessed"`
	MempoolEntries        uint64 `json:"mempoolEntries"`
	MempoolBytes          uint64 `json:"mempoolBytes"`
	StorageBytes          uint64 `json:"storageBytes"`
	EventsPublished       uint64 `json:"eventsPublished"`
	EventsDropped         uint64 `json:"eventsDropped"`
	PublisherFailures     uint64 `json:"publisherFailures"`
	PeerCount             uint64 `json:"peerCount"`
}

// globals for metrics
type metricsData struct {
	sync.RWMutex // to allow locking

	log *logger.L

	blocksProcessed       counter.Counter
	transactionsProcessed counter.Counter
	mempoolEntries        counter.Counter
	mempoolBytes          counter.Counter
	storageBytes          counter.Counter
	eventsPublished       counter.Counter
	eventsDropped         counter.Counter
	publisherFailures     counter.Counter

	peers map[string]time.Time // peer id → last change

	// for background
	background *background.T

	// set once during initialise
	initialised bool
}

// global data
var globalData metricsData

// Initialise - start metrics collection
func Initialise(sampleInterval time.Duration) error {
	globalData.Lock()
	defer globalData.Unlock()

	// no need to start if already started
	if globalData.initialised {
		return fault.AlreadyInitialised
	}

	globalData.log = logger.New("metrics")
	globalData.log.Info("starting…")

	globalData.peers = make(map[string]time.Time)

	// all data initialised
	globalData.initialised = true

	// start background processes
	globalData.log.Info("start background…")
	processes := background.Processes{
		&sampler{interval: sampleInterval},
	}
	globalData.background = background.Start(processes, globalData.log)

	return nil
}

// Finalise - stop metrics collection
func Finalise() error {
	if !globalData.initialised {
		return fault.NotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	globalData.background.Stop()

	globalData.Lock()
	globalData.peers = nil
	globalData.initialised = false
	globalData.Unlock()

	return nil
}

// BlockProcessed - count one accepted block
func BlockProcessed() {
	globalData.blocksProcessed.Increment()
}

// TransactionsProcessed - count confirmed or admitted transactions
func TransactionsProcessed(n uint64) {
	globalData.transactionsProcessed.Add(n)
}

// EventPublished - count one event delivered to a publisher
func EventPublished() {
	globalData.eventsPublished.Increment()
}

// EventDropped - count one event lost to a full queue or buffer
func EventDropped() {
	globalData.eventsDropped.Increment()
}

// PublisherFailed - count one delivery given up after retries
func PublisherFailed() {
	globalData.publisherFailures.Increment()
}

// PeerChanged - record a peer connect or disconnect
func PeerChanged(peer string, connected bool) {
	globalData.Lock()
	defer globalData.Unlock()

	if nil == globalData.peers {
		return
	}
	if connected {
		globalData.peers[peer] = time.Now()
	} else {
		delete(globalData.peers, peer)
	}
}

// PeerCount - number of currently connected peers
func PeerCount() int {
	globalData.RLock()
	defer globalData.RUnlock()

	return len(globalData.peers)
}

// ReadSnapshot - all counters and gauges at this instant
func ReadSnapshot() Snapshot {
	globalData.RLock()
	peerCount := uint64(len(globalData.peers))
	globalData.RUnlock()

	return Snapshot{
		BlocksProcessed:       globalData.blocksProcessed.Uint64(),
		TransactionsProcessed: globalData.transactionsProcessed.Uint64(),
		MempoolEntries:        globalData.mempoolEntries.Uint64(),
		MempoolBytes:          globalData.mempoolBytes.Uint64(),
		StorageBytes:          globalData.storageBytes.Uint64(),
		EventsPublished:       globalData.eventsPublished.Uint64(),
		EventsDropped:         globalData.eventsDropped.Uint64(),
		PublisherFailures:     globalData.publisherFailures.Uint64(),
		PeerCount:             peerCount,
	}
}
