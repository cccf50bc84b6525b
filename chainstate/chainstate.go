// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainstate - the current best tip
//
// singleton record of the best block digest, its height and the
// cumulative work up to it; mutated only by the chain worker, read
// by everyone else through consistent snapshots
package chainstate

import (
	"sync"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/genesis"
	"github.com/bitknots/bitknotsd/mode"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitmark-inc/logger"
)

// globals for the tip
type chainData struct {
	sync.RWMutex // to allow locking

	log *logger.L

	height uint64             // current best height
	digest blockdigest.Digest // and its digest
	work   uint64             // cumulative work up to the tip

	// set once during initialise
	initialised bool
}

// global data
var globalData chainData

// Initialise - load the tip from storage, seeding genesis on first start
func Initialise() error {
	globalData.Lock()
	defer globalData.Unlock()

	// no need to start if already started
	if globalData.initialised {
		return fault.AlreadyInitialised
	}

	log := logger.New("chainstate")
	globalData.log = log
	log.Info("starting…")

	genesisBlock := genesis.LiveGenesisBlock
	genesisDigest := genesis.LiveGenesisDigest
	if mode.IsTesting() {
		genesisBlock = genesis.TestGenesisBlock
		genesisDigest = genesis.TestGenesisDigest
	}

	digest, height, err := storage.GetChainTip()
	if fault.ChainTipNotFound == err {

		// first start: store genesis and point the tip at it
		_, _, err = storage.PutBlock(genesisBlock)
		if nil != err && fault.BlockAlreadyExists != err {
			return err
		}
		err = storage.SetChainTip(genesisDigest, genesis.BlockNumber)
		if nil != err {
			return err
		}
		digest = genesisDigest
		height = genesis.BlockNumber

	} else if nil != err {
		return err
	}

	// the stored chain must be rooted at this network's genesis
	stored, err := storage.GetBlockByHeight(genesis.BlockNumber)
	if nil != err {
		return err
	}
	if stored.Digest() != genesisDigest {
		return fault.WrongNetworkForGenesis
	}

	work, err := cumulativeWork(digest)
	if nil != err {
		return err
	}

	globalData.height = height
	globalData.digest = digest
	globalData.work = work

	log.Infof("tip height: %d", globalData.height)
	log.Infof("tip digest: %v", globalData.digest)
	log.Infof("tip work: %d", globalData.work)

	// all data initialised
	globalData.initialised = true

	return nil
}

// Finalise - shutdown the chain state
func Finalise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.NotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	globalData.initialised = false
	return nil
}

// sum the header work following parent links back to genesis
func cumulativeWork(digest blockdigest.Digest) (uint64, error) {
	work := uint64(0)
	for {
		packed, err := storage.GetBlock(digest)
		if nil != err {
			return 0, err
		}
		header, _, err := packed.Unpack()
		if nil != err {
			return 0, err
		}
		work += header.Work
		if genesis.BlockNumber == header.Number {
			return work, nil
		}
		digest = header.PreviousBlock
	}
}

// Set - advance the tip; chain worker only
func Set(height uint64, digest blockdigest.Digest, work uint64) {
	globalData.Lock()

	globalData.height = height
	globalData.digest = digest
	globalData.work = work

	globalData.Unlock()
}

// Get - return a consistent snapshot of the tip
func Get() (uint64, blockdigest.Digest, uint64) {
	globalData.RLock()
	defer globalData.RUnlock()

	return globalData.height, globalData.digest, globalData.work
}

// Height - return current best height
func Height() uint64 {
	globalData.RLock()
	defer globalData.RUnlock()

	return globalData.height
}

// Digest - return current best digest
func Digest() blockdigest.Digest {
	globalData.RLock()
	defer globalData.RUnlock()

	return globalData.digest
}

// Work - return cumulative work up to the tip
func Work() uint64 {
	globalData.RLock()
	defer globalData.RUnlock()

	return globalData.work
}
