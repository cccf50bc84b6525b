// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/bitmark-inc/logger"
)

// how often to scan for stale entries
const expiryInterval = time.Minute

// expiry - background process dropping entries past their lifetime
type expiry struct {
	log *logger.L
}

func (e *expiry) Run(args interface{}, shutdown <-chan struct{}) {

	e.log = args.(*logger.L)
	log := e.log

	log.Info("expiry: starting…")

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-time.After(expiryInterval):
			e.removeExpired()
		}
	}
	log.Info("expiry: shutting down…")
}

func (e *expiry) removeExpired() {
	globalData.Lock()
	defer globalData.Unlock()

	// zero lifetime keeps entries until confirmation or eviction
	if 0 == globalData.lifetime || nil == globalData.entries {
		return
	}

	deadline := time.Now().Add(-globalData.lifetime)
	n := 0
	for txId, entry := range globalData.entries {
		if entry.Admitted.Before(deadline) {
			deleteEntry(txId)
			globalData.expired.Increment()
			n += 1
		}
	}
	if n > 0 {
		removed := removeUnsatisfied()
		e.log.Infof("expiry: dropped %d stale and %d dependant entries", n, len(removed))
	}
}
