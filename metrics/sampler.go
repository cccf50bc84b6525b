// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"time"

	"github.com/bitknots/bitknotsd/mempool"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitmark-inc/logger"
)

// fallback when no interval was configured
const defaultSampleInterval = 10 * time.Second

// sampler - background process refreshing the gauges
type sampler struct {
	log      *logger.L
	interval time.Duration
}

func (s *sampler) Run(args interface{}, shutdown <-chan struct{}) {

	s.log = args.(*logger.L)
	log := s.log

	log.Info("sampler: starting…")

	if s.interval <= 0 {
		s.interval = defaultSampleInterval
	}

	s.sample()
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-time.After(s.interval):
			s.sample()
		}
	}
	log.Info("sampler: shutting down…")
}

func (s *sampler) sample() {
	entries, bytes := mempool.Size()
	globalData.mempoolEntries.Set(uint64(entries))
	globalData.mempoolBytes.Set(bytes)
	globalData.storageBytes.Set(storage.DatabaseSize())
}
