// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"github.com/bitknots/bitknotsd/messagebus"
	"github.com/bitknots/bitknotsd/metrics"
	"github.com/bitknots/bitknotsd/publish"
	"github.com/bitmark-inc/logger"
)

// metricsWorker - owns the peer registry updates
type metricsWorker struct {
	log *logger.L
}

func (w *metricsWorker) Run(args interface{}, shutdown <-chan struct{}) {

	w.log = args.(*logger.L)
	log := w.log

	log.Info("metrics: starting…")

	queue := messagebus.Bus.Metrics.Chan()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case item := <-queue:
			switch request := item.Item.(type) {
			case *peerNotice:
				metrics.PeerChanged(request.peer, request.connected)
				publish.Send(publish.NewPeerChanged(request.peer, request.connected))
			default:
				log.Errorf("metrics: unexpected item: %v", item.Item)
			}
		}
	}
	log.Info("metrics: shutting down…")
}
