// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publish

import (
	"github.com/bitknots/bitknotsd/messagebus"
	"github.com/bitknots/bitknotsd/metrics"
	"github.com/bitmark-inc/logger"
)

// dispatcher - single background process draining the event queue
//
// one dispatcher iterating the publishers in order gives FIFO
// delivery per publisher by construction
type dispatcher struct {
	log *logger.L
}

func (d *dispatcher) Run(args interface{}, shutdown <-chan struct{}) {

	d.log = args.(*logger.L)
	log := d.log

	log.Info("dispatcher: starting…")

	queue := messagebus.Bus.Events.Chan()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case item := <-queue:
			event, ok := item.Item.(*Event)
			if !ok {
				log.Errorf("dispatcher: unexpected item: %v", item.Item)
				continue loop
			}
			d.deliver(event)
		}
	}
	log.Info("dispatcher: shutting down…")
}

// deliver one event to every publisher, isolating failures
func (d *dispatcher) deliver(event *Event) {
	globalData.RLock()
	publishers := globalData.publishers
	globalData.RUnlock()

	for _, p := range publishers {
		err := p.publish(event)
		if nil != err {
			metrics.PublisherFailed()
			d.log.Errorf("dispatcher: %s: %s: %s", p.name(), event.Type, err)
			continue
		}
		metrics.EventPublished()
	}
}
