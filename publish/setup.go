// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package publish - the event fan-out
//
// accepted events are posted to a bounded queue and a single
// dispatcher delivers each one to every enabled publisher; one
// publisher failing or stalling never stops the others, and nothing
// on this path ever blocks a ledger mutation
package publish

import (
	"sync"

	"github.com/bitknots/bitknotsd/background"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/messagebus"
	"github.com/bitknots/bitknotsd/metrics"
	"github.com/bitmark-inc/logger"
)

// ZmqConfiguration - pub/sub socket backend
type ZmqConfiguration struct {
	Broadcast []string `gluamapper:"broadcast" json:"broadcast"`
}

// ClusterConfiguration - structured cluster-event backend
type ClusterConfiguration struct {
	Enable   bool   `gluamapper:"enable" json:"enable"`
	Endpoint string `gluamapper:"endpoint" json:"endpoint"`
	NodeName string `gluamapper:"node_name" json:"node_name"`
}

// WebhookConfiguration - HTTP POST backend
type WebhookConfiguration struct {
	Enable    bool     `gluamapper:"enable" json:"enable"`
	Endpoints []string `gluamapper:"endpoints" json:"endpoints"`
	Timeout   int      `gluamapper:"timeout" json:"timeout"` // seconds
	Retries   int      `gluamapper:"retries" json:"retries"`
}

// Configuration - all publisher backends
// this is read from the configuration file
type Configuration struct {
	Zmq     ZmqConfiguration     `gluamapper:"zmq" json:"zmq"`
	Cluster ClusterConfiguration `gluamapper:"cluster" json:"cluster"`
	Webhook WebhookConfiguration `gluamapper:"webhook" json:"webhook"`
}

// a single publisher backend
type publisher interface {
	name() string
	publish(event *Event) error
	close()
}

// globals for background process
type publishData struct {
	sync.RWMutex // to allow locking

	log *logger.L // logger

	publishers []publisher

	// for background
	background *background.T

	// set once during initialise
	initialised bool
}

// global data
var globalData publishData

// Initialise - start the event fan-out
func Initialise(configuration *Configuration) error {
	globalData.Lock()
	defer globalData.Unlock()

	// no need to start if already started
	if globalData.initialised {
		return fault.AlreadyInitialised
	}

	globalData.log = logger.New("publish")
	globalData.log.Info("starting…")

	globalData.publishers = nil

	if len(configuration.Zmq.Broadcast) > 0 {
		z, err := newZmqPublisher(globalData.log, configuration.Zmq.Broadcast)
		if nil != err {
			return err
		}
		globalData.publishers = append(globalData.publishers, z)
	}

	if configuration.Cluster.Enable {
		globalData.publishers = append(globalData.publishers,
			newClusterPublisher(globalData.log, configuration.Cluster.Endpoint, configuration.Cluster.NodeName))
	}

	if configuration.Webhook.Enable {
		globalData.publishers = append(globalData.publishers,
			newWebhookPublisher(globalData.log, configuration.Webhook.Endpoints,
				configuration.Webhook.Timeout, configuration.Webhook.Retries))
	}

	for _, p := range globalData.publishers {
		globalData.log.Infof("enabled publisher: %s", p.name())
	}

	// all data initialised
	globalData.initialised = true

	// start background processes
	globalData.log.Info("start background…")
	processes := background.Processes{
		&dispatcher{},
	}
	globalData.background = background.Start(processes, globalData.log)

	return nil
}

// Finalise - stop all background tasks
func Finalise() error {
	if !globalData.initialised {
		return fault.NotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.log.Flush()

	// stop background
	globalData.background.Stop()

	globalData.Lock()
	for _, p := range globalData.publishers {
		p.close()
	}
	globalData.publishers = nil
	globalData.initialised = false
	globalData.Unlock()

	messagebus.Bus.Events.Release()
	return nil
}

// Send - post an event for delivery to every enabled publisher
//
// never blocks: when the queue is full the event is dropped and
// counted, the commit path carries on
func Send(event *Event) {
	globalData.RLock()
	initialised := globalData.initialised
	globalData.RUnlock()

	if !initialised {
		return
	}

	if !messagebus.Bus.Events.TrySend(event.Type, event) {
		metrics.EventDropped()
		globalData.log.Warnf("queue full, dropped: %s", event.Type)
	}
}
