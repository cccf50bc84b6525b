// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bitmark-inc/logger"
)

const clusterPostTimeout = 5 * time.Second

// clusterPublisher - posts structured event records to a cluster
// event API; at-least-once, no retry beyond the next call
type clusterPublisher struct {
	log      *logger.L
	endpoint string
	nodeName string
	client   *http.Client
}

// clusterRecord - the wire form expected by the event API
type clusterRecord struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Node      string      `json:"node"`
	Payload   interface{} `json:"payload"`
}

func newClusterPublisher(log *logger.L, endpoint string, nodeName string) *clusterPublisher {
	return &clusterPublisher{
		log:      log,
		endpoint: endpoint,
		nodeName: nodeName,
		client: &http.Client{
			Timeout: clusterPostTimeout,
		},
	}
}

func (c *clusterPublisher) name() string {
	return "cluster"
}

func (c *clusterPublisher) publish(event *Event) error {

	record := clusterRecord{
		Type:      event.Type,
		Timestamp: event.Timestamp,
		Node:      c.nodeName,
		Payload:   event.Payload,
	}
	body, err := json.Marshal(record)
	if nil != err {
		return err
	}

	response, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if nil != err {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("cluster event API status: %s", response.Status)
	}
	return nil
}

func (c *clusterPublisher) close() {
}
