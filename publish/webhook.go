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

// defaults when the configuration leaves them zero
const (
	webhookDefaultTimeout = 5 * time.Second
	webhookDefaultRetries = 3
	webhookBackoffUnit    = 500 * time.Millisecond
)

// webhookPublisher - HTTP POST with bounded timeout and linear
// backoff retries; exhausted retries drop the event, the error never
// travels further than the failure counter
type webhookPublisher struct {
	log       *logger.L
	endpoints []string
	retries   int
	client    *http.Client
}

func newWebhookPublisher(log *logger.L, endpoints []string, timeoutSeconds int, retries int) *webhookPublisher {

	timeout := webhookDefaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if retries <= 0 {
		retries = webhookDefaultRetries
	}

	return &webhookPublisher{
		log:       log,
		endpoints: endpoints,
		retries:   retries,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (w *webhookPublisher) name() string {
	return "webhook"
}

func (w *webhookPublisher) publish(event *Event) error {

	body, err := json.Marshal(event)
	if nil != err {
		return err
	}

	failed := error(nil)
	for _, endpoint := range w.endpoints {
		err = w.post(endpoint, body)
		if nil != err {
			w.log.Errorf("webhook: %q: %s", endpoint, err)
			failed = err
		}
	}
	return failed
}

// post to one endpoint, retrying with linear backoff
func (w *webhookPublisher) post(endpoint string, body []byte) error {

	err := error(nil)
	for attempt := 1; attempt <= w.retries; attempt += 1 {

		err = w.postOnce(endpoint, body)
		if nil == err {
			return nil
		}
		if attempt < w.retries {
			time.Sleep(time.Duration(attempt) * webhookBackoffUnit)
		}
	}
	return err
}

func (w *webhookPublisher) postOnce(endpoint string, body []byte) error {
	response, err := w.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if nil != err {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("webhook status: %s", response.Status)
	}
	return nil
}

func (w *webhookPublisher) close() {
}
