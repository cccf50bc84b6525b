// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package messagebus - the worker mailboxes
//
// one bounded queue per worker; a full queue blocks the sender which
// is the backpressure point; TrySend is for the event path where
// dropping is preferable to blocking
package messagebus

import (
	"fmt"
	"reflect"
	"strconv"
)

// Message - one mailbox item
type Message struct {
	Command string      // message variant
	Item    interface{} // typed payload owned by the receiving worker
}

// Queue - an ordered bounded mailbox
type Queue struct {
	c    chan Message
	size int
}

// exported message queues
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type busses struct {
	Storage *Queue `size:"256"` // ledger persistence requests
	Chain   *Queue `size:"256"` // block acceptance and chain queries
	Mempool *Queue `size:"512"` // transaction admission and confirmation
	Metrics *Queue `size:"128"` // counter updates and peer changes
	Events  *Queue `size:"512"` // accepted events awaiting fan-out
	TestQ   *Queue `size:"16"`  // for testing use
}

// Bus - all of the queues
var Bus busses

func init() {

	busType := reflect.TypeOf(Bus)
	busValue := reflect.ValueOf(&Bus).Elem()

	for i := 0; i < busType.NumField(); i += 1 {

		fieldInfo := busType.Field(i)

		sizeTag := fieldInfo.Tag.Get("size")
		size, err := strconv.Atoi(sizeTag)
		if nil != err || size <= 0 {
			panic(fmt.Sprintf("queue: %v has invalid size: %q", fieldInfo, sizeTag))
		}

		q := &Queue{
			c:    make(chan Message, size),
			size: size,
		}

		busValue.Field(i).Set(reflect.ValueOf(q))
	}
}

// Send - queue a message, blocking while the mailbox is full
func (q *Queue) Send(command string, item interface{}) {
	q.c <- Message{
		Command: command,
		Item:    item,
	}
}

// TrySend - queue a message only if space is available
//
// used on paths that must never block, e.g. posting events from the
// commit path; the caller decides what a refused message costs
func (q *Queue) TrySend(command string, item interface{}) bool {
	select {
	case q.c <- Message{Command: command, Item: item}:
		return true
	default:
		return false
	}
}

// Chan - channel to read from the queue
func (q *Queue) Chan() <-chan Message {
	return q.c
}

// Size - capacity of the queue
func (q *Queue) Size() int {
	return q.size
}

// Length - number of messages currently queued
func (q *Queue) Length() int {
	return len(q.c)
}

// Release - drain all pending messages during shutdown
func (q *Queue) Release() {
draining:
	for {
		select {
		case <-q.c:
		default:
			break draining
		}
	}
}
