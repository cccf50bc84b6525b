// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publish

import (
	"encoding/json"
	"syscall"

	zmq "github.com/pebbe/zmq4"

	"github.com/bitknots/bitknotsd/metrics"
	"github.com/bitmark-inc/logger"
)

// keep the send buffer small so a stalled subscriber sheds load
// instead of accumulating it
const zmqSendHighWater = 500

// zmqPublisher - PUB socket, topic frame then JSON payload frame
//
// best effort: a full send buffer drops the newest message, it never
// blocks the dispatcher
type zmqPublisher struct {
	log    *logger.L
	socket *zmq.Socket
}

func newZmqPublisher(log *logger.L, broadcast []string) (*zmqPublisher, error) {

	socket, err := zmq.NewSocket(zmq.PUB)
	if nil != err {
		return nil, err
	}

	socket.SetLinger(0)
	socket.SetSndhwm(zmqSendHighWater)

	for i, bindTo := range broadcast {
		err = socket.Bind(bindTo)
		if nil != err {
			log.Errorf("zmq: cannot bind[%d]: %q  error: %s", i, bindTo, err)
			socket.Close()
			return nil, err
		}
		log.Infof("zmq: bind[%d]: %q", i, bindTo)
	}

	return &zmqPublisher{
		log:    log,
		socket: socket,
	}, nil
}

func (z *zmqPublisher) name() string {
	return "zmq"
}

// a refused non-blocking send: the message was dropped, not failed
func isSendBufferFull(err error) bool {
	return zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN)
}

func (z *zmqPublisher) publish(event *Event) error {

	payload, err := json.Marshal(event)
	if nil != err {
		return err
	}

	_, err = z.socket.Send(event.Type, zmq.SNDMORE|zmq.DONTWAIT)
	if nil != err {
		if isSendBufferFull(err) {
			// full buffer: drop the newest, count it, move on
			metrics.EventDropped()
			z.log.Warnf("zmq: buffer full, dropped: %s", event.Type)
			return nil
		}
		return err
	}
	_, err = z.socket.SendBytes(payload, zmq.DONTWAIT)
	if nil != err {
		// the payload frame can also be refused: same drop policy,
		// the subscriber side discards the unterminated topic frame
		if isSendBufferFull(err) {
			metrics.EventDropped()
			z.log.Warnf("zmq: buffer full, dropped payload: %s", event.Type)
			return nil
		}
		return err
	}
	return nil
}

func (z *zmqPublisher) close() {
	if nil != z.socket {
		z.socket.Close()
		z.socket = nil
	}
}
