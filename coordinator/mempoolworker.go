// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"github.com/bitknots/bitknotsd/mempool"
	"github.com/bitknots/bitknotsd/messagebus"
	"github.com/bitknots/bitknotsd/publish"
	"github.com/bitmark-inc/logger"
)

// mempoolWorker - serialises admissions and confirmations
type mempoolWorker struct {
	log *logger.L
}

func (w *mempoolWorker) Run(args interface{}, shutdown <-chan struct{}) {

	w.log = args.(*logger.L)
	log := w.log

	log.Info("mempool: starting…")

	queue := messagebus.Bus.Mempool.Chan()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case item := <-queue:
			switch request := item.Item.(type) {
			case *admitRequest:
				err := mempool.Admit(request.tx, request.fee)
				if nil == err {
					publish.Send(publish.NewTransactionAccepted(request.tx.TxId, request.fee))
				}
				request.reply <- err
			case *confirmedNotice:
				for _, txId := range request.txIds {
					mempool.RemoveConfirmed(txId)
				}
			default:
				log.Errorf("mempool: unexpected item: %v", item.Item)
			}
		}
	}
	log.Info("mempool: shutting down…")
}
