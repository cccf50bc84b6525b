// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/messagebus"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitmark-inc/logger"
)

// storageWorker - sole owner of ledger mutation
//
// every write request passes through this mailbox in order; point
// reads go to the storage package directly and stay concurrent
type storageWorker struct {
	log *logger.L
}

func (w *storageWorker) Run(args interface{}, shutdown <-chan struct{}) {

	w.log = args.(*logger.L)
	log := w.log

	log.Info("storage: starting…")

	queue := messagebus.Bus.Storage.Chan()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case item := <-queue:
			w.process(&item)
		}
	}
	log.Info("storage: shutting down…")
}

func (w *storageWorker) process(item *messagebus.Message) {
	switch request := item.Item.(type) {
	case *extendRequest:
		request.reply <- w.extend(request)
	case *sideBlockRequest:
		request.reply <- w.sideBlock(request)
	case *disconnectRequest:
		request.reply <- w.disconnect(request)
	case *connectRequest:
		request.reply <- w.connect(request)
	case *setTipRequest:
		request.reply <- storage.SetChainTip(request.digest, request.height)
	default:
		w.log.Errorf("storage: unexpected item: %v", item.Item)
	}
}

// extend the best chain by one block
//
// the UTXO apply runs first as the invariant gate; later failures
// undo it so a failed extension leaves no trace
func (w *storageWorker) extend(request *extendRequest) error {

	err := storage.ApplyUTXOChanges(request.diff)
	if nil != err {
		return err
	}

	_, _, err = storage.PutBlock(request.packed)
	if nil != err {
		w.compensate(storage.RollbackUTXOChanges(request.diff))
		return err
	}

	err = storage.StoreTransactions(request.txs)
	if nil != err {
		w.compensate(storage.DeleteBlockHeight(request.height))
		w.compensate(storage.RollbackUTXOChanges(request.diff))
		return err
	}

	err = storage.StoreBlockDiff(request.digest, request.diff)
	if nil != err {
		w.compensate(storage.DeleteBlockHeight(request.height))
		w.compensate(storage.RollbackUTXOChanges(request.diff))
		return err
	}

	return storage.SetChainTip(request.digest, request.height)
}

// store a fork block off the height index
func (w *storageWorker) sideBlock(request *sideBlockRequest) error {

	digest := request.packed.Digest()

	_, err := storage.PutSideBlock(request.packed)
	if nil != err && fault.BlockAlreadyExists != err {
		return err
	}
	err = storage.StoreTransactions(request.txs)
	if nil != err {
		return err
	}
	return storage.StoreBlockDiff(digest, request.diff)
}

// undo one block during a reorg
func (w *storageWorker) disconnect(request *disconnectRequest) error {

	diff, err := storage.GetBlockDiff(request.digest)
	if nil != err {
		return err
	}
	err = storage.RollbackUTXOChanges(diff)
	if nil != err {
		return err
	}
	return storage.DeleteBlockHeight(request.height)
}

// apply one block during a reorg
func (w *storageWorker) connect(request *connectRequest) error {

	diff, err := storage.GetBlockDiff(request.digest)
	if nil != err {
		return err
	}
	err = storage.ApplyUTXOChanges(diff)
	if nil != err {
		return err
	}
	return storage.SetBlockHeight(request.height, request.digest)
}

// a failed undo of a failed write leaves the store inconsistent,
// which only a restart can repair
func (w *storageWorker) compensate(err error) {
	if nil != err {
		w.log.Criticalf("storage: compensation failed: %s", err)
	}
}
