// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
	"github.com/bitknots/bitknotsd/chainstate"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/genesis"
	"github.com/bitknots/bitknotsd/messagebus"
	"github.com/bitknots/bitknotsd/metrics"
	"github.com/bitknots/bitknotsd/mode"
	"github.com/bitknots/bitknotsd/publish"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitknots/bitknotsd/transactionrecord"
	"github.com/bitmark-inc/logger"
)

// consecutive storage failures before the node declares itself down
const storageFailureLimit = 3

// one block on a fork branch, parent first ordering in slices
type branchBlock struct {
	digest blockdigest.Digest
	header *blockrecord.Header
}

// chainWorker - sole owner of tip advancement
//
// processes block submissions and tip queries strictly in arrival
// order; all ledger writes are delegated to the storage worker and
// awaited, so a submission is either fully applied or fully rejected
type chainWorker struct {
	log             *logger.L
	storageFailures int
}

func (c *chainWorker) Run(args interface{}, shutdown <-chan struct{}) {

	c.log = args.(*logger.L)
	log := c.log

	log.Info("chain: starting…")

	queue := messagebus.Bus.Chain.Chan()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case item := <-queue:
			switch request := item.Item.(type) {
			case *blockSubmission:
				request.reply <- c.acceptBlock(request)
			case *tipQuery:
				height, digest, work := chainstate.Get()
				request.reply <- TipInfo{Height: height, Digest: digest, Work: work}
			default:
				log.Errorf("chain: unexpected item: %v", item.Item)
			}
		}
	}
	log.Info("chain: shutting down…")
}

// send one request to the storage worker and await completion
func (c *chainWorker) storageRequest(command string, request interface{}, reply chan error) error {
	messagebus.Bus.Storage.Send(command, request)
	err := <-reply
	c.recordStorageHealth(err)
	return err
}

// sustained storage unavailability flips the node to Stopped so the
// health surface reports it
func (c *chainWorker) recordStorageHealth(err error) {
	if fault.StorageUnavailable == err {
		c.storageFailures += 1
		if c.storageFailures >= storageFailureLimit {
			c.log.Criticalf("chain: %d consecutive storage failures", c.storageFailures)
			mode.Set(mode.Stopped)
		}
		return
	}
	if nil == err {
		c.storageFailures = 0
	}
}

func (c *chainWorker) acceptBlock(submission *blockSubmission) error {

	header, _, err := submission.packed.Unpack()
	if nil != err {
		return err
	}
	digest := submission.packed.Digest()

	if storage.HasBlock(digest) {
		return fault.BlockAlreadyExists
	}

	tipHeight, tipDigest, tipWork := chainstate.Get()

	// straightforward extension of the current tip
	if header.PreviousBlock == tipDigest {
		if header.Number != tipHeight+1 {
			return fault.OutOfOrderBlockNumber
		}

		reply := make(chan error, 1)
		err = c.storageRequest("extend", &extendRequest{
			packed: submission.packed,
			txs:    submission.txs,
			diff:   submission.diff,
			height: header.Number,
			digest: digest,
			reply:  reply,
		}, reply)
		if nil != err {
			return err
		}

		chainstate.Set(header.Number, digest, tipWork+header.Work)
		c.confirmTransactions(submission.txs)

		metrics.BlockProcessed()
		metrics.TransactionsProcessed(uint64(len(submission.txs)))
		publish.Send(publish.NewBlockAccepted(digest, header.Number, len(submission.txs)))

		c.log.Infof("chain: accepted block %d: %v", header.Number, digest)
		return nil
	}

	// a fork: find where its branch leaves the best chain
	branch, forkHeight, err := c.traceBranch(digest, header)
	if nil != err {
		return err
	}

	newWork, err := c.forkWork(branch, forkHeight, tipHeight, tipWork)
	if nil != err {
		return err
	}

	// keep the block either way, a later block may extend this fork
	reply := make(chan error, 1)
	err = c.storageRequest("side", &sideBlockRequest{
		packed: submission.packed,
		txs:    submission.txs,
		diff:   submission.diff,
		reply:  reply,
	}, reply)
	if nil != err {
		return err
	}

	if newWork <= tipWork {
		c.log.Infof("chain: stored side block %d: %v", header.Number, digest)
		return fault.InsufficientWork
	}

	err = c.reorganise(branch, forkHeight, tipHeight, tipDigest)
	if nil != err {
		return err
	}

	newTip := branch[len(branch)-1]
	chainstate.Set(newTip.header.Number, newTip.digest, newWork)
	c.confirmTransactions(submission.txs)

	metrics.BlockProcessed()
	metrics.TransactionsProcessed(uint64(len(submission.txs)))
	publish.Send(publish.NewChainReorg(tipDigest, tipHeight, newTip.digest, newTip.header.Number))

	c.log.Infof("chain: reorganised %d→%v to %d→%v",
		tipHeight, tipDigest, newTip.header.Number, newTip.digest)
	return nil
}

// walk parent links from a fork block back to the best chain
//
// returns the branch parent-first including the submitted block, and
// the height at which it joins the best chain
func (c *chainWorker) traceBranch(digest blockdigest.Digest, header *blockrecord.Header) ([]branchBlock, uint64, error) {

	branch := []branchBlock{{digest: digest, header: header}}

	for {
		current := branch[0]

		if genesis.BlockNumber == current.header.Number {
			// would have to replace genesis itself
			return nil, 0, fault.ReorgFloorReached
		}

		parentDigest := current.header.PreviousBlock
		parentHeight := current.header.Number - 1

		if c.onBestChain(parentHeight, parentDigest) {
			return branch, parentHeight, nil
		}

		parentPacked, err := storage.GetBlock(parentDigest)
		if fault.BlockNotFound == err {
			return nil, 0, fault.BlockDoesNotConnect
		} else if nil != err {
			return nil, 0, err
		}
		parentHeader, _, err := parentPacked.Unpack()
		if nil != err {
			return nil, 0, err
		}
		if parentHeader.Number != parentHeight {
			return nil, 0, fault.OutOfOrderBlockNumber
		}

		branch = append([]branchBlock{{digest: parentDigest, header: parentHeader}}, branch...)
	}
}

func (*chainWorker) onBestChain(height uint64, digest blockdigest.Digest) bool {
	packed, err := storage.GetBlockByHeight(height)
	if nil != err {
		return false
	}
	return packed.Digest() == digest
}

// cumulative work of the fork chain: best chain work up to the fork
// point plus the branch's own work
func (c *chainWorker) forkWork(branch []branchBlock, forkHeight uint64, tipHeight uint64, tipWork uint64) (uint64, error) {

	work := tipWork

	// subtract the losing branch
	for height := forkHeight + 1; height <= tipHeight; height += 1 {
		packed, err := storage.GetBlockByHeight(height)
		if nil != err {
			return 0, err
		}
		header, _, err := packed.Unpack()
		if nil != err {
			return 0, err
		}
		work -= header.Work
	}

	// add the winning branch
	for _, b := range branch {
		work += b.header.Work
	}
	return work, nil
}

// switch the best chain to the fork branch
//
// disconnect the losing blocks top down, connect the winning blocks
// bottom up, move the tip last; on any failure the completed steps
// are compensated so ChainState never reflects a half reorg
func (c *chainWorker) reorganise(branch []branchBlock, forkHeight uint64, tipHeight uint64, tipDigest blockdigest.Digest) error {

	// record the losing branch before touching anything
	losing := []branchBlock(nil) // top down
	for height := tipHeight; height > forkHeight; height -= 1 {
		packed, err := storage.GetBlockByHeight(height)
		if nil != err {
			return err
		}
		header, _, err := packed.Unpack()
		if nil != err {
			return err
		}
		losing = append(losing, branchBlock{digest: packed.Digest(), header: header})
	}

	// disconnect top down
	for i, b := range losing {
		reply := make(chan error, 1)
		err := c.storageRequest("disconnect", &disconnectRequest{
			height: b.header.Number,
			digest: b.digest,
			reply:  reply,
		}, reply)
		if nil != err {
			c.undoDisconnects(losing[:i])
			return err
		}
	}

	// connect bottom up
	for i, b := range branch {
		reply := make(chan error, 1)
		err := c.storageRequest("connect", &connectRequest{
			height: b.header.Number,
			digest: b.digest,
			reply:  reply,
		}, reply)
		if nil != err {
			c.undoConnects(branch[:i])
			c.undoDisconnects(losing)
			return err
		}
	}

	newTip := branch[len(branch)-1]
	reply := make(chan error, 1)
	err := c.storageRequest("settip", &setTipRequest{
		height: newTip.header.Number,
		digest: newTip.digest,
		reply:  reply,
	}, reply)
	if nil != err {
		c.undoConnects(branch)
		c.undoDisconnects(losing)
		return err
	}
	return nil
}

// reconnect already disconnected blocks of the old branch, bottom up
func (c *chainWorker) undoDisconnects(disconnected []branchBlock) {
	for i := len(disconnected) - 1; i >= 0; i -= 1 {
		b := disconnected[i]
		reply := make(chan error, 1)
		err := c.storageRequest("connect", &connectRequest{
			height: b.header.Number,
			digest: b.digest,
			reply:  reply,
		}, reply)
		if nil != err {
			c.log.Criticalf("chain: reorg compensation failed at %d: %s", b.header.Number, err)
			mode.Set(mode.Stopped)
			return
		}
	}
}

// undo already connected blocks of the new branch, top down
func (c *chainWorker) undoConnects(connected []branchBlock) {
	for i := len(connected) - 1; i >= 0; i -= 1 {
		b := connected[i]
		reply := make(chan error, 1)
		err := c.storageRequest("disconnect", &disconnectRequest{
			height: b.header.Number,
			digest: b.digest,
			reply:  reply,
		}, reply)
		if nil != err {
			c.log.Criticalf("chain: reorg compensation failed at %d: %s", b.header.Number, err)
			mode.Set(mode.Stopped)
			return
		}
	}
}

// tell the mempool worker which transactions were confirmed
func (c *chainWorker) confirmTransactions(txs []*transactionrecord.Transaction) {
	if 0 == len(txs) {
		return
	}
	txIds := make([]blockdigest.Digest, len(txs))
	for i, tx := range txs {
		txIds[i] = tx.TxId
	}
	messagebus.Bus.Mempool.Send("confirmed", &confirmedNotice{txIds: txIds})
}
