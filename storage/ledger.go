// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/transactionrecord"
)

// serialise all ledger mutations; point reads stay concurrent
var writeMutex sync.Mutex

// metadata key for the chain tip
var tipKey = []byte("tip")

// big endian height used as the height index key
func heightKey(number uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, number)
	return key
}

// PutBlock - store a block and its height index entry in one batch
//
// either both the payload and the height index become visible or
// neither does
func PutBlock(packed blockrecord.PackedBlock) (blockdigest.Digest, uint64, error) {

	header, _, err := packed.Unpack()
	if nil != err {
		return blockdigest.Digest{}, 0, err
	}

	digest := packed.Digest()

	writeMutex.Lock()
	defer writeMutex.Unlock()

	if Pool.Blocks.Has(digest[:]) {
		return digest, header.Number, fault.BlockAlreadyExists
	}

	trx, err := NewDBTransaction()
	if nil != err {
		return digest, header.Number, err
	}

	trx.Put(Pool.Blocks, digest[:], packed)
	trx.Put(Pool.BlockHeight, heightKey(header.Number), digest[:])

	err = trx.Commit()
	if nil != err {
		trx.Abort()
		poolData.log.Criticalf("put block: %v commit error: %s", digest, err)
		return digest, header.Number, fault.StorageUnavailable
	}
	return digest, header.Number, nil
}

// PutSideBlock - store a block without touching the height index
//
// used for fork blocks that are not (yet) on the best chain; a later
// reorg promotes them with SetBlockHeight
func PutSideBlock(packed blockrecord.PackedBlock) (blockdigest.Digest, error) {

	_, _, err := packed.Unpack()
	if nil != err {
		return blockdigest.Digest{}, err
	}

	digest := packed.Digest()

	writeMutex.Lock()
	defer writeMutex.Unlock()

	if Pool.Blocks.Has(digest[:]) {
		return digest, fault.BlockAlreadyExists
	}

	trx, err := NewDBTransaction()
	if nil != err {
		return digest, err
	}
	trx.Put(Pool.Blocks, digest[:], packed)
	err = trx.Commit()
	if nil != err {
		trx.Abort()
		return digest, fault.StorageUnavailable
	}
	return digest, nil
}

// SetBlockHeight - point a height index entry at a digest
//
// reorg connect step: the block record must already be stored
func SetBlockHeight(number uint64, digest blockdigest.Digest) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()

	if !Pool.Blocks.Has(digest[:]) {
		return fault.BlockNotFound
	}

	trx, err := NewDBTransaction()
	if nil != err {
		return err
	}
	trx.Put(Pool.BlockHeight, heightKey(number), digest[:])
	err = trx.Commit()
	if nil != err {
		trx.Abort()
		return fault.StorageUnavailable
	}
	return nil
}

// GetBlock - fetch a block by its digest
func GetBlock(digest blockdigest.Digest) (blockrecord.PackedBlock, error) {
	value := Pool.Blocks.Get(digest[:])
	if nil == value {
		return nil, fault.BlockNotFound
	}
	return blockrecord.PackedBlock(value), nil
}

// GetBlockByHeight - fetch the best chain block at a height
func GetBlockByHeight(number uint64) (blockrecord.PackedBlock, error) {
	digestBytes := Pool.BlockHeight.Get(heightKey(number))
	if nil == digestBytes {
		return nil, fault.BlockNotFound
	}
	var digest blockdigest.Digest
	err := blockdigest.DigestFromBytes(&digest, digestBytes)
	if nil != err {
		return nil, err
	}
	return GetBlock(digest)
}

// HasBlock - check whether a block digest is stored
func HasBlock(digest blockdigest.Digest) bool {
	return Pool.Blocks.Has(digest[:])
}

// DeleteBlockHeight - drop the height index entry for a disconnected height
//
// the block record itself is immutable and retained
func DeleteBlockHeight(number uint64) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()

	trx, err := NewDBTransaction()
	if nil != err {
		return err
	}
	trx.Delete(Pool.BlockHeight, heightKey(number))
	err = trx.Commit()
	if nil != err {
		trx.Abort()
		return fault.StorageUnavailable
	}
	return nil
}

// StoreTransactions - store raw transactions by txid in one batch
//
// already stored transactions are skipped so a replay is harmless
func StoreTransactions(txs []*transactionrecord.Transaction) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()

	trx, err := NewDBTransaction()
	if nil != err {
		return err
	}

	for _, tx := range txs {
		if trx.Has(Pool.Transactions, tx.TxId[:]) {
			continue
		}
		trx.Put(Pool.Transactions, tx.TxId[:], tx.Raw)
	}

	err = trx.Commit()
	if nil != err {
		trx.Abort()
		return fault.StorageUnavailable
	}
	return nil
}

// GetTransaction - fetch raw transaction bytes by txid
func GetTransaction(txId blockdigest.Digest) ([]byte, error) {
	value := Pool.Transactions.Get(txId[:])
	if nil == value {
		return nil, fault.TransactionNotFound
	}
	return value, nil
}

// ApplyUTXOChanges - apply a block's unspent set changes in one batch
//
// every spent outpoint must currently be unspent otherwise the whole
// batch is abandoned with a double spend fault
func ApplyUTXOChanges(diff *transactionrecord.UTXODiff) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()

	trx, err := NewDBTransaction()
	if nil != err {
		return err
	}

	for _, spent := range diff.Spent {
		key := spent.Outpoint.Pack()
		if !trx.Has(Pool.UTXOs, key) {
			trx.Abort()
			return fault.DoubleSpend
		}
		trx.Delete(Pool.UTXOs, key)
	}

	for _, created := range diff.Created {
		key := created.Outpoint.Pack()
		if trx.Has(Pool.UTXOs, key) {
			trx.Abort()
			return fault.UTXOAlreadyExists
		}
		packed, err := created.Pack()
		if nil != err {
			trx.Abort()
			return err
		}
		trx.Put(Pool.UTXOs, key, packed)
	}

	err = trx.Commit()
	if nil != err {
		trx.Abort()
		poolData.log.Criticalf("apply utxo changes commit error: %s", err)
		return fault.StorageUnavailable
	}
	return nil
}

// RollbackUTXOChanges - exact algebraic inverse of ApplyUTXOChanges
//
// removes the created outpoints and restores the spent records
func RollbackUTXOChanges(diff *transactionrecord.UTXODiff) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()

	trx, err := NewDBTransaction()
	if nil != err {
		return err
	}

	for _, created := range diff.Created {
		key := created.Outpoint.Pack()
		if !trx.Has(Pool.UTXOs, key) {
			trx.Abort()
			return fault.UTXONotFound
		}
		trx.Delete(Pool.UTXOs, key)
	}

	for _, spent := range diff.Spent {
		key := spent.Outpoint.Pack()
		if trx.Has(Pool.UTXOs, key) {
			trx.Abort()
			return fault.UTXOAlreadyExists
		}
		packed, err := spent.Pack()
		if nil != err {
			trx.Abort()
			return err
		}
		trx.Put(Pool.UTXOs, key, packed)
	}

	err = trx.Commit()
	if nil != err {
		trx.Abort()
		poolData.log.Criticalf("rollback utxo changes commit error: %s", err)
		return fault.StorageUnavailable
	}
	return nil
}

// StoreBlockDiff - persist a block's UTXO diff as undo data
//
// kept for every stored block so a reorg can disconnect it long
// after acceptance, including across a restart
func StoreBlockDiff(digest blockdigest.Digest, diff *transactionrecord.UTXODiff) error {
	packed, err := json.Marshal(diff)
	if nil != err {
		return err
	}

	writeMutex.Lock()
	defer writeMutex.Unlock()

	trx, err := NewDBTransaction()
	if nil != err {
		return err
	}
	trx.Put(Pool.Diffs, digest[:], packed)
	err = trx.Commit()
	if nil != err {
		trx.Abort()
		return fault.StorageUnavailable
	}
	return nil
}

// GetBlockDiff - fetch the stored undo data for a block
func GetBlockDiff(digest blockdigest.Digest) (*transactionrecord.UTXODiff, error) {
	value := Pool.Diffs.Get(digest[:])
	if nil == value {
		return nil, fault.BlockDiffNotFound
	}
	diff := &transactionrecord.UTXODiff{}
	err := json.Unmarshal(value, diff)
	if nil != err {
		return nil, err
	}
	return diff, nil
}

// GetUTXO - fetch an unspent output
//
// spent and never existed are not distinguished: both are not found
func GetUTXO(outpoint transactionrecord.Outpoint) (*transactionrecord.UTXO, error) {
	value := Pool.UTXOs.Get(outpoint.Pack())
	if nil == value {
		return nil, fault.UTXONotFound
	}
	return transactionrecord.UTXOFromBytes(outpoint, value)
}

// HasUTXO - check whether an outpoint is currently unspent
func HasUTXO(outpoint transactionrecord.Outpoint) bool {
	return Pool.UTXOs.Has(outpoint.Pack())
}

// FetchUTXOs - one page of the unspent set in key order
//
// start nil begins at the first outpoint; the returned key resumes the
// scan on the next call and is nil once the set is exhausted
func FetchUTXOs(start []byte, count int) ([]*transactionrecord.UTXO, []byte, error) {

	cursor := Pool.UTXOs.NewFetchCursor()
	if nil != start {
		cursor.Seek(start)
	}

	elements, err := cursor.Fetch(count)
	if nil != err {
		return nil, nil, err
	}

	utxos := make([]*transactionrecord.UTXO, 0, len(elements))
	for _, e := range elements {
		outpoint, err := transactionrecord.OutpointFromBytes(e.Key)
		if nil != err {
			return nil, nil, err
		}
		utxo, err := transactionrecord.UTXOFromBytes(outpoint, e.Value)
		if nil != err {
			return nil, nil, err
		}
		utxos = append(utxos, utxo)
	}

	if len(elements) < count {
		return utxos, nil, nil
	}
	return utxos, cursor.NextKey(), nil
}

// SetChainTip - record the best tip as a single metadata key
func SetChainTip(digest blockdigest.Digest, height uint64) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()

	trx, err := NewDBTransaction()
	if nil != err {
		return err
	}

	value := make([]byte, 8, 8+blockdigest.Length)
	binary.BigEndian.PutUint64(value, height)
	trx.Put(Pool.Metadata, tipKey, append(value, digest[:]...))

	err = trx.Commit()
	if nil != err {
		trx.Abort()
		return fault.StorageUnavailable
	}
	return nil
}

// GetChainTip - read back the best tip
func GetChainTip() (blockdigest.Digest, uint64, error) {
	var digest blockdigest.Digest

	height, digestBytes := Pool.Metadata.GetNB(tipKey)
	if nil == digestBytes {
		return digest, 0, fault.ChainTipNotFound
	}
	err := blockdigest.DigestFromBytes(&digest, digestBytes)
	if nil != err {
		return digest, 0, err
	}
	return digest, height, nil
}

// DatabaseSize - approximate on-disk size of both databases
func DatabaseSize() uint64 {
	poolData.RLock()
	defer poolData.RUnlock()

	if nil == poolData.dbBlocks || nil == poolData.dbIndex {
		return 0
	}

	total := uint64(0)
	fullRange := []util.Range{{Start: []byte{0x00}, Limit: []byte{0xff}}}
	if sizes, err := poolData.dbBlocks.SizeOf(fullRange); nil == err {
		total += uint64(sizes.Sum())
	}
	if sizes, err := poolData.dbIndex.SizeOf(fullRange); nil == err {
		total += uint64(sizes.Sum())
	}
	return total
}

// Compact - compact both databases over their whole key range
func Compact() error {
	poolData.RLock()
	defer poolData.RUnlock()

	if nil == poolData.dbBlocks || nil == poolData.dbIndex {
		return fault.NotInitialised
	}

	err := poolData.dbBlocks.CompactRange(util.Range{})
	if nil != err {
		return err
	}
	return poolData.dbIndex.CompactRange(util.Range{})
}
