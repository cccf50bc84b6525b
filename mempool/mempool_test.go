// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitknots/bitknotsd/mempool"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitknots/bitknotsd/transactionrecord"
	"github.com/bitmark-inc/logger"
)

const databaseFileName = "test"

// remove all files created by test
func removeFiles() {
	os.RemoveAll(databaseFileName + "-blocks.leveldb")
	os.RemoveAll(databaseFileName + "-index.leveldb")
	os.RemoveAll("test.log")
}

// configure for testing
func setup(t *testing.T, capacityBytes uint64) {
	removeFiles()

	_ = logger.Initialise(logger.Configuration{
		Directory: ".",
		File:      "test.log",
		Size:      50000,
		Count:     10,
	})

	err := storage.Initialise(databaseFileName, storage.ReadWrite)
	if nil != err {
		t.Fatalf("storage initialise error: %s", err)
	}

	err = mempool.Initialise(capacityBytes, 0)
	if nil != err {
		t.Fatalf("mempool initialise error: %s", err)
	}
}

// post test cleanup
func teardown(t *testing.T) {
	_ = mempool.Finalise()
	storage.Finalise()
	logger.Finalise()
	removeFiles()
}

// store an unspent output and return its outpoint
func seedUTXO(t *testing.T, raw string, value uint64) transactionrecord.Outpoint {
	outpoint := transactionrecord.Outpoint{
		TxId:  blockdigest.NewDigest([]byte(raw)),
		Index: 0,
	}
	err := storage.ApplyUTXOChanges(&transactionrecord.UTXODiff{
		Created: []*transactionrecord.UTXO{{
			Outpoint:    outpoint,
			Value:       value,
			Script:      []byte{0x51},
			BlockNumber: 1,
		}},
	})
	require.NoError(t, err)
	return outpoint
}

// build a transaction with a fixed-length raw payload
func makeTx(raw string, inputs []transactionrecord.Outpoint) *transactionrecord.Transaction {
	return transactionrecord.NewTransaction([]byte(raw), inputs, []transactionrecord.Output{
		{Value: 100, Script: []byte{0x51}},
	})
}

func TestAdmit(t *testing.T) {
	setup(t, 100000)
	defer teardown(t)

	coin := seedUTXO(t, "coinbase", 5000)

	tx1 := makeTx("pending transaction 1", []transactionrecord.Outpoint{coin})
	err := mempool.Admit(tx1, 100)
	require.NoError(t, err)
	assert.True(t, mempool.Has(tx1.TxId))

	// duplicate admission
	err = mempool.Admit(tx1, 100)
	assert.Equal(t, fault.TransactionAlreadyExists, err)

	// input satisfied by another pending entry
	tx2 := makeTx("pending transaction 2", []transactionrecord.Outpoint{
		{TxId: tx1.TxId, Index: 0},
	})
	err = mempool.Admit(tx2, 100)
	require.NoError(t, err)

	// input that exists nowhere
	phantom := makeTx("phantom spender", []transactionrecord.Outpoint{
		{TxId: blockdigest.NewDigest([]byte("no such tx")), Index: 0},
	})
	err = mempool.Admit(phantom, 100)
	assert.Equal(t, fault.MissingTransactionInput, err)
	assert.True(t, fault.IsErrInvariant(err))

	// pending parent output index out of range
	badIndex := makeTx("bad index spender", []transactionrecord.Outpoint{
		{TxId: tx1.TxId, Index: 7},
	})
	err = mempool.Admit(badIndex, 100)
	assert.Equal(t, fault.MissingTransactionInput, err)

	count, bytes := mempool.Size()
	assert.Equal(t, 2, count)
	assert.Equal(t, uint64(len(tx1.Raw)+len(tx2.Raw)), bytes)

	snapshot := mempool.Snapshot()
	assert.Equal(t, 2, len(snapshot))
}

func TestRemoveConfirmed(t *testing.T) {
	setup(t, 100000)
	defer teardown(t)

	coin := seedUTXO(t, "coinbase", 5000)
	tx := makeTx("to be confirmed", []transactionrecord.Outpoint{coin})
	require.NoError(t, mempool.Admit(tx, 100))

	// absent txid is a no-op, not an error
	mempool.RemoveConfirmed(blockdigest.NewDigest([]byte("never seen")))
	assert.True(t, mempool.Has(tx.TxId))

	mempool.RemoveConfirmed(tx.TxId)
	assert.False(t, mempool.Has(tx.TxId))

	counters := mempool.ReadCounters()
	assert.Equal(t, uint64(1), counters.Admitted)
	assert.Equal(t, uint64(1), counters.Confirmed)
}

func TestEvictionOrder(t *testing.T) {
	setup(t, 100000)
	defer teardown(t)

	// all raw payloads the same length so fee alone sets the rate
	fees := []uint64{300, 100, 200, 400}
	txs := make([]*transactionrecord.Transaction, len(fees))
	for i, fee := range fees {
		coin := seedUTXO(t, fmt.Sprintf("coinbase %d", i), 5000)
		txs[i] = makeTx(fmt.Sprintf("payload number %d", i), []transactionrecord.Outpoint{coin})
		require.NoError(t, mempool.Admit(txs[i], fee))
	}

	_, bytes := mempool.Size()
	size := bytes / uint64(len(fees))

	// leave room for the two highest fee entries only
	removed := mempool.EvictToCapacity(2 * size)

	// lowest fee rate evicted first
	require.Equal(t, 2, len(removed))
	assert.Equal(t, txs[1].TxId, removed[0], "fee 100 must go first")
	assert.Equal(t, txs[2].TxId, removed[1], "fee 200 must go second")
	assert.True(t, mempool.Has(txs[0].TxId))
	assert.True(t, mempool.Has(txs[3].TxId))
}

func TestEvictionOrderLargeFees(t *testing.T) {
	setup(t, 100000)
	defer teardown(t)

	// a fee near the top of the uint64 range: the cross multiplied
	// rate comparison must not wrap and misorder the eviction
	lowCoin := seedUTXO(t, "large fee coinbase low", 5000)
	lowTx := makeTx(fmt.Sprintf("%-100s", "low fee payload"), []transactionrecord.Outpoint{lowCoin})
	require.NoError(t, mempool.Admit(lowTx, 100))

	highCoin := seedUTXO(t, "large fee coinbase high", 5000)
	highTx := makeTx(fmt.Sprintf("%-100s", "high fee payload"), []transactionrecord.Outpoint{highCoin})
	require.NoError(t, mempool.Admit(highTx, uint64(1)<<62))

	// room for one entry only
	removed := mempool.EvictToCapacity(uint64(len(highTx.Raw)))
	require.Equal(t, 1, len(removed))
	assert.Equal(t, lowTx.TxId, removed[0], "low fee entry must be evicted first")
	assert.True(t, mempool.Has(highTx.TxId))
}

func TestEvictionTieBreak(t *testing.T) {
	setup(t, 100000)
	defer teardown(t)

	// equal fee and equal size: admission order decides, oldest first
	var txs []*transactionrecord.Transaction
	for i := 0; i < 3; i += 1 {
		coin := seedUTXO(t, fmt.Sprintf("tie coinbase %d", i), 5000)
		tx := makeTx(fmt.Sprintf("tie payload no %d", i), []transactionrecord.Outpoint{coin})
		require.NoError(t, mempool.Admit(tx, 100))
		txs = append(txs, tx)
	}

	_, bytes := mempool.Size()
	size := bytes / 3

	removed := mempool.EvictToCapacity(2 * size)
	require.Equal(t, 1, len(removed))
	assert.Equal(t, txs[0].TxId, removed[0], "oldest admission must be evicted first")
}

func TestEvictionCascade(t *testing.T) {
	setup(t, 100000)
	defer teardown(t)

	coin := seedUTXO(t, "cascade coinbase", 5000)

	// low fee parent with a high fee child spending its output
	parent := makeTx("cascade parent tx xx", []transactionrecord.Outpoint{coin})
	require.NoError(t, mempool.Admit(parent, 10))

	child := makeTx("cascade child txn xx", []transactionrecord.Outpoint{
		{TxId: parent.TxId, Index: 0},
	})
	require.NoError(t, mempool.Admit(child, 900))

	// force the parent out: the child must follow, not dangle
	removed := mempool.EvictToCapacity(uint64(len(child.Raw)))
	assert.Contains(t, removed, parent.TxId)
	assert.Contains(t, removed, child.TxId)
	assert.False(t, mempool.Has(child.TxId), "child left without its input")

	count, _ := mempool.Size()
	assert.Equal(t, 0, count)
}
