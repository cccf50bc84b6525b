// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstate_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
	"github.com/bitknots/bitknotsd/chain"
	"github.com/bitknots/bitknotsd/chainstate"
	"github.com/bitknots/bitknotsd/genesis"
	"github.com/bitknots/bitknotsd/mode"
	"github.com/bitknots/bitknotsd/storage"
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
func setup(t *testing.T) {
	removeFiles()

	_ = logger.Initialise(logger.Configuration{
		Directory: ".",
		File:      "test.log",
		Size:      50000,
		Count:     10,
	})

	_ = mode.Initialise(chain.Testnet)

	err := storage.Initialise(databaseFileName, storage.ReadWrite)
	if nil != err {
		t.Fatalf("storage initialise error: %s", err)
	}

	err = chainstate.Initialise()
	if nil != err {
		t.Fatalf("chainstate initialise error: %s", err)
	}
}

// post test cleanup
func teardown(t *testing.T) {
	_ = chainstate.Finalise()
	storage.Finalise()
	_ = mode.Finalise()
	logger.Finalise()
	removeFiles()
}

// build one block on a given parent
func makeBlock(number uint64, previous blockdigest.Digest, work uint64) blockrecord.PackedBlock {
	header := &blockrecord.Header{
		Version:       blockrecord.Version,
		Number:        number,
		PreviousBlock: previous,
		Timestamp:     1575244800 + 600*number,
		Work:          work,
	}
	return header.Pack([]byte{byte(number)})
}

func TestGenesisSeeding(t *testing.T) {
	setup(t)
	defer teardown(t)

	height, digest, work := chainstate.Get()
	assert.Equal(t, genesis.BlockNumber, height)
	assert.Equal(t, genesis.TestGenesisDigest, digest)
	assert.Equal(t, uint64(0), work)

	// the genesis block itself was stored
	packed, err := storage.GetBlockByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, []byte(genesis.TestGenesisBlock), []byte(packed))

	tipDigest, tipHeight, err := storage.GetChainTip()
	require.NoError(t, err)
	assert.Equal(t, genesis.TestGenesisDigest, tipDigest)
	assert.Equal(t, genesis.BlockNumber, tipHeight)
}

func TestWorkRecoveredOnRestart(t *testing.T) {
	setup(t)
	defer teardown(t)

	block1 := makeBlock(1, genesis.TestGenesisDigest, 1000)
	block2 := makeBlock(2, block1.Digest(), 1500)

	for _, packed := range []blockrecord.PackedBlock{block1, block2} {
		_, _, err := storage.PutBlock(packed)
		require.NoError(t, err)
	}

	err := storage.SetChainTip(block2.Digest(), 2)
	require.NoError(t, err)
	chainstate.Set(2, block2.Digest(), 2500)

	assert.Equal(t, uint64(2), chainstate.Height())
	assert.Equal(t, block2.Digest(), chainstate.Digest())

	// restart must rebuild the cumulative work by walking parents
	err = chainstate.Finalise()
	require.NoError(t, err)
	err = chainstate.Initialise()
	require.NoError(t, err)

	height, digest, work := chainstate.Get()
	assert.Equal(t, uint64(2), height)
	assert.Equal(t, block2.Digest(), digest)
	assert.Equal(t, uint64(2500), work)
}
