// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"os"
	"testing"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
	"github.com/bitknots/bitknotsd/genesis"
	"github.com/bitknots/bitknotsd/storage"
	"github.com/bitmark-inc/logger"
)

// test database file prefix
const (
	databaseFileName = "test"
)

// common test setup routines

// remove all files created by test
func removeFiles() {
	os.RemoveAll(databaseFileName + "-blocks.leveldb")
	os.RemoveAll(databaseFileName + "-index.leveldb")
	os.RemoveAll("test-backup")
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

	err := storage.Initialise(databaseFileName, storage.ReadWrite)
	if nil != err {
		t.Fatalf("storage initialise error: %s", err)
	}
}

// post test cleanup
func teardown(t *testing.T) {
	storage.Finalise()
	logger.Finalise()
	removeFiles()
}

// a string data item
type stringElement struct {
	key   string
	value string
}

// make an element array
func makeElements(input []stringElement) []storage.Element {
	output := make([]storage.Element, 0, len(input))
	for _, e := range input {
		output = append(output, storage.Element{
			Key:   []byte(e.key),
			Value: []byte(e.value),
		})
	}
	return output
}

// data for various test routines

// this is the expected order
var expectedElements = makeElements([]stringElement{
	{"key-five", "data-five"},
	{"key-four", "data-four"},
	{"key-one", "data-one(NEW)"},
	{"key-seven", "data-seven"},
	{"key-six", "data-six"},
	{"key-three", "data-three"},
	{"key-two", "data-two"},
	// {"key-one", "data-one"}, // this was removed
})

// a key that must not exist
var nonExistantKey = []byte("/nonexistant")

// sample key and data
var testKey = []byte("key-two")
var testData = "data-two"

// arbitrary fixed time base for generated test blocks
const baseTimestamp = uint64(1575244800)

// build a short chain of packed blocks on top of the test genesis
func makeChain(t *testing.T, count int) []blockrecord.PackedBlock {
	blocks := make([]blockrecord.PackedBlock, 0, count+1)
	blocks = append(blocks, genesis.TestGenesisBlock)

	previous := genesis.TestGenesisDigest
	for i := 1; i <= count; i += 1 {
		header := &blockrecord.Header{
			Version:       blockrecord.Version,
			Number:        uint64(i),
			PreviousBlock: previous,
			Timestamp:     baseTimestamp + uint64(600*i),
			Work:          uint64(1000 * i),
		}
		packed := header.Pack([]byte{byte(i), 0xbe, 0xef})
		blocks = append(blocks, packed)
		previous = packed.Digest()
	}
	return blocks
}

// store a packed block, failing the test on any error
func mustPutBlock(t *testing.T, packed blockrecord.PackedBlock) blockdigest.Digest {
	digest, _, err := storage.PutBlock(packed)
	if nil != err {
		t.Fatalf("put block error: %s", err)
	}
	return digest
}
