// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package genesis - the first block in the chain
//
// the genesis block is fixed per network and acts as the floor for
// any reorganisation; it is height zero and has a zero parent digest
package genesis

import (
	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
)

// BlockNumber - height of the genesis block
const BlockNumber = uint64(0)

// fixed creation timestamps, never change these
const (
	liveGenesisTimestamp = uint64(1575158400) // 2019-12-01 00:00:00 UTC
	testGenesisTimestamp = uint64(1575244800) // 2019-12-02 00:00:00 UTC
)

// LiveGenesisBlock - packed genesis block for the main network
var LiveGenesisBlock blockrecord.PackedBlock

// LiveGenesisDigest - digest of the main network genesis block
var LiveGenesisDigest blockdigest.Digest

// TestGenesisBlock - packed genesis block for test networks
var TestGenesisBlock blockrecord.PackedBlock

// TestGenesisDigest - digest of the test network genesis block
var TestGenesisDigest blockdigest.Digest

func init() {
	liveHeader := &blockrecord.Header{
		Version:   blockrecord.Version,
		Number:    BlockNumber,
		Timestamp: liveGenesisTimestamp,
		Work:      0,
	}
	LiveGenesisBlock = liveHeader.Pack([]byte("DOWN the Rabbit-Hole"))
	LiveGenesisDigest = LiveGenesisBlock.Digest()

	testHeader := &blockrecord.Header{
		Version:   blockrecord.Version,
		Number:    BlockNumber,
		Timestamp: testGenesisTimestamp,
		Work:      0,
	}
	TestGenesisBlock = testHeader.Pack([]byte("Bitknots Testing Genesis Block"))
	TestGenesisDigest = TestGenesisBlock.Digest()
}
