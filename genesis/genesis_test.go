// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package genesis_test

import (
	"testing"

	"github.com/bitknots/bitknotsd/blockrecord"
	"github.com/bitknots/bitknotsd/genesis"
)

// the genesis blocks are fixed forever, so their digests are too
func TestGenesis(t *testing.T) {

	if genesis.LiveGenesisDigest == genesis.TestGenesisDigest {
		t.Fatalf("live and test genesis digests are the same")
	}

	for i, block := range []blockrecord.PackedBlock{
		genesis.LiveGenesisBlock,
		genesis.TestGenesisBlock,
	} {
		header, _, err := block.Unpack()
		if nil != err {
			t.Fatalf("%d: unpack error: %s", i, err)
		}
		if genesis.BlockNumber != header.Number {
			t.Errorf("%d: genesis number: %d  expected: %d", i, header.Number, genesis.BlockNumber)
		}
		if !header.PreviousBlock.IsEmpty() {
			t.Errorf("%d: genesis has a parent digest", i)
		}
		if 0 != header.Work {
			t.Errorf("%d: genesis work: %d  expected: 0", i, header.Work)
		}
	}
}
