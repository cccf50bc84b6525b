// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord_test

import (
	"bytes"
	"testing"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/blockrecord"
)

func TestPackUnpack(t *testing.T) {

	parent := blockdigest.NewDigest([]byte("parent block"))

	header := &blockrecord.Header{
		Version:       blockrecord.Version,
		Number:        17,
		PreviousBlock: parent,
		Timestamp:     0x5dc0ffee,
		Work:          1000,
	}
	payload := []byte("three transactions worth of opaque bytes")

	packed := header.Pack(payload)

	if len(packed) != blockrecord.TotalHeaderSize+len(payload) {
		t.Fatalf("packed length: %d  expected: %d", len(packed), blockrecord.TotalHeaderSize+len(payload))
	}

	unpackedHeader, unpackedPayload, err := packed.Unpack()
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}

	if *unpackedHeader != *header {
		t.Errorf("header: %v  expected: %v", unpackedHeader, header)
	}
	if !bytes.Equal(payload, unpackedPayload) {
		t.Errorf("payload: %x  expected: %x", unpackedPayload, payload)
	}
}

func TestUnpackShortRecord(t *testing.T) {

	short := blockrecord.PackedBlock(make([]byte, blockrecord.TotalHeaderSize-1))
	_, _, err := short.Unpack()
	if nil == err {
		t.Errorf("unpack of short record did not fail")
	}
}

// the digest must depend on the payload, not only on the header
func TestDigestCoversPayload(t *testing.T) {

	header := &blockrecord.Header{
		Version: blockrecord.Version,
		Number:  1,
	}

	one := header.Pack([]byte("payload one"))
	two := header.Pack([]byte("payload two"))

	if one.Digest() == two.Digest() {
		t.Errorf("different payloads produced the same digest")
	}
}
