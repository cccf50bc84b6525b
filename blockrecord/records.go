// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockrecord - block record packing
//
// the packed form is the canonical bytes stored in the ledger and
// hashed for the block digest; layout (big endian):
//
//	version         2 bytes
//	number          8 bytes
//	previous block 32 bytes
//	timestamp       8 bytes
//	work            8 bytes
//	payload         remaining bytes (opaque, supplied by the validator)
package blockrecord

import (
	"encoding/binary"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/fault"
)

// currently supported block version
const (
	Version = 1
)

// sizes of the fixed header fields
const (
	versionSize       = 2
	numberSize        = 8
	previousBlockSize = blockdigest.Length
	timestampSize     = 8
	workSize          = 8

	// TotalHeaderSize - total bytes in the header
	TotalHeaderSize = versionSize + numberSize + previousBlockSize + timestampSize + workSize
)

// offsets of the header fields
const (
	versionOffset       = 0
	numberOffset        = versionOffset + versionSize
	previousBlockOffset = numberOffset + numberSize
	timestampOffset     = previousBlockOffset + previousBlockSize
	workOffset          = timestampOffset + timestampSize
)

// Header - the unpacked header structure
type Header struct {
	Version       uint16             `json:"version"`
	Number        uint64             `json:"number,string"`
	PreviousBlock blockdigest.Digest `json:"previousBlock"`
	Timestamp     uint64             `json:"timestamp,string"`
	Work          uint64             `json:"work,string"`
}

// PackedBlock - packed records are just a byte slice
type PackedBlock []byte

// Pack - pack a header and an opaque payload into a storable record
func (header *Header) Pack(payload []byte) PackedBlock {
	buffer := make([]byte, TotalHeaderSize, TotalHeaderSize+len(payload))

	binary.BigEndian.PutUint16(buffer[versionOffset:], header.Version)
	binary.BigEndian.PutUint64(buffer[numberOffset:], header.Number)
	copy(buffer[previousBlockOffset:], header.PreviousBlock[:])
	binary.BigEndian.PutUint64(buffer[timestampOffset:], header.Timestamp)
	binary.BigEndian.PutUint64(buffer[workOffset:], header.Work)

	return append(buffer, payload...)
}

// Unpack - unpack the header and return the remaining payload bytes
func (record PackedBlock) Unpack() (*Header, []byte, error) {
	if len(record) < TotalHeaderSize {
		return nil, nil, fault.InvalidBlockHeaderSize
	}

	header := &Header{
		Version:   binary.BigEndian.Uint16(record[versionOffset:]),
		Number:    binary.BigEndian.Uint64(record[numberOffset:]),
		Timestamp: binary.BigEndian.Uint64(record[timestampOffset:]),
		Work:      binary.BigEndian.Uint64(record[workOffset:]),
	}
	copy(header.PreviousBlock[:], record[previousBlockOffset:previousBlockOffset+previousBlockSize])

	return header, record[TotalHeaderSize:], nil
}

// Digest - digest of the whole packed block
func (record PackedBlock) Digest() blockdigest.Digest {
	return blockdigest.NewDigest(record)
}
