// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockdigest - 32 byte digest for blocks and transactions
//
// the digest is double SHA2-256 and is displayed in the conventional
// reversed hexadecimal form
package blockdigest

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bitknots/bitknotsd/fault"
)

// Length - number of bytes in the digest
const Length = 32

// Digest - type for a digest
type Digest [Length]byte

// NewDigest - create a digest from a byte slice
func NewDigest(record []byte) Digest {
	roundOne := sha256.Sum256(record)
	roundTwo := sha256.Sum256(roundOne[:])
	return Digest(roundTwo)
}

// IsEmpty - check if the digest is all zero
func (digest Digest) IsEmpty() bool {
	return digest == Digest{}
}

// String - convert a binary digest to hex string for use by the fmt package (for %s)
//
// the stored bytes are in little endian order so the display is reversed
func (digest Digest) String() string {
	return hex.EncodeToString(reversed(digest))
}

// GoString - convert a binary digest to hex string for use by the fmt package (for %#v)
func (digest Digest) GoString() string {
	return "<digest:" + hex.EncodeToString(reversed(digest)) + ">"
}

// MarshalText - convert digest to hex text
func (digest Digest) MarshalText() ([]byte, error) {
	size := hex.EncodedLen(Length)
	buffer := make([]byte, size)
	hex.Encode(buffer, reversed(digest))
	return buffer, nil
}

// UnmarshalText - convert hex text into a digest
func (digest *Digest) UnmarshalText(s []byte) error {
	buffer := make([]byte, hex.DecodedLen(len(s)))
	byteCount, err := hex.Decode(buffer, s)
	if nil != err {
		return err
	}
	if Length != byteCount {
		return fault.InvalidDigestLength
	}
	for i, v := range buffer {
		digest[Length-1-i] = v
	}
	return nil
}

// DigestFromBytes - convert and validate a little endian byte slice to a digest
func DigestFromBytes(digest *Digest, buffer []byte) error {
	if Length != len(buffer) {
		return fault.InvalidDigestLength
	}
	copy(digest[:], buffer)
	return nil
}

// internal: digest bytes in reverse order for display
func reversed(digest Digest) []byte {
	result := make([]byte, Length)
	for i := 0; i < Length; i += 1 {
		result[i] = digest[Length-1-i]
	}
	return result
}
