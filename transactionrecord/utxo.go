// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"encoding/binary"

	"github.com/bitknots/bitknotsd/fault"
)

// packed UTXO record layout (big endian):
//
//	record version  1 byte
//	value           8 bytes
//	block number    8 bytes
//	script length   2 bytes
//	script          script length bytes
//
// this is the sole durable source of spendability so the version byte
// guards the format across restarts
const (
	utxoVersion        = 0x01
	utxoFixedSize      = 1 + 8 + 8 + 2
	maximumScriptBytes = 0xffff
)

// UTXO - an unspent output as stored in the ledger
type UTXO struct {
	Outpoint    Outpoint `json:"outpoint"`
	Value       uint64   `json:"value,string"`
	Script      []byte   `json:"script"`
	BlockNumber uint64   `json:"blockNumber,string"`
}

// Pack - pack the spendability fields; the outpoint is the key, not
// part of the stored value
func (u *UTXO) Pack() ([]byte, error) {
	if len(u.Script) > maximumScriptBytes {
		return nil, fault.InvalidUTXORecord
	}

	buffer := make([]byte, utxoFixedSize, utxoFixedSize+len(u.Script))
	buffer[0] = utxoVersion
	binary.BigEndian.PutUint64(buffer[1:], u.Value)
	binary.BigEndian.PutUint64(buffer[9:], u.BlockNumber)
	binary.BigEndian.PutUint16(buffer[17:], uint16(len(u.Script)))

	return append(buffer, u.Script...), nil
}

// UTXOFromBytes - unpack a stored record; the outpoint comes from the key
func UTXOFromBytes(outpoint Outpoint, buffer []byte) (*UTXO, error) {
	if len(buffer) < utxoFixedSize {
		return nil, fault.InvalidUTXORecord
	}
	if utxoVersion != buffer[0] {
		return nil, fault.InvalidUTXORecord
	}

	scriptLength := int(binary.BigEndian.Uint16(buffer[17:]))
	if utxoFixedSize+scriptLength != len(buffer) {
		return nil, fault.InvalidUTXORecord
	}

	script := make([]byte, scriptLength)
	copy(script, buffer[utxoFixedSize:])

	return &UTXO{
		Outpoint:    outpoint,
		Value:       binary.BigEndian.Uint64(buffer[1:]),
		Script:      script,
		BlockNumber: binary.BigEndian.Uint64(buffer[9:]),
	}, nil
}
