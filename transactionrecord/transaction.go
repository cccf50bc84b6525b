// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transactionrecord - transaction, outpoint and UTXO records
//
// transactions arrive already validated; this package only defines
// their identifying fields and the packed forms stored in the ledger
package transactionrecord

import (
	"encoding/binary"

	"github.com/bitknots/bitknotsd/blockdigest"
	"github.com/bitknots/bitknotsd/fault"
)

// OutpointSize - packed bytes in an outpoint: txid + big endian output index
const OutpointSize = blockdigest.Length + 4

// Outpoint - reference to a single transaction output
type Outpoint struct {
	TxId  blockdigest.Digest `json:"txId"`
	Index uint32             `json:"index"`
}

// Pack - pack an outpoint to its ledger key form
func (o Outpoint) Pack() []byte {
	buffer := make([]byte, OutpointSize)
	copy(buffer, o.TxId[:])
	binary.BigEndian.PutUint32(buffer[blockdigest.Length:], o.Index)
	return buffer
}

// OutpointFromBytes - unpack an outpoint key
func OutpointFromBytes(buffer []byte) (Outpoint, error) {
	o := Outpoint{}
	if OutpointSize != len(buffer) {
		return o, fault.InvalidOutpoint
	}
	copy(o.TxId[:], buffer[:blockdigest.Length])
	o.Index = binary.BigEndian.Uint32(buffer[blockdigest.Length:])
	return o, nil
}

// Output - a spendable output: value plus its spending condition
type Output struct {
	Value  uint64 `json:"value,string"`
	Script []byte `json:"script"`
}

// Transaction - an already validated transaction
type Transaction struct {
	TxId    blockdigest.Digest `json:"txId"`
	Raw     []byte             `json:"-"`
	Inputs  []Outpoint         `json:"inputs"`
	Outputs []Output           `json:"outputs"`
}

// NewTransaction - build a transaction record from its raw bytes
// the txid is the digest of the raw bytes
func NewTransaction(raw []byte, inputs []Outpoint, outputs []Output) *Transaction {
	return &Transaction{
		TxId:    blockdigest.NewDigest(raw),
		Raw:     raw,
		Inputs:  inputs,
		Outputs: outputs,
	}
}
