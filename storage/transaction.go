// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"

	"github.com/bitmark-inc/logger"

	"github.com/bitknots/bitknotsd/fault"
)

// Transaction - a batch write bracket over the databases
//
// puts and deletes are staged per pool and become durable on commit;
// a single commit is atomic provided all staged keys are pools of the
// same database, which the pool layout guarantees for every ledger
// mutation
type Transaction interface {
	Begin() error
	Abort()
	Commit() error
	Put(*PoolHandle, []byte, []byte)
	PutN(*PoolHandle, []byte, uint64)
	Delete(*PoolHandle, []byte)
	Get(*PoolHandle, []byte) []byte
	GetN(*PoolHandle, []byte) (uint64, bool)
	GetNB(*PoolHandle, []byte) (uint64, []byte)
	Has(*PoolHandle, []byte) bool
	InUse() bool
}

type transactionData struct {
	access []Access
}

func newTransaction(access []Access) Transaction {
	return &transactionData{
		access: access,
	}
}

// Begin - mark all accesses in use
func (t *transactionData) Begin() error {
	for _, a := range t.access {
		if a.InUse() {
			return fault.AlreadyInitialised
		}
	}
	for _, a := range t.access {
		_ = a.Begin()
	}
	return nil
}

// Abort - discard all staged operations
func (t *transactionData) Abort() {
	for _, a := range t.access {
		a.Abort()
	}
}

// Commit - write all staged operations
func (t *transactionData) Commit() error {
	for _, a := range t.access {
		err := a.Commit()
		if nil != err {
			return err
		}
	}
	return nil
}

// InUse - check if any access has an open batch
func (t *transactionData) InUse() bool {
	for _, a := range t.access {
		if a.InUse() {
			return true
		}
	}
	return false
}

// Put - stage a put on a pool
func (t *transactionData) Put(p *PoolHandle, key []byte, value []byte) {
	p.put(key, value)
}

// PutN - stage a put of a big endian uint64 value
func (t *transactionData) PutN(p *PoolHandle, key []byte, value uint64) {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)
	p.put(key, buffer)
}

// Delete - stage a delete on a pool
func (t *transactionData) Delete(p *PoolHandle, key []byte) {
	p.remove(key)
}

// Get - read a value honouring staged operations
func (t *transactionData) Get(p *PoolHandle, key []byte) []byte {
	return p.stagedGet(key)
}

// GetN - read a big endian uint64 honouring staged operations
func (t *transactionData) GetN(p *PoolHandle, key []byte) (uint64, bool) {
	buffer := p.stagedGet(key)
	if nil == buffer {
		return 0, false
	}
	if len(buffer) < 8 {
		logger.Panicf("transaction.GetN truncated record for: %x: %s", key, buffer)
	}
	n := binary.BigEndian.Uint64(buffer[:8])
	return n, true
}

// GetNB - read a uint64 prefixed record honouring staged operations
func (t *transactionData) GetNB(p *PoolHandle, key []byte) (uint64, []byte) {
	buffer := p.stagedGet(key)
	if nil == buffer {
		return 0, nil
	}
	if len(buffer) < 9 { // must have at least one byte after the N value
		logger.Panicf("transaction.GetNB truncated record for: %x: %s", key, buffer)
	}
	n := binary.BigEndian.Uint64(buffer[:8])
	return n, buffer[8:]
}

// Has - existence check honouring staged operations
func (t *transactionData) Has(p *PoolHandle, key []byte) bool {
	return p.stagedHas(key)
}
