// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitknots/bitknotsd/fault"
)

// Access - batch staged access to a single database
//
// Get and Has read committed state only; the staged variants overlay
// the open batch and are reserved for the transaction bracket itself
type Access interface {
	Abort()
	Begin() error
	Commit() error
	Delete([]byte)
	Get([]byte) ([]byte, error)
	Has([]byte) (bool, error)
	InUse() bool
	Iterator(*ldb_util.Range) iterator.Iterator
	Put([]byte, []byte)
	StagedGet([]byte) ([]byte, error)
	StagedHas([]byte) (bool, error)
}

// AccessData - implement Access for a LevelDB database
type AccessData struct {
	sync.Mutex
	inUse bool
	db    *leveldb.DB
	batch *leveldb.Batch
	cache Cache
}

func newAccess(db *leveldb.DB, batch *leveldb.Batch, cache Cache) Access {
	return &AccessData{
		inUse: false,
		db:    db,
		batch: batch,
		cache: cache,
	}
}

// Begin - mark the batch as in use
func (d *AccessData) Begin() error {
	d.Lock()
	defer d.Unlock()

	if d.inUse {
		return fault.AlreadyInitialised
	}

	d.inUse = true
	return nil
}

// Put - stage a put into the batch
// the cache makes the staged value visible to StagedGet before commit
func (d *AccessData) Put(key []byte, value []byte) {
	d.cache.Set(dbPut, string(key), value)
	d.batch.Put(key, value)
}

// Delete - stage a delete into the batch
func (d *AccessData) Delete(key []byte) {
	d.cache.Set(dbDelete, string(key), []byte{})
	d.batch.Delete(key)
}

// Commit - write the whole batch in one atomic operation
func (d *AccessData) Commit() error {
	d.Lock()
	defer d.Unlock()

	err := d.db.Write(d.batch, nil)
	d.batch.Reset()
	d.cache.Clear()
	d.inUse = false
	return err
}

// Abort - discard the staged batch
func (d *AccessData) Abort() {
	d.Lock()
	defer d.Unlock()

	d.batch.Reset()
	d.cache.Clear()
	d.inUse = false
}

// Get - read committed state only
//
// an open batch is never visible here, so a concurrent reader can
// never observe a half-staged multi-key mutation
func (d *AccessData) Get(key []byte) ([]byte, error) {
	return d.db.Get(key, nil)
}

// Has - committed existence check
func (d *AccessData) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

// StagedGet - staged value if present, otherwise read through to the
// database; a staged delete hides the stored value
//
// only the transaction bracket may use this view
func (d *AccessData) StagedGet(key []byte) ([]byte, error) {
	val, found := d.cache.Get(string(key))
	if found {
		return val, nil
	}
	if d.cache.IsDeleted(string(key)) {
		return nil, leveldb.ErrNotFound
	}
	return d.db.Get(key, nil)
}

// StagedHas - existence check honouring staged puts and deletes
func (d *AccessData) StagedHas(key []byte) (bool, error) {
	_, found := d.cache.Get(string(key))
	if found {
		return true, nil
	}
	if d.cache.IsDeleted(string(key)) {
		return false, nil
	}
	return d.db.Has(key, nil)
}

// Iterator - iterate committed values over a key range
func (d *AccessData) Iterator(searchRange *ldb_util.Range) iterator.Iterator {
	return d.db.NewIterator(searchRange, nil)
}

// InUse - check if a batch is open
func (d *AccessData) InUse() bool {
	d.Lock()
	defer d.Unlock()
	return d.inUse
}
