// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"os"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitknots/bitknotsd/fault"
)

// number of records written per backup batch
const backupBatchSize = 1000

// Backup - write a consistent point-in-time copy of both databases
//
// the snapshots are taken while holding the write lock so they
// represent a single instant; the copy itself runs from the
// snapshots and never blocks concurrent readers or writers
func Backup(destination string) error {

	poolData.RLock()
	if nil == poolData.dbBlocks || nil == poolData.dbIndex {
		poolData.RUnlock()
		return fault.NotInitialised
	}
	poolData.RUnlock()

	err := os.MkdirAll(destination, 0700)
	if nil != err {
		return err
	}

	// snapshot both databases at the same instant
	writeMutex.Lock()
	blocksSnapshot, err := poolData.dbBlocks.GetSnapshot()
	if nil != err {
		writeMutex.Unlock()
		return err
	}
	indexSnapshot, err := poolData.dbIndex.GetSnapshot()
	if nil != err {
		blocksSnapshot.Release()
		writeMutex.Unlock()
		return err
	}
	writeMutex.Unlock()

	defer blocksSnapshot.Release()
	defer indexSnapshot.Release()

	err = copySnapshot(blocksSnapshot, filepath.Join(destination, filepath.Base(poolData.blocksDatabase)))
	if nil != err {
		return err
	}
	return copySnapshot(indexSnapshot, filepath.Join(destination, filepath.Base(poolData.indexDatabase)))
}

// stream one snapshot into a freshly created database
func copySnapshot(snapshot *leveldb.Snapshot, name string) error {

	opt := &ldb_opt.Options{
		ErrorIfExist: true,
	}
	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		if os.IsExist(err) {
			return fault.BackupDirectoryExists
		}
		return err
	}
	defer db.Close()

	iter := snapshot.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	n := 0
	for iter.Next() {
		batch.Put(iter.Key(), iter.Value())
		n += 1
		if n >= backupBatchSize {
			err = db.Write(batch, nil)
			if nil != err {
				return err
			}
			batch.Reset()
			n = 0
		}
	}
	if n > 0 {
		err = db.Write(batch, nil)
		if nil != err {
			return err
		}
	}
	return iter.Error()
}
