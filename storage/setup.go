// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitknots/bitknotsd/fault"
	"github.com/bitmark-inc/logger"
)

// exported storage pools
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type pools struct {
	Blocks       *PoolHandle `prefix:"B" database:"blocks"`
	BlockHeight  *PoolHandle `prefix:"H" database:"blocks"`
	Metadata     *PoolHandle `prefix:"M" database:"blocks"`
	Diffs        *PoolHandle `prefix:"D" database:"index"`
	Transactions *PoolHandle `prefix:"T" database:"index"`
	UTXOs        *PoolHandle `prefix:"U" database:"index"`
	TestData     *PoolHandle `prefix:"Z" database:"index"`
}

// Pool - the set of exported pools
var Pool pools

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const (
	currentBlocksDBVersion = 0x100
	currentIndexDBVersion  = 0x100
)

// holds the database handles
var poolData struct {
	sync.RWMutex
	log            *logger.L
	blocksDatabase string
	indexDatabase  string
	dbBlocks       *leveldb.DB
	dbIndex        *leveldb.DB
	blocksBatch    *leveldb.Batch
	indexBatch     *leveldb.Batch
	cache          Cache
	trx            Transaction
}

// pool access modes
const (
	ReadOnly  = true
	ReadWrite = false
)

// Initialise - open up the database connections
//
// this must be called before any pool is accessed
func Initialise(database string, readOnly bool) error {
	poolData.Lock()
	defer poolData.Unlock()

	ok := false

	if nil != poolData.dbBlocks {
		return fault.AlreadyInitialised
	}

	poolData.log = logger.New("storage")
	poolData.log.Info("starting…")

	defer func() {
		if !ok {
			dbClose()
		}
	}()

	poolData.blocksDatabase = database + "-blocks.leveldb"
	poolData.indexDatabase = database + "-index.leveldb"

	db, blocksVersion, err := getDB(poolData.blocksDatabase, readOnly)
	if nil != err {
		return err
	}
	poolData.dbBlocks = db

	db, indexVersion, err := getDB(poolData.indexDatabase, readOnly)
	if nil != err {
		return err
	}
	poolData.dbIndex = db

	// ensure no database downgrade
	if blocksVersion > currentBlocksDBVersion || indexVersion > currentIndexDBVersion {
		poolData.log.Criticalf("database version: %d/%d > current version: %d/%d",
			blocksVersion, indexVersion, currentBlocksDBVersion, currentIndexDBVersion)
		return fault.BlockVersionMustNotDecrease
	}

	// database was empty so tag as current version
	if !readOnly {
		if 0 == blocksVersion {
			err = putVersion(poolData.dbBlocks, currentBlocksDBVersion)
			if nil != err {
				return err
			}
		}
		if 0 == indexVersion {
			err = putVersion(poolData.dbIndex, currentIndexDBVersion)
			if nil != err {
				return err
			}
		}
	}

	// this will be a struct type
	poolType := reflect.TypeOf(Pool)

	// get write access by using pointer + Elem()
	poolValue := reflect.ValueOf(&Pool).Elem()

	// databases
	poolData.blocksBatch = new(leveldb.Batch)
	poolData.indexBatch = new(leveldb.Batch)
	poolData.cache = newCache()
	blocksAccess := newAccess(poolData.dbBlocks, poolData.blocksBatch, poolData.cache)
	indexAccess := newAccess(poolData.dbIndex, poolData.indexBatch, poolData.cache)
	poolData.trx = newTransaction([]Access{blocksAccess, indexAccess})

	// scan each field to locate its prefix and database
	for i := 0; i < poolType.NumField(); i += 1 {

		fieldInfo := poolType.Field(i)

		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			return fmt.Errorf("pool: %v has invalid prefix: %q", fieldInfo, prefixTag)
		}

		prefix := prefixTag[0]
		limit := []byte(nil)
		if prefix < 255 {
			limit = []byte{prefix + 1}
		}

		var dataAccess Access
		switch dbName := fieldInfo.Tag.Get("database"); dbName {
		case "blocks":
			dataAccess = blocksAccess
		case "index":
			dataAccess = indexAccess
		default:
			return fmt.Errorf("pool: %v has invalid database: %q", fieldInfo, dbName)
		}

		p := &PoolHandle{
			prefix:     prefix,
			limit:      limit,
			dataAccess: dataAccess,
		}

		poolValue.Field(i).Set(reflect.ValueOf(p))
	}

	ok = true // prevent db close
	return nil
}

// hold lock before calling
func dbClose() {
	if nil != poolData.dbIndex {
		poolData.dbIndex.Close()
		poolData.dbIndex = nil
	}
	if nil != poolData.dbBlocks {
		poolData.dbBlocks.Close()
		poolData.dbBlocks = nil
	}
}

// Finalise - close the database connections
func Finalise() {
	poolData.Lock()
	dbClose()
	poolData.Unlock()
}

// return:
//
//	database handle
//	version number
func getDB(name string, readOnly bool) (*leveldb.DB, int, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}

	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		return nil, 0, err
	}

	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		return db, 0, nil
	} else if nil != err {
		db.Close()
		return nil, 0, err
	}

	if 4 != len(versionValue) {
		db.Close()
		return nil, 0, fmt.Errorf("incompatible database version length: expected: %d  actual: %d", 4, len(versionValue))
	}

	version := int(binary.BigEndian.Uint32(versionValue))
	return db, version, nil
}

func putVersion(db *leveldb.DB, version int) error {
	currentVersion := make([]byte, 4)
	binary.BigEndian.PutUint32(currentVersion, uint32(version))

	return db.Put(versionKey, currentVersion, nil)
}

// NewDBTransaction - acquire the batch transaction covering both databases
func NewDBTransaction() (Transaction, error) {
	err := poolData.trx.Begin()
	if nil != err {
		return nil, err
	}
	return poolData.trx, nil
}
