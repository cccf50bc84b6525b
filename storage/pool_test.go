// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"bytes"
	"testing"

	"github.com/bitknots/bitknotsd/storage"
)

// helper to add to pool
func poolPut(t *testing.T, p *storage.PoolHandle, key string, data string) {
	trx, err := storage.NewDBTransaction()
	if nil != err {
		t.Fatalf("transaction begin error: %s", err)
	}
	trx.Put(p, []byte(key), []byte(data))
	err = trx.Commit()
	if nil != err {
		t.Fatalf("transaction commit error: %s", err)
	}
}

// helper to remove from pool
func poolDelete(t *testing.T, p *storage.PoolHandle, key string) {
	trx, err := storage.NewDBTransaction()
	if nil != err {
		t.Fatalf("transaction begin error: %s", err)
	}
	trx.Delete(p, []byte(key))
	err = trx.Commit()
	if nil != err {
		t.Fatalf("transaction commit error: %s", err)
	}
}

// main pool test
func TestPool(t *testing.T) {
	setup(t)
	defer teardown(t)

	p := storage.Pool.TestData

	// ensure that pool was empty
	checkAgain(t, true)

	// add some items
	poolPut(t, p, "key-one", "data-one")
	poolPut(t, p, "key-two", "data-two")
	poolPut(t, p, "key-remove-me", "to be deleted")
	poolDelete(t, p, "key-remove-me")
	poolPut(t, p, "key-three", "data-three")
	poolPut(t, p, "key-one", "data-one")     // duplicate
	poolPut(t, p, "key-three", "data-three") // duplicate
	poolPut(t, p, "key-four", "data-four")
	poolPut(t, p, "key-delete-this", "to be deleted")
	poolPut(t, p, "key-five", "data-five")
	poolPut(t, p, "key-six", "data-six")
	poolDelete(t, p, "key-delete-this")
	poolPut(t, p, "key-seven", "data-seven")
	poolPut(t, p, "key-one", "data-one(NEW)") // duplicate

	// ensure that data is correct
	checkResults(t, p)

	// recheck
	checkAgain(t, false)

	// check that restarting database keeps data
	storage.Finalise()
	err := storage.Initialise(databaseFileName, storage.ReadWrite)
	if nil != err {
		t.Fatalf("storage initialise error: %s", err)
	}
	checkAgain(t, false)
}

func checkResults(t *testing.T, p *storage.PoolHandle) {

	// ensure we get all of the pool
	cursor := p.NewFetchCursor()
	data, err := cursor.Fetch(20)
	if nil != err {
		t.Errorf("Error on Fetch: %v", err)
		return
	}

	// ensure lengths match
	if len(data) != len(expectedElements) {
		t.Errorf("Length mismatch, got: %d  expected: %d", len(data), len(expectedElements))
	}

	// compare all items from pool
	for i, a := range data {
		if i >= len(expectedElements) {
			t.Errorf("%d: Excess, got: '%s'  expected: Nothing", i, a)
		} else if !bytes.Equal(expectedElements[i].Key, a.Key) || !bytes.Equal(expectedElements[i].Value, a.Value) {
			t.Errorf("%d: Mismatch, got: '%s:%s'  expected: '%s:%s'", i,
				a.Key, a.Value,
				expectedElements[i].Key, expectedElements[i].Value)
		}
	}

	// retrieve 2 elements then next 2 - ensure no overlap
	cursor.Seek(nil)
	firstPair, err := cursor.Fetch(2)
	if nil != err {
		t.Errorf("Error on Fetch: %v", err)
		return
	}
	secondPair, err := cursor.Fetch(2)
	if nil != err {
		t.Errorf("Error on Fetch: %v", err)
		return
	}
	if bytes.Equal(firstPair[1].Key, secondPair[0].Key) {
		t.Errorf("Fetch Overlap got duplicate: '%s:%s'", firstPair[1].Key, firstPair[1].Value)
	}

	// check key exists
	if !p.Has(testKey) {
		t.Errorf("not found: %q", testKey)
	}

	// retrieve a key
	d2 := p.Get(testKey)
	if nil == d2 {
		t.Errorf("not found: %q", testKey)
	}
	if string(d2) != testData {
		t.Errorf("Mismatch on Get, got: '%s'  expected: '%s'", d2, testData)
	}

	// check that key does not exist
	if p.Has(nonExistantKey) {
		t.Errorf("unexpectedly found: %q", nonExistantKey)
	}

	// retrieve a key not in the pool
	dn := p.Get(nonExistantKey)
	if nil != dn {
		t.Errorf("Unexpected data on Get, got: '%s'  expected: nil", dn)
	}
}

func checkAgain(t *testing.T, empty bool) {

	p := storage.Pool.TestData

	cursor := p.NewFetchCursor()
	data, err := cursor.Fetch(100) // all data
	if nil != err {
		t.Errorf("Error on Fetch: %v", err)
		return
	}
	if empty && 0 != len(data) {
		t.Errorf("Pool was not empty, count = %d", len(data))
	}

	for i, e := range expectedElements {

		data := p.Get(e.Key)
		if empty {
			if nil != data {
				t.Errorf("checkAgain: %d: Unexpected data on Get('%s'), got: '%s'  expected: nil", i, e.Key, data)
			}
		} else {
			if nil == data {
				t.Errorf("checkAgain: %d: Error on Get('%s') not found", i, e.Key)
			}
			if !bytes.Equal(data, e.Value) {
				t.Errorf("checkAgain: %d: Mismatch on Get('%s'), got: '%s'  expected: '%s'", i, e.Key, data, e.Value)
			}
		}
	}

	// try to retrieve some more data - should be zero
	data, err = cursor.Fetch(100)
	if nil != err {
		t.Errorf("Error on Fetch: %v", err)
		return
	}
	n := len(data)
	if 0 != n {
		t.Errorf("checkAgain: extra: %d elements found", n)
		t.Errorf("checkAgain: data: %s", data)
	}

	// check that key does not exist
	if p.Has(nonExistantKey) {
		t.Errorf("unexpectedly found: %q", nonExistantKey)
	}

	// attempt to retrieve a key that does not exist
	dn := p.Get(nonExistantKey)
	if nil != dn {
		t.Errorf("checkAgain: Unexpected data on Get('/nonexistant'), got: '%s'  expected: nil", dn)
	}
}

// a fetch must be resumable from the key reported by the cursor
func TestCursorResume(t *testing.T) {
	setup(t)
	defer teardown(t)

	p := storage.Pool.TestData

	poolPut(t, p, "page-one", "value-one")
	poolPut(t, p, "page-two", "value-two")
	poolPut(t, p, "page-three", "value-three")
	poolPut(t, p, "page-four", "value-four")

	cursor := p.NewFetchCursor()
	if nil != cursor.NextKey() {
		t.Errorf("fresh cursor has resume key: %q", cursor.NextKey())
	}

	firstPage, err := cursor.Fetch(2)
	if nil != err {
		t.Fatalf("fetch error: %s", err)
	}
	if 2 != len(firstPage) {
		t.Fatalf("first page length: %d  expected: %d", len(firstPage), 2)
	}

	resume := cursor.NextKey()
	if nil == resume {
		t.Fatal("no resume key after a successful fetch")
	}

	// a fresh cursor seeked to the resume key continues without overlap
	secondPage, err := p.NewFetchCursor().Seek(resume).Fetch(10)
	if nil != err {
		t.Fatalf("fetch error: %s", err)
	}
	if 2 != len(secondPage) {
		t.Fatalf("second page length: %d  expected: %d", len(secondPage), 2)
	}

	keys := map[string]struct{}{}
	for _, e := range append(firstPage, secondPage...) {
		keys[string(e.Key)] = struct{}{}
	}
	if 4 != len(keys) {
		t.Errorf("distinct keys over both pages: %d  expected: %d", len(keys), 4)
	}
}

// an open batch must stay private to its transaction bracket
func TestUncommittedBatchInvisible(t *testing.T) {
	setup(t)
	defer teardown(t)

	p := storage.Pool.TestData

	key := []byte("pending-key")
	value := []byte("pending-value")

	trx, err := storage.NewDBTransaction()
	if nil != err {
		t.Fatalf("transaction begin error: %s", err)
	}
	trx.Put(p, key, value)

	// the bracket sees its own staged put
	if !trx.Has(p, key) {
		t.Error("staged put invisible inside its own transaction")
	}
	if !bytes.Equal(value, trx.Get(p, key)) {
		t.Errorf("staged value inside transaction: %q  expected: %q", trx.Get(p, key), value)
	}

	// an outside reader must not
	if p.Has(key) {
		t.Error("uncommitted put visible outside the transaction")
	}
	if d := p.Get(key); nil != d {
		t.Errorf("uncommitted value visible outside the transaction: %q", d)
	}

	// an abort leaves nothing behind
	trx.Abort()
	if p.Has(key) {
		t.Error("aborted put became visible")
	}

	// commit makes the put visible
	trx, err = storage.NewDBTransaction()
	if nil != err {
		t.Fatalf("transaction begin error: %s", err)
	}
	trx.Put(p, key, value)
	err = trx.Commit()
	if nil != err {
		t.Fatalf("transaction commit error: %s", err)
	}
	if !bytes.Equal(value, p.Get(key)) {
		t.Errorf("committed value: %q  expected: %q", p.Get(key), value)
	}

	// a staged delete hides the record only inside the bracket
	trx, err = storage.NewDBTransaction()
	if nil != err {
		t.Fatalf("transaction begin error: %s", err)
	}
	trx.Delete(p, key)
	if trx.Has(p, key) {
		t.Error("staged delete invisible inside its own transaction")
	}
	if !p.Has(key) {
		t.Error("uncommitted delete visible outside the transaction")
	}
	if !bytes.Equal(value, p.Get(key)) {
		t.Errorf("value during pending delete: %q  expected: %q", p.Get(key), value)
	}

	err = trx.Commit()
	if nil != err {
		t.Fatalf("transaction commit error: %s", err)
	}
	if p.Has(key) {
		t.Error("committed delete left the record behind")
	}
}
