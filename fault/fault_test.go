// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/bitknots/bitknotsd/fault"
)

// ensure that the class detection works correctly
func TestClasses(t *testing.T) {

	errorList := []struct {
		err       error
		exists    bool
		invalid   bool
		invariant bool
		notFound  bool
		process   bool
	}{
		{fault.BlockAlreadyExists, true, false, false, false, false},
		{fault.TransactionAlreadyExists, true, false, false, false, false},
		{fault.InvalidChain, false, true, false, false, false},
		{fault.DoubleSpend, false, false, true, false, false},
		{fault.MissingTransactionInput, false, false, true, false, false},
		{fault.BlockNotFound, false, false, false, true, false},
		{fault.UTXONotFound, false, false, false, true, false},
		{fault.NotInitialised, false, false, false, false, true},
	}

	for i, item := range errorList {
		if fault.IsErrExists(item.err) != item.exists {
			t.Errorf("%d: exists mismatch for: %v", i, item.err)
		}
		if fault.IsErrInvalid(item.err) != item.invalid {
			t.Errorf("%d: invalid mismatch for: %v", i, item.err)
		}
		if fault.IsErrInvariant(item.err) != item.invariant {
			t.Errorf("%d: invariant mismatch for: %v", i, item.err)
		}
		if fault.IsErrNotFound(item.err) != item.notFound {
			t.Errorf("%d: not found mismatch for: %v", i, item.err)
		}
		if fault.IsErrProcess(item.err) != item.process {
			t.Errorf("%d: process mismatch for: %v", i, item.err)
		}
	}
}

// unavailable is its own class so storage failures can escalate health
func TestUnavailable(t *testing.T) {
	if !fault.IsErrUnavailable(fault.StorageUnavailable) {
		t.Errorf("storage unavailable not detected as unavailable class")
	}
	if fault.IsErrUnavailable(fault.BlockNotFound) {
		t.Errorf("not found wrongly detected as unavailable class")
	}
}
