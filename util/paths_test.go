// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util_test

import (
	"testing"

	"github.com/bitknots/bitknotsd/util"
)

func TestEnsureAbsolute(t *testing.T) {
	testData := []struct {
		directory string
		path      string
		expected  string
	}{
		{"/var/lib/bitknotsd", "data", "/var/lib/bitknotsd/data"},
		{"/var/lib/bitknotsd", "./data", "/var/lib/bitknotsd/data"},
		{"/var/lib/bitknotsd", "/etc/bitknotsd.conf", "/etc/bitknotsd.conf"},
		{"/var/lib/bitknotsd", "/etc/../etc/bitknotsd.conf", "/etc/bitknotsd.conf"},
		{"/var/lib/bitknotsd/", "log/../data", "/var/lib/bitknotsd/data"},
	}

	for i, item := range testData {
		actual := util.EnsureAbsolute(item.directory, item.path)
		if item.expected != actual {
			t.Errorf("%d: EnsureAbsolute(%q, %q) = %q  expected: %q",
				i, item.directory, item.path, actual, item.expected)
		}
	}
}
