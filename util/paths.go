// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package util - small helpers shared by the commands
package util

import (
	"path/filepath"
)

// EnsureAbsolute - resolve a possibly relative path against a directory
//
// an already absolute path is returned unchanged apart from cleaning
func EnsureAbsolute(directory string, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filepath.Clean(filePath)
	}
	return filepath.Clean(filepath.Join(directory, filePath))
}
