// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitknots/bitknotsd/configuration"
)

type databaseSection struct {
	Directory string `gluamapper:"directory"`
	Name      string `gluamapper:"name"`
}

type mempoolSection struct {
	CapacityBytes uint64 `gluamapper:"capacity_bytes"`
	Lifetime      int    `gluamapper:"lifetime"`
}

type testConfiguration struct {
	Chain    string          `gluamapper:"chain"`
	Nodes    []string        `gluamapper:"nodes"`
	Database databaseSection `gluamapper:"database"`
	Mempool  mempoolSection  `gluamapper:"mempool"`
}

const luaSource = `
local M = {}

M.chain = "testnet"

M.nodes = {
    "node-one.example.com",
    "node-two.example.com",
}

M.database = {
    directory = "db",
    name = "testnet",
}

M.mempool = {
    capacity_bytes = 1048576,
    lifetime = 24,
}

return M
`

func writeConfigurationFile(t *testing.T, source string) string {
	directory, err := ioutil.TempDir("", "configuration-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(directory) })

	fileName := filepath.Join(directory, "bitknotsd.conf")
	err = ioutil.WriteFile(fileName, []byte(source), 0600)
	require.NoError(t, err)
	return fileName
}

func TestParseConfigurationFile(t *testing.T) {
	fileName := writeConfigurationFile(t, luaSource)

	config := &testConfiguration{}
	err := configuration.ParseConfigurationFile(fileName, config)
	require.NoError(t, err)

	assert.Equal(t, "testnet", config.Chain)
	assert.Equal(t, []string{"node-one.example.com", "node-two.example.com"}, config.Nodes)
	assert.Equal(t, "db", config.Database.Directory)
	assert.Equal(t, "testnet", config.Database.Name)
	assert.Equal(t, uint64(1048576), config.Mempool.CapacityBytes)
	assert.Equal(t, 24, config.Mempool.Lifetime)
}

func TestParseConfigurationFileMissing(t *testing.T) {
	config := &testConfiguration{}
	err := configuration.ParseConfigurationFile("/nonexistent/bitknotsd.conf", config)
	assert.Error(t, err)
}

func TestParseConfigurationFileBadSyntax(t *testing.T) {
	fileName := writeConfigurationFile(t, "this is not lua {{{")

	config := &testConfiguration{}
	err := configuration.ParseConfigurationFile(fileName, config)
	assert.Error(t, err)
}
