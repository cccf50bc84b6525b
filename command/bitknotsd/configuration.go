// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitmark-inc/logger"

	"github.com/bitknots/bitknotsd/chain"
	"github.com/bitknots/bitknotsd/configuration"
	"github.com/bitknots/bitknotsd/publish"
	"github.com/bitknots/bitknotsd/util"
)

// basic defaults (directories and files are relative to the
// "data_directory" from the configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultLevelDBDirectory = "data"

	defaultLogDirectory = "log"
	defaultLogFile      = "bitknotsd.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultMempoolCapacity = 32 * 1024 * 1024 // bytes
	defaultMempoolLifetime = 72               // hours, zero disables expiry

	defaultMetricsInterval = 10 // seconds
)

// to hold log levels
type LoglevelMap map[string]string

var defaultLogLevels = LoglevelMap{
	logger.DefaultTag: "critical",
}

// DatabaseType - where the ledger databases live
type DatabaseType struct {
	Directory string `gluamapper:"directory" json:"directory"`
	Name      string `gluamapper:"name" json:"name"`
}

// StorageType - optional timed backup of the ledger databases
type StorageType struct {
	BackupDirectory string `gluamapper:"backup_directory" json:"backup_directory"`
	BackupInterval  int    `gluamapper:"backup_interval" json:"backup_interval"` // minutes, zero disables
}

// MempoolType - pending transaction limits
type MempoolType struct {
	CapacityBytes uint64 `gluamapper:"capacity_bytes" json:"capacity_bytes"`
	Lifetime      int    `gluamapper:"lifetime" json:"lifetime"` // hours, zero disables expiry
}

// MetricsType - counter sampling
type MetricsType struct {
	SampleInterval int `gluamapper:"sample_interval" json:"sample_interval"` // seconds
}

// Configuration - the daemon configuration
type Configuration struct {
	DataDirectory string `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string `gluamapper:"pidfile" json:"pidfile"`
	Chain         string `gluamapper:"chain" json:"chain"`
	ProfileHTTP   string `gluamapper:"profile_http" json:"profile_http"`

	Database DatabaseType `gluamapper:"database" json:"database"`
	Storage  StorageType  `gluamapper:"storage" json:"storage"`
	Mempool  MempoolType  `gluamapper:"mempool" json:"mempool"`
	Metrics  MetricsType  `gluamapper:"metrics" json:"metrics"`

	Publishing publish.Configuration `gluamapper:"publishing" json:"publishing"`
	Logging    logger.Configuration  `gluamapper:"logging" json:"logging"`
}

// will read decode and verify the configuration
func getConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := &Configuration{

		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default
		Chain:         chain.Mainnet,

		Database: DatabaseType{
			Directory: defaultLevelDBDirectory,
			Name:      "", // chain name if not set
		},

		Mempool: MempoolType{
			CapacityBytes: defaultMempoolCapacity,
			Lifetime:      defaultMempoolLifetime,
		},

		Metrics: MetricsType{
			SampleInterval: defaultMetricsInterval,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := configuration.ParseConfigurationFile(configurationFileName, options); nil != err {
		return nil, err
	}

	options.Chain = strings.ToLower(options.Chain)
	if !chain.Valid(options.Chain) {
		return nil, fmt.Errorf("chain: %q is not supported", options.Chain)
	}

	// the database name defaults to the chain so each network gets
	// its own pair of leveldb directories
	if "" == options.Database.Name {
		options.Database.Name = options.Chain
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("path: %q is not a directory", options.DataDirectory)
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.Database.Directory,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = util.EnsureAbsolute(options.DataDirectory, *f)
	}

	// optional absolute paths i.e. blank or an absolute path
	optionalAbsolute := []*string{
		&options.PidFile,
		&options.Storage.BackupDirectory,
	}
	for _, f := range optionalAbsolute {
		if "" != *f {
			*f = util.EnsureAbsolute(options.DataDirectory, *f)
		}
	}

	// fail if the database name is not a simple file name then
	// prefix it with the database directory
	switch filepath.Dir(options.Database.Name) {
	case "", ".":
		options.Database.Name = util.EnsureAbsolute(options.Database.Directory, options.Database.Name)
	default:
		return nil, fmt.Errorf("database name: %q is not a plain name", options.Database.Name)
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{
		&options.Database.Directory,
		&options.Logging.Directory,
	} {
		*d = util.EnsureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	// done
	return options, nil
}
