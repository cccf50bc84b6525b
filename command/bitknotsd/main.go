// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitknots/bitknotsd/chainstate"
	"github.com/bitknots/bitknotsd/coordinator"
	"github.com/bitknots/bitknotsd/mempool"
	"github.com/bitknots/bitknotsd/metrics"
	"github.com/bitknots/bitknotsd/mode"
	"github.com/bitknots/bitknotsd/publish"
	"github.com/bitknots/bitknotsd/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, _, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		exitwithstatus.Message("%s: version: %s", program, version)
	}

	if len(options["help"]) > 0 {
		exitwithstatus.Message("usage: %s [--help] [--quiet] [--version] --config-file=FILE", program)
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := getConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Debugf("theConfiguration: %v", theConfiguration)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	// set the initial system mode - before any background tasks are started
	err = mode.Initialise(theConfiguration.Chain)
	if nil != err {
		log.Criticalf("mode initialise error: %s", err)
		exitwithstatus.Message("mode initialise error: %s", err)
	}
	defer mode.Finalise()

	// start a profiling http server
	// this uses the default builtin HTTP handler
	if "" != theConfiguration.ProfileHTTP {
		go func() {
			log.Warnf("profile listener on: %s", theConfiguration.ProfileHTTP)
			err := http.ListenAndServe(theConfiguration.ProfileHTTP, nil)
			exitwithstatus.Message("profile error: %s", err)
		}()
	}

	// general info
	log.Infof("test mode: %v", mode.IsTesting())
	log.Infof("database: %q", theConfiguration.Database)

	// start the data storage
	log.Info("initialise storage")
	err = storage.Initialise(theConfiguration.Database.Name, storage.ReadWrite)
	if nil != err {
		log.Criticalf("storage initialise error: %s", err)
		exitwithstatus.Message("storage initialise error: %s", err)
	}
	defer storage.Finalise()

	// tip tracking - seeds the genesis block on a fresh database
	log.Info("initialise chainstate")
	err = chainstate.Initialise()
	if nil != err {
		log.Criticalf("chainstate initialise error: %s", err)
		exitwithstatus.Message("chainstate initialise error: %s", err)
	}
	defer chainstate.Finalise()

	// pending transactions
	log.Info("initialise mempool")
	err = mempool.Initialise(
		theConfiguration.Mempool.CapacityBytes,
		time.Duration(theConfiguration.Mempool.Lifetime)*time.Hour,
	)
	if nil != err {
		log.Criticalf("mempool initialise error: %s", err)
		exitwithstatus.Message("mempool initialise error: %s", err)
	}
	defer mempool.Finalise()

	// counters and gauges
	log.Info("initialise metrics")
	err = metrics.Initialise(time.Duration(theConfiguration.Metrics.SampleInterval) * time.Second)
	if nil != err {
		log.Criticalf("metrics initialise error: %s", err)
		exitwithstatus.Message("metrics initialise error: %s", err)
	}
	defer metrics.Finalise()

	// start up the event fan-out
	log.Info("initialise publish")
	err = publish.Initialise(&theConfiguration.Publishing)
	if nil != err {
		log.Criticalf("publish initialise error: %s", err)
		exitwithstatus.Message("publish initialise error: %s", err)
	}
	defer publish.Finalise()

	// start up the worker mesh
	log.Info("initialise coordinator")
	err = coordinator.Initialise()
	if nil != err {
		log.Criticalf("coordinator initialise error: %s", err)
		exitwithstatus.Message("coordinator initialise error: %s", err)
	}
	defer coordinator.Finalise()

	// optional timed ledger backups
	stopBackup := make(chan struct{})
	defer close(stopBackup)
	if "" != theConfiguration.Storage.BackupDirectory && theConfiguration.Storage.BackupInterval > 0 {
		go timedBackup(
			log,
			theConfiguration.Storage.BackupDirectory,
			time.Duration(theConfiguration.Storage.BackupInterval)*time.Minute,
			stopBackup,
		)
	}

	// all services running
	mode.Set(mode.Normal)

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}

	log.Info("shutting down…")
	mode.Set(mode.Stopped)
}

// periodic consistent copy of both databases into a dated directory
func timedBackup(log *logger.L, directory string, interval time.Duration, shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		case <-time.After(interval):
			destination := filepath.Join(directory, time.Now().UTC().Format("20060102-150405"))
			log.Infof("backup to: %q", destination)
			if err := storage.Backup(destination); nil != err {
				log.Errorf("backup to: %q  error: %s", destination, err)
			}
		}
	}
}
