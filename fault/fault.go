// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type InvariantError GenericError
type NotFoundError GenericError
type ProcessError GenericError
type UnavailableError GenericError

// common errors - keep in alphabetic order
var (
	AlreadyInitialised          = ProcessError("already initialised")
	BackupDirectoryExists       = ExistsError("backup directory already exists")
	BlockAlreadyExists          = ExistsError("block already exists")
	BlockDiffNotFound           = NotFoundError("block diff not found")
	BlockDoesNotConnect         = InvalidError("block does not connect to current chain")
	BlockNotFound               = NotFoundError("block not found")
	BlockVersionMustNotDecrease = InvalidError("block version must not decrease")
	CannotDecodeRecord          = InvalidError("cannot decode record")
	ChainTipNotFound            = NotFoundError("chain tip not found")
	DatabaseIsNotSet            = ProcessError("database is not set")
	DoubleSpend                 = InvariantError("outpoint is not in the unspent set")
	InsufficientWork            = InvalidError("block does not have sufficient cumulative work")
	InvalidBlockHeaderSize      = InvalidError("invalid block header size")
	InvalidChain                = InvalidError("invalid chain")
	InvalidCount                = InvalidError("invalid count")
	InvalidCursor               = InvalidError("invalid cursor")
	InvalidDigestLength         = InvalidError("invalid digest length")
	InvalidLoggerChannel        = InvalidError("invalid logger channel")
	InvalidOutpoint             = InvalidError("invalid outpoint")
	InvalidUTXORecord           = InvalidError("invalid utxo record")
	MissingParameters           = InvalidError("missing parameters")
	MissingTransactionInput     = InvariantError("transaction input is not available")
	NotInitialised              = ProcessError("not initialised")
	OutOfOrderBlockNumber       = InvalidError("out of order block number")
	QueueOverflow               = ProcessError("message queue overflow")
	ReorgFloorReached           = ProcessError("reorg reached the genesis floor")
	StorageUnavailable          = UnavailableError("storage is unavailable")
	TransactionAlreadyExists    = ExistsError("transaction already exists")
	TransactionNotFound         = NotFoundError("transaction not found")
	UTXOAlreadyExists           = ExistsError("utxo already exists")
	UTXONotFound                = NotFoundError("utxo not found")
	WrongNetworkForGenesis      = InvalidError("wrong network for genesis")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string      { return string(e) }
func (e InvalidError) Error() string     { return string(e) }
func (e InvariantError) Error() string   { return string(e) }
func (e NotFoundError) Error() string    { return string(e) }
func (e ProcessError) Error() string     { return string(e) }
func (e UnavailableError) Error() string { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool      { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool     { _, ok := e.(InvalidError); return ok }
func IsErrInvariant(e error) bool   { _, ok := e.(InvariantError); return ok }
func IsErrNotFound(e error) bool    { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool     { _, ok := e.(ProcessError); return ok }
func IsErrUnavailable(e error) bool { _, ok := e.(UnavailableError); return ok }
