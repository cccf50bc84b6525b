// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain - network selection
//
// the names of the supported networks and a validity check
package chain

// names of all supported networks
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
	Regtest = "regtest"
)

// Valid - check the chain name is one of the supported networks
func Valid(name string) bool {
	switch name {
	case Mainnet, Testnet, Regtest:
		return true
	default:
		return false
	}
}
