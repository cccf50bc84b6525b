// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publish

import (
	"time"

	"github.com/bitknots/bitknotsd/blockdigest"
)

// event type tags, also used as the pub/sub topic
const (
	TypeBlockAccepted       = "block.accepted"
	TypeTransactionAccepted = "transaction.accepted"
	TypePeerChanged         = "peer.changed"
	TypeChainReorg          = "chain.reorg"
)

// Event - one state change notification
//
// ephemeral: events are never persisted, a dropped event is gone
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// BlockAcceptedPayload - a block joined the best chain
type BlockAcceptedPayload struct {
	Digest           blockdigest.Digest `json:"digest"`
	Height           uint64             `json:"height,string"`
	TransactionCount int                `json:"transactionCount"`
}

// TransactionAcceptedPayload - a transaction entered the mempool
type TransactionAcceptedPayload struct {
	TxId blockdigest.Digest `json:"txId"`
	Fee  uint64             `json:"fee,string"`
}

// PeerChangedPayload - a peer connected or disconnected
type PeerChangedPayload struct {
	Peer      string `json:"peer"`
	Connected bool   `json:"connected"`
}

// ChainReorgPayload - the best chain switched to a competing fork
type ChainReorgPayload struct {
	OldTip    blockdigest.Digest `json:"oldTip"`
	NewTip    blockdigest.Digest `json:"newTip"`
	OldHeight uint64             `json:"oldHeight,string"`
	NewHeight uint64             `json:"newHeight,string"`
}

// NewBlockAccepted - build a block acceptance event
func NewBlockAccepted(digest blockdigest.Digest, height uint64, transactionCount int) *Event {
	return &Event{
		Type:      TypeBlockAccepted,
		Timestamp: time.Now().UTC(),
		Payload: BlockAcceptedPayload{
			Digest:           digest,
			Height:           height,
			TransactionCount: transactionCount,
		},
	}
}

// NewTransactionAccepted - build a transaction admission event
func NewTransactionAccepted(txId blockdigest.Digest, fee uint64) *Event {
	return &Event{
		Type:      TypeTransactionAccepted,
		Timestamp: time.Now().UTC(),
		Payload: TransactionAcceptedPayload{
			TxId: txId,
			Fee:  fee,
		},
	}
}

// NewPeerChanged - build a peer state change event
func NewPeerChanged(peer string, connected bool) *Event {
	return &Event{
		Type:      TypePeerChanged,
		Timestamp: time.Now().UTC(),
		Payload: PeerChangedPayload{
			Peer:      peer,
			Connected: connected,
		},
	}
}

// NewChainReorg - build a reorganisation event
func NewChainReorg(oldTip blockdigest.Digest, oldHeight uint64, newTip blockdigest.Digest, newHeight uint64) *Event {
	return &Event{
		Type:      TypeChainReorg,
		Timestamp: time.Now().UTC(),
		Payload: ChainReorgPayload{
			OldTip:    oldTip,
			NewTip:    newTip,
			OldHeight: oldHeight,
			NewHeight: newHeight,
		},
	}
}
