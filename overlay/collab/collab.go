// Copyright (c) 2020 Sperax
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package collab names the external collaborator interfaces the overlay
// core requires: thin facades to the consensus engine, ledger, peer
// directory, ban list, and survey manager. The overlay holds these as
// injected interfaces and never reaches deeper into their owners.
package collab

import "github.com/hcnet/hcnet-core/overlay/wire"

// PeerIdentity is a node's long-term public key.
type PeerIdentity = wire.NodeID

// BanList answers whether a peer identity is banned.
type BanList interface {
	IsBanned(id PeerIdentity) bool
}

// PeerDirectory records peer addresses seen on the network and serves
// GET_PEERS requests. Discovery and reputation live with its owner; this
// is only the narrow surface the overlay calls into.
type PeerDirectory interface {
	Update(address string, kind string)
	EnsureExists(address string)
	GetPeersToSend(max int, exclude string) []string
}

// TxOutcome reports what the consensus engine did with a received
// transaction.
type TxOutcome int

const (
	TxPending TxOutcome = iota
	TxDuplicate
	TxRejected
)

// EnvelopeOutcome reports what the consensus engine did with a received
// SCP envelope.
type EnvelopeOutcome int

const (
	EnvelopeProcessed EnvelopeOutcome = iota
	EnvelopeDiscarded
)

// ConsensusEngine is the narrow surface the overlay calls into for
// everything downstream of message authentication.
type ConsensusEngine interface {
	RecvSCPEnvelope(data []byte) EnvelopeOutcome
	RecvTxSet(hash wire.Hash, frame []byte)
	RecvTransaction(tx []byte) TxOutcome
	GetTxSet(hash wire.Hash) ([]byte, bool)
	GetQSet(hash wire.Hash) ([]byte, bool)
	GetTx(hash wire.Hash) ([]byte, bool)
	IsBannedTx(hash wire.Hash) bool
	SendSCPStateToPeer(ledgerSeq uint64, peer PeerIdentity)
	TrackingConsensusLedgerIndex() uint64
	PeerDoesntHave(t wire.MessageType, hash wire.Hash, peer PeerIdentity)
}

// Ledger is the narrow surface the overlay needs from ledger storage:
// whether we're caught up, and the closed-ledger sequence used to prune
// advert history.
type Ledger interface {
	IsSynced() bool
	LastClosedLedgerSeq() uint64
}

// SurveyManager relays or locally processes survey protocol messages.
// The overlay never interprets their payload.
type SurveyManager interface {
	RelayOrProcessRequest(data []byte, peer PeerIdentity)
	RelayOrProcessResponse(data []byte, peer PeerIdentity)
}
