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

package collab

import (
	"sync"

	"github.com/hcnet/hcnet-core/overlay/wire"
)

// FakeBanList is an in-memory BanList for tests and the cmd/ demo.
type FakeBanList struct {
	mu     sync.Mutex
	banned map[string]bool
}

func NewFakeBanList() *FakeBanList { return &FakeBanList{banned: make(map[string]bool)} }

func (b *FakeBanList) Ban(id PeerIdentity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banned[id.String()] = true
}

func (b *FakeBanList) IsBanned(id PeerIdentity) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.banned[id.String()]
}

// FakePeerDirectory is an in-memory PeerDirectory for tests and the cmd/
// demo; it is not a production discovery or reputation store.
type FakePeerDirectory struct {
	mu    sync.Mutex
	known []string
}

func NewFakePeerDirectory() *FakePeerDirectory { return &FakePeerDirectory{} }

func (d *FakePeerDirectory) Update(address string, kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.known {
		if a == address {
			return
		}
	}
	d.known = append(d.known, address)
}

func (d *FakePeerDirectory) EnsureExists(address string) { d.Update(address, "ensure") }

func (d *FakePeerDirectory) GetPeersToSend(max int, exclude string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, max)
	for _, a := range d.known {
		if a == exclude {
			continue
		}
		if len(out) >= max {
			break
		}
		out = append(out, a)
	}
	return out
}

// FakeLedger is a toggleable Ledger test double.
type FakeLedger struct {
	mu      sync.Mutex
	synced  bool
	lastSeq uint64
}

func NewFakeLedger() *FakeLedger { return &FakeLedger{synced: true} }

func (l *FakeLedger) SetSynced(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.synced = v
}

func (l *FakeLedger) SetLastClosedLedgerSeq(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSeq = seq
}

func (l *FakeLedger) IsSynced() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.synced
}

func (l *FakeLedger) LastClosedLedgerSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// FakeConsensusEngine is an in-memory ConsensusEngine test double holding
// a small transaction/quorum-set/tx-set store, enough to drive the
// advert/demand protocol end to end.
type FakeConsensusEngine struct {
	mu        sync.Mutex
	txs       map[string][]byte
	qsets     map[string][]byte
	txsets    map[string][]byte
	bannedTx  map[string]bool
	ledgerIdx uint64
	received  [][]byte
}

func NewFakeConsensusEngine() *FakeConsensusEngine {
	return &FakeConsensusEngine{
		txs:      make(map[string][]byte),
		qsets:    make(map[string][]byte),
		txsets:   make(map[string][]byte),
		bannedTx: make(map[string]bool),
	}
}

func (c *FakeConsensusEngine) PutTx(hash wire.Hash, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[string(hash[:])] = body
}

func (c *FakeConsensusEngine) BanTx(hash wire.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bannedTx[string(hash[:])] = true
}

func (c *FakeConsensusEngine) RecvSCPEnvelope(data []byte) EnvelopeOutcome { return EnvelopeProcessed }

func (c *FakeConsensusEngine) RecvTxSet(hash wire.Hash, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txsets[string(hash[:])] = frame
}

func (c *FakeConsensusEngine) RecvTransaction(tx []byte) TxOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, tx)
	return TxPending
}

// ReceivedTransactions returns every transaction body passed to
// RecvTransaction so far, in order.
func (c *FakeConsensusEngine) ReceivedTransactions() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.received))
	copy(out, c.received)
	return out
}

func (c *FakeConsensusEngine) GetTxSet(hash wire.Hash) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.txsets[string(hash[:])]
	return b, ok
}

func (c *FakeConsensusEngine) GetQSet(hash wire.Hash) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.qsets[string(hash[:])]
	return b, ok
}

func (c *FakeConsensusEngine) GetTx(hash wire.Hash) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.txs[string(hash[:])]
	return b, ok
}

func (c *FakeConsensusEngine) IsBannedTx(hash wire.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bannedTx[string(hash[:])]
}

func (c *FakeConsensusEngine) SendSCPStateToPeer(ledgerSeq uint64, peer PeerIdentity) {}

func (c *FakeConsensusEngine) TrackingConsensusLedgerIndex() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledgerIdx
}

func (c *FakeConsensusEngine) PeerDoesntHave(t wire.MessageType, hash wire.Hash, peer PeerIdentity) {}

// FakeSurveyManager discards survey traffic; it exists only so Config
// always has a non-nil SurveyManager in tests.
type FakeSurveyManager struct{}

func (FakeSurveyManager) RelayOrProcessRequest(data []byte, peer PeerIdentity)  {}
func (FakeSurveyManager) RelayOrProcessResponse(data []byte, peer PeerIdentity) {}
