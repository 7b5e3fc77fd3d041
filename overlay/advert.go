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

package overlay

import (
	"sync"
	"time"

	"github.com/hcnet/hcnet-core/internal/timer"
	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

// AdvertHistoryBound is the maximum number of entries AdvertHistory
// retains before evicting.
const AdvertHistoryBound = 50000

// advertBatchMax is the ceiling at which a PendingAdvertBatch flushes
// regardless of the flush timer.
const advertBatchMax = 1000

// advertFlushInterval is the flush timer's period.
const advertFlushInterval = 200 * time.Millisecond

// advertOverflowBound is the upper vector bound past which further
// enqueues are silently dropped.
const advertOverflowBound = 4000

// AdvertHistory remembers, per peer, the ledger sequence at which a
// transaction hash was last seen advertised in either direction. It uses
// Go's map iteration randomization for eviction order rather than an
// explicit shuffle; there is no separate ring or LRU structure.
type AdvertHistory struct {
	mu     sync.Mutex
	seenAt map[wire.Hash]uint64
}

// NewAdvertHistory constructs an empty AdvertHistory.
func NewAdvertHistory() *AdvertHistory { return &AdvertHistory{seenAt: make(map[wire.Hash]uint64)} }

// Record notes that hash H was advertised (in either direction) at
// ledger sequence seq, evicting a random entry first if already at
// AdvertHistoryBound.
func (h *AdvertHistory) Record(hash wire.Hash, seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.seenAt[hash]; !exists && len(h.seenAt) >= AdvertHistoryBound {
		for k := range h.seenAt {
			delete(h.seenAt, k)
			break
		}
	}
	h.seenAt[hash] = seq
}

// Knows reports whether hash H is already recorded, used to suppress
// redundant re-advertising.
func (h *AdvertHistory) Knows(hash wire.Hash) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.seenAt[hash]
	return ok
}

// ClearBelow prunes every entry recorded at a sequence below l; after
// it returns no remaining entry's recorded sequence is below l.
func (h *AdvertHistory) ClearBelow(l uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, seq := range h.seenAt {
		if seq < l {
			delete(h.seenAt, k)
		}
	}
}

// Len reports the current entry count, used to enforce the
// AdvertHistory size invariant in tests.
func (h *AdvertHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seenAt)
}

// PendingAdvertBatch is the ordered list of hashes awaiting advertisement
// to one peer.
type PendingAdvertBatch struct {
	mu      sync.Mutex
	hashes  []wire.Hash
	flushAt *timer.Timer
}

// AdvertEngine drives the pull-based flood protocol for one connection:
// batching outbound adverts, remembering what the peer has seen, and
// serving inbound demands from the consensus engine. Transaction bodies
// are never pushed unsolicited; the peer demands them by hash.
type AdvertEngine struct {
	history *AdvertHistory
	batch   PendingAdvertBatch
	sched   *timer.TimedSched

	sendFrame        func(wire.Message) error
	currentLedgerSeq func() uint64
	engine           collab.ConsensusEngine
	remoteID         collab.PeerIdentity

	onFulfilled func()
	onUnknown   func()
	onBanned    func()
}

// NewAdvertEngine builds an AdvertEngine for one connection.
func NewAdvertEngine(sched *timer.TimedSched, engine collab.ConsensusEngine, remoteID collab.PeerIdentity, currentLedgerSeq func() uint64) *AdvertEngine {
	return &AdvertEngine{
		history:          NewAdvertHistory(),
		sched:            sched,
		engine:           engine,
		remoteID:         remoteID,
		currentLedgerSeq: currentLedgerSeq,
	}
}

// SetSendFrame installs the callback used to emit FLOOD_ADVERT,
// FLOOD_DEMAND and TRANSACTION frames, mirroring FlowWindow.SetSendFrame's cycle-breaking
// pattern.
func (e *AdvertEngine) SetSendFrame(f func(wire.Message) error) { e.sendFrame = f }

// NotifyNewHash is called when the local transaction pool announces a
// new hash to this peer. Hashes the peer already knows about are
// suppressed.
func (e *AdvertEngine) NotifyNewHash(hash wire.Hash) {
	if e.history.Knows(hash) {
		return
	}
	e.batch.mu.Lock()
	if len(e.batch.hashes) >= advertOverflowBound {
		e.batch.mu.Unlock()
		return
	}
	e.batch.hashes = append(e.batch.hashes, hash)
	full := len(e.batch.hashes) >= advertBatchMax
	startTimer := e.batch.flushAt == nil
	if startTimer {
		e.batch.flushAt = e.sched.Put(e.Flush, time.Now().Add(advertFlushInterval))
	}
	e.batch.mu.Unlock()

	if full {
		e.Flush()
	}
}

// Flush assembles the pending batch into a FLOOD_ADVERT and sends it
// through the normal (credit-gated) send path.
func (e *AdvertEngine) Flush() {
	e.batch.mu.Lock()
	if e.batch.flushAt != nil {
		e.batch.flushAt.Cancel()
		e.batch.flushAt = nil
	}
	if len(e.batch.hashes) == 0 {
		e.batch.mu.Unlock()
		return
	}
	hashes := e.batch.hashes
	e.batch.hashes = nil
	e.batch.mu.Unlock()

	seq := uint64(0)
	if e.currentLedgerSeq != nil {
		seq = e.currentLedgerSeq()
	}
	for _, h := range hashes {
		e.history.Record(h, seq)
	}
	if e.sendFrame != nil {
		_ = e.sendFrame(&wire.FloodAdvertMessage{Hashes: hashes})
	}
}

// RecordInboundAdvert notes that the peer advertised hash at the
// current ledger sequence.
func (e *AdvertEngine) RecordInboundAdvert(hash wire.Hash) {
	seq := uint64(0)
	if e.currentLedgerSeq != nil {
		seq = e.currentLedgerSeq()
	}
	e.history.Record(hash, seq)
}

// HandleDemand answers a FLOOD_DEMAND: for each hash, ask the consensus
// engine for the transaction; send it if present, otherwise mark
// unfulfilled (banned or unknown). Demands are never acknowledged
// negatively over the wire.
func (e *AdvertEngine) HandleDemand(hashes []wire.Hash) {
	for _, h := range hashes {
		if tx, ok := e.engine.GetTx(h); ok {
			if e.sendFrame != nil {
				_ = e.sendFrame(&wire.TransactionMessage{EnvelopeXDR: tx})
			}
			if e.onFulfilled != nil {
				e.onFulfilled()
			}
			continue
		}
		if e.engine.IsBannedTx(h) {
			if e.onBanned != nil {
				e.onBanned()
			}
			continue
		}
		if e.onUnknown != nil {
			e.onUnknown()
		}
	}
}

// ClearBelow prunes advert history entries recorded before seq; called
// on every ledger close.
func (e *AdvertEngine) ClearBelow(seq uint64) { e.history.ClearBelow(seq) }

// SendTxDemand emits FLOOD_DEMAND through the normal authenticated path
// on behalf of the transaction fetcher.
func (e *AdvertEngine) SendTxDemand(hashes []wire.Hash) error {
	if e.sendFrame == nil {
		return nil
	}
	return e.sendFrame(&wire.FloodDemandMessage{Hashes: hashes})
}

// SetOutcomeHooks installs metrics callbacks for fulfilled/unknown/banned
// demand outcomes; nil hooks are ignored.
func (e *AdvertEngine) SetOutcomeHooks(onFulfilled, onUnknown, onBanned func()) {
	e.onFulfilled, e.onUnknown, e.onBanned = onFulfilled, onUnknown, onBanned
}
