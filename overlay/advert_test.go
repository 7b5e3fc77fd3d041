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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hcnet/hcnet-core/internal/timer"
	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

func TestAdvertHistoryRecordAndKnows(t *testing.T) {
	h := NewAdvertHistory()
	hash := wire.Hash{1, 2, 3}
	require.False(t, h.Knows(hash))
	h.Record(hash, 10)
	require.True(t, h.Knows(hash))
	require.Equal(t, 1, h.Len())
}

// TestAdvertHistoryBoundEviction: inserting one entry past the bound
// never grows the map beyond it; a random victim is evicted instead.
func TestAdvertHistoryBoundEviction(t *testing.T) {
	h := NewAdvertHistory()
	for i := 0; i < AdvertHistoryBound; i++ {
		var hash wire.Hash
		hash[0] = byte(i)
		hash[1] = byte(i >> 8)
		hash[2] = byte(i >> 16)
		h.Record(hash, 1)
	}
	require.Equal(t, AdvertHistoryBound, h.Len())

	var extra wire.Hash
	extra[3] = 1
	h.Record(extra, 1)
	require.LessOrEqual(t, h.Len(), AdvertHistoryBound)
	require.True(t, h.Knows(extra))
}

// TestAdvertHistoryClearBelowPrunesOnlyOlderEntries: after ClearBelow(L),
// no remaining entry's recorded sequence is below L.
func TestAdvertHistoryClearBelowPrunesOnlyOlderEntries(t *testing.T) {
	h := NewAdvertHistory()
	old := wire.Hash{1}
	recent := wire.Hash{2}
	h.Record(old, 5)
	h.Record(recent, 50)

	h.ClearBelow(10)
	require.False(t, h.Knows(old))
	require.True(t, h.Knows(recent))
}

func newTestAdvertEngine(t *testing.T) (*AdvertEngine, *collab.FakeConsensusEngine, *timer.TimedSched) {
	t.Helper()
	sched := timer.NewTimedSched(1)
	t.Cleanup(sched.Close)
	engine := collab.NewFakeConsensusEngine()
	remote := collab.PeerIdentity{}
	var seq uint64
	ae := NewAdvertEngine(sched, engine, remote, func() uint64 { return seq })
	return ae, engine, sched
}

func TestAdvertEngineFlushesOnBatchMax(t *testing.T) {
	ae, _, _ := newTestAdvertEngine(t)
	var sent []wire.Message
	ae.SetSendFrame(func(m wire.Message) error {
		sent = append(sent, m)
		return nil
	})

	for i := 0; i < advertBatchMax; i++ {
		var h wire.Hash
		h[0] = byte(i)
		h[1] = byte(i >> 8)
		ae.NotifyNewHash(h)
	}
	require.Len(t, sent, 1)
	advert, ok := sent[0].(*wire.FloodAdvertMessage)
	require.True(t, ok)
	require.Len(t, advert.Hashes, advertBatchMax)
}

func TestAdvertEngineSkipsAlreadyKnownHash(t *testing.T) {
	ae, _, _ := newTestAdvertEngine(t)
	var sent int
	ae.SetSendFrame(func(m wire.Message) error { sent++; return nil })

	hash := wire.Hash{9}
	ae.RecordInboundAdvert(hash)
	ae.NotifyNewHash(hash)
	ae.Flush()
	require.Equal(t, 0, sent, "a hash already recorded (e.g. the peer advertised it first) is never re-advertised")
}

func TestAdvertEngineFlushTimerEventuallyFires(t *testing.T) {
	ae, _, _ := newTestAdvertEngine(t)
	done := make(chan wire.Message, 1)
	ae.SetSendFrame(func(m wire.Message) error {
		done <- m
		return nil
	})
	ae.NotifyNewHash(wire.Hash{1})

	select {
	case m := <-done:
		_, ok := m.(*wire.FloodAdvertMessage)
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("advert batch never flushed on its timer")
	}
}

// TestHandleDemandFulfilledUnknownBanned: a FLOOD_DEMAND with three
// hashes (one the engine has, one unknown, one banned) yields one
// fulfilled, one unknown, one banned outcome and never sends a negative
// acknowledgement over the wire.
func TestHandleDemandFulfilledUnknownBanned(t *testing.T) {
	ae, engine, _ := newTestAdvertEngine(t)

	known := wire.Hash{1}
	unknown := wire.Hash{2}
	banned := wire.Hash{3}
	engine.PutTx(known, []byte("tx-body"))
	engine.BanTx(banned)

	var sent []wire.Message
	ae.SetSendFrame(func(m wire.Message) error {
		sent = append(sent, m)
		return nil
	})

	var fulfilled, unknownCount, bannedCount int
	ae.SetOutcomeHooks(
		func() { fulfilled++ },
		func() { unknownCount++ },
		func() { bannedCount++ },
	)

	ae.HandleDemand([]wire.Hash{known, unknown, banned})

	require.Equal(t, 1, fulfilled)
	require.Equal(t, 1, unknownCount)
	require.Equal(t, 1, bannedCount)
	require.Len(t, sent, 1, "only the known transaction is ever sent back")
	tx, ok := sent[0].(*wire.TransactionMessage)
	require.True(t, ok)
	require.Equal(t, []byte("tx-body"), tx.EnvelopeXDR)
}

func TestSendTxDemandEmitsFloodDemand(t *testing.T) {
	ae, _, _ := newTestAdvertEngine(t)
	var sent wire.Message
	ae.SetSendFrame(func(m wire.Message) error { sent = m; return nil })

	hashes := []wire.Hash{{1}, {2}}
	require.NoError(t, ae.SendTxDemand(hashes))
	demand, ok := sent.(*wire.FloodDemandMessage)
	require.True(t, ok)
	require.Equal(t, hashes, demand.Hashes)
}
