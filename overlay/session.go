// BSD 3-Clause License
//
// Copyright (c) 2020, Sperax
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package overlay

import (
	"encoding/binary"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/hcnet/hcnet-core/internal/timer"
	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/metrics"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

// livenessPeriod is the cadence of the recurring liveness check.
const livenessPeriod = 5 * time.Second

// handshakeIOTimeout is the short IO timeout that applies before
// GOT_AUTH; peerIOTimeout is the longer one that applies afterward.
const (
	handshakeIOTimeout = 10 * time.Second
	peerIOTimeout      = 60 * time.Second
	stragglerTimeout   = 30 * time.Second
)

// outboundQueueOverload is the write-queue depth past which droppable
// sends are shed rather than queued without bound.
const outboundQueueOverload = 2048

// sessionToken is a deferred task's handle to a session: (registry, key,
// generation). A task created before a drop looks the session up at run
// time and silently discards itself if the generation has moved on —
// nothing retains a reference to a CLOSING session.
type sessionToken struct {
	sessions   *sessionRegistry
	key        string
	generation uint64
}

func (t sessionToken) resolve() *PeerSession {
	return t.sessions.lookup(t.key, t.generation)
}

// sessionRegistry is the minimal connection-manager surface PeerSession
// needs for generation-guarded deferred tasks. A production binary's
// real connection manager would own this bookkeeping.
type sessionRegistry struct {
	mu    sync.Mutex
	byKey map[string]*PeerSession
	gen   map[string]uint64
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byKey: make(map[string]*PeerSession), gen: make(map[string]uint64)}
}

func (r *sessionRegistry) register(key string, s *PeerSession) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen[key]++
	r.byKey[key] = s
	return r.gen[key]
}

func (r *sessionRegistry) unregister(key string, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[key] == generation {
		delete(r.byKey, key)
	}
}

func (r *sessionRegistry) lookup(key string, generation uint64) *PeerSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[key] != generation {
		return nil
	}
	return r.byKey[key]
}

// Dependencies bundles the external collaborators a PeerSession calls
// into.
type Dependencies struct {
	BanList       collab.BanList
	PeerDirectory collab.PeerDirectory
	Consensus     collab.ConsensusEngine
	Ledger        collab.Ledger
	Survey        collab.SurveyManager
}

// queuedFlood is one flood-class message waiting for outbound credit.
type queuedFlood struct {
	msg  wire.Message
	body []byte
	at   time.Time
}

// PeerSession composes the Authenticator, FlowWindow, MessageRouter,
// AdvertEngine, and Connection for one peer, owning its timers, metrics
// hooks, outbound queue, and drop semantics.
type PeerSession struct {
	conn   *Connection
	auth   *Authenticator
	router *MessageRouter
	advert *AdvertEngine
	sched  *Scheduler
	deps   Dependencies
	logger *log.Logger

	flowCfg FlowConfig

	registry   *sessionRegistry
	regKey     string
	generation uint64

	liveness *timer.Timer

	pingMu       sync.Mutex
	pingOutstand bool
	pingSentAt   time.Time
	pingHash     wire.Hash
	lastRTT      time.Duration

	lastEnqueueAt atomic.Value // time.Time

	outMu         sync.Mutex
	outQueue      []queuedFlood
	outboundDepth int64
	shedCount     int64

	dropOnce sync.Once
	dropped  atomic.Bool

	onDrop func(reason DropReason, dir string)
}

// SessionParams bundles what NewPeerSession needs beyond the net.Conn.
type SessionParams struct {
	Auth       *Authenticator
	Deps       Dependencies
	Scheduler  *Scheduler
	TimedSched *timer.TimedSched
	FlowCfg    FlowConfig
	Logger     *log.Logger
	Registry   *sessionRegistry
}

// NewPeerSession wraps an accepted or dialed net.Conn, running the
// blocking handshake before returning — session creation is gated on
// GOT_AUTH rather than racing with it.
func NewPeerSession(role Role, c net.Conn, localID collab.PeerIdentity, verMin, verMax uint32, p SessionParams) (*PeerSession, error) {
	conn := newConnection(role, c, localID, verMin, verMax)
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}

	var remoteFlags wire.AuthFlag
	var err error
	if role == RoleInitiator {
		remoteFlags, err = p.Auth.RunOutbound(conn)
	} else {
		remoteFlags, err = p.Auth.RunInbound(conn)
	}
	if err != nil {
		conn.conn.Close()
		return nil, err
	}

	// The byte axis is live only if both sides requested it in AUTH and
	// the negotiated overlay version is recent enough to carry
	// SEND_MORE_EXTENDED.
	byteAxis := p.FlowCfg.ByteAxisEnabled &&
		remoteFlags&wire.AuthFlagFlowControlBytes != 0 &&
		conn.negotiatedVersion >= MinOverlayVersionForFlowControlBytes
	flowCfg := p.FlowCfg
	flowCfg.ByteAxisEnabled = byteAxis
	conn.flow = NewFlowWindow(flowCfg)

	s := &PeerSession{
		conn:    conn,
		auth:    p.Auth,
		router:  NewMessageRouter(func() bool { return p.Deps.Ledger == nil || p.Deps.Ledger.IsSynced() }),
		sched:   p.Scheduler,
		deps:    p.Deps,
		logger:  logger,
		flowCfg: flowCfg,
	}
	s.lastEnqueueAt.Store(time.Now())

	s.advert = NewAdvertEngine(p.TimedSched, p.Deps.Consensus, conn.remoteID, s.currentLedgerSeq)
	conn.flow.SetSendFrame(func(m wire.Message) error { return s.sendControl(m) })
	s.advert.SetSendFrame(func(m wire.Message) error { return s.SendFlood(m) })
	s.advert.SetOutcomeHooks(
		func() { metrics.FloodFulfilled().Mark(1) },
		func() { metrics.FloodUnfulfilledUnknown().Mark(1) },
		func() { metrics.FloodUnfulfilledBanned().Mark(1) },
	)

	if p.Registry != nil {
		s.registry = p.Registry
		s.regKey = conn.remoteAddr
		s.generation = p.Registry.register(s.regKey, s)
	}
	if p.Deps.PeerDirectory != nil {
		p.Deps.PeerDirectory.EnsureExists(conn.remoteAddr)
	}

	if err := s.grantInitialCredit(); err != nil {
		s.dropInternal(DropIOError, "we", DropImmediate)
		return nil, err
	}

	s.scheduleLiveness(p.TimedSched)
	return s, nil
}

// currentLedgerSeq prefers the ledger's last closed sequence, falling
// back to the consensus engine's tracked index when no ledger
// collaborator is wired.
func (s *PeerSession) currentLedgerSeq() uint64 {
	if s.deps.Ledger != nil {
		return s.deps.Ledger.LastClosedLedgerSeq()
	}
	if s.deps.Consensus != nil {
		return s.deps.Consensus.TrackingConsensusLedgerIndex()
	}
	return 0
}

// grantInitialCredit sends this side's starting credit grant immediately
// upon GOT_AUTH.
func (s *PeerSession) grantInitialCredit() error {
	if s.flowCfg.ByteAxisEnabled {
		return s.sendControl(&wire.SendMoreExtendedMessage{
			NumMessages: uint32(s.flowCfg.InboundMessageCeiling),
			NumBytes:    uint64(s.flowCfg.InboundByteCeiling),
		})
	}
	return s.sendControl(&wire.SendMoreMessage{NumMessages: uint32(s.flowCfg.InboundMessageCeiling)})
}

// sendControl sends a non-flood message through the authenticated path,
// bypassing flow-control gating.
func (s *PeerSession) sendControl(m wire.Message) error {
	err := sendAuthenticated(s.conn, m)
	if err == nil {
		metrics.MessagesWritten(m.Type()).Inc(1)
	}
	return err
}

// sendError reports a connection-fatal condition to the peer; ERROR_MSG
// always travels unauthenticated, sequence 0, zero MAC.
func (s *PeerSession) sendError(code wire.ErrorCode, msg string) {
	_ = sendUnauthenticated(s.conn, &wire.ErrorMessage{Code: code, Msg: msg})
}

// SendFlood sends a flood-class message through credit gating. If the
// outbound window cannot cover it, the message joins the outbound queue
// and is released, in enqueue order, as the peer grants credit. When the
// scheduler's current class is droppable and the queue is overloaded,
// the message is shed instead of queued.
func (s *PeerSession) SendFlood(m wire.Message) error {
	if s.dropped.Load() {
		return ErrSessionClosing
	}
	body, err := m.Marshal()
	if err != nil {
		return err
	}

	if s.sched != nil && s.sched.QueueClass() == SchedDroppable &&
		atomic.LoadInt64(&s.outboundDepth) >= outboundQueueOverload {
		atomic.AddInt64(&s.shedCount, 1)
		return nil
	}

	s.outMu.Lock()
	if len(s.outQueue) == 0 && s.conn.flow.CanSendFlood(len(body)) {
		s.conn.flow.ConsumeOutbound(len(body))
		s.outMu.Unlock()
		if err := sendAuthenticated(s.conn, m); err != nil {
			return err
		}
		metrics.MessagesWritten(m.Type()).Inc(1)
		metrics.BytesWritten().Inc(int64(len(body)))
		return nil
	}
	s.outQueue = append(s.outQueue, queuedFlood{msg: m, body: body, at: time.Now()})
	atomic.StoreInt64(&s.outboundDepth, int64(len(s.outQueue)))
	s.lastEnqueueAt.Store(time.Now())
	s.outMu.Unlock()
	return nil
}

// drainOutbound releases queued flood messages, oldest first, for as long
// as the outbound window covers them. Called after every credit grant.
func (s *PeerSession) drainOutbound() {
	for {
		s.outMu.Lock()
		if len(s.outQueue) == 0 {
			s.outMu.Unlock()
			return
		}
		next := s.outQueue[0]
		if !s.conn.flow.CanSendFlood(len(next.body)) {
			s.outMu.Unlock()
			return
		}
		s.conn.flow.ConsumeOutbound(len(next.body))
		s.outQueue = s.outQueue[1:]
		atomic.StoreInt64(&s.outboundDepth, int64(len(s.outQueue)))
		s.outMu.Unlock()

		metrics.FlowDelay().UpdateSince(next.at)
		if err := sendAuthenticated(s.conn, next.msg); err != nil {
			s.Drop(DropIOError, "we", DropImmediate)
			return
		}
		metrics.MessagesWritten(next.msg.Type()).Inc(1)
		metrics.BytesWritten().Inc(int64(len(next.body)))
	}
}

// HandleInbound processes one fully-read frame: verify sequence and MAC,
// decode, route, and dispatch by category.
func (s *PeerSession) HandleInbound(frame []byte) {
	metrics.BytesRead().Inc(int64(len(frame)))
	env, err := decodeFrame(frame)
	if err != nil {
		s.Drop(DropIOError, "we", DropImmediate)
		return
	}
	s.conn.touchRecv()
	metrics.MessagesRead(env.Type).Inc(1)

	if env.Type.Authenticated() {
		if err := s.conn.checkRecvSeq(env.Sequence); err != nil {
			s.sendError(wire.ErrCodeAuth, "mac sequence out of order")
			s.Drop(DropOutOfOrderMessage, "we", DropImmediate)
			return
		}
		if !verifyMAC(s.conn.mac.recvKey, env.Sequence, env.Body, env.Mac) {
			s.sendError(wire.ErrCodeAuth, "mac mismatch")
			s.Drop(DropMacMismatch, "we", DropImmediate)
			return
		}
	}
	if !s.conn.messageAllowed(env.Type) {
		s.Drop(DropOutOfOrderMessage, "we", DropImmediate)
		return
	}

	msg, err := env.DecodeBody()
	if err != nil {
		s.Drop(DropIOError, "we", DropImmediate)
		return
	}

	cat := classifyMessage(env.Type)
	if cat == CategoryFloodTX {
		if err := s.conn.flow.ConsumeInboundFlood(len(env.Body)); err != nil {
			s.Drop(DropFloodOverrun, "we", DropImmediate)
			return
		}
	}

	dispatch, ok := s.router.Route(s.conn, env, msg)
	if !ok {
		return // discarded out-of-sync, credit already returned
	}

	accepted := s.sched.Post(dispatch.Class, func() { s.process(dispatch) })
	if !accepted {
		dispatch.Token.Release()
	}
}

// process dispatches one routed message to its collaborator, returns its
// flow-control credit, and resumes a read suspended for backpressure.
func (s *PeerSession) process(d *InboundDispatch) {
	defer func() {
		d.Token.Release()
		if s.sched != nil && s.conn.flow != nil && s.conn.flow.CanRead() {
			_ = s.sched.ResumeReading(s.conn, acceptorReadTimeout)
		}
	}()

	switch d.Category {
	case CategoryControl:
		s.handleControl(d.Message)
	case CategoryFloodTX:
		s.handleFloodTX(d.Message)
	case CategoryInboundConsensusFetch:
		s.handleConsensusFetch(d.Message)
	case CategoryConsensus:
		s.handleConsensus(d.Message)
	case CategorySurvey:
		s.handleSurvey(d.Message)
	}
}

func (s *PeerSession) handleControl(m wire.Message) {
	switch v := m.(type) {
	case *wire.SendMoreMessage:
		if err := s.conn.flow.GrantOutbound(v.NumMessages, 0); err != nil {
			s.Drop(DropFloodOverrun, "we", DropImmediate)
			return
		}
		s.drainOutbound()
	case *wire.SendMoreExtendedMessage:
		if err := s.conn.flow.ValidateSendMoreExtended(); err != nil {
			s.Drop(DropFloodOverrun, "we", DropImmediate)
			return
		}
		if err := s.conn.flow.GrantOutbound(v.NumMessages, v.NumBytes); err != nil {
			s.Drop(DropFloodOverrun, "we", DropImmediate)
			return
		}
		s.drainOutbound()
	case *wire.GetPeersMessage:
		s.handleGetPeers()
	case *wire.PeersMessage:
		if s.deps.PeerDirectory != nil {
			for _, p := range v.Peers {
				s.deps.PeerDirectory.Update(p.IP, "gossip")
			}
		}
	case *wire.ErrorMessage:
		s.logger.Printf("overlay: peer %s sent error code=%d msg=%q",
			s.conn.remoteAddr, v.Code, v.SanitizedMsg())
		s.Drop(DropPeerClosed, "they", DropImmediate)
	}
}

// handleGetPeers answers GET_PEERS with a sample of known addresses,
// excluding the asker's own.
func (s *PeerSession) handleGetPeers() {
	if s.deps.PeerDirectory == nil {
		return
	}
	addrs := s.deps.PeerDirectory.GetPeersToSend(maxPeersToSend, s.conn.remoteAddr)
	reply := &wire.PeersMessage{}
	for _, a := range addrs {
		reply.Peers = append(reply.Peers, wire.PeerAddress{IP: a})
	}
	_ = s.sendControl(reply)
}

// maxPeersToSend caps one PEERS reply.
const maxPeersToSend = 50

// handlePingOrFetch answers a GET_SCP_QUORUMSET. A quorum set we hold is
// returned directly; anything else (including a peer's synthetic ping
// hash) gets DONT_HAVE, which is what lets the ping round-trip.
func (s *PeerSession) handlePingOrFetch(hash wire.Hash) {
	if data, ok := s.deps.Consensus.GetQSet(hash); ok {
		_ = s.sendControl(&wire.SCPQuorumSetMessage{Hash: hash, Data: data})
		return
	}
	_ = s.sendControl(&wire.DontHaveMessage{Type_: wire.GET_SCP_QUORUMSET, Hash: hash})
}

func (s *PeerSession) handleFloodTX(m wire.Message) {
	switch v := m.(type) {
	case *wire.TransactionMessage:
		s.deps.Consensus.RecvTransaction(v.EnvelopeXDR)
	case *wire.FloodAdvertMessage:
		for _, h := range v.Hashes {
			s.advert.RecordInboundAdvert(h)
		}
	case *wire.FloodDemandMessage:
		s.advert.HandleDemand(v.Hashes)
	}
}

func (s *PeerSession) handleConsensusFetch(m wire.Message) {
	switch v := m.(type) {
	case *wire.GetTxSetMessage:
		if data, ok := s.deps.Consensus.GetTxSet(v.Hash); ok {
			_ = s.sendControl(&wire.GeneralizedTxSetMessage{Hash: v.Hash, Data: data})
		} else {
			_ = s.sendControl(&wire.DontHaveMessage{Type_: wire.GET_TX_SET, Hash: v.Hash})
		}
	case *wire.GetSCPQuorumSetMessage:
		s.handlePingOrFetch(v.Hash)
	case *wire.GetSCPStateMessage:
		s.deps.Consensus.SendSCPStateToPeer(v.LedgerSeq, s.conn.remoteID)
	}
}

func (s *PeerSession) handleConsensus(m wire.Message) {
	switch v := m.(type) {
	case *wire.DontHaveMessage:
		if !s.maybeCompletePing(v.Hash) {
			s.deps.Consensus.PeerDoesntHave(v.Type_, v.Hash, s.conn.remoteID)
		}
	case *wire.TxSetMessage:
		s.deps.Consensus.RecvTxSet(v.Hash, nil)
	case *wire.GeneralizedTxSetMessage:
		// Deliberately handled the same as TX_SET; only the payload differs.
		s.deps.Consensus.RecvTxSet(v.Hash, v.Data)
	case *wire.SCPQuorumSetMessage:
		s.maybeCompletePing(v.Hash)
	case *wire.SCPMessage:
		s.deps.Consensus.RecvSCPEnvelope(v.Data)
	}
}

func (s *PeerSession) handleSurvey(m wire.Message) {
	switch v := m.(type) {
	case *wire.SurveyRequestMessage:
		if s.deps.Survey != nil {
			s.deps.Survey.RelayOrProcessRequest(v.Data, s.conn.remoteID)
		}
	case *wire.SurveyResponseMessage:
		if s.deps.Survey != nil {
			s.deps.Survey.RelayOrProcessResponse(v.Data, s.conn.remoteID)
		}
	}
}

// Ping sends a synthetic GET_SCP_QUORUMSET for a hash derived from the
// current timestamp, if no ping is outstanding. The matching DONT_HAVE
// (or quorum-set reply) measures the round trip.
func (s *PeerSession) Ping() {
	s.pingMu.Lock()
	defer s.pingMu.Unlock()
	if s.pingOutstand {
		return
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))
	s.pingHash = wire.Hash(blake2b.Sum256(ts[:]))
	s.pingOutstand = true
	s.pingSentAt = time.Now()
	_ = s.sendControl(&wire.GetSCPQuorumSetMessage{Hash: s.pingHash})
}

// maybeCompletePing reports whether hash answered the outstanding ping,
// recording the round-trip time if so.
func (s *PeerSession) maybeCompletePing(hash wire.Hash) bool {
	s.pingMu.Lock()
	defer s.pingMu.Unlock()
	if !s.pingOutstand || hash != s.pingHash {
		return false
	}
	s.lastRTT = time.Since(s.pingSentAt)
	s.pingOutstand = false
	metrics.ConnectionLatency().Update(s.lastRTT)
	return true
}

// RTT reports the last measured round-trip time.
func (s *PeerSession) RTT() time.Duration {
	s.pingMu.Lock()
	defer s.pingMu.Unlock()
	return s.lastRTT
}

// NotifyLedgerClosed prunes advert history entries recorded before seq,
// called by the embedding node on every ledger close.
func (s *PeerSession) NotifyLedgerClosed(seq uint64) {
	s.advert.ClearBelow(seq)
}

// scheduleLiveness arms the recurring liveness timer.
func (s *PeerSession) scheduleLiveness(sched *timer.TimedSched) {
	var tick func()
	tick = func() {
		if s.dropped.Load() {
			return
		}
		s.checkLiveness()
		if !s.dropped.Load() {
			s.liveness = sched.Put(tick, time.Now().Add(livenessPeriod))
		}
	}
	s.liveness = sched.Put(tick, time.Now().Add(livenessPeriod))
}

func (s *PeerSession) checkLiveness() {
	now := time.Now()
	ioTimeout := peerIOTimeout
	if s.conn.state != stateGotAuth {
		ioTimeout = handshakeIOTimeout
	}

	if now.Sub(s.conn.lastRecvAt) >= ioTimeout && now.Sub(s.conn.lastSendAt) >= ioTimeout {
		s.Drop(DropIdleTimeout, "we", DropImmediate)
		return
	}

	if s.conn.state == stateGotAuth && s.conn.flow != nil && s.conn.flow.IdleFlow(s.conn.authedAt, now) {
		s.Drop(DropFlowIdle, "we", DropImmediate)
		return
	}

	if last, ok := s.lastEnqueueAt.Load().(time.Time); ok {
		if atomic.LoadInt64(&s.outboundDepth) > 0 && now.Sub(last) >= stragglerTimeout {
			s.Drop(DropStraggler, "we", DropImmediate)
			return
		}
	}

	if s.conn.state == stateGotAuth {
		s.Ping()
	}
}

// Drop moves the session to CLOSING, idempotently: cancels the liveness
// timer, notifies the peer directory, and closes the socket per mode.
// Calling Drop twice is indistinguishable from calling it once.
func (s *PeerSession) Drop(reason DropReason, direction string, mode DropMode) {
	s.dropOnce.Do(func() {
		s.dropInternal(reason, direction, mode)
	})
}

func (s *PeerSession) dropInternal(reason DropReason, direction string, mode DropMode) {
	s.dropped.Store(true)
	s.conn.state = stateClosing
	metrics.Drop(reason.String()).Inc(1)

	if s.liveness != nil {
		s.liveness.Cancel()
	}

	if mode == DropGraceful {
		// Give an already-written ERROR_MSG a chance to land before the
		// socket closes under it.
		time.Sleep(10 * time.Millisecond)
	}
	s.conn.conn.Close()

	if s.registry != nil {
		s.registry.unregister(s.regKey, s.generation)
	}
	if s.deps.PeerDirectory != nil {
		s.deps.PeerDirectory.Update(s.conn.remoteAddr, "drop:"+reason.String())
	}
	if s.onDrop != nil {
		s.onDrop(reason, direction)
	}
	s.logger.Printf("overlay: dropped %s reason=%s dir=%s", s.conn.remoteAddr, reason, direction)
}

// SetDropHook installs a callback invoked once when the session drops.
func (s *PeerSession) SetDropHook(f func(reason DropReason, dir string)) { s.onDrop = f }

// RemoteIdentity reports the authenticated peer identity.
func (s *PeerSession) RemoteIdentity() collab.PeerIdentity { return s.conn.remoteID }

// RemoteAddr reports the peer's address.
func (s *PeerSession) RemoteAddr() string { return s.conn.remoteAddr }

// State reports the connection's handshake state, for the CLI's peers table.
func (s *PeerSession) State() string { return s.conn.state.String() }
