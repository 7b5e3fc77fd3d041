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
	"sync"
	"time"

	"github.com/hcnet/hcnet-core/overlay/wire"
)

// maxSendMoreIncrement bounds a single SEND_MORE/SEND_MORE_EXTENDED
// grant; anything larger is treated as malformed.
const maxSendMoreIncrement = 1 << 20

// flowIdleTimeout is how long outbound credit may go ungranted after
// GOT_AUTH before the connection is considered idle.
const flowIdleTimeout = 60 * time.Second

// axisState is one axis (messages or bytes) of a FlowWindow. An axis is
// open while capacity > 0 and exhausted at 0; every transition is a pure
// function of a credit delta.
type axisState struct {
	floodCapacity   int64 // credit available to us, or granted to the peer
	floodCeiling    int64 // configured ceiling this axis never exceeds
	totalCapacity   int64 // inbound-only: lowered by flood consumption when trackTotal; never checked or restored, so it limits no reads
	totalCeiling    int64
	trackTotal      bool
	pendingReturn   int64 // inbound: processed-but-not-yet-granted-back credit
	returnThreshold int64
}

func (a *axisState) exhausted() bool { return a.floodCapacity <= 0 }

// grant adds n credits, never exceeding the ceiling.
func (a *axisState) grant(n int64) {
	a.floodCapacity += n
	if a.floodCapacity > a.floodCeiling {
		a.floodCapacity = a.floodCeiling
	}
}

// consume deducts n credits for an outbound send or inbound receive.
func (a *axisState) consume(n int64) bool {
	if a.floodCapacity < n {
		return false
	}
	a.floodCapacity -= n
	if a.trackTotal {
		a.totalCapacity -= n
	}
	return true
}

// FlowWindow holds one connection's two-axis credit state: independent
// message-axis and byte-axis accounting for both the inbound (what we
// grant the peer to send us) and outbound (what the peer has granted us)
// directions.
type FlowWindow struct {
	mu sync.Mutex

	inboundMsg   axisState
	inboundByte  axisState
	outboundMsg  axisState
	outboundByte axisState

	byteAxisEnabled bool

	lastOutboundGrant time.Time // last time the peer granted us outbound credit
	throttledReading  bool

	sendFrame func(msg wire.Message) error // injected at GOT_AUTH; avoids a back-reference to the session
}

// FlowConfig configures one connection's FlowWindow ceilings.
type FlowConfig struct {
	InboundMessageCeiling int64
	InboundByteCeiling    int64
	InboundTotalCeiling   int64 // 0 disables total tracking
	ByteAxisEnabled       bool
	ReturnThresholdFrac   int64 // denominator N in floor(capacity/N); 0 defaults to 4
}

// NewFlowWindow constructs a FlowWindow with its initial inbound grant
// already applied.
func NewFlowWindow(cfg FlowConfig) *FlowWindow {
	frac := cfg.ReturnThresholdFrac
	if frac <= 0 {
		frac = 4
	}
	fw := &FlowWindow{byteAxisEnabled: cfg.ByteAxisEnabled}
	fw.inboundMsg = axisState{
		floodCapacity:   cfg.InboundMessageCeiling,
		floodCeiling:    cfg.InboundMessageCeiling,
		returnThreshold: cfg.InboundMessageCeiling / frac,
	}
	if cfg.InboundTotalCeiling > 0 {
		fw.inboundMsg.trackTotal = true
		fw.inboundMsg.totalCapacity = cfg.InboundTotalCeiling
		fw.inboundMsg.totalCeiling = cfg.InboundTotalCeiling
	}
	fw.inboundByte = axisState{
		floodCapacity:   cfg.InboundByteCeiling,
		floodCeiling:    cfg.InboundByteCeiling,
		returnThreshold: cfg.InboundByteCeiling / frac,
	}
	fw.outboundMsg = axisState{floodCeiling: int64(^uint64(0) >> 1)}
	fw.outboundByte = axisState{floodCeiling: int64(^uint64(0) >> 1)}
	return fw
}

// SetSendFrame installs the callback used to emit SEND_MORE/
// SEND_MORE_EXTENDED, called once at GOT_AUTH.
func (fw *FlowWindow) SetSendFrame(f func(msg wire.Message) error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.sendFrame = f
}

// CanSendFlood reports whether a flood-class message of byteSize may be
// released now: every enabled axis must have at least the message's cost
// in outbound capacity.
func (fw *FlowWindow) CanSendFlood(byteSize int) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.outboundMsg.floodCapacity < 1 {
		return false
	}
	if fw.byteAxisEnabled && fw.outboundByte.floodCapacity < int64(byteSize) {
		return false
	}
	return true
}

// ConsumeOutbound deducts the cost of a released flood message from the
// outbound axes. Caller must have already confirmed CanSendFlood.
func (fw *FlowWindow) ConsumeOutbound(byteSize int) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.outboundMsg.consume(1)
	if fw.byteAxisEnabled {
		fw.outboundByte.consume(int64(byteSize))
	}
}

// GrantOutbound applies a SEND_MORE/SEND_MORE_EXTENDED received from the
// peer, records the grant timestamp for the liveness check, and is the
// reverse of ConsumeOutbound.
func (fw *FlowWindow) GrantOutbound(numMessages uint32, numBytes uint64) error {
	if numMessages > maxSendMoreIncrement {
		return ErrMalformedSendMore
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.outboundMsg.grant(int64(numMessages))
	if fw.byteAxisEnabled && numBytes > 0 {
		fw.outboundByte.grant(int64(numBytes))
	}
	fw.lastOutboundGrant = time.Now()
	return nil
}

// CanRead reports whether socket reads should continue, i.e. local flood
// capacity on every enabled inbound axis is still positive.
func (fw *FlowWindow) CanRead() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.inboundMsg.exhausted() {
		return false
	}
	if fw.byteAxisEnabled && fw.inboundByte.exhausted() {
		return false
	}
	return true
}

// ConsumeInboundFlood accounts one inbound flood message of byteSize,
// returning ErrFloodWithoutCredit if the peer overran its grant — a
// fatal protocol violation for the connection.
func (fw *FlowWindow) ConsumeInboundFlood(byteSize int) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.inboundMsg.consume(1) {
		return ErrFloodWithoutCredit
	}
	if fw.byteAxisEnabled {
		if !fw.inboundByte.consume(int64(byteSize)) {
			return ErrFloodWithoutCredit
		}
	}
	if fw.inboundMsg.exhausted() || (fw.byteAxisEnabled && fw.inboundByte.exhausted()) {
		fw.throttledReading = true
	}
	return nil
}

// ReturnInboundCredit returns processed capacity to the inbound axes and,
// once outstanding returns cross the configured threshold, sends a
// SEND_MORE (or SEND_MORE_EXTENDED, iff the byte axis is enabled) to the
// peer. Returns are coalesced so a busy connection grants in batches.
func (fw *FlowWindow) ReturnInboundCredit(byteSize int) error {
	fw.mu.Lock()
	fw.inboundMsg.pendingReturn++
	fw.inboundMsg.grant(1)
	var pendingBytes int64
	if fw.byteAxisEnabled {
		fw.inboundByte.pendingReturn += int64(byteSize)
		fw.inboundByte.grant(int64(byteSize))
		pendingBytes = fw.inboundByte.pendingReturn
	}
	fw.throttledReading = !fw.CanReadLocked()

	shouldFlush := fw.inboundMsg.pendingReturn >= maxInt64(fw.inboundMsg.returnThreshold, 1) ||
		(fw.byteAxisEnabled && pendingBytes >= maxInt64(fw.inboundByte.returnThreshold, 1))
	var msgs uint32
	var bytesGranted uint64
	var send func(wire.Message) error
	if shouldFlush {
		msgs = uint32(fw.inboundMsg.pendingReturn)
		fw.inboundMsg.pendingReturn = 0
		if fw.byteAxisEnabled {
			bytesGranted = uint64(fw.inboundByte.pendingReturn)
			fw.inboundByte.pendingReturn = 0
		}
		send = fw.sendFrame
	}
	fw.mu.Unlock()

	if send == nil {
		return nil
	}
	if fw.byteAxisEnabled {
		return send(&wire.SendMoreExtendedMessage{NumMessages: msgs, NumBytes: bytesGranted})
	}
	return send(&wire.SendMoreMessage{NumMessages: msgs})
}

// CanReadLocked is CanRead's body for callers already holding fw.mu.
func (fw *FlowWindow) CanReadLocked() bool {
	if fw.inboundMsg.exhausted() {
		return false
	}
	if fw.byteAxisEnabled && fw.inboundByte.exhausted() {
		return false
	}
	return true
}

// ThrottledReading reports whether reads are currently suspended.
func (fw *FlowWindow) ThrottledReading() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.throttledReading
}

// IdleFlow reports whether the peer has granted no outbound credit for
// flowIdleTimeout since GOT_AUTH.
func (fw *FlowWindow) IdleFlow(authedAt time.Time, now time.Time) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	last := fw.lastOutboundGrant
	if last.IsZero() {
		last = authedAt
	}
	return now.Sub(last) >= flowIdleTimeout
}

// ValidateSendMoreExtended rejects the extended grant on a connection
// that has not negotiated the byte-flow-control capability.
func (fw *FlowWindow) ValidateSendMoreExtended() error {
	if !fw.byteAxisEnabled {
		return ErrSendMoreExtendedUnsupported
	}
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
