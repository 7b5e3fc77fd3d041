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
	"net"
	"time"

	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

// connState is the connection's handshake state, modeled as a dedicated
// type rather than a bare integer so that invalid transitions are an
// enumeration problem, not an arithmetic one. States only advance
// forward, except to stateClosing, which is terminal.
type connState int

const (
	stateConnecting connState = iota
	stateConnected
	stateGotHello
	stateGotAuth
	stateClosing
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "CONNECTING"
	case stateConnected:
		return "CONNECTED"
	case stateGotHello:
		return "GOT_HELLO"
	case stateGotAuth:
		return "GOT_AUTH"
	case stateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes which side of the TCP connection initiated it.
type Role int

const (
	RoleInitiator Role = iota
	RoleAcceptor
)

// DropReason classifies why a connection was dropped, used for metrics
// and logs.
type DropReason int

const (
	DropUnknown DropReason = iota
	DropBadCert
	DropBannedPeer
	DropWrongNetwork
	DropVersionMismatch
	DropSelfConnect
	DropDuplicatePeer
	DropOutOfOrderMessage
	DropMacMismatch
	DropFloodOverrun
	DropIdleTimeout
	DropStraggler
	DropFlowIdle
	DropLoadShed
	DropLocalShutdown
	DropPeerClosed
	DropIOError
)

func (r DropReason) String() string {
	switch r {
	case DropBadCert:
		return "bad_cert"
	case DropBannedPeer:
		return "banned_peer"
	case DropWrongNetwork:
		return "wrong_network"
	case DropVersionMismatch:
		return "version_mismatch"
	case DropSelfConnect:
		return "self_connect"
	case DropDuplicatePeer:
		return "duplicate_peer"
	case DropOutOfOrderMessage:
		return "out_of_order_message"
	case DropMacMismatch:
		return "mac_mismatch"
	case DropFloodOverrun:
		return "flood_overrun"
	case DropIdleTimeout:
		return "idle_timeout"
	case DropStraggler:
		return "straggler"
	case DropFlowIdle:
		return "flow_idle"
	case DropLoadShed:
		return "load_shed"
	case DropLocalShutdown:
		return "local_shutdown"
	case DropPeerClosed:
		return "peer_closed"
	case DropIOError:
		return "io_error"
	default:
		return "unknown"
	}
}

// DropMode distinguishes a graceful drop from an immediate one. A graceful
// drop waits 10ms before closing the socket, so a frame the caller has
// already written (such as an ERROR_MSG) can reach the peer; an immediate
// drop closes at once. Drop itself sends no ERROR_MSG, and in both modes
// flood messages still queued for outbound credit are not sent.
type DropMode int

const (
	DropGraceful DropMode = iota
	DropImmediate
)

// macKeys holds the per-direction MAC secrets and sequence counters
// derived once at the end of the handshake. The two directions count
// independently; both start at 0.
type macKeys struct {
	sendKey []byte
	recvKey []byte
	sendSeq uint64
	recvSeq uint64
}

// Connection holds the per-peer state shared by the authenticator, flow
// controller, router and session: identity, handshake state, MAC
// bookkeeping and liveness timestamps. It is deliberately a plain data
// struct; behavior lives in auth.go, flow.go, router.go and session.go.
type Connection struct {
	role  Role
	state connState

	conn       net.Conn
	remoteAddr string

	localNonce  wire.Hash
	remoteNonce wire.Hash

	localID  collab.PeerIdentity
	remoteID collab.PeerIdentity

	localVersionMin, localVersionMax   uint32
	remoteVersionMin, remoteVersionMax uint32
	negotiatedVersion                  uint32

	mac macKeys

	createdAt   time.Time
	lastRecvAt  time.Time
	lastSendAt  time.Time
	helloSentAt time.Time
	authedAt    time.Time

	flow   *FlowWindow
	ioc    *ioContext
	closed bool
}

// newConnection constructs a Connection in CONNECTING state for a freshly
// accepted or dialed net.Conn.
func newConnection(role Role, c net.Conn, localID collab.PeerIdentity, verMin, verMax uint32) *Connection {
	now := time.Now()
	return &Connection{
		role:            role,
		state:           stateConnecting,
		conn:            c,
		remoteAddr:      c.RemoteAddr().String(),
		localID:         localID,
		localVersionMin: verMin,
		localVersionMax: verMax,
		createdAt:       now,
		lastRecvAt:      now,
		lastSendAt:      now,
	}
}

// touchRecv records that a message (of any type) was just received, for
// idle-timeout purposes.
func (c *Connection) touchRecv() { c.lastRecvAt = time.Now() }

// touchSend records that a message was just sent.
func (c *Connection) touchSend() { c.lastSendAt = time.Now() }

// nextSendSeq returns the sequence number to stamp on the next outgoing
// authenticated message and advances the counter.
func (c *Connection) nextSendSeq() uint64 {
	seq := c.mac.sendSeq
	c.mac.sendSeq++
	return seq
}

// checkRecvSeq enforces contiguous sequence numbers on inbound
// authenticated messages: the nth message received must carry sequence n.
func (c *Connection) checkRecvSeq(seq uint64) error {
	if seq != c.mac.recvSeq {
		return ErrOutOfOrderMessage
	}
	c.mac.recvSeq++
	return nil
}

// authenticatedPeer reports the remote identity, which is set once the
// peer's HELLO has been accepted (GOT_HELLO); it is the zero value before
// then.
func (c *Connection) authenticatedPeer() collab.PeerIdentity { return c.remoteID }

// messageAllowed reports whether t may be processed in the connection's
// current state: only the unauthenticated types (HELLO, ERROR_MSG) pass
// before GOT_AUTH. AUTH is read by the handshake in auth.go, which does
// not consult this check.
func (c *Connection) messageAllowed(t wire.MessageType) bool {
	if c.state == stateGotAuth {
		return true
	}
	return !t.Authenticated()
}
