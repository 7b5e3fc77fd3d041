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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hcnet/hcnet-core/overlay/wire"
)

func TestCheckRecvSeqEnforcesStrictOrder(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	c := newConnection(RoleInitiator, a, wire.NodeID{}, 1, 1)

	require.NoError(t, c.checkRecvSeq(0))
	require.NoError(t, c.checkRecvSeq(1))
	require.ErrorIs(t, c.checkRecvSeq(1), ErrOutOfOrderMessage, "a repeated sequence number must be rejected")
	require.ErrorIs(t, c.checkRecvSeq(5), ErrOutOfOrderMessage, "a skipped sequence number must be rejected")
}

func TestNextSendSeqIncrements(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	c := newConnection(RoleInitiator, a, wire.NodeID{}, 1, 1)

	require.Equal(t, uint64(0), c.nextSendSeq())
	require.Equal(t, uint64(1), c.nextSendSeq())
	require.Equal(t, uint64(2), c.nextSendSeq())
}

func TestMessageAllowedBeforeAndAfterAuth(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	c := newConnection(RoleInitiator, a, wire.NodeID{}, 1, 1)

	require.True(t, c.messageAllowed(wire.HELLO))
	require.True(t, c.messageAllowed(wire.ERROR_MSG))
	require.False(t, c.messageAllowed(wire.TRANSACTION), "authenticated message types are rejected before GOT_AUTH")

	c.state = stateGotAuth
	require.True(t, c.messageAllowed(wire.TRANSACTION))
	require.True(t, c.messageAllowed(wire.HELLO))
}

func TestConnStateString(t *testing.T) {
	require.Equal(t, "CONNECTING", stateConnecting.String())
	require.Equal(t, "CONNECTED", stateConnected.String())
	require.Equal(t, "GOT_AUTH", stateGotAuth.String())
	require.Equal(t, "CLOSING", stateClosing.String())
}

func TestDropReasonString(t *testing.T) {
	require.Equal(t, "straggler", DropStraggler.String())
	require.Equal(t, "flow_idle", DropFlowIdle.String())
	require.Equal(t, "unknown", DropReason(999).String())
}
