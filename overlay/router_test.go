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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hcnet/hcnet-core/overlay/wire"
)

// TestCategoryTableClassification pins the category table entry by
// entry, so an accidental reclassification shows up as a failing
// assertion rather than a silent behavior change.
func TestCategoryTableClassification(t *testing.T) {
	cases := []struct {
		t   wire.MessageType
		cat Category
	}{
		{wire.HELLO, CategoryHandshake},
		{wire.AUTH, CategoryHandshake},
		{wire.GET_PEERS, CategoryControl},
		{wire.PEERS, CategoryControl},
		{wire.ERROR_MSG, CategoryControl},
		{wire.SEND_MORE, CategoryControl},
		{wire.SEND_MORE_EXTENDED, CategoryControl},
		{wire.TRANSACTION, CategoryFloodTX},
		{wire.FLOOD_ADVERT, CategoryFloodTX},
		{wire.FLOOD_DEMAND, CategoryFloodTX},
		{wire.GET_TX_SET, CategoryInboundConsensusFetch},
		{wire.GET_SCP_QUORUMSET, CategoryInboundConsensusFetch},
		{wire.GET_SCP_STATE, CategoryInboundConsensusFetch},
		{wire.DONT_HAVE, CategoryConsensus},
		{wire.TX_SET, CategoryConsensus},
		{wire.GENERALIZED_TX_SET, CategoryConsensus},
		{wire.SCP_QUORUMSET, CategoryConsensus},
		{wire.SCP_MESSAGE, CategoryConsensus},
		{wire.SURVEY_REQUEST, CategorySurvey},
		{wire.SURVEY_RESPONSE, CategorySurvey},
	}
	for _, c := range cases {
		require.Equal(t, c.cat, classifyMessage(c.t), "message type %s", c.t)
	}
}

// TestTxSetAndGeneralizedTxSetFallThroughIdentically: both tx-set
// variants must classify and schedule identically.
func TestTxSetAndGeneralizedTxSetFallThroughIdentically(t *testing.T) {
	require.Equal(t, classifyMessage(wire.TX_SET), classifyMessage(wire.GENERALIZED_TX_SET))
	require.Equal(t, schedClassFor(classifyMessage(wire.TX_SET)), schedClassFor(classifyMessage(wire.GENERALIZED_TX_SET)))
}

func TestSchedClassForCategories(t *testing.T) {
	require.Equal(t, SchedInlineSync, schedClassFor(CategoryHandshake))
	require.Equal(t, SchedDroppable, schedClassFor(CategoryFloodTX))
	require.Equal(t, SchedDroppable, schedClassFor(CategoryInboundConsensusFetch))
	require.Equal(t, SchedNormal, schedClassFor(CategoryControl))
	require.Equal(t, SchedNormal, schedClassFor(CategoryConsensus))
	require.Equal(t, SchedNormal, schedClassFor(CategorySurvey))
}

func TestDropIfUnsyncedOnlyFloodTX(t *testing.T) {
	require.True(t, dropIfUnsynced(CategoryFloodTX))
	require.False(t, dropIfUnsynced(CategoryControl))
	require.False(t, dropIfUnsynced(CategoryConsensus))
	require.False(t, dropIfUnsynced(CategoryInboundConsensusFetch))
}

func TestUnknownMessageTypeDefaultsToControl(t *testing.T) {
	require.Equal(t, CategoryControl, classifyMessage(wire.MessageType(250)))
}

// TestRouteDropsFloodWhenUnsyncedButStillReleasesCredit: the credit
// token is released even when the message itself is discarded for being
// out-of-sync.
func TestRouteDropsFloodWhenUnsyncedButStillReleasesCredit(t *testing.T) {
	fw := NewFlowWindow(FlowConfig{InboundMessageCeiling: 4, InboundByteCeiling: 1024, ByteAxisEnabled: true})
	require.NoError(t, fw.ConsumeInboundFlood(10))
	capacityAfterConsume := fw.inboundMsg.floodCapacity

	c := &Connection{flow: fw}
	r := NewMessageRouter(func() bool { return false })
	env := &wire.Envelope{Type: wire.TRANSACTION, Body: make([]byte, 10)}
	msg := &wire.TransactionMessage{}

	dispatch, ok := r.Route(c, env, msg)
	require.False(t, ok)
	require.Nil(t, dispatch)
	require.Greater(t, fw.inboundMsg.floodCapacity, capacityAfterConsume, "credit must be returned even though the message was dropped")
}

func TestRouteAcceptsFloodWhenSynced(t *testing.T) {
	fw := NewFlowWindow(FlowConfig{InboundMessageCeiling: 4, InboundByteCeiling: 1024, ByteAxisEnabled: true})
	c := &Connection{flow: fw}
	r := NewMessageRouter(func() bool { return true })
	env := &wire.Envelope{Type: wire.TRANSACTION, Body: make([]byte, 10)}
	msg := &wire.TransactionMessage{}

	dispatch, ok := r.Route(c, env, msg)
	require.True(t, ok)
	require.NotNil(t, dispatch)
	require.Equal(t, CategoryFloodTX, dispatch.Category)
	require.NotNil(t, dispatch.Token)
}

func TestRouteHandshakeCarriesNoToken(t *testing.T) {
	c := &Connection{}
	r := NewMessageRouter(nil)
	env := &wire.Envelope{Type: wire.HELLO}
	msg := &wire.HelloMessage{}

	dispatch, ok := r.Route(c, env, msg)
	require.True(t, ok)
	require.Nil(t, dispatch.Token)
	require.Equal(t, SchedInlineSync, dispatch.Class)
}

func TestCreditTokenReleaseIsIdempotent(t *testing.T) {
	fw := NewFlowWindow(FlowConfig{InboundMessageCeiling: 4, InboundByteCeiling: 1024, ByteAxisEnabled: true})
	require.NoError(t, fw.ConsumeInboundFlood(5))
	token := &creditToken{fw: fw, byteSize: 5, isFlood: true}

	token.Release()
	capacityAfterOne := fw.inboundMsg.floodCapacity
	token.Release()
	require.Equal(t, capacityAfterOne, fw.inboundMsg.floodCapacity, "a second Release must not return credit twice")
}

func TestCreditTokenReleaseNoOpForNonFlood(t *testing.T) {
	fw := NewFlowWindow(FlowConfig{InboundMessageCeiling: 4, InboundByteCeiling: 1024, ByteAxisEnabled: true})
	before := fw.inboundMsg.floodCapacity
	token := &creditToken{fw: fw, isFlood: false}
	token.Release()
	require.Equal(t, before, fw.inboundMsg.floodCapacity)
}
