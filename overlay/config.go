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
	"crypto/ecdsa"

	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

const (
	// ConfigDefaultInboundMessageCeiling is the default flood reading
	// capacity granted to a peer on the message axis.
	ConfigDefaultInboundMessageCeiling = 200

	// ConfigDefaultInboundByteCeiling is the default byte-axis ceiling,
	// used only when byte flow control is negotiated.
	ConfigDefaultInboundByteCeiling = 2 * 1024 * 1024

	// ConfigMinOverlayVersion is the lowest OverlayMinVersion this module
	// will advertise or accept.
	ConfigMinOverlayVersion = 1

	// MinOverlayVersionForFlowControlBytes gates byte-axis flow control:
	// both sides' negotiated version must be at least this, in addition to
	// both AUTH flags requesting the capability.
	MinOverlayVersionForFlowControlBytes = 2
)

// Config configures one overlay node: long-term identity, network
// parameters, flow-control ceilings and collaborator wiring. It is a
// flat struct checked by VerifyConfig, not a builder or
// functional-options API.
type Config struct {
	// PrivateKey is the node's long-term identity key, used to sign
	// handshake certificates.
	PrivateKey *ecdsa.PrivateKey

	// NetworkID discriminates incompatible networks during the handshake.
	NetworkID wire.Hash

	// LedgerVersion, OverlayMinVersion, OverlayVersion, VersionStr are
	// advertised verbatim in HELLO.
	LedgerVersion     uint32
	OverlayMinVersion uint32
	OverlayVersion    uint32
	VersionStr        string

	// ListeningPort is advertised so peers can reciprocate a connection.
	ListeningPort uint32

	// ByteFlowControl enables the AUTH byte-axis capability flag and the
	// SEND_MORE_EXTENDED grant path.
	ByteFlowControl bool

	// InboundMessageCeiling/InboundByteCeiling/InboundTotalCeiling size
	// this connection's FlowWindow.
	InboundMessageCeiling int64
	InboundByteCeiling    int64
	InboundTotalCeiling   int64

	// BanList, PeerDirectory, Consensus, Ledger, Survey are the external
	// collaborators this module calls into. Consensus is mandatory; the
	// rest may be nil to disable their message categories.
	BanList       collab.BanList
	PeerDirectory collab.PeerDirectory
	Consensus     collab.ConsensusEngine
	Ledger        collab.Ledger
	Survey        collab.SurveyManager
}

// VerifyConfig verifies the integrity of c before it drives a listener or
// dialer: a flat sequence of required-field checks, one sentinel error
// per field, first violation wins.
func VerifyConfig(c *Config) error {
	if c.PrivateKey == nil {
		return ErrConfigPrivateKey
	}
	if c.NetworkID == (wire.Hash{}) {
		return ErrConfigNetworkID
	}
	if c.OverlayVersion == 0 || c.OverlayMinVersion == 0 {
		return ErrConfigOverlayVersion
	}
	if c.OverlayMinVersion > c.OverlayVersion {
		return ErrConfigOverlayVersion
	}
	if c.Consensus == nil {
		return ErrConfigConsensus
	}
	if c.InboundMessageCeiling <= 0 {
		c.InboundMessageCeiling = ConfigDefaultInboundMessageCeiling
	}
	if c.ByteFlowControl && c.InboundByteCeiling <= 0 {
		c.InboundByteCeiling = ConfigDefaultInboundByteCeiling
	}
	return nil
}

// identity derives this config's Identity.
func (c *Config) identity() *Identity { return IdentityFromKey(c.PrivateKey) }

// authParams builds the AuthParams NewAuthenticator needs from c.
func (c *Config) authParams() AuthParams {
	return AuthParams{
		Identity:          c.identity(),
		NetworkID:         c.NetworkID,
		LedgerVersion:     c.LedgerVersion,
		OverlayMinVersion: c.OverlayMinVersion,
		OverlayVersion:    c.OverlayVersion,
		VersionStr:        c.VersionStr,
		ListeningPort:     c.ListeningPort,
		ByteFlowControl:   c.ByteFlowControl,
		BanList:           c.BanList,
	}
}

// flowConfig builds the FlowConfig NewFlowWindow needs from c.
func (c *Config) flowConfig() FlowConfig {
	return FlowConfig{
		InboundMessageCeiling: c.InboundMessageCeiling,
		InboundByteCeiling:    c.InboundByteCeiling,
		InboundTotalCeiling:   c.InboundTotalCeiling,
		ByteAxisEnabled:       c.ByteFlowControl,
	}
}

// dependencies projects c's collaborator fields into a Dependencies value.
func (c *Config) dependencies() Dependencies {
	return Dependencies{
		BanList:       c.BanList,
		PeerDirectory: c.PeerDirectory,
		Consensus:     c.Consensus,
		Ledger:        c.Ledger,
		Survey:        c.Survey,
	}
}
