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
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

func TestCertSignAndVerifyRoundTrip(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	eph, err := newEphemeralKeyPair()
	require.NoError(t, err)

	expiration := uint64(time.Now().Add(time.Hour).Unix())
	cert, err := signEphemeral(id.Priv, eph.id, expiration)
	require.NoError(t, err)

	require.NoError(t, verifyCert(id.ID, cert, time.Now()))
}

func TestCertVerifyRejectsExpired(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	eph, err := newEphemeralKeyPair()
	require.NoError(t, err)

	expiration := uint64(time.Now().Add(-time.Hour).Unix())
	cert, err := signEphemeral(id.Priv, eph.id, expiration)
	require.NoError(t, err)

	require.ErrorIs(t, verifyCert(id.ID, cert, time.Now()), ErrBadCert)
}

func TestCertVerifyRejectsWrongOwner(t *testing.T) {
	signer, err := NewIdentity()
	require.NoError(t, err)
	impostor, err := NewIdentity()
	require.NoError(t, err)
	eph, err := newEphemeralKeyPair()
	require.NoError(t, err)

	expiration := uint64(time.Now().Add(time.Hour).Unix())
	cert, err := signEphemeral(signer.Priv, eph.id, expiration)
	require.NoError(t, err)

	require.ErrorIs(t, verifyCert(impostor.ID, cert, time.Now()), ErrBadCert)
}

// TestDeriveMACKeysAreCrossWired: the initiator's send key must equal
// the acceptor's receive key, and vice versa, so each side authenticates
// what the other actually sent.
func TestDeriveMACKeysAreCrossWired(t *testing.T) {
	secret := []byte("shared-ecdh-secret-32-bytes-long")
	var initNonce, acceptNonce wire.Hash
	initNonce[0] = 1
	acceptNonce[0] = 2

	initSend, initRecv, err := deriveMACKeys(secret, initNonce, acceptNonce, RoleInitiator)
	require.NoError(t, err)
	acceptSend, acceptRecv, err := deriveMACKeys(secret, initNonce, acceptNonce, RoleAcceptor)
	require.NoError(t, err)

	require.Equal(t, initSend, acceptRecv, "initiator's send key must equal acceptor's receive key")
	require.Equal(t, initRecv, acceptSend, "acceptor's send key must equal initiator's receive key")
	require.NotEqual(t, initSend, initRecv, "the two directions must use distinct keys")
}

func TestComputeAndVerifyMAC(t *testing.T) {
	key := []byte("a-mac-key")
	body := []byte("the message body")
	tag := computeMAC(key, 7, body)
	require.True(t, verifyMAC(key, 7, body, tag))
	require.False(t, verifyMAC(key, 8, body, tag), "wrong sequence must not verify")

	tampered := tag
	tampered[0] ^= 0xff
	require.False(t, verifyMAC(key, 7, body, tampered), "a flipped bit must not verify")
}

func TestRoleTagsAreDistinct(t *testing.T) {
	require.NotEqual(t, roleTag(true), roleTag(false))
}

// handshakePair builds two Connections wired over a net.Pipe, one
// Initiator and one Acceptor, sharing a network ID and overlay version
// range, for driving Authenticator.RunOutbound/RunInbound concurrently.
func handshakePair(t *testing.T) (initConn, acceptConn *Connection, initAuth, acceptAuth *Authenticator) {
	t.Helper()
	initID, err := NewIdentity()
	require.NoError(t, err)
	acceptID, err := NewIdentity()
	require.NoError(t, err)

	var networkID wire.Hash
	networkID[0] = 0x42

	initAuth = NewAuthenticator(AuthParams{
		Identity: initID, NetworkID: networkID,
		OverlayMinVersion: 1, OverlayVersion: 3, VersionStr: "test/1",
	})
	acceptAuth = NewAuthenticator(AuthParams{
		Identity: acceptID, NetworkID: networkID,
		OverlayMinVersion: 1, OverlayVersion: 3, VersionStr: "test/1",
	})

	a, b := net.Pipe()
	initConn = newConnection(RoleInitiator, a, initID.ID, 1, 3)
	acceptConn = newConnection(RoleAcceptor, b, acceptID.ID, 1, 3)
	return
}

// TestHandshakeCompletesAndDerivesMatchingKeys drives the happy path:
// HELLO/AUTH complete on both sides and the resulting MAC keys are
// cross-wired correctly.
func TestHandshakeCompletesAndDerivesMatchingKeys(t *testing.T) {
	initConn, acceptConn, initAuth, acceptAuth := handshakePair(t)

	errCh := make(chan error, 2)
	go func() {
		_, err := initAuth.RunOutbound(initConn)
		errCh <- err
	}()
	go func() {
		_, err := acceptAuth.RunInbound(acceptConn)
		errCh <- err
	}()

	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)

	require.Equal(t, stateGotAuth, initConn.state)
	require.Equal(t, stateGotAuth, acceptConn.state)
	require.Equal(t, initConn.mac.sendKey, acceptConn.mac.recvKey)
	require.Equal(t, initConn.mac.recvKey, acceptConn.mac.sendKey)
	require.True(t, acceptConn.remoteID.Equal(initConn.localID))
	require.True(t, initConn.remoteID.Equal(acceptConn.localID))
}

// TestHandshakeRejectsSelfConnect: a peer whose HELLO carries our own
// identity is rejected rather than accepted.
func TestHandshakeRejectsSelfConnect(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	var networkID wire.Hash

	auth := NewAuthenticator(AuthParams{
		Identity: id, NetworkID: networkID,
		OverlayMinVersion: 1, OverlayVersion: 1, VersionStr: "test/1",
	})

	a, b := net.Pipe()
	initConn := newConnection(RoleInitiator, a, id.ID, 1, 1)
	acceptConn := newConnection(RoleAcceptor, b, id.ID, 1, 1)

	errCh := make(chan error, 2)
	go func() {
		_, err := auth.RunOutbound(initConn)
		errCh <- err
	}()
	go func() {
		_, err := auth.RunInbound(acceptConn)
		errCh <- err
	}()

	first, second := <-errCh, <-errCh
	require.True(t, first == ErrSelfConnect || second == ErrSelfConnect)
}

func TestVerifyHelloRejectsWrongNetwork(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	remote, err := NewIdentity()
	require.NoError(t, err)

	var ours, theirs wire.Hash
	ours[0] = 1
	theirs[0] = 2

	a := NewAuthenticator(AuthParams{Identity: id, NetworkID: ours, OverlayMinVersion: 1, OverlayVersion: 1})

	eph, err := newEphemeralKeyPair()
	require.NoError(t, err)
	expiration := uint64(time.Now().Add(time.Hour).Unix())
	cert, err := signEphemeral(remote.Priv, eph.id, expiration)
	require.NoError(t, err)

	hello := &wire.HelloMessage{
		NetworkID: theirs, PeerID: remote.ID, Cert: cert,
		OverlayMinVersion: 1, OverlayVersion: 1,
	}
	require.ErrorIs(t, a.verifyHello(hello), ErrWrongNetwork)
}

func TestVerifyHelloRejectsBannedPeer(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	remote, err := NewIdentity()
	require.NoError(t, err)
	var networkID wire.Hash

	banList := collab.NewFakeBanList()
	banList.Ban(remote.ID)
	a := NewAuthenticator(AuthParams{Identity: id, NetworkID: networkID, OverlayMinVersion: 1, OverlayVersion: 1, BanList: banList})

	eph, err := newEphemeralKeyPair()
	require.NoError(t, err)
	expiration := uint64(time.Now().Add(time.Hour).Unix())
	cert, err := signEphemeral(remote.Priv, eph.id, expiration)
	require.NoError(t, err)

	hello := &wire.HelloMessage{
		NetworkID: networkID, PeerID: remote.ID, Cert: cert,
		OverlayMinVersion: 1, OverlayVersion: 1,
	}
	require.ErrorIs(t, a.verifyHello(hello), ErrBannedPeer)
}
