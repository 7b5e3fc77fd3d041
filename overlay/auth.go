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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

// DefaultCurve is the elliptic curve for long-term node identity keys,
// ephemeral handshake keys, and certificate signing.
var DefaultCurve = btcec.S256()

// certLifetime bounds how long an AuthCert remains valid after issuance.
const certLifetime = 24 * time.Hour

// Identity is a node's long-term keypair together with its wire form.
type Identity struct {
	Priv *ecdsa.PrivateKey
	ID   wire.NodeID
}

// NewIdentity generates a fresh long-term identity.
func NewIdentity() (*Identity, error) {
	priv, err := ecdsa.GenerateKey(DefaultCurve, rand.Reader)
	if err != nil {
		return nil, err
	}
	return identityFromKey(priv), nil
}

// IdentityFromKey wraps an existing long-term private key.
func IdentityFromKey(priv *ecdsa.PrivateKey) *Identity { return identityFromKey(priv) }

func identityFromKey(priv *ecdsa.PrivateKey) *Identity {
	id := &Identity{Priv: priv}
	var x, y wire.PubKeyAxis
	_ = x.Unmarshal(priv.PublicKey.X.Bytes())
	_ = y.Unmarshal(priv.PublicKey.Y.Bytes())
	id.ID = wire.NodeID{X: x, Y: y}
	return id
}

// pubKeyFromNodeID reconstructs an *ecdsa.PublicKey on DefaultCurve from
// its wire coordinates.
func pubKeyFromNodeID(id wire.NodeID) *ecdsa.PublicKey {
	return &ecdsa.PublicKey{
		Curve: DefaultCurve,
		X:     new(big.Int).SetBytes(id.X[:]),
		Y:     new(big.Int).SetBytes(id.Y[:]),
	}
}

// ecdh derives a shared secret from priv and pub via scalar
// multiplication on the shared curve.
func ecdh(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) []byte {
	x, _ := pub.Curve.ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	return x.Bytes()
}

// signEphemeral signs (ephemeral public key || expiration) with the
// long-term identity key, producing the certificate carried in HELLO.
func signEphemeral(longTerm *ecdsa.PrivateKey, ephemeral wire.NodeID, expiration uint64) (wire.AuthCert, error) {
	digest := certDigest(ephemeral, expiration)
	r, s, err := ecdsa.Sign(rand.Reader, longTerm, digest)
	if err != nil {
		return wire.AuthCert{}, err
	}
	return wire.AuthCert{
		Ephemeral:  ephemeral,
		Expiration: expiration,
		SigR:       r.Bytes(),
		SigS:       s.Bytes(),
	}, nil
}

// verifyCert checks the certificate's signature and expiry against the
// claimed long-term identity.
func verifyCert(claimedOwner wire.NodeID, cert wire.AuthCert, now time.Time) error {
	if uint64(now.Unix()) > cert.Expiration {
		return ErrBadCert
	}
	owner := pubKeyFromNodeID(claimedOwner)
	digest := certDigest(cert.Ephemeral, cert.Expiration)
	r := new(big.Int).SetBytes(cert.SigR)
	s := new(big.Int).SetBytes(cert.SigS)
	if !ecdsa.Verify(owner, digest, r, s) {
		return ErrBadCert
	}
	return nil
}

func certDigest(ephemeral wire.NodeID, expiration uint64) []byte {
	var exp [8]byte
	binary.BigEndian.PutUint64(exp[:], expiration)
	h, _ := blake2b.New256(nil)
	h.Write(ephemeral.X[:])
	h.Write(ephemeral.Y[:])
	h.Write(exp[:])
	return h.Sum(nil)
}

// roleTag distinguishes the two HKDF derivations so that the initiator's
// send key equals the acceptor's receive key and vice-versa.
func roleTag(forInitiatorSend bool) []byte {
	if forInitiatorSend {
		return []byte("hcnet-overlay initiator->acceptor")
	}
	return []byte("hcnet-overlay acceptor->initiator")
}

// deriveMACKeys derives the two per-direction MAC keys from the ECDH
// secret and both nonces. initiatorNonce/acceptorNonce are ordered
// consistently on both sides regardless of which side is deriving, so
// each direction necessarily yields a distinct key.
func deriveMACKeys(secret []byte, initiatorNonce, acceptorNonce wire.Hash, role Role) (sendKey, recvKey []byte, err error) {
	salt := append(append([]byte{}, initiatorNonce[:]...), acceptorNonce[:]...)

	initiatorToAcceptor, err := hkdfExpand(secret, salt, roleTag(true))
	if err != nil {
		return nil, nil, err
	}
	acceptorToInitiator, err := hkdfExpand(secret, salt, roleTag(false))
	if err != nil {
		return nil, nil, err
	}

	if role == RoleInitiator {
		return initiatorToAcceptor, acceptorToInitiator, nil
	}
	return acceptorToInitiator, initiatorToAcceptor, nil
}

func hkdfExpand(secret, salt, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// computeMAC computes the per-message authentication tag: an HMAC over
// (sequence || encoded body) under the per-direction key.
func computeMAC(key []byte, seq uint64, body []byte) [wire.MacSize]byte {
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	mac := hmac.New(sha256.New, key)
	mac.Write(seqBuf[:])
	mac.Write(body)
	var out [wire.MacSize]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// verifyMAC reports whether tag is the correct MAC for (seq, body) under key.
func verifyMAC(key []byte, seq uint64, body []byte, tag [wire.MacSize]byte) bool {
	want := computeMAC(key, seq, body)
	return hmac.Equal(want[:], tag[:])
}

// AuthParams bundles the local configuration the Authenticator needs to
// perform a handshake, kept separate from Config so auth.go has no
// import-cycle dependency on config.go.
type AuthParams struct {
	Identity          *Identity
	NetworkID         wire.Hash
	LedgerVersion     uint32
	OverlayMinVersion uint32
	OverlayVersion    uint32
	VersionStr        string
	ListeningPort     uint32
	ByteFlowControl   bool
	BanList           collab.BanList
}

// Authenticator runs the HELLO/AUTH handshake over a Connection's
// net.Conn, synchronously, before the connection is handed to the
// scheduler.
type Authenticator struct {
	params AuthParams
}

// NewAuthenticator builds an Authenticator from the given parameters.
func NewAuthenticator(params AuthParams) *Authenticator { return &Authenticator{params: params} }

type ephemeralKeyPair struct {
	priv *ecdsa.PrivateKey
	id   wire.NodeID
}

func newEphemeralKeyPair() (*ephemeralKeyPair, error) {
	priv, err := ecdsa.GenerateKey(DefaultCurve, rand.Reader)
	if err != nil {
		return nil, err
	}
	var x, y wire.PubKeyAxis
	if err := x.Unmarshal(priv.PublicKey.X.Bytes()); err != nil {
		return nil, err
	}
	if err := y.Unmarshal(priv.PublicKey.Y.Bytes()); err != nil {
		return nil, err
	}
	return &ephemeralKeyPair{priv: priv, id: wire.NodeID{X: x, Y: y}}, nil
}

func randomNonce() (wire.Hash, error) {
	var n wire.Hash
	_, err := io.ReadFull(rand.Reader, n[:])
	return n, err
}

// buildHello assembles this side's HELLO message and the ephemeral
// keypair backing its certificate.
func (a *Authenticator) buildHello() (*wire.HelloMessage, *ephemeralKeyPair, error) {
	eph, err := newEphemeralKeyPair()
	if err != nil {
		return nil, nil, err
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, nil, err
	}
	expiration := uint64(time.Now().Add(certLifetime).Unix())
	cert, err := signEphemeral(a.params.Identity.Priv, eph.id, expiration)
	if err != nil {
		return nil, nil, err
	}
	return &wire.HelloMessage{
		LedgerVersion:     a.params.LedgerVersion,
		OverlayMinVersion: a.params.OverlayMinVersion,
		OverlayVersion:    a.params.OverlayVersion,
		VersionStr:        a.params.VersionStr,
		NetworkID:         a.params.NetworkID,
		ListeningPort:     a.params.ListeningPort,
		PeerID:            a.params.Identity.ID,
		Cert:              cert,
		Nonce:             nonce,
	}, eph, nil
}

// verifyHello performs the checks a received HELLO must pass: certificate
// validity, ban status, network match, overlay version overlap, and
// self-connect detection. Identities compare by value, never by pointer.
func (a *Authenticator) verifyHello(hello *wire.HelloMessage) error {
	if err := verifyCert(hello.PeerID, hello.Cert, time.Now()); err != nil {
		return err
	}
	if a.params.BanList != nil && a.params.BanList.IsBanned(hello.PeerID) {
		return ErrBannedPeer
	}
	if hello.NetworkID != a.params.NetworkID {
		return ErrWrongNetwork
	}
	if hello.OverlayMinVersion > a.params.OverlayVersion || a.params.OverlayMinVersion > hello.OverlayVersion {
		return ErrVersionMismatch
	}
	if hello.PeerID.Equal(a.params.Identity.ID) {
		return ErrSelfConnect
	}
	return nil
}

// negotiatedVersion picks the version both sides can speak: the lower of
// the two current versions, never below either side's stated minimum.
func negotiatedVersion(local, remote *wire.HelloMessage) uint32 {
	v := local.OverlayVersion
	if remote.OverlayVersion < v {
		v = remote.OverlayVersion
	}
	return v
}

// authFlags builds this side's AUTH capability flags.
func (a *Authenticator) authFlags() wire.AuthFlag {
	var flags wire.AuthFlag
	if a.params.ByteFlowControl {
		flags |= wire.AuthFlagFlowControlBytes
	}
	return flags
}

// completeKeyExchange derives and installs this connection's MAC keys
// once both ephemeral public keys and both nonces are known.
func (a *Authenticator) completeKeyExchange(c *Connection, eph *ephemeralKeyPair, remoteCert wire.AuthCert, localNonce, remoteNonce wire.Hash) error {
	remotePub := pubKeyFromNodeID(remoteCert.Ephemeral)
	secret := ecdh(eph.priv, remotePub)

	var initiatorNonce, acceptorNonce wire.Hash
	if c.role == RoleInitiator {
		initiatorNonce, acceptorNonce = localNonce, remoteNonce
	} else {
		initiatorNonce, acceptorNonce = remoteNonce, localNonce
	}

	sendKey, recvKey, err := deriveMACKeys(secret, initiatorNonce, acceptorNonce, c.role)
	if err != nil {
		return err
	}
	c.mac.sendKey = sendKey
	c.mac.recvKey = recvKey
	return nil
}

// rejectHello tells the peer why its HELLO was refused before the caller
// drops the connection. ERROR_MSG always travels unauthenticated.
func rejectHello(c *Connection, cause error) {
	_ = sendUnauthenticated(c, &wire.ErrorMessage{Code: wire.ErrCodeConf, Msg: cause.Error()})
}

// RunOutbound performs the initiator's side of the handshake: send HELLO,
// receive HELLO, derive keys, exchange AUTH. It blocks on c.conn and must
// run before the connection is registered with the scheduler. The
// returned flags are the peer's AUTH capabilities.
func (a *Authenticator) RunOutbound(c *Connection) (wire.AuthFlag, error) {
	c.role = RoleInitiator
	c.state = stateConnected

	localHello, eph, err := a.buildHello()
	if err != nil {
		return 0, err
	}
	c.localNonce = localHello.Nonce
	c.localVersionMin, c.localVersionMax = a.params.OverlayMinVersion, a.params.OverlayVersion

	if err := sendUnauthenticated(c, localHello); err != nil {
		return 0, err
	}
	c.helloSentAt = time.Now()

	remoteHello, err := recvHello(c)
	if err != nil {
		return 0, err
	}
	if err := a.verifyHello(remoteHello); err != nil {
		rejectHello(c, err)
		return 0, err
	}
	c.remoteID = remoteHello.PeerID
	c.remoteNonce = remoteHello.Nonce
	c.remoteVersionMin, c.remoteVersionMax = remoteHello.OverlayMinVersion, remoteHello.OverlayVersion
	c.negotiatedVersion = negotiatedVersion(localHello, remoteHello)
	c.state = stateGotHello

	if err := a.completeKeyExchange(c, eph, remoteHello.Cert, localHello.Nonce, remoteHello.Nonce); err != nil {
		return 0, err
	}

	if err := sendAuthenticated(c, &wire.AuthMessage{Flags: a.authFlags()}); err != nil {
		return 0, err
	}
	remoteAuth, err := recvAuth(c)
	if err != nil {
		return 0, err
	}
	c.state = stateGotAuth
	c.authedAt = time.Now()
	return remoteAuth.Flags, nil
}

// RunInbound performs the acceptor's side of the handshake: receive
// HELLO, derive keys, send HELLO, exchange AUTH. The returned flags are
// the peer's AUTH capabilities.
func (a *Authenticator) RunInbound(c *Connection) (wire.AuthFlag, error) {
	c.role = RoleAcceptor
	c.state = stateConnected

	remoteHello, err := recvHello(c)
	if err != nil {
		return 0, err
	}
	if err := a.verifyHello(remoteHello); err != nil {
		rejectHello(c, err)
		return 0, err
	}
	c.remoteID = remoteHello.PeerID
	c.remoteNonce = remoteHello.Nonce
	c.remoteVersionMin, c.remoteVersionMax = remoteHello.OverlayMinVersion, remoteHello.OverlayVersion

	localHello, eph, err := a.buildHello()
	if err != nil {
		return 0, err
	}
	c.localNonce = localHello.Nonce
	c.localVersionMin, c.localVersionMax = a.params.OverlayMinVersion, a.params.OverlayVersion
	c.negotiatedVersion = negotiatedVersion(localHello, remoteHello)

	if err := a.completeKeyExchange(c, eph, remoteHello.Cert, localHello.Nonce, remoteHello.Nonce); err != nil {
		return 0, err
	}

	if err := sendUnauthenticated(c, localHello); err != nil {
		return 0, err
	}
	c.helloSentAt = time.Now()
	c.state = stateGotHello

	remoteAuth, err := recvAuth(c)
	if err != nil {
		return 0, err
	}
	if err := sendAuthenticated(c, &wire.AuthMessage{Flags: a.authFlags()}); err != nil {
		return 0, err
	}
	c.state = stateGotAuth
	c.authedAt = time.Now()
	return remoteAuth.Flags, nil
}

// sendUnauthenticated writes msg as an Envelope with Sequence 0 and a
// zero MAC; only HELLO and ERROR_MSG may travel this way.
func sendUnauthenticated(c *Connection, msg wire.Message) error {
	env, err := wire.EncodeEnvelope(msg)
	if err != nil {
		return err
	}
	frame, err := encodeFrame(env)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(frame)
	if err == nil {
		c.touchSend()
	}
	return err
}

// sendAuthenticated stamps msg with the next send sequence and a MAC
// under the send key, then writes it.
func sendAuthenticated(c *Connection, msg wire.Message) error {
	env, err := wire.EncodeEnvelope(msg)
	if err != nil {
		return err
	}
	env.Sequence = c.nextSendSeq()
	env.Mac = computeMAC(c.mac.sendKey, env.Sequence, env.Body)
	frame, err := encodeFrame(env)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(frame)
	if err == nil {
		c.touchSend()
	}
	return err
}

func recvEnvelope(c *Connection) (*wire.Envelope, error) {
	body, err := readFrame(c.conn)
	if err != nil {
		return nil, err
	}
	env, err := decodeFrame(body)
	if err != nil {
		return nil, err
	}
	c.touchRecv()
	return env, nil
}

func recvHello(c *Connection) (*wire.HelloMessage, error) {
	env, err := recvEnvelope(c)
	if err != nil {
		return nil, err
	}
	if env.Type != wire.HELLO {
		return nil, ErrInvalidState
	}
	msg, err := env.DecodeBody()
	if err != nil {
		return nil, err
	}
	return msg.(*wire.HelloMessage), nil
}

func recvAuth(c *Connection) (*wire.AuthMessage, error) {
	env, err := recvEnvelope(c)
	if err != nil {
		return nil, err
	}
	if env.Type != wire.AUTH {
		return nil, ErrInvalidState
	}
	if err := c.checkRecvSeq(env.Sequence); err != nil {
		return nil, err
	}
	if !verifyMAC(c.mac.recvKey, env.Sequence, env.Body, env.Mac) {
		return nil, ErrMacMismatch
	}
	msg, err := env.DecodeBody()
	if err != nil {
		return nil, err
	}
	return msg.(*wire.AuthMessage), nil
}
