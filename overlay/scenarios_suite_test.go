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
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/kr/pretty"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

// TestScenarios registers this file's Ginkgo specs with the standard Go
// test runner, the way a `go test` invocation of a Ginkgo suite always
// needs exactly one *testing.T entry point.
func TestScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "overlay end-to-end scenarios")
}

// scenarioPeer bundles one side of a two-node overlay under test: its
// Agent, the collaborators driving it, and the listener address other
// peers dial.
type scenarioPeer struct {
	agent     *Agent
	consensus *collab.FakeConsensusEngine
	ledger    *collab.FakeLedger
	banList   *collab.FakeBanList
	identity  *Identity
	addr      *net.TCPAddr
}

func newScenarioPeer() (*scenarioPeer, error) {
	priv, err := ecdsa.GenerateKey(DefaultCurve, rand.Reader)
	if err != nil {
		return nil, err
	}

	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}

	consensus := collab.NewFakeConsensusEngine()
	ledger := collab.NewFakeLedger()
	banList := collab.NewFakeBanList()

	cfg := &Config{
		PrivateKey:        priv,
		NetworkID:         wire.Hash{0x42},
		OverlayMinVersion: 1,
		OverlayVersion:    MinOverlayVersionForFlowControlBytes,
		VersionStr:        "scenario/1",
		ByteFlowControl:   true,
		BanList:           banList,
		PeerDirectory:     collab.NewFakePeerDirectory(),
		Consensus:         consensus,
		Ledger:            ledger,
		Survey:            collab.FakeSurveyManager{},
	}
	if err := VerifyConfig(cfg); err != nil {
		l.Close()
		return nil, err
	}

	a, err := NewAgent(l, cfg)
	if err != nil {
		l.Close()
		return nil, err
	}

	return &scenarioPeer{
		agent:     a,
		consensus: consensus,
		ledger:    ledger,
		banList:   banList,
		identity:  cfg.identity(),
		addr:      l.Addr().(*net.TCPAddr),
	}, nil
}

func (p *scenarioPeer) close() { p.agent.Close() }

// dial connects from p to other, registering the outbound side as
// RoleInitiator the way Agent.AddPeer would from a real dialer.
func (p *scenarioPeer) dial(other *scenarioPeer) error {
	conn, err := net.DialTCP("tcp", nil, other.addr)
	if err != nil {
		return err
	}
	p.agent.AddPeer(conn)
	return nil
}

// awaitSession polls until p has exactly one live session, or fails after
// the deadline — handshakes complete in microseconds over loopback, so a
// generous bound never flakes while still bounding the wait.
func awaitSession(p *scenarioPeer) *PeerSession {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sessions := p.agent.Sessions()
		if len(sessions) == 1 {
			return sessions[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func awaitNoSessions(p *scenarioPeer) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.agent.Sessions()) == 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

var _ = Describe("handshake", func() {
	var a, b *scenarioPeer

	BeforeEach(func() {
		var err error
		a, err = newScenarioPeer()
		Expect(err).NotTo(HaveOccurred())
		b, err = newScenarioPeer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		a.close()
		b.close()
	})

	// Covers the happy path: HELLO/AUTH complete on both sides within two
	// round trips and each side immediately grants its initial credit.
	It("completes within two round trips and both sides grant initial credit", func() {
		Expect(a.dial(b)).To(Succeed())

		sa := awaitSession(a)
		sb := awaitSession(b)
		Expect(sa).NotTo(BeNil())
		Expect(sb).NotTo(BeNil())

		Expect(sa.State()).To(Equal("GOT_AUTH"))
		Expect(sb.State()).To(Equal("GOT_AUTH"))
		Expect(sa.RemoteIdentity().Equal(b.identity.ID)).To(BeTrue(),
			pretty.Sprintf("unexpected remote identity: %# v", sa.RemoteIdentity()))
		Expect(sb.RemoteIdentity().Equal(a.identity.ID)).To(BeTrue(),
			pretty.Sprintf("unexpected remote identity: %# v", sb.RemoteIdentity()))

		Eventually(func() bool { return sa.conn.flow.CanSendFlood(1) }, time.Second, 5*time.Millisecond).Should(BeTrue())
		Eventually(func() bool { return sb.conn.flow.CanSendFlood(1) }, time.Second, 5*time.Millisecond).Should(BeTrue())
	})

	// Covers the self-connect rejection: a node dialing itself must never
	// end up with a live session.
	It("rejects a self-connect attempt", func() {
		self, err := newScenarioPeer()
		Expect(err).NotTo(HaveOccurred())
		defer self.close()

		conn, err := net.DialTCP("tcp", nil, self.addr)
		Expect(err).NotTo(HaveOccurred())
		self.agent.AddPeer(conn)

		Consistently(func() int { return len(self.agent.Sessions()) }, 300*time.Millisecond, 20*time.Millisecond).Should(Equal(0))
	})
})

var _ = Describe("message authentication", func() {
	var a, b *scenarioPeer

	BeforeEach(func() {
		var err error
		a, err = newScenarioPeer()
		Expect(err).NotTo(HaveOccurred())
		b, err = newScenarioPeer()
		Expect(err).NotTo(HaveOccurred())
		Expect(a.dial(b)).To(Succeed())
		Expect(awaitSession(a)).NotTo(BeNil())
		Expect(awaitSession(b)).NotTo(BeNil())
	})

	AfterEach(func() {
		a.close()
		b.close()
	})

	// Covers a tampered MAC: a frame carrying a correctly-sequenced but
	// bit-flipped MAC must be rejected and the receiving session dropped,
	// rather than silently accepted or ignored.
	It("drops the session on a tampered MAC", func() {
		sa := awaitSession(a)

		msg := &wire.SendMoreMessage{NumMessages: 1}
		body, err := msg.Marshal()
		Expect(err).NotTo(HaveOccurred())

		seq := sa.conn.nextSendSeq()
		mac := computeMAC(sa.conn.mac.sendKey, seq, body)
		mac[0] ^= 0xff

		env := &wire.Envelope{Sequence: seq, Type: wire.SEND_MORE, Body: body, Mac: mac}
		frame, err := encodeFrame(env)
		Expect(err).NotTo(HaveOccurred())
		_, err = sa.conn.conn.Write(frame)
		Expect(err).NotTo(HaveOccurred())

		Expect(awaitNoSessions(b)).To(BeTrue(), "a bad MAC must drop the receiving session")
	})
})

var _ = Describe("advert/demand flood protocol", func() {
	var a, b *scenarioPeer

	BeforeEach(func() {
		var err error
		a, err = newScenarioPeer()
		Expect(err).NotTo(HaveOccurred())
		b, err = newScenarioPeer()
		Expect(err).NotTo(HaveOccurred())
		Expect(a.dial(b)).To(Succeed())
		Expect(awaitSession(a)).NotTo(BeNil())
		Expect(awaitSession(b)).NotTo(BeNil())
	})

	AfterEach(func() {
		a.close()
		b.close()
	})

	// Covers the fulfilled/unknown/banned triad end-to-end: b demands three
	// hashes from a — one a has, one unknown, one banned — and only the
	// known transaction's body ever arrives at b's consensus engine.
	It("fulfills a demand for a known transaction and ignores the rest", func() {
		sa := awaitSession(a)
		sb := awaitSession(b)

		// Both directions need their initial SEND_MORE processed before
		// either side may send a flood-class message.
		Eventually(func() bool { return sa.conn.flow.CanSendFlood(1) }, time.Second, 5*time.Millisecond).Should(BeTrue())
		Eventually(func() bool { return sb.conn.flow.CanSendFlood(1) }, time.Second, 5*time.Millisecond).Should(BeTrue())

		known := wire.Hash{1, 1, 1}
		unknown := wire.Hash{2, 2, 2}
		banned := wire.Hash{3, 3, 3}
		a.consensus.PutTx(known, []byte("known-tx-body"))
		a.consensus.BanTx(banned)

		Expect(sb.advert.SendTxDemand([]wire.Hash{known, unknown, banned})).To(Succeed())

		Eventually(func() [][]byte { return b.consensus.ReceivedTransactions() }, time.Second, 5*time.Millisecond).
			Should(Equal([][]byte{[]byte("known-tx-body")}), "only the known transaction's body ever reaches b's consensus engine")

		Consistently(func() int { return len(b.consensus.ReceivedTransactions()) }, 200*time.Millisecond, 20*time.Millisecond).
			Should(Equal(1), "no spurious deliveries for the unknown or banned hashes")
	})
})
