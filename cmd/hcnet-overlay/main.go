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

package main

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/hcnet/hcnet-core/overlay"
	"github.com/hcnet/hcnet-core/overlay/collab"
	"github.com/hcnet/hcnet-core/overlay/metrics"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

const (
	demoLedgerVersion  = 1
	demoOverlayMinVer  = overlay.ConfigMinOverlayVersion
	demoOverlayVersion = 2
)

func main() {
	app := &cli.App{
		Name:                 "hcnet-overlay",
		Usage:                "demo harness for the validator overlay core",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			genkeyCommand,
			runCommand,
			peersCommand,
		},
		Action: func(c *cli.Context) error {
			cli.ShowAppHelp(c)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var genkeyCommand = &cli.Command{
	Name:  "genkey",
	Usage: "generate a long-term node identity",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Value: "./node.key", Usage: "output key file"},
	},
	Action: func(c *cli.Context) error {
		priv, err := ecdsa.GenerateKey(overlay.DefaultCurve, rand.Reader)
		if err != nil {
			return err
		}
		der, err := x509.MarshalECPrivateKey(priv)
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.String("out"), der, 0600); err != nil {
			return err
		}
		id := overlay.IdentityFromKey(priv)
		log.Println("wrote", c.String("out"), "node id:", id.ID.String())
		return nil
	},
}

// networkID derives a deterministic network identifier from name.
func networkID(name string) wire.Hash {
	return wire.Hash(sha256.Sum256([]byte(name)))
}

func loadIdentity(path string) (*ecdsa.PrivateKey, error) {
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return x509.ParseECPrivateKey(der)
}

func demoConfig(priv *ecdsa.PrivateKey, port uint32, network string, byteFlow bool) *overlay.Config {
	cfg := &overlay.Config{
		PrivateKey:            priv,
		NetworkID:             networkID(network),
		LedgerVersion:         demoLedgerVersion,
		OverlayMinVersion:     demoOverlayMinVer,
		OverlayVersion:        demoOverlayVersion,
		VersionStr:            "hcnet-overlay-demo/1.0",
		ListeningPort:         port,
		ByteFlowControl:       byteFlow,
		InboundMessageCeiling: overlay.ConfigDefaultInboundMessageCeiling,
		BanList:               collab.NewFakeBanList(),
		PeerDirectory:         collab.NewFakePeerDirectory(),
		Consensus:             collab.NewFakeConsensusEngine(),
		Ledger:                collab.NewFakeLedger(),
		Survey:                collab.FakeSurveyManager{},
	}
	return cfg
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "listen for and dial overlay peers",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "key", Value: "./node.key", Usage: "this node's identity key"},
		&cli.StringFlag{Name: "listen", Value: ":4680", Usage: "listening address"},
		&cli.StringFlag{Name: "network", Value: "demo", Usage: "network identifier string"},
		&cli.StringFlag{Name: "peers", Value: "./peers.json", Usage: "JSON array of peer addresses to dial"},
		&cli.BoolFlag{Name: "byte-flow", Value: true, Usage: "advertise byte-axis flow control"},
		&cli.DurationFlag{Name: "report-interval", Value: 5 * time.Second, Usage: "peer table print interval"},
	},
	Action: func(c *cli.Context) error {
		priv, err := loadIdentity(c.String("key"))
		if err != nil {
			return err
		}

		tcpaddr, err := net.ResolveTCPAddr("tcp", c.String("listen"))
		if err != nil {
			return err
		}
		listener, err := net.ListenTCP("tcp", tcpaddr)
		if err != nil {
			return err
		}
		log.Println("listening on", tcpaddr)

		_, portStr, _ := net.SplitHostPort(tcpaddr.String())
		var port uint32
		fmt.Sscanf(portStr, "%d", &port)

		cfg := demoConfig(priv, port, c.String("network"), c.Bool("byte-flow"))
		agent, err := overlay.NewAgent(listener, cfg)
		if err != nil {
			return err
		}
		defer agent.Close()

		var peerAddrs []string
		if data, err := os.ReadFile(c.String("peers")); err == nil {
			_ = json.Unmarshal(data, &peerAddrs)
		}
		for _, raddr := range peerAddrs {
			go dialUntilConnected(agent, raddr)
		}

		ticker := time.NewTicker(c.Duration("report-interval"))
		defer ticker.Stop()
		for range ticker.C {
			printPeersTable(agent)
		}
		return nil
	},
}

func dialUntilConnected(agent *overlay.Agent, raddr string) {
	for {
		conn, err := net.Dial("tcp", raddr)
		if err == nil {
			agent.AddPeer(conn.(*net.TCPConn))
			return
		}
		log.Println("dial", raddr, err)
		<-time.After(time.Second)
	}
}

func printPeersTable(agent *overlay.Agent) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"remote", "state", "rtt", "bytes read", "bytes written"})
	for _, s := range agent.Sessions() {
		table.Append([]string{
			s.RemoteAddr(),
			s.State(),
			s.RTT().String(),
			bytefmt.ByteSize(uint64(metrics.BytesRead().Count())),
			bytefmt.ByteSize(uint64(metrics.BytesWritten().Count())),
		})
	}
	table.Render()
}

var peersCommand = &cli.Command{
	Name:  "peers",
	Usage: "probe a list of addresses and report which complete the handshake",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "key", Value: "./node.key", Usage: "this node's identity key"},
		&cli.StringFlag{Name: "network", Value: "demo", Usage: "network identifier string"},
		&cli.StringFlag{Name: "peers", Value: "./peers.json", Usage: "JSON array of peer addresses to probe"},
		&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "how long to wait for handshakes"},
	},
	Action: func(c *cli.Context) error {
		priv, err := loadIdentity(c.String("key"))
		if err != nil {
			return err
		}

		listener, err := net.ListenTCP("tcp", &net.TCPAddr{Port: 0})
		if err != nil {
			return err
		}

		cfg := demoConfig(priv, 0, c.String("network"), true)
		agent, err := overlay.NewAgent(listener, cfg)
		if err != nil {
			return err
		}
		defer agent.Close()

		var peerAddrs []string
		data, err := os.ReadFile(c.String("peers"))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &peerAddrs); err != nil {
			return err
		}
		for _, raddr := range peerAddrs {
			conn, err := net.Dial("tcp", raddr)
			if err != nil {
				log.Println("dial", raddr, err)
				continue
			}
			agent.AddPeer(conn.(*net.TCPConn))
		}

		<-time.After(c.Duration("timeout"))
		printPeersTable(agent)
		return nil
	},
}
