// Copyright (c) 2020 Sperax
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package overlay

import (
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/hcnet/hcnet-core/internal/timer"
	"github.com/hcnet/hcnet-core/overlay/wire"
)

const acceptorReadTimeout = 10 * time.Second

// Agent owns a listener, a Scheduler, and every live PeerSession dialed
// or accepted through it.
type Agent struct {
	listener *net.TCPListener
	cfg      *Config
	sched    *Scheduler
	tsched   *timer.TimedSched

	registry *sessionRegistry

	mu       sync.Mutex
	sessions map[string]*PeerSession

	die     chan struct{}
	dieOnce sync.Once
}

// NewAgent creates an Agent listening on listener, using cfg for every
// accepted or dialed session: it constructs the watcher-backed
// scheduler, starts the accept loop and the I/O pump, and returns the
// Agent with a finalizer set on it so an abandoned Agent releases its
// sockets.
func NewAgent(listener *net.TCPListener, cfg *Config) (*Agent, error) {
	if listener == nil {
		return nil, ErrListenerNotSpecified
	}
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}

	sched, err := NewScheduler(nil)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		listener: listener,
		cfg:      cfg,
		sched:    sched,
		tsched:   timer.NewTimedSched(4),
		registry: newSessionRegistry(),
		sessions: make(map[string]*PeerSession),
		die:      make(chan struct{}),
	}

	go a.acceptor()
	go a.readLoop()
	go a.sched.Run()

	runtime.SetFinalizer(a, func(a *Agent) { a.Close() })
	return a, nil
}

// acceptor hands every accepted net.Conn to newSession as RoleAcceptor.
func (a *Agent) acceptor() {
	for {
		conn, err := a.listener.AcceptTCP()
		if err != nil {
			select {
			case <-a.die:
				return
			default:
				continue
			}
		}
		go a.newSession(RoleAcceptor, conn)
	}
}

// AddPeer registers an already-dialed conn as RoleInitiator.
func (a *Agent) AddPeer(conn *net.TCPConn) {
	go a.newSession(RoleInitiator, conn)
}

func (a *Agent) newSession(role Role, conn net.Conn) {
	params := SessionParams{
		Auth:       NewAuthenticator(a.cfg.authParams()),
		Deps:       a.cfg.dependencies(),
		Scheduler:  a.sched,
		TimedSched: a.tsched,
		FlowCfg:    a.cfg.flowConfig(),
		Registry:   a.registry,
	}
	s, err := NewPeerSession(role, conn, a.cfg.identity().ID, a.cfg.OverlayMinVersion, a.cfg.OverlayVersion, params)
	if err != nil {
		conn.Close()
		return
	}

	// One authenticated session per peer identity. Sessions compare by
	// handle, never by identity-value pointer.
	a.mu.Lock()
	for _, existing := range a.sessions {
		if existing != s && existing.RemoteIdentity().Equal(s.RemoteIdentity()) {
			a.mu.Unlock()
			s.sendError(wire.ErrCodeConf, ErrDuplicatePeer.Error())
			s.Drop(DropDuplicatePeer, "we", DropGraceful)
			return
		}
	}
	a.sessions[s.RemoteAddr()] = s
	a.mu.Unlock()
	s.SetDropHook(func(reason DropReason, dir string) {
		a.mu.Lock()
		delete(a.sessions, s.RemoteAddr())
		a.mu.Unlock()
	})

	if err := a.sched.StartReading(s.conn, acceptorReadTimeout); err != nil {
		s.Drop(DropIOError, "we", DropImmediate)
	}
}

// readLoop pumps gaio completions and lets the owning session dispatch
// its frame, forever, until Close.
func (a *Agent) readLoop() {
	for {
		select {
		case <-a.die:
			return
		default:
		}
		err := a.sched.PumpIO(acceptorReadTimeout,
			func(c *Connection, frame []byte) {
				a.mu.Lock()
				s := a.sessions[c.remoteAddr]
				a.mu.Unlock()
				if s != nil {
					s.HandleInbound(frame)
				}
			},
			func(c *Connection, err error) {
				a.mu.Lock()
				s := a.sessions[c.remoteAddr]
				a.mu.Unlock()
				if s != nil {
					s.Drop(DropIOError, "we", DropImmediate)
				}
			},
		)
		if err != nil {
			return
		}
	}
}

// Sessions returns a snapshot of every live PeerSession.
func (a *Agent) Sessions() []*PeerSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*PeerSession, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, s)
	}
	return out
}

// NotifyLedgerClosed prunes every session's advert history below seq;
// the embedding node calls this once per ledger close.
func (a *Agent) NotifyLedgerClosed(seq uint64) {
	for _, s := range a.Sessions() {
		s.NotifyLedgerClosed(seq)
	}
}

// Close stops accepting, drops every session, and releases the watcher.
func (a *Agent) Close() error {
	a.dieOnce.Do(func() {
		close(a.die)
		a.listener.Close()
		a.mu.Lock()
		sessions := make([]*PeerSession, 0, len(a.sessions))
		for _, s := range a.sessions {
			sessions = append(sessions, s)
		}
		a.mu.Unlock()
		for _, s := range sessions {
			s.Drop(DropLocalShutdown, "we", DropGraceful)
		}
		a.sched.Close()
		a.tsched.Close()
	})
	return nil
}
