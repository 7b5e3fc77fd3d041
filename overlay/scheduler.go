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
	"encoding/binary"
	"log"
	"net"
	"sync"
	"time"

	"github.com/xtaci/gaio"
)

// schedTask is one unit of work posted to the cooperative queue.
type schedTask struct {
	class SchedClass
	fn    func()
}

// maxQueueLen is the droppable-class load-shedding threshold; droppable
// tasks are rejected at enqueue time once the queue is this deep.
const maxQueueLen = 4096

// Scheduler is the single cooperative task queue that every connection's
// socket I/O and deferred work runs on: a gaio.Watcher drives the
// sockets while classed tasks drain on one logical main thread.
type Scheduler struct {
	watcher *gaio.Watcher

	mu       sync.Mutex
	tasks    []schedTask
	wake     chan struct{}
	die      chan struct{}
	dieOnce  sync.Once
	draining bool

	logger *log.Logger

	droppedCount uint64
}

// NewScheduler constructs a Scheduler with its own gaio.Watcher.
func NewScheduler(logger *log.Logger) (*Scheduler, error) {
	w, err := gaio.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{
		watcher: w,
		wake:    make(chan struct{}, 1),
		die:     make(chan struct{}),
		logger:  logger,
	}
	return s, nil
}

// Post enqueues fn under class. A droppable-class task is rejected once
// the queue length reaches maxQueueLen, and every queued class is
// rejected after Close; Post reports whether the task was accepted.
func (s *Scheduler) Post(class SchedClass, fn func()) bool {
	if class == SchedInlineSync {
		fn()
		return true
	}
	select {
	case <-s.die:
		return false
	default:
	}
	s.mu.Lock()
	if class == SchedDroppable && len(s.tasks) >= maxQueueLen {
		s.droppedCount++
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks, schedTask{class: class, fn: fn})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// QueueClass reports the scheduler class of the oldest pending task, for
// PeerSession's load-shedding check on the outbound path.
func (s *Scheduler) QueueClass() SchedClass {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return SchedNormal
	}
	return s.tasks[0].class
}

// QueueOverloaded reports whether the droppable queue has crossed the
// shedding threshold.
func (s *Scheduler) QueueOverloaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks) >= maxQueueLen
}

// Run drains posted tasks on the calling goroutine until Close. Exactly
// one goroutine must call Run; it is the logical main thread every task
// executes on.
func (s *Scheduler) Run() {
	for {
		s.mu.Lock()
		var next *schedTask
		if len(s.tasks) > 0 {
			t := s.tasks[0]
			s.tasks = s.tasks[1:]
			next = &t
		}
		s.mu.Unlock()

		if next != nil {
			next.fn()
			continue
		}

		select {
		case <-s.die:
			return
		case <-s.wake:
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Close stops accepting new I/O and releases the watcher. Pending tasks
// already queued are still allowed to drain by Run's final pass; no new
// ones are accepted after this.
func (s *Scheduler) Close() {
	s.dieOnce.Do(func() {
		close(s.die)
		s.watcher.Close()
	})
}

// connReadState tracks where a gaio-driven read is in the two-phase
// length-prefix/body cycle.
type connReadState int

const (
	readStateSize connReadState = iota
	readStateBody
)

// ioContext is the per-operation context threaded through the watcher.
type ioContext struct {
	conn  net.Conn
	state connReadState
	owner *Connection

	mu        sync.Mutex
	suspended bool
}

// StartReading submits the first length-prefix read for c.
func (s *Scheduler) StartReading(c *Connection, readTimeout time.Duration) error {
	ctx := &ioContext{conn: c.conn, state: readStateSize, owner: c}
	c.ioc = ctx
	return s.watcher.ReadFull(ctx, c.conn, make([]byte, frameLengthPrefix), time.Now().Add(readTimeout))
}

// ResumeReading re-arms a read suspended for flow control. It is a no-op
// on a connection that is still reading.
func (s *Scheduler) ResumeReading(c *Connection, readTimeout time.Duration) error {
	ictx := c.ioc
	if ictx == nil {
		return nil
	}
	ictx.mu.Lock()
	if !ictx.suspended {
		ictx.mu.Unlock()
		return nil
	}
	ictx.suspended = false
	ictx.mu.Unlock()
	return s.watcher.ReadFull(ictx, c.conn, make([]byte, frameLengthPrefix), time.Now().Add(readTimeout))
}

// PumpIO runs one WaitIO cycle, dispatching completed reads to onFrame,
// interleaving socket completions with posted tasks.
func (s *Scheduler) PumpIO(readTimeout time.Duration, onFrame func(c *Connection, frame []byte), onError func(c *Connection, err error)) error {
	results, err := s.watcher.WaitIO()
	if err != nil {
		return err
	}
	for _, res := range results {
		ictx, ok := res.Context.(*ioContext)
		if !ok || res.Operation != gaio.OpRead {
			continue
		}
		if res.Error != nil {
			if onError != nil {
				onError(ictx.owner, res.Error)
			}
			continue
		}
		if res.Size <= 0 {
			continue
		}

		switch ictx.state {
		case readStateSize:
			length := binary.BigEndian.Uint32(res.Buffer[:res.Size])
			if length > MaxFrameSize {
				if onError != nil {
					onError(ictx.owner, ErrFrameTooLarge)
				}
				continue
			}
			ictx.state = readStateBody
			if err := s.watcher.ReadFull(ictx, res.Conn, make([]byte, length), time.Now().Add(readTimeout)); err != nil {
				if onError != nil {
					onError(ictx.owner, err)
				}
			}
		case readStateBody:
			onFrame(ictx.owner, res.Buffer[:res.Size])
			ictx.state = readStateSize
			if fw := ictx.owner.flow; fw != nil && !fw.CanRead() {
				ictx.mu.Lock()
				ictx.suspended = true
				ictx.mu.Unlock()
				// Credit may have been returned between the check above and
				// the suspension mark; re-check so the resume is never lost.
				if fw.CanRead() {
					if err := s.ResumeReading(ictx.owner, readTimeout); err != nil && onError != nil {
						onError(ictx.owner, err)
					}
				}
				continue
			}
			if err := s.watcher.ReadFull(ictx, res.Conn, make([]byte, frameLengthPrefix), time.Now().Add(readTimeout)); err != nil {
				if onError != nil {
					onError(ictx.owner, err)
				}
			}
		}
	}
	return nil
}
