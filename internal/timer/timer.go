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

// Package timer implements a cancellable delayed-execution scheduler:
// NewTimedSched(parallelism), (*TimedSched).Put(f, deadline), and a
// package-level SystemTimedSched singleton. Cancelling the returned
// handle guarantees the callback will never run.
package timer

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a handle to one scheduled callback. Cancel prevents it from
// firing if it has not already started running.
type Timer struct {
	deadline time.Time
	fn       func()
	index    int
	canceled atomic.Bool
}

// Cancel prevents this timer from firing. Safe to call more than once,
// from any goroutine, and after the timer has already fired.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.canceled.Store(true)
}

type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// TimedSched runs scheduled callbacks on a small pool of worker
// goroutines, fired in deadline order. Put is safe for concurrent use
// from any goroutine.
type TimedSched struct {
	mu      sync.Mutex
	heap    timerHeap
	wake    chan struct{}
	die     chan struct{}
	dieOnce sync.Once
}

// NewTimedSched starts parallelism worker goroutines draining the
// deadline-ordered heap. parallelism < 1 is treated as 1.
func NewTimedSched(parallelism int) *TimedSched {
	if parallelism < 1 {
		parallelism = 1
	}
	s := &TimedSched{
		wake: make(chan struct{}, 1),
		die:  make(chan struct{}),
	}
	for i := 0; i < parallelism; i++ {
		go s.worker()
	}
	return s
}

// Put schedules f to run at or after deadline, returning a handle that
// can cancel it before it fires.
func (s *TimedSched) Put(f func(), deadline time.Time) *Timer {
	t := &Timer{fn: f, deadline: deadline}
	s.mu.Lock()
	heap.Push(&s.heap, t)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return t
}

// Close stops all worker goroutines. Already-fired callbacks are not
// affected; no further callback will ever run.
func (s *TimedSched) Close() {
	s.dieOnce.Do(func() { close(s.die) })
}

func (s *TimedSched) worker() {
	const idlePoll = 20 * time.Millisecond
	for {
		s.mu.Lock()
		var wait time.Duration
		var next *Timer
		if len(s.heap) > 0 {
			next = s.heap[0]
			wait = time.Until(next.deadline)
		} else {
			wait = idlePoll
		}
		s.mu.Unlock()

		if wait < 0 {
			wait = 0
		}

		select {
		case <-s.die:
			return
		case <-s.wake:
			continue
		case <-time.After(wait):
		}

		s.mu.Lock()
		if len(s.heap) == 0 {
			s.mu.Unlock()
			continue
		}
		top := s.heap[0]
		if top.deadline.After(time.Now()) {
			s.mu.Unlock()
			continue
		}
		heap.Pop(&s.heap)
		s.mu.Unlock()

		if !top.canceled.Load() {
			top.fn()
		}
	}
}

// SystemTimedSched is the process-wide scheduler used where a dedicated
// TimedSched would be overkill.
var SystemTimedSched = NewTimedSched(4)
