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
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPostInlineSyncRunsOnCallingGoroutine(t *testing.T) {
	s := newTestScheduler(t)
	ran := false
	require.True(t, s.Post(SchedInlineSync, func() { ran = true }))
	require.True(t, ran, "inline-sync tasks must run before Post returns")
}

func TestRunExecutesPostedTasksInOrder(t *testing.T) {
	s := newTestScheduler(t)
	go s.Run()

	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		require.True(t, s.Post(SchedNormal, func() { done <- i }))
	}

	for want := 0; want < 3; want++ {
		select {
		case got := <-done:
			require.Equal(t, want, got, "tasks must drain in enqueue order")
		case <-time.After(2 * time.Second):
			t.Fatal("posted task never ran")
		}
	}
}

func TestDroppablePostShedsWhenQueueFull(t *testing.T) {
	s := newTestScheduler(t)
	// No Run goroutine: posted tasks accumulate.
	for i := 0; i < maxQueueLen; i++ {
		require.True(t, s.Post(SchedNormal, func() {}))
	}
	require.False(t, s.Post(SchedDroppable, func() {}), "droppable tasks are rejected at enqueue time once overloaded")
	require.True(t, s.Post(SchedNormal, func() {}), "normal tasks are never shed")
}

func TestQueueClassReportsOldestPending(t *testing.T) {
	s := newTestScheduler(t)
	require.Equal(t, SchedNormal, s.QueueClass(), "an empty queue reports normal")
	require.True(t, s.Post(SchedDroppable, func() {}))
	require.Equal(t, SchedDroppable, s.QueueClass())
}
