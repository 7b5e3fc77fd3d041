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

// Package metrics wires overlay observability into an in-process
// go-metrics registry. There is no exporter here — pulling the registry
// out to Prometheus/StatsD is left to whatever binary embeds this module.
package metrics

import (
	"fmt"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/hcnet/hcnet-core/overlay/wire"
)

// Registry is the shared go-metrics registry every overlay session
// reports into.
var Registry = gometrics.NewRegistry()

// MessagesRead returns the overlay.messages.read.<type> counter for t,
// creating it on first use.
func MessagesRead(t wire.MessageType) gometrics.Counter {
	return gometrics.GetOrRegisterCounter(fmt.Sprintf("overlay.messages.read.%s", t), Registry)
}

// MessagesWritten returns the overlay.messages.written.<type> counter for t.
func MessagesWritten(t wire.MessageType) gometrics.Counter {
	return gometrics.GetOrRegisterCounter(fmt.Sprintf("overlay.messages.written.%s", t), Registry)
}

// BytesRead is the running total of bytes read across every connection.
func BytesRead() gometrics.Counter {
	return gometrics.GetOrRegisterCounter("overlay.bytes.read", Registry)
}

// BytesWritten is the running total of bytes written across every connection.
func BytesWritten() gometrics.Counter {
	return gometrics.GetOrRegisterCounter("overlay.bytes.written", Registry)
}

// FlowDelay times how long an outbound flood message waited for credit
// before being released.
func FlowDelay() gometrics.Timer {
	return gometrics.GetOrRegisterTimer("overlay.flow.delay", Registry)
}

// FloodFulfilled counts FLOOD_DEMAND requests this node could satisfy.
func FloodFulfilled() gometrics.Meter {
	return gometrics.GetOrRegisterMeter("overlay.flood.fulfilled", Registry)
}

// FloodUnfulfilledUnknown counts demands for a hash this node has never seen.
func FloodUnfulfilledUnknown() gometrics.Meter {
	return gometrics.GetOrRegisterMeter("overlay.flood.unfulfilled.unknown", Registry)
}

// FloodUnfulfilledBanned counts demands for a hash the Consensus Engine
// has banned.
func FloodUnfulfilledBanned() gometrics.Meter {
	return gometrics.GetOrRegisterMeter("overlay.flood.unfulfilled.banned", Registry)
}

// ConnectionLatency times liveness-ping round-trips; the handshake is not
// timed.
func ConnectionLatency() gometrics.Timer {
	return gometrics.GetOrRegisterTimer("overlay.connection.latency", Registry)
}

// Drop returns the overlay.drop.<reason> counter for reason, creating it
// on first use. reason is a string rather than overlay.DropReason to
// avoid this package importing the overlay package (which, via
// overlay/session.go, would import metrics back for instrumentation).
func Drop(reason string) gometrics.Counter {
	return gometrics.GetOrRegisterCounter(fmt.Sprintf("overlay.drop.%s", reason), Registry)
}
