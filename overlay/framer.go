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
	"encoding/binary"
	"io"

	"github.com/gogo/protobuf/proto"

	"github.com/hcnet/hcnet-core/overlay/wire"
)

const (
	// frameLengthPrefix is the width of the big-endian length prefix.
	frameLengthPrefix = 4

	// MaxFrameSize bounds a single encoded Envelope; a frame of exactly
	// this size is accepted, one byte more is fatal.
	MaxFrameSize = 16 * 1024 * 1024
)

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = wire.ErrFieldTooLarge

// readFrame reads one length-prefixed frame from r. It serves the
// blocking handshake path; once a connection is handed to the scheduler,
// the gaio event loop performs the same two-phase read.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [frameLengthPrefix]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// writeFrame writes one length-prefixed frame to w.
func writeFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var lenBuf [frameLengthPrefix]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// encodeFrame serializes env to its length-prefixed wire form in one
// buffer, the shape the gaio-driven scheduler writes in a single
// submission. It goes through proto.Marshal, which dispatches to
// Envelope's hand-written Marshaler fast path.
func encodeFrame(env *wire.Envelope) ([]byte, error) {
	body, err := proto.Marshal(env)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, frameLengthPrefix+len(body))
	binary.BigEndian.PutUint32(out[:frameLengthPrefix], uint32(len(body)))
	copy(out[frameLengthPrefix:], body)
	return out, nil
}

// decodeFrame parses a length-prefixed frame's body into an Envelope via
// proto.Unmarshal (see encodeFrame).
func decodeFrame(body []byte) (*wire.Envelope, error) {
	env := &wire.Envelope{}
	if err := proto.Unmarshal(body, env); err != nil {
		return nil, err
	}
	return env, nil
}
