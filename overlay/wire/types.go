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

package wire

import (
	"encoding/hex"
	"encoding/json"
)

// HashSize is the width of a transaction, quorum-set, or tx-set hash.
const HashSize = 32

// Hash identifies a transaction, SCP quorum set, or transaction set.
type Hash [HashSize]byte

// Marshal implements the manual codec pattern used throughout this
// package for fixed-size fields.
func (h Hash) Marshal() ([]byte, error) { return h[:], nil }

// MarshalTo copies the hash into data and reports the number of bytes written.
func (h *Hash) MarshalTo(data []byte) (int, error) {
	copy(data, (*h)[:])
	return HashSize, nil
}

// Unmarshal fills h from data, left-padding with zeros.
func (h *Hash) Unmarshal(data []byte) error {
	if len(data) > HashSize {
		return ErrFieldTooLarge
	}
	off := HashSize - len(data)
	copy((*h)[off:], data)
	return nil
}

// Size implements the manual codec pattern's Size method.
func (h *Hash) Size() int { return HashSize }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalJSON implements json.Marshaler for debug/log output.
func (h Hash) MarshalJSON() ([]byte, error) { return json.Marshal(h.String()) }

// SizeAxis is the width of one coordinate of an uncompressed public key.
const SizeAxis = 32

// PubKeyAxis is one coordinate (X or Y) of an ECDSA public key on the
// curve used for long-term node identity and ephemeral handshake keys.
type PubKeyAxis [SizeAxis]byte

// Marshal implements the manual codec pattern.
func (a PubKeyAxis) Marshal() ([]byte, error) { return a[:], nil }

// MarshalTo copies the axis into data.
func (a *PubKeyAxis) MarshalTo(data []byte) (int, error) {
	copy(data, (*a)[:])
	return SizeAxis, nil
}

// Unmarshal fills a from data, left-padding with zeros.
func (a *PubKeyAxis) Unmarshal(data []byte) error {
	if len(data) > SizeAxis {
		return ErrFieldTooLarge
	}
	off := SizeAxis - len(data)
	copy((*a)[off:], data)
	return nil
}

// Size implements the manual codec pattern's Size method.
func (a *PubKeyAxis) Size() int { return SizeAxis }

// NodeID is the wire form of a long-term or ephemeral public key: the two
// coordinates of a point on the identity curve.
type NodeID struct {
	X PubKeyAxis
	Y PubKeyAxis
}

func (n NodeID) String() string {
	return hex.EncodeToString(n.X[:]) + hex.EncodeToString(n.Y[:])
}

// Equal compares two node identities by value. Self-connect and
// duplicate-peer detection must never rely on pointer identity of a
// NodeID, which can alias after reallocation.
func (n NodeID) Equal(o NodeID) bool { return n.X == o.X && n.Y == o.Y }
