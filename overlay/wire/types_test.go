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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeIDEqualByValue(t *testing.T) {
	a := NodeID{X: PubKeyAxis{1, 2, 3}, Y: PubKeyAxis{4, 5, 6}}
	b := NodeID{X: PubKeyAxis{1, 2, 3}, Y: PubKeyAxis{4, 5, 6}}
	require.True(t, a.Equal(b), "identical coordinates must compare equal regardless of distinct backing storage")
	require.NotSame(t, &a, &b)
}

func TestNodeIDNotEqualOnDifferentCoordinates(t *testing.T) {
	a := NodeID{X: PubKeyAxis{1}, Y: PubKeyAxis{2}}
	b := NodeID{X: PubKeyAxis{1}, Y: PubKeyAxis{3}}
	require.False(t, a.Equal(b))
}

func TestPubKeyAxisUnmarshalLeftPads(t *testing.T) {
	var a PubKeyAxis
	require.NoError(t, a.Unmarshal([]byte{0xff}))
	require.Equal(t, byte(0xff), a[SizeAxis-1])
	for i := 0; i < SizeAxis-1; i++ {
		require.Equal(t, byte(0), a[i])
	}
}

func TestPubKeyAxisUnmarshalRejectsOversize(t *testing.T) {
	var a PubKeyAxis
	oversized := make([]byte, SizeAxis+1)
	require.ErrorIs(t, a.Unmarshal(oversized), ErrFieldTooLarge)
}

func TestHashStringIsHex(t *testing.T) {
	var h Hash
	h[0] = 0xab
	require.Equal(t, "ab", h.String()[:2])
}
