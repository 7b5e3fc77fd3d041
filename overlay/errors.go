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

import "errors"

// Handshake errors, each fatal for the connection.
var (
	ErrBadCert           = errors.New("overlay: bad authentication certificate")
	ErrBannedPeer        = errors.New("overlay: peer is banned")
	ErrWrongNetwork      = errors.New("overlay: network id mismatch")
	ErrVersionMismatch   = errors.New("overlay: overlay version ranges do not overlap")
	ErrSelfConnect       = errors.New("overlay: connecting to self")
	ErrDuplicatePeer     = errors.New("overlay: already connected to this peer")
	ErrOutOfOrderMessage = errors.New("overlay: mac sequence out of order")
	ErrMacMismatch       = errors.New("overlay: mac mismatch")
)

// Protocol and policy errors.
var (
	ErrNotAuthenticated            = errors.New("overlay: message sent before GOT_AUTH")
	ErrFloodWithoutCredit          = errors.New("overlay: unexpected flood message, peer at capacity")
	ErrMalformedSendMore           = errors.New("overlay: malformed SEND_MORE increment")
	ErrSendMoreExtendedUnsupported = errors.New("overlay: SEND_MORE_EXTENDED on a connection without byte flow control")
	ErrLoadRejected                = errors.New("overlay: connection rejected under load")
)

// Lifecycle and composition errors.
var (
	ErrListenerNotSpecified = errors.New("overlay: listener not specified")
	ErrPeerExists           = errors.New("overlay: peer already exists")
	ErrClosed               = errors.New("overlay: agent closed")
	ErrSessionClosing       = errors.New("overlay: session is closing")
	ErrInvalidState         = errors.New("overlay: operation invalid in current connection state")
)

// Config errors, one per required field.
var (
	ErrConfigPrivateKey     = errors.New("overlay: config missing PrivateKey")
	ErrConfigNetworkID      = errors.New("overlay: config missing NetworkID")
	ErrConfigOverlayVersion = errors.New("overlay: config has invalid overlay version range")
	ErrConfigConsensus      = errors.New("overlay: config missing Consensus collaborator")
)
