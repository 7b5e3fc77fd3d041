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

package wire

import "fmt"

// MacSize is the width of the per-message HMAC.
const MacSize = 32

// Envelope is the authenticated frame wrapping every overlay message: a
// sequence counter, a typed body, and a MAC over (sequence || encoded
// body). HELLO and ERROR_MSG travel with Sequence 0 and a zeroed Mac and
// are not authenticated.
//
// Envelope hand-implements the gogo/protobuf Marshaler/Unmarshaler
// interfaces so it can be passed directly to proto.Marshal/proto.Unmarshal
// by callers that also deal in generated protobuf messages.
type Envelope struct {
	Sequence uint64
	Type     MessageType
	Body     []byte
	Mac      [MacSize]byte
}

// Reset implements proto.Message.
func (e *Envelope) Reset() { *e = Envelope{} }

// String implements proto.Message.
func (e *Envelope) String() string {
	return fmt.Sprintf("Envelope{seq=%d type=%s len=%d}", e.Sequence, e.Type, len(e.Body))
}

// ProtoMessage implements proto.Message.
func (e *Envelope) ProtoMessage() {}

// Marshal implements the gogo/protobuf Marshaler fast path.
func (e *Envelope) Marshal() ([]byte, error) {
	enc := &encoder{}
	enc.writeUint64(e.Sequence)
	enc.buf = append(enc.buf, byte(e.Type))
	enc.writeBytes(e.Body)
	enc.writeFixed(e.Mac[:])
	return enc.buf, nil
}

// Unmarshal implements the gogo/protobuf Unmarshaler fast path.
func (e *Envelope) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if e.Sequence, err = d.readUint64(); err != nil {
		return err
	}
	if len(d.buf)-d.off < 1 {
		return ErrTruncated
	}
	e.Type = MessageType(d.buf[d.off])
	d.off++
	if e.Body, err = d.readBytes(); err != nil {
		return err
	}
	mac, err := d.readFixed(MacSize)
	if err != nil {
		return err
	}
	copy(e.Mac[:], mac)
	return nil
}

// Size implements the gogo/protobuf size-cache fast path.
func (e *Envelope) Size() int {
	b, _ := e.Marshal()
	return len(b)
}

// Authenticated reports whether this envelope type carries a MAC; HELLO
// and ERROR_MSG do not.
func (t MessageType) Authenticated() bool {
	return t != HELLO && t != ERROR_MSG
}

// DecodeBody allocates the zero value for e.Type and unmarshals e.Body
// into it.
func (e *Envelope) DecodeBody() (Message, error) {
	m, err := NewMessage(e.Type)
	if err != nil {
		return nil, err
	}
	if err := m.Unmarshal(e.Body); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeEnvelope builds an Envelope body from msg without sequence/MAC,
// which the Authenticator fills in.
func EncodeEnvelope(msg Message) (*Envelope, error) {
	body, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: msg.Type(), Body: body}, nil
}
