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

import "fmt"

// MessageType discriminates the Message union carried by every Envelope.
type MessageType byte

// The full discriminated union of overlay messages.
const (
	ERROR_MSG MessageType = iota
	HELLO
	AUTH
	DONT_HAVE
	GET_PEERS
	PEERS
	GET_TX_SET
	TX_SET
	GENERALIZED_TX_SET
	TRANSACTION
	GET_SCP_QUORUMSET
	SCP_QUORUMSET
	SCP_MESSAGE
	GET_SCP_STATE
	SURVEY_REQUEST
	SURVEY_RESPONSE
	SEND_MORE
	SEND_MORE_EXTENDED
	FLOOD_ADVERT
	FLOOD_DEMAND
)

var typeNames = map[MessageType]string{
	ERROR_MSG:          "ERROR_MSG",
	HELLO:              "HELLO",
	AUTH:               "AUTH",
	DONT_HAVE:          "DONT_HAVE",
	GET_PEERS:          "GET_PEERS",
	PEERS:              "PEERS",
	GET_TX_SET:         "GET_TX_SET",
	TX_SET:             "TX_SET",
	GENERALIZED_TX_SET: "GENERALIZED_TX_SET",
	TRANSACTION:        "TRANSACTION",
	GET_SCP_QUORUMSET:  "GET_SCP_QUORUMSET",
	SCP_QUORUMSET:      "SCP_QUORUMSET",
	SCP_MESSAGE:        "SCP_MESSAGE",
	GET_SCP_STATE:      "GET_SCP_STATE",
	SURVEY_REQUEST:     "SURVEY_REQUEST",
	SURVEY_RESPONSE:    "SURVEY_RESPONSE",
	SEND_MORE:          "SEND_MORE",
	SEND_MORE_EXTENDED: "SEND_MORE_EXTENDED",
	FLOOD_ADVERT:       "FLOOD_ADVERT",
	FLOOD_DEMAND:       "FLOOD_DEMAND",
}

func (t MessageType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("MessageType(%d)", byte(t))
}

// Message is implemented by every variant of the union. Marshal/Unmarshal
// follow the manual codec convention of this package rather than
// reflection-driven protobuf, since no protoc toolchain generated these.
type Message interface {
	Type() MessageType
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// ErrorCode classifies an ErrorMessage for the receiving peer.
type ErrorCode uint32

const (
	ErrCodeMisc ErrorCode = iota
	ErrCodeData
	ErrCodeConf
	ErrCodeAuth
	ErrCodeLoad
)

// ErrorMessage is sent (unauthenticated, sequence 0) to report a
// connection-fatal condition before dropping.
type ErrorMessage struct {
	Code ErrorCode
	Msg  string
}

func (m *ErrorMessage) Type() MessageType { return ERROR_MSG }
func (m *ErrorMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(uint32(m.Code))
	e.writeString(m.Msg)
	return e.buf, nil
}
func (m *ErrorMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	code, err := d.readUint32()
	if err != nil {
		return err
	}
	m.Code = ErrorCode(code)
	if m.Msg, err = d.readString(); err != nil {
		return err
	}
	return nil
}

// SanitizedMsg returns Msg with every character outside [a-zA-Z0-9 ._:-]
// replaced, so a hostile peer's error string is safe to log verbatim.
func (m *ErrorMessage) SanitizedMsg() string {
	out := []byte(m.Msg)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == ' ', c == '.', c == '_', c == ':', c == '-':
		default:
			out[i] = '*'
		}
	}
	return string(out)
}

// AuthCert binds an ephemeral public key to a long-term identity: the
// long-term key signs (ephemeral key || expiration).
type AuthCert struct {
	Ephemeral  NodeID
	Expiration uint64
	SigR       []byte
	SigS       []byte
}

func (c *AuthCert) marshalInto(e *encoder) {
	e.writeFixed(c.Ephemeral.X[:])
	e.writeFixed(c.Ephemeral.Y[:])
	e.writeUint64(c.Expiration)
	e.writeBytes(c.SigR)
	e.writeBytes(c.SigS)
}

func (c *AuthCert) unmarshalFrom(d *decoder) error {
	x, err := d.readFixed(SizeAxis)
	if err != nil {
		return err
	}
	y, err := d.readFixed(SizeAxis)
	if err != nil {
		return err
	}
	copy(c.Ephemeral.X[:], x)
	copy(c.Ephemeral.Y[:], y)
	if c.Expiration, err = d.readUint64(); err != nil {
		return err
	}
	if c.SigR, err = d.readBytes(); err != nil {
		return err
	}
	if c.SigS, err = d.readBytes(); err != nil {
		return err
	}
	return nil
}

// HelloMessage is the first message of the handshake. It is sent
// unauthenticated, sequence 0, no MAC.
type HelloMessage struct {
	LedgerVersion     uint32
	OverlayMinVersion uint32
	OverlayVersion    uint32
	VersionStr        string
	NetworkID         Hash
	ListeningPort     uint32
	PeerID            NodeID
	Cert              AuthCert
	Nonce             Hash
}

func (m *HelloMessage) Type() MessageType { return HELLO }
func (m *HelloMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(m.LedgerVersion)
	e.writeUint32(m.OverlayMinVersion)
	e.writeUint32(m.OverlayVersion)
	e.writeString(m.VersionStr)
	e.writeFixed(m.NetworkID[:])
	e.writeUint32(m.ListeningPort)
	e.writeFixed(m.PeerID.X[:])
	e.writeFixed(m.PeerID.Y[:])
	m.Cert.marshalInto(e)
	e.writeFixed(m.Nonce[:])
	return e.buf, nil
}
func (m *HelloMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.LedgerVersion, err = d.readUint32(); err != nil {
		return err
	}
	if m.OverlayMinVersion, err = d.readUint32(); err != nil {
		return err
	}
	if m.OverlayVersion, err = d.readUint32(); err != nil {
		return err
	}
	if m.VersionStr, err = d.readString(); err != nil {
		return err
	}
	nid, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.NetworkID[:], nid)
	if m.ListeningPort, err = d.readUint32(); err != nil {
		return err
	}
	x, err := d.readFixed(SizeAxis)
	if err != nil {
		return err
	}
	y, err := d.readFixed(SizeAxis)
	if err != nil {
		return err
	}
	copy(m.PeerID.X[:], x)
	copy(m.PeerID.Y[:], y)
	if err = m.Cert.unmarshalFrom(d); err != nil {
		return err
	}
	nonce, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.Nonce[:], nonce)
	return nil
}

// AuthFlag bits advertised in AuthMessage.Flags.
type AuthFlag uint32

// AuthFlagFlowControlBytes advertises support for byte-axis flow control.
const AuthFlagFlowControlBytes AuthFlag = 1 << 0

// AuthMessage completes the handshake.
type AuthMessage struct {
	Flags AuthFlag
}

func (m *AuthMessage) Type() MessageType { return AUTH }
func (m *AuthMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(uint32(m.Flags))
	return e.buf, nil
}
func (m *AuthMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	v, err := d.readUint32()
	if err != nil {
		return err
	}
	m.Flags = AuthFlag(v)
	return nil
}

// DontHaveMessage answers a fetch request the responder cannot satisfy.
type DontHaveMessage struct {
	Type_ MessageType
	Hash  Hash
}

func (m *DontHaveMessage) Type() MessageType { return DONT_HAVE }
func (m *DontHaveMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.buf = append(e.buf, byte(m.Type_))
	e.writeFixed(m.Hash[:])
	return e.buf, nil
}
func (m *DontHaveMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	if len(d.buf)-d.off < 1 {
		return ErrTruncated
	}
	m.Type_ = MessageType(d.buf[d.off])
	d.off++
	h, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.Hash[:], h)
	return nil
}

// GetPeersMessage requests a sample of known peer addresses.
type GetPeersMessage struct{}

func (m *GetPeersMessage) Type() MessageType        { return GET_PEERS }
func (m *GetPeersMessage) Marshal() ([]byte, error) { return nil, nil }
func (m *GetPeersMessage) Unmarshal(b []byte) error { return nil }

// PeerAddress is one entry of a PeersMessage.
type PeerAddress struct {
	IP          string
	Port        uint32
	NumFailures uint32
}

// PeersMessage answers a GetPeersMessage.
type PeersMessage struct {
	Peers []PeerAddress
}

func (m *PeersMessage) Type() MessageType { return PEERS }
func (m *PeersMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(uint32(len(m.Peers)))
	for _, p := range m.Peers {
		e.writeString(p.IP)
		e.writeUint32(p.Port)
		e.writeUint32(p.NumFailures)
	}
	return e.buf, nil
}
func (m *PeersMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	if n > maxFieldLength {
		return ErrFieldTooLarge
	}
	m.Peers = make([]PeerAddress, 0, n)
	for i := uint32(0); i < n; i++ {
		var p PeerAddress
		if p.IP, err = d.readString(); err != nil {
			return err
		}
		if p.Port, err = d.readUint32(); err != nil {
			return err
		}
		if p.NumFailures, err = d.readUint32(); err != nil {
			return err
		}
		m.Peers = append(m.Peers, p)
	}
	return nil
}

// GetTxSetMessage requests the transaction set for Hash.
type GetTxSetMessage struct{ Hash Hash }

func (m *GetTxSetMessage) Type() MessageType { return GET_TX_SET }
func (m *GetTxSetMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeFixed(m.Hash[:])
	return e.buf, nil
}
func (m *GetTxSetMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	h, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.Hash[:], h)
	return nil
}

// TxSetMessage carries a full transaction set in response to GetTxSetMessage.
type TxSetMessage struct {
	Hash Hash
	Txs  [][]byte
}

func (m *TxSetMessage) Type() MessageType { return TX_SET }
func (m *TxSetMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeFixed(m.Hash[:])
	e.writeUint32(uint32(len(m.Txs)))
	for _, tx := range m.Txs {
		e.writeBytes(tx)
	}
	return e.buf, nil
}
func (m *TxSetMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	h, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.Hash[:], h)
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	if n > maxFieldLength {
		return ErrFieldTooLarge
	}
	m.Txs = make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		tx, err := d.readBytes()
		if err != nil {
			return err
		}
		m.Txs = append(m.Txs, tx)
	}
	return nil
}

// GeneralizedTxSetMessage carries the newer, opaquely-encoded tx set
// format. The router and session deliberately treat TX_SET and
// GENERALIZED_TX_SET identically.
type GeneralizedTxSetMessage struct {
	Hash Hash
	Data []byte
}

func (m *GeneralizedTxSetMessage) Type() MessageType { return GENERALIZED_TX_SET }
func (m *GeneralizedTxSetMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeFixed(m.Hash[:])
	e.writeBytes(m.Data)
	return e.buf, nil
}
func (m *GeneralizedTxSetMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	h, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.Hash[:], h)
	if m.Data, err = d.readBytes(); err != nil {
		return err
	}
	return nil
}

// TransactionMessage carries one flood-class transaction envelope. The
// body is opaque to the overlay; only the Consensus Engine interprets it.
type TransactionMessage struct {
	EnvelopeXDR []byte
}

func (m *TransactionMessage) Type() MessageType { return TRANSACTION }
func (m *TransactionMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeBytes(m.EnvelopeXDR)
	return e.buf, nil
}
func (m *TransactionMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.EnvelopeXDR, err = d.readBytes(); err != nil {
		return err
	}
	return nil
}

// GetSCPQuorumSetMessage requests a quorum set by hash. Also used as the
// vehicle for synthetic liveness pings.
type GetSCPQuorumSetMessage struct{ Hash Hash }

func (m *GetSCPQuorumSetMessage) Type() MessageType { return GET_SCP_QUORUMSET }
func (m *GetSCPQuorumSetMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeFixed(m.Hash[:])
	return e.buf, nil
}
func (m *GetSCPQuorumSetMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	h, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.Hash[:], h)
	return nil
}

// SCPQuorumSetMessage answers GetSCPQuorumSetMessage.
type SCPQuorumSetMessage struct {
	Hash Hash
	Data []byte
}

func (m *SCPQuorumSetMessage) Type() MessageType { return SCP_QUORUMSET }
func (m *SCPQuorumSetMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeFixed(m.Hash[:])
	e.writeBytes(m.Data)
	return e.buf, nil
}
func (m *SCPQuorumSetMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	h, err := d.readFixed(HashSize)
	if err != nil {
		return err
	}
	copy(m.Hash[:], h)
	var err2 error
	if m.Data, err2 = d.readBytes(); err2 != nil {
		return err2
	}
	return nil
}

// SCPMessage carries one consensus envelope, opaque to the overlay.
type SCPMessage struct {
	Data []byte
}

func (m *SCPMessage) Type() MessageType { return SCP_MESSAGE }
func (m *SCPMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeBytes(m.Data)
	return e.buf, nil
}
func (m *SCPMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.Data, err = d.readBytes(); err != nil {
		return err
	}
	return nil
}

// GetSCPStateMessage asks the peer to re-send its SCP state for LedgerSeq.
type GetSCPStateMessage struct {
	LedgerSeq uint64
}

func (m *GetSCPStateMessage) Type() MessageType { return GET_SCP_STATE }
func (m *GetSCPStateMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint64(m.LedgerSeq)
	return e.buf, nil
}
func (m *GetSCPStateMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.LedgerSeq, err = d.readUint64(); err != nil {
		return err
	}
	return nil
}

// SurveyRequestMessage/SurveyResponseMessage are opaque payloads relayed
// or processed by the survey manager collaborator.
type SurveyRequestMessage struct{ Data []byte }

func (m *SurveyRequestMessage) Type() MessageType { return SURVEY_REQUEST }
func (m *SurveyRequestMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeBytes(m.Data)
	return e.buf, nil
}
func (m *SurveyRequestMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.Data, err = d.readBytes(); err != nil {
		return err
	}
	return nil
}

type SurveyResponseMessage struct{ Data []byte }

func (m *SurveyResponseMessage) Type() MessageType { return SURVEY_RESPONSE }
func (m *SurveyResponseMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeBytes(m.Data)
	return e.buf, nil
}
func (m *SurveyResponseMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.Data, err = d.readBytes(); err != nil {
		return err
	}
	return nil
}

// SendMoreMessage grants additional message-axis credit.
type SendMoreMessage struct {
	NumMessages uint32
}

func (m *SendMoreMessage) Type() MessageType { return SEND_MORE }
func (m *SendMoreMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(m.NumMessages)
	return e.buf, nil
}
func (m *SendMoreMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.NumMessages, err = d.readUint32(); err != nil {
		return err
	}
	return nil
}

// SendMoreExtendedMessage additionally grants byte-axis credit, valid
// only once both sides have negotiated the byte-flow-control capability.
type SendMoreExtendedMessage struct {
	NumMessages uint32
	NumBytes    uint64
}

func (m *SendMoreExtendedMessage) Type() MessageType { return SEND_MORE_EXTENDED }
func (m *SendMoreExtendedMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(m.NumMessages)
	e.writeUint64(m.NumBytes)
	return e.buf, nil
}
func (m *SendMoreExtendedMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	var err error
	if m.NumMessages, err = d.readUint32(); err != nil {
		return err
	}
	if m.NumBytes, err = d.readUint64(); err != nil {
		return err
	}
	return nil
}

// FloodAdvertMessage announces a batch of transaction hashes the sender
// has available for demand.
type FloodAdvertMessage struct {
	Hashes []Hash
}

func (m *FloodAdvertMessage) Type() MessageType { return FLOOD_ADVERT }
func (m *FloodAdvertMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(uint32(len(m.Hashes)))
	for _, h := range m.Hashes {
		e.writeFixed(h[:])
	}
	return e.buf, nil
}
func (m *FloodAdvertMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	if n > maxFieldLength/HashSize {
		return ErrFieldTooLarge
	}
	m.Hashes = make([]Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		raw, err := d.readFixed(HashSize)
		if err != nil {
			return err
		}
		var h Hash
		copy(h[:], raw)
		m.Hashes = append(m.Hashes, h)
	}
	return nil
}

// FloodDemandMessage asks the peer to deliver the bodies for Hashes.
type FloodDemandMessage struct {
	Hashes []Hash
}

func (m *FloodDemandMessage) Type() MessageType { return FLOOD_DEMAND }
func (m *FloodDemandMessage) Marshal() ([]byte, error) {
	e := &encoder{}
	e.writeUint32(uint32(len(m.Hashes)))
	for _, h := range m.Hashes {
		e.writeFixed(h[:])
	}
	return e.buf, nil
}
func (m *FloodDemandMessage) Unmarshal(b []byte) error {
	d := newDecoder(b)
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	if n > maxFieldLength/HashSize {
		return ErrFieldTooLarge
	}
	m.Hashes = make([]Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		raw, err := d.readFixed(HashSize)
		if err != nil {
			return err
		}
		var h Hash
		copy(h[:], raw)
		m.Hashes = append(m.Hashes, h)
	}
	return nil
}

// NewMessage allocates the zero value for a MessageType so
// Envelope.DecodeBody can unmarshal into it.
func NewMessage(t MessageType) (Message, error) {
	switch t {
	case ERROR_MSG:
		return &ErrorMessage{}, nil
	case HELLO:
		return &HelloMessage{}, nil
	case AUTH:
		return &AuthMessage{}, nil
	case DONT_HAVE:
		return &DontHaveMessage{}, nil
	case GET_PEERS:
		return &GetPeersMessage{}, nil
	case PEERS:
		return &PeersMessage{}, nil
	case GET_TX_SET:
		return &GetTxSetMessage{}, nil
	case TX_SET:
		return &TxSetMessage{}, nil
	case GENERALIZED_TX_SET:
		return &GeneralizedTxSetMessage{}, nil
	case TRANSACTION:
		return &TransactionMessage{}, nil
	case GET_SCP_QUORUMSET:
		return &GetSCPQuorumSetMessage{}, nil
	case SCP_QUORUMSET:
		return &SCPQuorumSetMessage{}, nil
	case SCP_MESSAGE:
		return &SCPMessage{}, nil
	case GET_SCP_STATE:
		return &GetSCPStateMessage{}, nil
	case SURVEY_REQUEST:
		return &SurveyRequestMessage{}, nil
	case SURVEY_RESPONSE:
		return &SurveyResponseMessage{}, nil
	case SEND_MORE:
		return &SendMoreMessage{}, nil
	case SEND_MORE_EXTENDED:
		return &SendMoreExtendedMessage{}, nil
	case FLOOD_ADVERT:
		return &FloodAdvertMessage{}, nil
	case FLOOD_DEMAND:
		return &FloodDemandMessage{}, nil
	default:
		return nil, fmt.Errorf("wire: unknown message type %v", t)
	}
}
