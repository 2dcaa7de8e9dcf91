// Package ipc provides communication between the cornerknockd daemon and
// local clients over a unix socket.
//
// Messages are a fixed 16-byte binary header followed by a JSON payload.
// Requests carry an id the matching response echoes, so a client can
// interleave requests with streamed match events on one connection.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x434B4950 // "CKIP"
)

// MaxPayload bounds a single message. Audit exports are the largest payload
// and stay far below this.
const MaxPayload = 8 * 1024 * 1024

// MessageType identifies the kind of IPC message.
type MessageType uint16

const (
	// Control (0x00xx)
	MsgPing  MessageType = 0x0001
	MsgPong  MessageType = 0x0002
	MsgError MessageType = 0x0003

	// Recognizer (0x01xx)
	MsgStatus       MessageType = 0x0100
	MsgStatusResp   MessageType = 0x0101
	MsgEnable       MessageType = 0x0102
	MsgEnableResp   MessageType = 0x0103
	MsgInject       MessageType = 0x0104
	MsgInjectResp   MessageType = 0x0105
	MsgReloadConfig MessageType = 0x0106
	MsgReloadResp   MessageType = 0x0107

	// Audit (0x02xx)
	MsgExport     MessageType = 0x0200
	MsgExportResp MessageType = 0x0201
	MsgVerify     MessageType = 0x0202
	MsgVerifyResp MessageType = 0x0203

	// Events (0x03xx)
	MsgSubscribe     MessageType = 0x0300
	MsgSubscribeResp MessageType = 0x0301
	MsgMatchEvent    MessageType = 0x0302
)

// Error codes carried in ErrorResponse.
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrInternalError  = 3
	ErrUnavailable    = 4
)

// HeaderSize is the fixed header length in bytes.
const HeaderSize = 16

// Header precedes every message on the wire.
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32
	Length    uint32
}

// Message is a parsed header plus payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage builds a message of the given type.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write serializes the header.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader parses a header, rejecting foreign or future-version traffic.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}
	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return h, nil
}

// Write serializes the full message.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads one complete message.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > MaxPayload {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ErrorResponse is the payload of MsgError.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusResponse describes the daemon's current state.
type StatusResponse struct {
	Version       string    `json:"version"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Enabled       bool      `json:"enabled"`
	Armed         bool      `json:"armed"`
	Candidate     string    `json:"candidate"`
	Sequences     int       `json:"sequences"`
	MatchCount    int64     `json:"match_count"`
	StoreEnabled  bool      `json:"store_enabled"`
	Subscribers   int       `json:"subscribers"`
}

// EnableRequest toggles the recognizer.
type EnableRequest struct {
	Enabled bool `json:"enabled"`
}

// EnableResponse echoes the resulting state.
type EnableResponse struct {
	Enabled bool `json:"enabled"`
}

// InjectRequest feeds one synthetic pointer event into the recognizer. Kind
// is one of "down", "move", "up", "cancel".
type InjectRequest struct {
	Kind string `json:"kind"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// InjectResponse reports whether the event was consumed and the candidate
// afterwards.
type InjectResponse struct {
	Consumed  bool   `json:"consumed"`
	Candidate string `json:"candidate"`
}

// ReloadResponse acknowledges a config reload.
type ReloadResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExportResponse carries a serialized audit report.
type ExportResponse struct {
	Report json.RawMessage `json:"report"`
}

// VerifyResponse carries the audit chain verdict.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Records int64  `json:"records"`
	Error   string `json:"error,omitempty"`
}

// SubscribeResponse acknowledges a subscription.
type SubscribeResponse struct {
	Success bool `json:"success"`
}

// MatchEvent is streamed to subscribers once per completed sequence.
type MatchEvent struct {
	Sequence  string    `json:"sequence"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode marshals a payload.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a payload.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage builds a MsgError response.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{Code: code, Message: message})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse builds a response message with a JSON payload.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
