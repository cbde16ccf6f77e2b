package wshub

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

// Kind classifies a frame on the wire.
type Kind int

const (
	KindText Kind = iota
	KindBinary
	KindControl
)

func kindOf(messageType int) Kind {
	switch messageType {
	case websocket.TextMessage:
		return KindText
	case websocket.BinaryMessage:
		return KindBinary
	default:
		return KindControl
	}
}

// Msg is one inbound frame together with the identity that sent it.
type Msg struct {
	ConnectionID string
	Kind         Kind
	Data         []byte
}

// Request is the envelope clients send on text frames. ID is optional and
// opaque; it is echoed back verbatim so clients can correlate responses
// regardless of ordering.
type Request struct {
	ID    json.RawMessage `json:"id,omitempty"`
	Route string          `json:"route"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Response mirrors the request it answers. Error is null on success.
type Response struct {
	ID    json.RawMessage `json:"id"`
	Route string          `json:"route"`
	Event string          `json:"event"`
	Data  any             `json:"data"`
	Error *string         `json:"error"`
}
