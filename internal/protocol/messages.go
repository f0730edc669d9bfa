// Package protocol defines the WebSocket frames exchanged between the chat
// client and the server. Every frame is a JSON object with exactly one
// top-level key; the key names the variant and its value is the payload.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Discriminant keys. ChatMessage and TypingEvent travel in both directions.
const (
	TypeSystemMessage   = "SystemMessage"
	TypeChatMessage     = "ChatMessage"
	TypeUserCountChange = "UserCountChange"
	TypeTypingEvent     = "TypingEvent"
)

var (
	// ErrNoDiscriminant is returned for frames without a usable top-level key
	// ({} , null, or an empty key).
	ErrNoDiscriminant = errors.New("protocol: frame has no discriminant key")

	// ErrMultipleKeys is returned for frames carrying more than one top-level key.
	ErrMultipleKeys = errors.New("protocol: frame has more than one top-level key")

	// ErrUnknownType is returned when the discriminant names no known variant.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Message is implemented by every frame variant.
type Message interface {
	Type() string
}

// Inbound is a frame the server sends to the client.
type Inbound interface {
	Message
	isInbound()
}

// Outbound is a frame the client sends to the server.
type Outbound interface {
	Message
	isOutbound()
}

// ---------------------------------------------------------------------------
// Variants
// ---------------------------------------------------------------------------

// SystemMessage is a server announcement. Its payload is a bare string.
type SystemMessage struct {
	Text string
}

// ChatMessage is a line of chat. Time is the sender's locale-formatted wall
// clock, passed through untouched.
type ChatMessage struct {
	Username string `json:"username"`
	Time     string `json:"time"`
	Content  string `json:"content"`
}

// UserCountChange reports the number of connected users. Its payload is a
// bare integer.
type UserCountChange struct {
	Count int64
}

// TypingEvent signals that a user started or stopped typing.
type TypingEvent struct {
	Username   string `json:"username"`
	IsStarting bool   `json:"is_starting"`
}

func (SystemMessage) Type() string   { return TypeSystemMessage }
func (ChatMessage) Type() string     { return TypeChatMessage }
func (UserCountChange) Type() string { return TypeUserCountChange }
func (TypingEvent) Type() string     { return TypeTypingEvent }

func (SystemMessage) isInbound()   {}
func (ChatMessage) isInbound()     {}
func (UserCountChange) isInbound() {}
func (TypingEvent) isInbound()     {}

func (ChatMessage) isOutbound() {}
func (TypingEvent) isOutbound() {}

// MarshalJSON encodes the payload as a bare JSON string.
func (m SystemMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Text)
}

// UnmarshalJSON decodes a bare JSON string payload.
func (m *SystemMessage) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Text)
}

// MarshalJSON encodes the payload as a bare JSON number.
func (m UserCountChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Count)
}

// UnmarshalJSON decodes a bare JSON integer payload.
func (m *UserCountChange) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Count)
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// DecodeInbound parses one frame into its variant. Frames with zero keys,
// several keys, an unknown key, a null payload or a payload of the wrong
// shape return an error; callers are expected to drop such frames.
func DecodeInbound(data []byte) (Inbound, error) {
	key, raw, err := splitFrame(data)
	if err != nil {
		return nil, err
	}

	var (
		msg Inbound
		uerr error
	)

	switch key {
	case TypeSystemMessage:
		var m SystemMessage
		uerr = json.Unmarshal(raw, &m)
		msg = m
	case TypeChatMessage:
		var m ChatMessage
		uerr = json.Unmarshal(raw, &m)
		msg = m
	case TypeUserCountChange:
		var m UserCountChange
		uerr = json.Unmarshal(raw, &m)
		msg = m
	case TypeTypingEvent:
		var m TypingEvent
		uerr = json.Unmarshal(raw, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, key)
	}

	if uerr != nil {
		return nil, fmt.Errorf("protocol: failed to decode %q payload: %w", key, uerr)
	}
	return msg, nil
}

// Encode wraps msg under its discriminant key.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("protocol: cannot encode nil message")
	}
	out, err := json.Marshal(map[string]Message{msg.Type(): msg})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %s: %w", msg.Type(), err)
	}
	return out, nil
}

// splitFrame returns the single key of a frame and its raw payload.
func splitFrame(data []byte) (string, json.RawMessage, error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse frame: %w", err)
	}

	switch len(frame) {
	case 0:
		return "", nil, ErrNoDiscriminant
	case 1:
	default:
		return "", nil, fmt.Errorf("%w (%d keys)", ErrMultipleKeys, len(frame))
	}

	for key, raw := range frame {
		if key == "" {
			return "", nil, ErrNoDiscriminant
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return "", nil, fmt.Errorf("protocol: %q payload is null", key)
		}
		return key, raw, nil
	}
	return "", nil, ErrNoDiscriminant
}
