// Package protocol defines the JSON frames exchanged over the messaging
// gateway's persistent channel.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client to server.
	TypeText      MessageType = "text"
	TypeToggleTTS MessageType = "toggle_tts"
	TypePing      MessageType = "ping"

	// Server to client.
	TypeSystem   MessageType = "system"
	TypeResponse MessageType = "response"
	TypePong     MessageType = "pong"
)

// EventVoiceMode names the broadcast fanned out on voice-mode transitions.
const EventVoiceMode = "voice_mode"

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientText struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type ClientToggleTTS struct {
	Type    MessageType `json:"type"`
	Enabled bool        `json:"enabled"`
}

type ClientPing struct {
	Type MessageType `json:"type"`
}

type System struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	SessionID string      `json:"session_id"`
	VoiceMode bool        `json:"voice_mode"`
	Language  string      `json:"language"`
}

type Response struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Language  string      `json:"language"`
	Speak     bool        `json:"speak"`
	Timestamp time.Time   `json:"timestamp"`
}

type Pong struct {
	Type MessageType `json:"type"`
}

type VoiceModeEvent struct {
	Event   string `json:"event"`
	Enabled bool   `json:"enabled"`
}

func NewVoiceModeEvent(enabled bool) VoiceModeEvent {
	return VoiceModeEvent{Event: EventVoiceMode, Enabled: enabled}
}

// ParseClientMessage decodes one inbound frame into its typed variant.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeText:
		var msg ClientText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeToggleTTS:
		var msg ClientToggleTTS
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePing:
		return ClientPing{Type: TypePing}, nil
	default:
		if strings.TrimSpace(string(env.Type)) == "" {
			return nil, fmt.Errorf("%w: missing type", ErrUnsupportedType)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}
