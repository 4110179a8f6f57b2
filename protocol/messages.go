// Package protocol defines the Origin/Shadow sync messages exchanged between
// Timeline instances over an asynchronous channel.
//
// A remote Shadow pairs with an Origin in two steps:
//
//	Shadow -> PAIRING_REQUEST{shadow_id}
//	Origin -> INIT{shadow_id, config snapshot}
//
// after which the Origin streams TICK messages and the Shadow acknowledges
// each one with DONE. Messages that fail Validate are dropped by both sides,
// since a channel may carry unrelated traffic.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMessage marks a message that is malformed or of an unknown type.
var ErrInvalidMessage = errors.New("protocol: invalid message")

// Type is the message discriminator.
type Type string

const (
	TypePairingRequest Type = "PAIRING_REQUEST"
	TypeInit           Type = "INIT"
	TypeTick           Type = "TICK"
	TypeDone           Type = "DONE"
)

// Message is the envelope sent over a channel.
type Message struct {
	Type     Type            `json:"type"`
	ShadowID string          `json:"shadow_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// TickPayload carries the Origin's clock mapping.
type TickPayload struct {
	CurrentTime   Float `json:"currentTime"`
	Duration      Float `json:"duration"`
	ReferenceTime Float `json:"referenceTime"`
}

// ConfigSnapshot is the transmissible part of a Timeline configuration.
// Callbacks never cross the channel.
type ConfigSnapshot struct {
	Duration       Float  `json:"duration" yaml:"duration"`
	Loop           bool   `json:"loop" yaml:"loop"`
	AutoRelease    bool   `json:"autoRelease" yaml:"autoRelease"`
	MaxStep        Float  `json:"maxStep" yaml:"maxStep"`
	MaxFPS         Float  `json:"maxFPS" yaml:"maxFPS"`
	RecordFPSDecay Float  `json:"recordFPSDecay" yaml:"recordFPSDecay"`
	OpenStats      bool   `json:"openStats" yaml:"openStats"`
	ErrorPolicy    string `json:"errorPolicy,omitempty" yaml:"errorPolicy,omitempty"`
}

// NewPairingRequest builds the handshake opener.
func NewPairingRequest(shadowID string) Message {
	return Message{Type: TypePairingRequest, ShadowID: shadowID}
}

// NewDone builds a tick acknowledgement.
func NewDone(shadowID string) Message {
	return Message{Type: TypeDone, ShadowID: shadowID}
}

// NewInit builds the handshake reply.
func NewInit(shadowID string, cfg ConfigSnapshot) (Message, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return Message{}, fmt.Errorf("encode init payload: %w", err)
	}
	return Message{Type: TypeInit, ShadowID: shadowID, Payload: payload}, nil
}

// NewTick builds a tick message.
func NewTick(shadowID string, p TickPayload) (Message, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return Message{}, fmt.Errorf("encode tick payload: %w", err)
	}
	return Message{Type: TypeTick, ShadowID: shadowID, Payload: payload}, nil
}

// DecodeTick extracts a TICK payload.
func (m Message) DecodeTick() (TickPayload, error) {
	var p TickPayload
	if m.Type != TypeTick {
		return p, fmt.Errorf("%w: want %s, got %s", ErrInvalidMessage, TypeTick, m.Type)
	}
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: tick payload: %v", ErrInvalidMessage, err)
	}
	return p, nil
}

// DecodeInit extracts an INIT payload.
func (m Message) DecodeInit() (ConfigSnapshot, error) {
	var c ConfigSnapshot
	if m.Type != TypeInit {
		return c, fmt.Errorf("%w: want %s, got %s", ErrInvalidMessage, TypeInit, m.Type)
	}
	if err := json.Unmarshal(m.Payload, &c); err != nil {
		return c, fmt.Errorf("%w: init payload: %v", ErrInvalidMessage, err)
	}
	return c, nil
}

// Validate checks the envelope: a known type, a shadow id, and a payload
// where the type requires one.
func Validate(m Message) error {
	if m.ShadowID == "" {
		return fmt.Errorf("%w: missing shadow_id", ErrInvalidMessage)
	}
	switch m.Type {
	case TypePairingRequest, TypeDone:
		return nil
	case TypeInit, TypeTick:
		if len(m.Payload) == 0 {
			return fmt.Errorf("%w: %s without payload", ErrInvalidMessage, m.Type)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
}

// Encode serializes a message for byte-oriented transports.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses and validates a message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := Validate(m); err != nil {
		return m, err
	}
	return m, nil
}
