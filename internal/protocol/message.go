package protocol

import (
	"bytes"
	"encoding/json"
)

// Message is the envelope exchanged between clients and the relay over a
// single websocket. Payload stays opaque to the relay; only Type and the
// routing room key are ever inspected.
type Message struct {
	Type    Category        `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Room returns the routing key of the envelope.
//
// Payloads follow the socket.io shape the web client emits: join_room carries
// the bare room key as a JSON string, every other category carries an object
// with a roomId field. The top-level room_id is used when the payload names
// no room.
func (m *Message) Room() string {
	payload := bytes.TrimSpace(m.Payload)
	if len(payload) > 0 {
		switch payload[0] {
		case '"':
			var key string
			if err := json.Unmarshal(payload, &key); err == nil && key != "" {
				return key
			}
		case '{':
			var peek struct {
				RoomID string `json:"roomId"`
			}
			if err := json.Unmarshal(payload, &peek); err == nil && peek.RoomID != "" {
				return peek.RoomID
			}
		}
	}
	return m.RoomID
}

// WithType returns a shallow copy of m renamed to c. The payload bytes are
// shared, never rewritten.
func (m *Message) WithType(c Category) *Message {
	out := *m
	out.Type = c
	return &out
}
