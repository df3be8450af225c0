package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec frames envelopes on the wire. Every connection picks one codec when
// it connects; the relay transcodes between them so a payload reaches each
// receiver in that receiver's codec with the same content.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary websocket messages.
	Binary() bool
	Marshal(m *Message) ([]byte, error)
	Unmarshal(data []byte, m *Message) error
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName resolves the ?codec= query value of a connection. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	}
	return nil, fmt.Errorf("unsupported codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Marshal(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

func (jsonCodec) Unmarshal(data []byte, m *Message) error {
	return json.Unmarshal(data, m)
}

// packedMessage is the msgpack form of Message. The payload travels as a
// native msgpack value instead of embedded JSON text.
type packedMessage struct {
	Type    Category `msgpack:"type"`
	RoomID  string   `msgpack:"room_id,omitempty"`
	Payload any      `msgpack:"payload,omitempty"`
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Marshal(m *Message) ([]byte, error) {
	packed := packedMessage{Type: m.Type, RoomID: m.RoomID}
	if len(m.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(m.Payload))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("msgpack: payload: %w", err)
		}
		packed.Payload = normalizeNumbers(v)
	}
	return msgpack.Marshal(&packed)
}

func (msgpackCodec) Unmarshal(data []byte, m *Message) error {
	var packed packedMessage
	if err := msgpack.Unmarshal(data, &packed); err != nil {
		return err
	}
	m.Type = packed.Type
	m.RoomID = packed.RoomID
	m.Payload = nil
	if packed.Payload != nil {
		raw, err := json.Marshal(packed.Payload)
		if err != nil {
			return fmt.Errorf("msgpack: payload: %w", err)
		}
		m.Payload = raw
	}
	return nil
}

// normalizeNumbers turns json.Number leaves into msgpack-native numbers:
// int64 or uint64 when integral, float64 otherwise. Integers outside 64 bits
// and floats that overflow travel as bigNumber so their text survives.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u
		}
		if f, err := t.Float64(); err == nil && !isIntegerLiteral(t.String()) {
			return f
		}
		n := bigNumber(t)
		return &n
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	}
	return v
}

func isIntegerLiteral(s string) bool {
	return !strings.ContainsAny(s, ".eE")
}

// bigNumberExtID tags bigNumber values in msgpack frames.
const bigNumberExtID int8 = 1

// bigNumber carries the decimal text of a JSON number that no msgpack
// numeric type holds exactly. It is a msgpack extension on the wire and a
// plain JSON number again when transcoded back.
type bigNumber string

func init() {
	msgpack.RegisterExt(bigNumberExtID, (*bigNumber)(nil))
}

func (n *bigNumber) MarshalMsgpack() ([]byte, error) {
	return []byte(*n), nil
}

func (n *bigNumber) UnmarshalMsgpack(b []byte) error {
	*n = bigNumber(b)
	return nil
}

func (n bigNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(json.Number(n))
}
