package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestRoomFromPayload(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"bare string", Message{Type: CategoryJoinRoom, Payload: json.RawMessage(`"alice-bob"`)}, "alice-bob"},
		{"object roomId", Message{Type: CategorySendMessage, Payload: json.RawMessage(`{"roomId":"alice-bob","text":"hi"}`)}, "alice-bob"},
		{"top level fallback", Message{Type: CategoryStreamStarted, RoomID: "solo", Payload: json.RawMessage(`{}`)}, "solo"},
		{"payload wins", Message{Type: CategoryTyping, RoomID: "other", Payload: json.RawMessage(`{"roomId":"alice-bob"}`)}, "alice-bob"},
		{"no room", Message{Type: CategoryTyping, Payload: json.RawMessage(`{"isTyping":true}`)}, ""},
		{"garbage", Message{Type: CategoryTyping, Payload: json.RawMessage(`{not json`)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Room())
		})
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		in      Category
		payload string
		want    Category
		ok      bool
	}{
		{CategorySendMessage, `{}`, CategoryReceiveMessage, true},
		{CategoryTyping, `{"isTyping":true}`, CategoryPartnerTyping, true},
		{CategoryTyping, `{"isTyping":false}`, CategoryPartnerStopTyping, true},
		{CategoryGameAction, `{}`, CategoryGameMove, true},
		{CategoryVibeUpdate, `{}`, CategoryPartnerVibeChange, true},
		{CategoryWebRTCOffer, `{}`, CategoryWebRTCOffer, true},
		{CategoryWebRTCAnswer, `{}`, CategoryWebRTCAnswer, true},
		{CategoryWebRTCICECandidate, `{}`, CategoryWebRTCICECandidate, true},
		{CategoryStreamStarted, `{}`, CategoryStreamStarted, true},
		{CategoryStreamStopped, `{}`, CategoryStreamStopped, true},
		{CategoryJoinRoom, `"r"`, "", false},
		{CategoryPing, ``, "", false},
		{Category("receive_message"), `{}`, "", false},
		{Category("bogus"), `{}`, "", false},
	}
	for _, tt := range tests {
		got, ok := Route(tt.in, json.RawMessage(tt.payload))
		assert.Equal(t, tt.ok, ok, "category %s", tt.in)
		assert.Equal(t, tt.want, got, "category %s", tt.in)
	}
}

func TestEncodeDecodeVariants(t *testing.T) {
	yes := true
	events := []Event{
		JoinRoom{RoomID: "alice-bob"},
		ChatMessage{RoomID: "alice-bob", SenderID: "alice", SenderName: "Alice", Text: "hi", Timestamp: time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC), ID: "m1"},
		Typing{RoomID: "alice-bob", IsTyping: true},
		GameAction{RoomID: "alice-bob", GameType: "tictactoe", Action: "move", Board: []string{"X", "", "", "", "", "", "", "", ""}, IsXNext: &yes},
		WebRTCOffer{RoomID: "alice-bob", Offer: SessionDescription{Type: "offer", SDP: "v=0"}},
		StreamStopped{RoomID: "alice-bob"},
	}
	for _, ev := range events {
		msg, err := Encode(ev)
		require.NoError(t, err)
		assert.Equal(t, ev.Category(), msg.Type)
		assert.Equal(t, "alice-bob", msg.Room())

		got, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestDecodeRelayedNames(t *testing.T) {
	ev, err := Decode(&Message{Type: CategoryReceiveMessage, Payload: json.RawMessage(`{"roomId":"r","text":"hi"}`)})
	require.NoError(t, err)
	assert.Equal(t, "hi", ev.(ChatMessage).Text)

	ev, err = Decode(&Message{Type: CategoryPartnerStopTyping, Payload: json.RawMessage(`{"roomId":"r","isTyping":true}`)})
	require.NoError(t, err)
	assert.False(t, ev.(Typing).IsTyping)

	ev, err = Decode(&Message{Type: CategoryPartnerVibeChange, Payload: json.RawMessage(`{"roomId":"r","type":"mood","value":"cozy"}`)})
	require.NoError(t, err)
	assert.Equal(t, VibeMood, ev.(VibeUpdate).Type)

	_, err = Decode(&Message{Type: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestMsgPackTranscodesPayload(t *testing.T) {
	in := &Message{
		Type:    CategorySendMessage,
		Payload: json.RawMessage(`{"roomId":"alice-bob","text":"hi","n":3,"f":1.5,"nested":{"ok":true,"list":[1,"two",null]}}`),
	}

	data, err := MsgPack.Marshal(in)
	require.NoError(t, err)

	var out Message
	require.NoError(t, MsgPack.Unmarshal(data, &out))
	assert.Equal(t, in.Type, out.Type)
	assert.JSONEq(t, string(in.Payload), string(out.Payload))
}

func TestMsgPackKeepsWideIntegersExact(t *testing.T) {
	in := &Message{
		Type:    CategoryVibeUpdate,
		Payload: json.RawMessage(`{"max":18446744073709551615,"huge":123456789012345678901234567890,"neg":-9223372036854775808}`),
	}

	data, err := MsgPack.Marshal(in)
	require.NoError(t, err)

	var packed map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &packed))
	payload := packed["payload"].(map[string]any)
	assert.Equal(t, uint64(18446744073709551615), payload["max"])

	var out Message
	require.NoError(t, MsgPack.Unmarshal(data, &out))
	// compared as text: JSONEq would read both sides as float64
	got := string(out.Payload)
	assert.Contains(t, got, `"max":18446744073709551615`)
	assert.Contains(t, got, `"huge":123456789012345678901234567890`)
	assert.Contains(t, got, `"neg":-9223372036854775808`)
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = CodecByName("MsgPack")
	require.NoError(t, err)
	assert.True(t, c.Binary())

	_, err = CodecByName("xml")
	assert.Error(t, err)
}

func TestVibeKindValid(t *testing.T) {
	assert.True(t, VibeRitual.Valid())
	assert.False(t, VibeKind("weather").Valid())
}
