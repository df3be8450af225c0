package signaling

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

func newTestClient(id string) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan *protocol.Message, 8),
		Codec:  protocol.JSON,
		typing: make(map[string]bool),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func connect(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := newTestClient(id)
	require.True(t, h.Register(c))
	return c
}

func submit(t *testing.T, h *Hub, c *Client, typ protocol.Category, payload string) {
	t.Helper()
	msg := &protocol.Message{Type: typ}
	if payload != "" {
		msg.Payload = json.RawMessage(payload)
	}
	require.True(t, h.Submit(c, msg, len(payload)))
}

func next(t *testing.T, c *Client) *protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatalf("%s received nothing", c.ID)
		return nil
	}
}

// quiet asserts c has nothing queued. The hub answers a ping only after
// everything submitted before it, so the pong must be the next message.
func quiet(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	submit(t, h, c, protocol.CategoryPing, "")
	msg := next(t, c)
	assert.Equal(t, protocol.CategoryPong, msg.Type, "unexpected %s payload %s", msg.Type, msg.Payload)
}

func join(t *testing.T, h *Hub, c *Client, room string) {
	t.Helper()
	submit(t, h, c, protocol.CategoryJoinRoom, `"`+room+`"`)
	ack := next(t, c)
	require.Equal(t, protocol.CategoryRoomJoined, ack.Type)
}

func TestJoinAcknowledgesWithMemberCount(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")

	join(t, h, a, "alice-bob")
	submit(t, h, b, protocol.CategoryJoinRoom, `"alice-bob"`)
	ev, err := protocol.Decode(next(t, b))
	require.NoError(t, err)
	assert.Equal(t, protocol.RoomJoined{RoomID: "alice-bob", Members: 2}, ev)

	// joining twice keeps a single membership
	submit(t, h, b, protocol.CategoryJoinRoom, `"alice-bob"`)
	ev, err = protocol.Decode(next(t, b))
	require.NoError(t, err)
	assert.Equal(t, protocol.RoomJoined{RoomID: "alice-bob", Members: 2}, ev)

	quiet(t, h, a)
}

func TestRelayExcludesSender(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "alice-bob")
	join(t, h, b, "alice-bob")

	payload := `{"roomId":"alice-bob","senderId":"alice","senderName":"A","text":"hi","timestamp":"2026-02-14T09:00:00Z"}`
	submit(t, h, a, protocol.CategorySendMessage, payload)

	got := next(t, b)
	assert.Equal(t, protocol.CategoryReceiveMessage, got.Type)
	assert.JSONEq(t, payload, string(got.Payload))
	quiet(t, h, a)
}

func TestThreeMembersEachGetOneCopy(t *testing.T) {
	h := startHub(t)
	x, y, z := connect(t, h, "x"), connect(t, h, "y"), connect(t, h, "z")
	join(t, h, x, "room")
	join(t, h, y, "room")
	join(t, h, z, "room")

	payload := `{"roomId":"room","type":"mood","value":"sleepy"}`
	submit(t, h, x, protocol.CategoryVibeUpdate, payload)

	for _, c := range []*Client{y, z} {
		got := next(t, c)
		assert.Equal(t, protocol.CategoryPartnerVibeChange, got.Type)
		assert.JSONEq(t, payload, string(got.Payload))
		quiet(t, h, c)
	}
	quiet(t, h, x)
}

func TestRoutesEveryRelayedCategory(t *testing.T) {
	cases := []struct {
		in      protocol.Category
		payload string
		out     protocol.Category
	}{
		{protocol.CategoryTyping, `{"roomId":"r","isTyping":true}`, protocol.CategoryPartnerTyping},
		{protocol.CategoryTyping, `{"roomId":"r","isTyping":false}`, protocol.CategoryPartnerStopTyping},
		{protocol.CategoryGameAction, `{"roomId":"r","gameType":"tictactoe","action":"move"}`, protocol.CategoryGameMove},
		{protocol.CategoryVibeUpdate, `{"roomId":"r","type":"mood","value":"happy"}`, protocol.CategoryPartnerVibeChange},
		{protocol.CategoryWebRTCOffer, `{"roomId":"r","offer":{"type":"offer","sdp":"v=0"}}`, protocol.CategoryWebRTCOffer},
		{protocol.CategoryWebRTCAnswer, `{"roomId":"r","answer":{"type":"answer","sdp":"v=0"}}`, protocol.CategoryWebRTCAnswer},
		{protocol.CategoryWebRTCICECandidate, `{"roomId":"r","candidate":{"candidate":"c"}}`, protocol.CategoryWebRTCICECandidate},
		{protocol.CategoryStreamStarted, `{"roomId":"r"}`, protocol.CategoryStreamStarted},
		{protocol.CategoryStreamStopped, `{"roomId":"r"}`, protocol.CategoryStreamStopped},
	}

	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	for _, tc := range cases {
		t.Run(string(tc.in)+"->"+string(tc.out), func(t *testing.T) {
			submit(t, h, a, tc.in, tc.payload)
			got := next(t, b)
			assert.Equal(t, tc.out, got.Type)
			assert.JSONEq(t, tc.payload, string(got.Payload))
		})
	}
}

func TestUnknownCategoryAndMissingRoomAreDropped(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	submit(t, h, a, "hug", `{"roomId":"r"}`)
	submit(t, h, a, protocol.CategorySendMessage, `{"text":"lost"}`)
	submit(t, h, a, protocol.CategoryJoinRoom, `""`)

	quiet(t, h, a)
	quiet(t, h, b)
}

func TestTopLevelRoomIDRoutes(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	require.True(t, h.Submit(a, &protocol.Message{
		Type:    protocol.CategoryStreamStarted,
		RoomID:  "r",
		Payload: json.RawMessage(`{}`),
	}, 0))
	assert.Equal(t, protocol.CategoryStreamStarted, next(t, b).Type)
}

func TestEmptyRoomIsNoop(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")

	submit(t, h, a, protocol.CategorySendMessage, `{"roomId":"ghost","text":"anyone?"}`)
	quiet(t, h, a)
	assert.Equal(t, Stats{}, h.Registry().Stats())
}

func TestSenderNeedNotBeMember(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, b, "alice-bob")

	submit(t, h, a, protocol.CategoryVibeUpdate, `{"roomId":"alice-bob","type":"energy","value":80}`)
	assert.Equal(t, protocol.CategoryPartnerVibeChange, next(t, b).Type)
}

func TestDisconnectedClientReceivesNothing(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	h.Unregister(b)
	submit(t, h, a, protocol.CategorySendMessage, `{"roomId":"r","text":"still there?"}`)
	quiet(t, h, a)

	_, ok := <-b.Send
	assert.False(t, ok, "send channel should be closed")
	assert.Equal(t, Stats{Rooms: 1, Connections: 1}, h.Registry().Stats())
}

func TestLeaveAcknowledgesAndStopsDelivery(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	submit(t, h, b, protocol.CategoryLeaveRoom, `"r"`)
	ev, err := protocol.Decode(next(t, b))
	require.NoError(t, err)
	assert.Equal(t, protocol.RoomLeft{RoomID: "r"}, ev)

	submit(t, h, a, protocol.CategoryTyping, `{"roomId":"r","isTyping":true}`)
	quiet(t, h, b)
}

func TestStaleTypingClearedOnDisconnect(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	submit(t, h, a, protocol.CategoryTyping, `{"roomId":"r","isTyping":true}`)
	require.Equal(t, protocol.CategoryPartnerTyping, next(t, b).Type)

	h.Unregister(a)
	got := next(t, b)
	assert.Equal(t, protocol.CategoryPartnerStopTyping, got.Type)
	assert.Equal(t, "r", got.Room())
}

func TestStaleTypingClearedOnLeave(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	submit(t, h, a, protocol.CategoryTyping, `{"roomId":"r","isTyping":true}`)
	require.Equal(t, protocol.CategoryPartnerTyping, next(t, b).Type)

	submit(t, h, a, protocol.CategoryLeaveRoom, `"r"`)
	assert.Equal(t, protocol.CategoryPartnerStopTyping, next(t, b).Type)
}

func TestNoSyntheticStopAfterExplicitStop(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	submit(t, h, a, protocol.CategoryTyping, `{"roomId":"r","isTyping":true}`)
	submit(t, h, a, protocol.CategoryTyping, `{"roomId":"r","isTyping":false}`)
	require.Equal(t, protocol.CategoryPartnerTyping, next(t, b).Type)
	require.Equal(t, protocol.CategoryPartnerStopTyping, next(t, b).Type)

	h.Unregister(a)
	quiet(t, h, b)
}

func TestFullQueueDropsOnlyThatDelivery(t *testing.T) {
	h := startHub(t)
	a, b, c := connect(t, h, "a"), connect(t, h, "b"), connect(t, h, "c")
	join(t, h, a, "r")
	join(t, h, b, "r")
	join(t, h, c, "r")

	for i := 0; i < cap(b.Send); i++ {
		b.Send <- &protocol.Message{Type: protocol.CategoryPong}
	}

	submit(t, h, a, protocol.CategorySendMessage, `{"roomId":"r","text":"hi"}`)
	assert.Equal(t, protocol.CategoryReceiveMessage, next(t, c).Type)
	assert.Len(t, b.Send, cap(b.Send))
}

func TestSameSenderOrderIsPreserved(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h, "a"), connect(t, h, "b")
	join(t, h, a, "r")
	join(t, h, b, "r")

	submit(t, h, a, protocol.CategorySendMessage, `{"roomId":"r","text":"1"}`)
	submit(t, h, a, protocol.CategoryGameAction, `{"roomId":"r","action":"move"}`)
	submit(t, h, a, protocol.CategorySendMessage, `{"roomId":"r","text":"2"}`)

	assert.JSONEq(t, `{"roomId":"r","text":"1"}`, string(next(t, b).Payload))
	assert.Equal(t, protocol.CategoryGameMove, next(t, b).Type)
	assert.JSONEq(t, `{"roomId":"r","text":"2"}`, string(next(t, b).Payload))
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	h := startHub(t)
	h.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	a := connect(t, h, "a")

	submit(t, h, a, protocol.CategoryPing, "")
	ev, err := protocol.Decode(next(t, a))
	require.NoError(t, err)
	assert.Equal(t, protocol.Pong{Timestamp: 1_700_000_000_000}, ev)
}

func TestStoppedHubClosesQueuesAndRefusesWork(t *testing.T) {
	h := NewHub(NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	a := newTestClient("a")
	require.True(t, h.Register(a))
	cancel()
	<-h.done

	_, ok := <-a.Send
	assert.False(t, ok)
	assert.False(t, h.Register(newTestClient("b")))
	assert.False(t, h.Submit(a, &protocol.Message{Type: protocol.CategoryPing}, 0))
	h.Unregister(a)
}
