package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
	"github.com/Vinitharameshchand/akai-itoo/internal/server"
	"github.com/Vinitharameshchand/akai-itoo/internal/signaling"
)

func startRelay(t *testing.T) string {
	t.Helper()
	cfg := config.DefaultServer()
	hub := signaling.NewHub(signaling.NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(server.New(cfg, hub, nil, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func connect(t *testing.T, relayURL, me, partner, codec string) (*Client, *Handler) {
	t.Helper()
	cfg, err := config.LoadClient(config.Options{RelayURL: relayURL, Me: me, Partner: partner, Codec: codec})
	require.NoError(t, err)

	c, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	h := NewHandler(c)
	go h.Start()
	return c, h
}

func TestPairedClientsExchangeChat(t *testing.T) {
	relayURL := startRelay(t)
	alice, _ := connect(t, relayURL, "alice", "bob", "json")
	bob, bobEvents := connect(t, relayURL, "bob", "alice", "msgpack")

	assert.Equal(t, "alice-bob", alice.Room())
	assert.Equal(t, alice.Room(), bob.Room())
	assert.False(t, alice.PartnerPresent())
	assert.True(t, bob.PartnerPresent())

	sent := protocol.ChatMessage{
		RoomID:     alice.Room(),
		SenderID:   "alice",
		SenderName: "Alice",
		Text:       "good morning",
		Timestamp:  time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, alice.Emit(sent))

	select {
	case got := <-bobEvents.Chat:
		assert.Equal(t, sent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("bob received nothing")
	}
}

func TestTypedRouting(t *testing.T) {
	relayURL := startRelay(t)
	alice, _ := connect(t, relayURL, "alice", "bob", "")
	_, bobEvents := connect(t, relayURL, "bob", "alice", "")

	require.NoError(t, alice.Emit(protocol.Typing{RoomID: alice.Room(), IsTyping: true}))
	require.NoError(t, alice.Emit(protocol.VibeUpdate{RoomID: alice.Room(), Type: protocol.VibeMood, Value: "happy"}))
	require.NoError(t, alice.Emit(protocol.StreamStarted{RoomID: alice.Room()}))

	select {
	case got := <-bobEvents.Typing:
		assert.True(t, got.IsTyping)
	case <-time.After(2 * time.Second):
		t.Fatal("no typing event")
	}
	select {
	case got := <-bobEvents.Vibe:
		assert.Equal(t, protocol.VibeMood, got.Type)
		assert.Equal(t, "happy", got.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("no vibe event")
	}
	select {
	case got := <-bobEvents.Media:
		assert.Equal(t, protocol.StreamStarted{RoomID: "alice-bob"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no media event")
	}
}

func TestHandlerClosesWhenClientCloses(t *testing.T) {
	relayURL := startRelay(t)
	alice, events := connect(t, relayURL, "alice", "", "")
	assert.Equal(t, "alice", alice.Room())

	alice.Close()

	select {
	case err, ok := <-events.Error:
		if ok {
			assert.ErrorIs(t, err, ErrClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop")
	}

	assert.ErrorIs(t, alice.Emit(protocol.Ping{}), ErrClosed)
}

// restartableRelay serves a fresh hub on the same address after each
// restart, so every membership is forgotten.
type restartableRelay struct {
	t      *testing.T
	addr   string
	srv    *httptest.Server
	cancel context.CancelFunc
}

func startRestartableRelay(t *testing.T) *restartableRelay {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &restartableRelay{t: t, addr: l.Addr().String()}
	r.serve(l)
	t.Cleanup(r.stop)
	return r
}

func (r *restartableRelay) url() string {
	return "ws://" + r.addr + "/ws"
}

func (r *restartableRelay) serve(l net.Listener) {
	hub := signaling.NewHub(signaling.NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewUnstartedServer(server.New(config.DefaultServer(), hub, nil, nil).Handler())
	srv.Listener.Close()
	srv.Listener = l
	srv.Start()
	r.srv, r.cancel = srv, cancel
}

func (r *restartableRelay) stop() {
	if r.srv == nil {
		return
	}
	r.srv.Close()
	r.cancel()
	r.srv = nil
}

func (r *restartableRelay) restart() {
	r.stop()
	var l net.Listener
	require.Eventually(r.t, func() bool {
		var err error
		l, err = net.Listen("tcp", r.addr)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	r.serve(l)
}

func TestClientRejoinsAfterRelayRestart(t *testing.T) {
	relay := startRestartableRelay(t)
	alice, _ := connect(t, relay.url(), "alice", "bob", "")
	bob, bobEvents := connect(t, relay.url(), "bob", "alice", "msgpack")
	fast := ReconnectPolicy{InitialBackoff: 20 * time.Millisecond, MaxBackoff: 100 * time.Millisecond}
	alice.EnableReconnect(fast)
	bob.EnableReconnect(fast)

	relay.restart()

	// both sides rejoin on their own; keep sending until bob hears alice
	vibe := protocol.VibeUpdate{RoomID: "alice-bob", Type: protocol.VibeMood, Value: "back"}
	require.Eventually(t, func() bool {
		if alice.Emit(vibe) != nil {
			return false
		}
		select {
		case got := <-bobEvents.Vibe:
			return got.Value == "back"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "alice-bob", bob.Room())
	assert.True(t, bob.PartnerPresent() || alice.PartnerPresent())
}

func TestClientWithoutReconnectEndsOnRelayLoss(t *testing.T) {
	relay := startRestartableRelay(t)
	_, events := connect(t, relay.url(), "alice", "bob", "")

	relay.stop()

	select {
	case err, ok := <-events.Error:
		if ok {
			assert.ErrorIs(t, err, ErrClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop")
	}
}

func TestReconnectGivesUp(t *testing.T) {
	relay := startRestartableRelay(t)
	alice, events := connect(t, relay.url(), "alice", "", "")
	alice.EnableReconnect(ReconnectPolicy{InitialBackoff: 10 * time.Millisecond, MaxAttempts: 2})

	relay.stop()

	select {
	case <-events.Error:
	case <-time.After(2 * time.Second):
		t.Fatal("client kept reconnecting")
	}
}

func TestConnectRequiresIdentity(t *testing.T) {
	t.Setenv("ITOO_ME", "")
	cfg, err := config.LoadClient(config.Options{RelayURL: "ws://127.0.0.1:1/ws"})
	require.NoError(t, err)

	_, err = Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrNoIdentity)
}

func TestSendBeforeDial(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", nil)
	assert.ErrorIs(t, c.Emit(protocol.Ping{}), ErrNotConnected)
}

func TestJoinTimesOutWithoutAck(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New("ws"+strings.TrimPrefix(srv.URL, "http"), protocol.JSON)
	require.NoError(t, c.Dial(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Join(ctx, "alice-bob")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "join room: timeout (alice-bob)", WrapError("join room", ErrTimeout, "alice-bob").Error())
	assert.Equal(t, "send ping: connection closed", NewError("send ping", ErrClosed).Error())
}
