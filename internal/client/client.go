package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/dns"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// JoinTimeout bounds the wait for the relay's join acknowledgement.
	JoinTimeout = 10 * time.Second
)

// Client manages the WebSocket connection to the relay.
type Client struct {
	serverURL string
	codec     protocol.Codec

	mu        sync.Mutex
	room      string
	joined    protocol.RoomJoined
	reconnect *ReconnectPolicy

	dialed   atomic.Bool
	incoming chan *protocol.Message
	outgoing chan *protocol.Message
	done     chan struct{}

	closeOnce sync.Once
}

// ReconnectPolicy controls how a client redials after losing the relay.
// Backoff doubles from InitialBackoff up to MaxBackoff. MaxAttempts of zero
// retries until the client is closed.
type ReconnectPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
}

// DefaultReconnect is the policy interactive commands use.
var DefaultReconnect = ReconnectPolicy{
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
}

// New creates a client for serverURL. Nothing is dialed until Dial.
func New(serverURL string, codec protocol.Codec) *Client {
	if codec == nil {
		codec = protocol.JSON
	}
	return &Client{
		serverURL: serverURL,
		codec:     codec,
		incoming:  make(chan *protocol.Message, 64),
		outgoing:  make(chan *protocol.Message, 64),
		done:      make(chan struct{}),
	}
}

// EnableReconnect makes the client redial and rejoin its room whenever the
// connection drops. Without it the first disconnect ends the client.
func (c *Client) EnableReconnect(policy ReconnectPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnect = &policy
}

func (c *Client) reconnectPolicy() *ReconnectPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect
}

// Connect dials the relay named by cfg and joins the room derived from the
// configured identity. It is the only place a client joins a room; features
// emit and listen on the returned client.
func Connect(ctx context.Context, cfg *config.Client) (*Client, error) {
	if err := cfg.RequireIdentity(); err != nil {
		return nil, NewError("connect to relay", err)
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, NewError("connect to relay", err)
	}

	c := New(cfg.DialURL(), codec)
	if err := c.Dial(ctx); err != nil {
		return nil, err
	}

	joinCtx, cancel := context.WithTimeout(ctx, JoinTimeout)
	defer cancel()
	if err := c.Join(joinCtx, cfg.RoomKey()); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Dial establishes the WebSocket connection and starts the pumps.
func (c *Client) Dial(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.dialed.Store(true)
	go c.run(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, WrapError("dial relay", err, "invalid server URL")
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dns.DialContext

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, NewError("dial relay", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return conn, nil
}

// Join enters room and waits for the relay to acknowledge it.
func (c *Client) Join(ctx context.Context, room string) error {
	if err := c.Emit(protocol.JoinRoom{RoomID: room}); err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-c.incoming:
			if !ok {
				return NewError("join room", ErrClosed)
			}
			joined, ok, err := c.joinAck(msg, room)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			c.setJoined(room, joined)
			slog.Debug("joined room", "room", room, "members", joined.Members)
			return nil
		case <-ctx.Done():
			return WrapError("join room", ErrTimeout, room)
		}
	}
}

// joinAck reports whether msg acknowledges joining room.
func (c *Client) joinAck(msg *protocol.Message, room string) (protocol.RoomJoined, bool, error) {
	if msg.Type != protocol.CategoryRoomJoined {
		slog.Debug("ignoring envelope before join", "type", msg.Type)
		return protocol.RoomJoined{}, false, nil
	}
	ev, err := protocol.Decode(msg)
	if err != nil {
		return protocol.RoomJoined{}, false, WrapError("join room", ErrSignalingError, err.Error())
	}
	joined := ev.(protocol.RoomJoined)
	return joined, joined.RoomID == room, nil
}

func (c *Client) setJoined(room string, joined protocol.RoomJoined) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
	c.joined = joined
}

// Room returns the joined room key.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// PartnerPresent reports whether someone else was in the room at the last
// join.
func (c *Client) PartnerPresent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined.Members > 1
}

// Emit encodes ev and queues it for sending.
func (c *Client) Emit(ev protocol.Event) error {
	msg, err := protocol.Encode(ev)
	if err != nil {
		return NewError("emit "+string(ev.Category()), err)
	}
	return c.Send(msg)
}

// Send queues a raw envelope. While a reconnect is in progress envelopes
// wait in the queue and go out on the new connection.
func (c *Client) Send(msg *protocol.Message) error {
	if !c.dialed.Load() {
		return NewError("send "+string(msg.Type), ErrNotConnected)
	}
	select {
	case <-c.done:
		return NewError("send "+string(msg.Type), ErrClosed)
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return NewError("send "+string(msg.Type), ErrClosed)
	}
}

// Incoming returns the channel of envelopes from the relay. It is closed
// when the client is closed or gives up reconnecting.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// run serves one connection after another until the client is closed or
// a reconnect fails.
func (c *Client) run(conn *websocket.Conn) {
	defer close(c.incoming)

	for {
		c.serve(conn)

		select {
		case <-c.done:
			return
		default:
		}
		policy := c.reconnectPolicy()
		if policy == nil {
			return
		}

		slog.Warn("lost connection to relay, reconnecting", "room", c.Room())
		next, err := c.redial(*policy)
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				slog.Error("could not reconnect to relay", "error", err)
			}
			return
		}
		conn = next
	}
}

// serve pumps conn until it fails or the client is closed.
func (c *Client) serve(conn *websocket.Conn) {
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, stop)
	}()

	c.readPump(conn)
	close(stop)
	<-writerDone
	conn.Close()
}

// redial dials the relay again with backoff and rejoins the room before the
// pumps resume, since the relay forgets memberships on disconnect.
func (c *Client) redial(policy ReconnectPolicy) (*websocket.Conn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := policy.InitialBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, NewError("reconnect", ErrClosed)
		}

		conn, err := c.dial(ctx)
		if err == nil {
			if err = c.rejoin(ctx, conn); err != nil {
				conn.Close()
			}
		}
		if err == nil {
			slog.Info("reconnected to relay", "room", c.Room(), "attempt", attempt)
			return conn, nil
		}
		slog.Debug("reconnect attempt failed", "attempt", attempt, "error", err)

		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, WrapError("reconnect", err, fmt.Sprintf("gave up after %d attempts", attempt))
		}
		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}

// rejoin sends join_room on a fresh connection and waits for the
// acknowledgement. Anything else read meanwhile is passed on.
func (c *Client) rejoin(ctx context.Context, conn *websocket.Conn) error {
	room := c.Room()
	if room == "" {
		return nil
	}
	msg, err := protocol.Encode(protocol.JoinRoom{RoomID: room})
	if err != nil {
		return NewError("join room", err)
	}
	if err := c.write(conn, msg); err != nil {
		return NewError("join room", err)
	}

	deadline := time.Now().Add(JoinTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	for {
		in, err := c.read(conn)
		if err != nil {
			return NewError("join room", err)
		}
		if in == nil {
			continue
		}
		joined, ok, err := c.joinAck(in, room)
		if err != nil {
			return err
		}
		if ok {
			c.setJoined(room, joined)
			return nil
		}
		select {
		case c.incoming <- in:
		case <-c.done:
			return NewError("join room", ErrClosed)
		}
	}
}

// read returns the next envelope on conn, or nil for a frame that does not
// decode.
func (c *Client) read(conn *websocket.Conn) (*protocol.Message, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg protocol.Message
	if err := c.codec.Unmarshal(data, &msg); err != nil {
		slog.Debug("dropping malformed frame from relay", "error", err)
		return nil, nil
	}
	return &msg, nil
}

func (c *Client) write(conn *websocket.Conn, msg *protocol.Message) error {
	frameType, data, err := c.encode(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(frameType, data)
}

func (c *Client) encode(msg *protocol.Message) (int, []byte, error) {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		return 0, nil, err
	}
	if c.codec.Binary() {
		return websocket.BinaryMessage, data, nil
	}
	return websocket.TextMessage, data, nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msg, err := c.read(conn)
		if err != nil {
			return
		}
		if msg == nil {
			continue
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic
// pings. It returns when stop closes, the connection fails, or the client is
// closed.
func (c *Client) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.outgoing:
			frameType, data, err := c.encode(message)
			if err != nil {
				slog.Error("failed to encode envelope", "type", message.Type, "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(frameType, data); err != nil {
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-stop:
			return

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		}
	}
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
