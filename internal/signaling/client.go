package signaling

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vinitharameshchand/akai-itoo/internal/metrics"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
	"github.com/Vinitharameshchand/akai-itoo/internal/ratelimit"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages

	// SendBufferSize is the outbound queue length of a connection.
	SendBufferSize = 256
)

// Client is a wrapper for a single websocket connection.
type Client struct {
	// ID identifies the connection in logs.
	ID string

	Hub *Hub

	Conn *websocket.Conn

	// Send is a buffered channel for all outbound messages.
	// The hub writes to it without blocking; WritePump drains it.
	Send chan *protocol.Message

	// Codec frames messages for this connection.
	Codec protocol.Codec

	limiter *ratelimit.Limiter

	// typing holds the rooms whose last typing event from this client said
	// isTyping. Only the hub goroutine touches it.
	typing map[string]bool
}

// NewClient wraps conn. A nil codec selects JSON.
func NewClient(hub *Hub, conn *websocket.Conn, codec protocol.Codec, limiter *ratelimit.Limiter) *Client {
	if codec == nil {
		codec = protocol.JSON
	}
	return &Client{
		ID:      uuid.NewString(),
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan *protocol.Message, SendBufferSize),
		Codec:   codec,
		limiter: limiter,
		typing:  make(map[string]bool),
	}
}

// deliver queues m without blocking. It reports false when the queue is full.
func (c *Client) deliver(m *protocol.Message) bool {
	select {
	case c.Send <- m:
		return true
	default:
		return false
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "conn", c.ID, "error", err)
			}
			return
		}

		var msg protocol.Message
		if err := c.Codec.Unmarshal(data, &msg); err != nil {
			slog.Debug("dropping malformed frame", "conn", c.ID, "codec", c.Codec.Name(), "error", err)
			c.Hub.metrics.EnvelopeDropped("", metrics.ReasonDecodeFailed)
			continue
		}

		if !c.limiter.Allow() {
			slog.Debug("dropping rate limited envelope", "conn", c.ID, "type", msg.Type)
			c.Hub.metrics.EnvelopeDropped(string(msg.Type), metrics.ReasonRateLimited)
			continue
		}

		if !c.Hub.Submit(c, &msg, len(data)) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.Codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.Codec.Marshal(message)
			if err != nil {
				slog.Error("failed to encode envelope", "conn", c.ID, "type", message.Type, "error", err)
				continue
			}
			if err := c.Conn.WriteMessage(frameType, data); err != nil {
				slog.Debug("websocket write failed", "conn", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
