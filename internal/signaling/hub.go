package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Vinitharameshchand/akai-itoo/internal/metrics"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

// inbound is an envelope read from a client, waiting for the hub.
type inbound struct {
	client *Client
	msg    *protocol.Message
	size   int
}

// Hub is the central loop of the relay.
// A single goroutine applies every membership change and fan-out, so a
// relayed envelope never observes a half-applied join or disconnect.
type Hub struct {
	registry *Registry
	metrics  metrics.Collector
	logger   *slog.Logger

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	// done is closed when Run returns.
	done chan struct{}

	// clients is owned by the Run goroutine.
	clients map[*Client]struct{}

	now func() time.Time
}

// NewHub creates a hub over registry. A nil collector discards metrics.
func NewHub(registry *Registry, collector metrics.Collector) *Hub {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Hub{
		registry:   registry,
		metrics:    collector,
		logger:     slog.Default().With("component", "hub"),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		now:        time.Now,
	}
}

// Registry returns the membership registry the hub routes through.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register hands a new connection to the hub. It returns false once the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister tells the hub the connection is gone. The hub drops its
// memberships and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Submit queues an envelope read from c. It returns false once the hub has
// stopped.
func (h *Hub) Submit(c *Client, msg *protocol.Message, size int) bool {
	select {
	case h.inbound <- inbound{client: c, msg: msg, size: size}:
		return true
	case <-h.done:
		return false
	}
}

// Run starts the hub's main processing loop. It returns when ctx is done,
// after closing the outbound queue of every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.metrics.ConnectionOpened(client.Codec.Name())
			h.logger.Debug("client registered", "conn", client.ID, "codec", client.Codec.Name())

		case client := <-h.unregister:
			h.handleUnregister(client)

		case in := <-h.inbound:
			h.dispatch(in)
		}
	}
}

func (h *Hub) shutdown() {
	for client := range h.clients {
		h.registry.DropConnection(client)
		close(client.Send)
		delete(h.clients, client)
	}
	close(h.done)
	h.logger.Info("hub stopped")
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	rooms := h.registry.DropConnection(client)
	for _, room := range rooms {
		h.clearTyping(client, room)
		h.metrics.RoomLeft(h.registry.Stats().Rooms)
	}

	close(client.Send)
	h.metrics.ConnectionClosed(client.Codec.Name())
	h.logger.Debug("client unregistered", "conn", client.ID, "rooms", rooms)
}

func (h *Hub) dispatch(in inbound) {
	msg, client := in.msg, in.client
	h.metrics.EnvelopeReceived(string(msg.Type), in.size)

	switch msg.Type {
	case protocol.CategoryJoinRoom:
		h.handleJoin(client, msg)
	case protocol.CategoryLeaveRoom:
		h.handleLeave(client, msg)
	case protocol.CategoryPing:
		h.reply(client, protocol.Pong{Timestamp: h.now().UnixMilli()})
	default:
		h.relay(client, msg)
	}
}

func (h *Hub) handleJoin(client *Client, msg *protocol.Message) {
	room := msg.Room()
	if room == "" {
		h.drop(client, msg, metrics.ReasonNoRoom)
		return
	}

	if h.registry.Join(client, room) {
		h.metrics.RoomJoined(h.registry.Stats().Rooms)
		h.logger.Info("client joined room", "conn", client.ID, "room", room)
	}
	h.reply(client, protocol.RoomJoined{RoomID: room, Members: len(h.registry.MembersOf(room))})
}

func (h *Hub) handleLeave(client *Client, msg *protocol.Message) {
	room := msg.Room()
	if room == "" {
		h.drop(client, msg, metrics.ReasonNoRoom)
		return
	}

	if h.registry.Leave(client, room) {
		h.clearTyping(client, room)
		h.metrics.RoomLeft(h.registry.Stats().Rooms)
		h.logger.Info("client left room", "conn", client.ID, "room", room)
	}
	h.reply(client, protocol.RoomLeft{RoomID: room})
}

func (h *Hub) relay(client *Client, msg *protocol.Message) {
	out, ok := protocol.Route(msg.Type, msg.Payload)
	if !ok {
		h.drop(client, msg, metrics.ReasonUnknown)
		return
	}
	room := msg.Room()
	if room == "" {
		h.drop(client, msg, metrics.ReasonNoRoom)
		return
	}

	if msg.Type == protocol.CategoryTyping {
		if out == protocol.CategoryPartnerTyping {
			client.typing[room] = true
		} else {
			delete(client.typing, room)
		}
	}

	h.fanOut(room, client, msg.WithType(out))
}

// fanOut delivers out to every member of room except sender. A member whose
// queue is full misses this one envelope.
func (h *Hub) fanOut(room string, sender *Client, out *protocol.Message) int {
	delivered := 0
	for _, member := range h.registry.MembersOf(room) {
		if member == sender {
			continue
		}
		if member.deliver(out) {
			delivered++
			continue
		}
		h.metrics.EnvelopeDropped(string(out.Type), metrics.ReasonQueueFull)
		h.logger.Debug("outbound queue full", "conn", member.ID, "room", room, "type", out.Type)
	}
	h.metrics.EnvelopeRelayed(string(out.Type), delivered)
	return delivered
}

// clearTyping tells the rest of room that client stopped typing, if its last
// typing event there said otherwise.
func (h *Hub) clearTyping(client *Client, room string) {
	if !client.typing[room] {
		return
	}
	delete(client.typing, room)

	payload, _ := json.Marshal(protocol.Typing{RoomID: room, IsTyping: false})
	h.fanOut(room, client, &protocol.Message{Type: protocol.CategoryPartnerStopTyping, Payload: payload})
}

func (h *Hub) reply(client *Client, ev protocol.Event) {
	msg, err := protocol.Encode(ev)
	if err != nil {
		h.logger.Error("failed to encode reply", "conn", client.ID, "type", ev.Category(), "error", err)
		return
	}
	if !client.deliver(msg) {
		h.metrics.EnvelopeDropped(string(msg.Type), metrics.ReasonQueueFull)
	}
}

func (h *Hub) drop(client *Client, msg *protocol.Message, reason string) {
	h.metrics.EnvelopeDropped(string(msg.Type), reason)
	h.logger.Debug("dropping envelope", "conn", client.ID, "type", msg.Type, "reason", reason)
}
