package client

import (
	"log/slog"
	"sync"

	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

// Handler decodes incoming envelopes and routes them to typed channels.
// A channel nobody drains loses events once its buffer fills, the same
// best-effort delivery the relay gives.
type Handler struct {
	client *Client

	Chat   chan protocol.ChatMessage
	Typing chan protocol.Typing
	Game   chan protocol.GameAction
	Vibe   chan protocol.VibeUpdate
	// Media carries WebRTC offers, answers, candidates and stream start/stop.
	Media chan protocol.Event
	Pong  chan protocol.Pong
	Error chan error

	closeOnce sync.Once
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client: client,
		Chat:   make(chan protocol.ChatMessage, 32),
		Typing: make(chan protocol.Typing, 8),
		Game:   make(chan protocol.GameAction, 8),
		Vibe:   make(chan protocol.VibeUpdate, 8),
		Media:  make(chan protocol.Event, 64),
		Pong:   make(chan protocol.Pong, 1),
		Error:  make(chan error, 1),
	}
}

// Start routes incoming messages until the connection ends, then closes
// every channel. Stop the handler by closing the client.
func (h *Handler) Start() {
	defer h.close()

	for msg := range h.client.Incoming() {
		ev, err := protocol.Decode(msg)
		if err != nil {
			slog.Debug("ignoring undecodable envelope", "type", msg.Type, "error", err)
			continue
		}
		h.route(ev)
	}

	offer(h.Error, error(NewError("receive", ErrClosed)))
}

func (h *Handler) route(ev protocol.Event) {
	var delivered bool
	switch e := ev.(type) {
	case protocol.ChatMessage:
		delivered = offer(h.Chat, e)
	case protocol.Typing:
		delivered = offer(h.Typing, e)
	case protocol.GameAction:
		delivered = offer(h.Game, e)
	case protocol.VibeUpdate:
		delivered = offer(h.Vibe, e)
	case protocol.WebRTCOffer, protocol.WebRTCAnswer, protocol.WebRTCICECandidate,
		protocol.StreamStarted, protocol.StreamStopped:
		delivered = offer(h.Media, ev)
	case protocol.Pong:
		delivered = offer(h.Pong, e)
	default:
		delivered = true
	}
	if !delivered {
		slog.Debug("dropping event, consumer is behind", "type", ev.Category())
	}
}

func offer[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}

func (h *Handler) close() {
	h.closeOnce.Do(func() {
		close(h.Chat)
		close(h.Typing)
		close(h.Game)
		close(h.Vibe)
		close(h.Media)
		close(h.Pong)
		close(h.Error)
	})
}
