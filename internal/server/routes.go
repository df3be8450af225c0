package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
	"github.com/Vinitharameshchand/akai-itoo/internal/ratelimit"
	"github.com/Vinitharameshchand/akai-itoo/internal/signaling"
)

// newUpgrader configures the websocket upgrader. With no allowed origins
// every origin is accepted.
func newUpgrader(cfg config.WebSocketConfig) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// The codec query parameter picks the framing of the connection.
func ServeWs(hub *signaling.Hub, upgrader *websocket.Upgrader, policy ratelimit.Policy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codec, err := protocol.CodecByName(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := signaling.NewClient(hub, conn, codec, policy.New())
		if !hub.Register(client) {
			conn.Close()
			return
		}
		slog.Debug("websocket connected", "conn", client.ID, "remote", r.RemoteAddr, "codec", codec.Name())

		go client.WritePump()
		go client.ReadPump()
	}
}

// healthCheckHandler reports liveness.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Relay server is healthy."))
}

// roomsHandler reports registry statistics.
func roomsHandler(registry *signaling.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(registry.Stats())
	}
}
