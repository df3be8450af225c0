package waitlist

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/Vinitharameshchand/akai-itoo/internal/ratelimit"
	"github.com/Vinitharameshchand/akai-itoo/internal/validation"
)

// Response messages shown by the landing page.
const (
	MsgJoined         = "Successfully joined the waitlist!"
	MsgAlreadyJoined  = "You are already on the waitlist!"
	MsgEmailRequired  = "Email is required"
	MsgEmailInvalid   = "Email is invalid"
	MsgServerError    = "Server error. Please try again later."
	MsgReadError      = "Error reading waitlist"
	MsgTooManyRequest = "Too many requests. Please try again later."
)

// Request is the body of a signup.
type Request struct {
	Name  string `json:"name"  validate:"max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
	Role  string `json:"role"  validate:"omitempty,max=32"`
}

// Response is the body of every signup reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Handler serves the waitlist routes.
type Handler struct {
	store   Store
	limiter *ratelimit.Keyed
	logger  *slog.Logger
}

// NewHandler creates a handler. A nil limiter disables throttling.
func NewHandler(store Store, limiter *ratelimit.Keyed) *Handler {
	return &Handler{
		store:   store,
		limiter: limiter,
		logger:  slog.Default().With("component", "waitlist"),
	}
}

// Join handles POST /api/waitlist.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		if err := h.limiter.Allow(clientAddr(r)); err != nil {
			writeJSON(w, http.StatusTooManyRequests, Response{Message: MsgTooManyRequest})
			return
		}
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: MsgEmailRequired})
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: MsgEmailRequired})
		return
	}
	if err := validation.Struct(req); err != nil {
		h.logger.Debug("rejecting signup", "error", validation.Describe(err))
		writeJSON(w, http.StatusBadRequest, Response{Message: MsgEmailInvalid})
		return
	}

	err := h.store.Add(r.Context(), Entry{Name: req.Name, Email: req.Email, Role: req.Role})
	switch {
	case errors.Is(err, ErrAlreadyJoined):
		writeJSON(w, http.StatusBadRequest, Response{Message: MsgAlreadyJoined})
		return
	case err != nil:
		h.logger.Error("error saving to waitlist", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: MsgServerError})
		return
	}

	h.logger.Info("new user added to waitlist", "email", req.Email)
	writeJSON(w, http.StatusOK, Response{Success: true, Message: MsgJoined})
}

// List handles GET /api/waitlist.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("error reading waitlist", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: MsgReadError})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeJSON writes v as JSON with a status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
