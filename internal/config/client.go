package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Vinitharameshchand/akai-itoo/internal/pairing"
	"github.com/Vinitharameshchand/akai-itoo/internal/validation"
)

// Default configuration values
const (
	DefaultRelayURL = "ws://localhost:8080/ws"
	DefaultCodec    = "json"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
)

// ErrNoIdentity is returned when a command needs to know who is connecting.
var ErrNoIdentity = errors.New("no identity: pass --me or set ITOO_ME")

// Client holds the configuration of the itoo command.
type Client struct {
	// RelayURL is the websocket endpoint of the relay
	RelayURL string `validate:"required,wsurl"`

	// Codec frames envelopes on the socket
	Codec string `validate:"oneof=json msgpack"`

	// Identity of this participant and their partner
	Me      string `validate:"omitempty,participant"`
	Partner string `validate:"omitempty,participant"`
	Name    string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	RelayURL   string
	Codec      string
	Me         string
	Partner    string
	Name       string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// LoadClient reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func LoadClient(opts Options) (*Client, error) {
	cfg := &Client{
		RelayURL:   pick(opts.RelayURL, "ITOO_RELAY_URL", DefaultRelayURL),
		Codec:      strings.ToLower(pick(opts.Codec, "ITOO_CODEC", DefaultCodec)),
		Me:         pick(opts.Me, "ITOO_ME", ""),
		Partner:    pick(opts.Partner, "ITOO_PARTNER", ""),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", ""),
	}
	cfg.Name = pick(opts.Name, "ITOO_NAME", cfg.Me)
	cfg.ForceRelay = opts.ForceRelay || isTrue(os.Getenv("FORCE_RELAY"))

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, errors.New("cannot force relay mode without TURN server configured")
	}

	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %s", validation.Describe(err))
	}
	return cfg, nil
}

// pick returns flag, then the environment variable, then def.
func pick(flag, envKey, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// RequireIdentity fails unless Me is set.
func (c *Client) RequireIdentity() error {
	if c.Me == "" {
		return ErrNoIdentity
	}
	return nil
}

// RoomKey returns the room this participant and their partner share.
func (c *Client) RoomKey() string {
	return pairing.RoomKey(c.Me, c.Partner)
}

// Role returns this participant's tic-tac-toe mark.
func (c *Client) Role() pairing.Mark {
	return pairing.Role(c.Me, c.Partner)
}

// DialURL returns RelayURL with the codec query parameter set.
func (c *Client) DialURL() string {
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return c.RelayURL
	}
	q := u.Query()
	q.Set("codec", c.Codec)
	u.RawQuery = q.Encode()
	return u.String()
}

// HTTPBase returns the http(s) origin serving the relay's REST routes.
func (c *Client) HTTPBase() string {
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Client) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Client) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
