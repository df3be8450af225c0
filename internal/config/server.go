package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Vinitharameshchand/akai-itoo/internal/ratelimit"
	"github.com/Vinitharameshchand/akai-itoo/internal/validation"
)

// Server is the configuration of the relay binary.
type Server struct {
	Service   ServiceConfig   `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Waitlist  WaitlistConfig  `yaml:"waitlist"`
	Log       LogConfig       `yaml:"log"`
}

// ServiceConfig describes the running service.
type ServiceConfig struct {
	Name        string `yaml:"name"        env:"RELAY_SERVICE_NAME"`
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
}

// HTTPConfig represents HTTP server configuration
type HTTPConfig struct {
	Address         string        `yaml:"address"          env:"RELAY_HTTP_ADDRESS"          validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"RELAY_HTTP_READ_TIMEOUT"     validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"RELAY_HTTP_WRITE_TIMEOUT"    validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"RELAY_HTTP_SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// WebSocketConfig represents WebSocket endpoint configuration
type WebSocketConfig struct {
	Path            string   `yaml:"path"              env:"RELAY_WS_PATH"              validate:"required,startswith=/"`
	ReadBufferSize  int      `yaml:"read_buffer_size"  env:"RELAY_WS_READ_BUFFER_SIZE"  validate:"gt=0"`
	WriteBufferSize int      `yaml:"write_buffer_size" env:"RELAY_WS_WRITE_BUFFER_SIZE" validate:"gt=0"`
	AllowedOrigins  []string `yaml:"allowed_origins"   env:"RELAY_WS_ALLOWED_ORIGINS"`
}

// RateLimitConfig bounds how many envelopes one connection may send.
type RateLimitConfig struct {
	Enabled         bool    `yaml:"enabled"           env:"RELAY_RATE_LIMIT_ENABLED"`
	EventsPerSecond float64 `yaml:"events_per_second" env:"RELAY_RATE_LIMIT_EVENTS_PER_SECOND" validate:"gte=0"`
	Burst           int     `yaml:"burst"             env:"RELAY_RATE_LIMIT_BURST"             validate:"gte=0"`
}

// WaitlistConfig configures the waitlist store and its request budget.
type WaitlistConfig struct {
	Enabled           bool   `yaml:"enabled"             env:"RELAY_WAITLIST_ENABLED"`
	Path              string `yaml:"path"                env:"RELAY_WAITLIST_PATH"                validate:"required_if=Enabled true"`
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"RELAY_WAITLIST_REQUESTS_PER_MINUTE" validate:"gte=0"`
	Burst             int    `yaml:"burst"               env:"RELAY_WAITLIST_BURST"               validate:"gte=0"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug dev development info warn warning error prod production"`
}

// Policy returns the per-connection token bucket.
func (c RateLimitConfig) Policy() ratelimit.Policy {
	return ratelimit.Policy{Enabled: c.Enabled, EventsPerSecond: c.EventsPerSecond, Burst: c.Burst}
}

// Policy returns the per-address token bucket for waitlist requests.
func (c WaitlistConfig) Policy() ratelimit.Policy {
	return ratelimit.Policy{
		Enabled:         c.RequestsPerMinute > 0,
		EventsPerSecond: float64(c.RequestsPerMinute) / 60.0,
		Burst:           c.Burst,
	}
}

// DefaultServer returns the configuration used when no file is given.
func DefaultServer() *Server {
	return &Server{
		Service: ServiceConfig{
			Name:        "akai-itoo-relay",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		WebSocket: WebSocketConfig{
			Path:            "/ws",
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			EventsPerSecond: 50,
			Burst:           100,
		},
		Waitlist: WaitlistConfig{
			Enabled:           true,
			Path:              "waitlist.db",
			RequestsPerMinute: 30,
			Burst:             5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadServer reads the configuration with the following priority:
// 1. Environment variables - highest priority
// 2. The YAML file at path, when path is not empty
// 3. DefaultServer - lowest priority
func LoadServer(path string) (*Server, error) {
	cfg := DefaultServer()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %s", validation.Describe(err))
	}

	return cfg, nil
}
