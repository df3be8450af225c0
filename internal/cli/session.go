package cli

import (
	"context"
	"time"

	"github.com/Vinitharameshchand/akai-itoo/internal/client"
	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
	"github.com/Vinitharameshchand/akai-itoo/internal/ui"
)

// flushTimeout bounds the wait for the relay to confirm queued events.
const flushTimeout = 5 * time.Second

// ConnectionContext is the relay connection a command works with. It is
// opened once, already joined to the pair's room, and rejoins the room by
// itself after the relay drops it.
type ConnectionContext struct {
	Client  *client.Client
	Handler *client.Handler
	Config  *config.Client
}

func NewConnectionContext(ctx context.Context, cfg *config.Client) (*ConnectionContext, error) {
	c, err := client.Connect(ctx, cfg)
	if err != nil {
		return nil, client.NewError("connect to relay", err)
	}
	c.EnableReconnect(client.DefaultReconnect)

	handler := client.NewHandler(c)
	go handler.Start()

	return &ConnectionContext{
		Client:  c,
		Handler: handler,
		Config:  cfg,
	}, nil
}

// Flush waits until the relay has handled everything sent so far. The relay
// answers a ping only after the events queued before it.
func (c *ConnectionContext) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := c.Client.Emit(protocol.Ping{}); err != nil {
		return err
	}
	select {
	case _, ok := <-c.Handler.Pong:
		if !ok {
			return client.NewError("flush", client.ErrClosed)
		}
		return nil
	case <-ctx.Done():
		return client.NewError("flush", client.ErrTimeout)
	}
}

func (c *ConnectionContext) RoomInfo() ui.RoomInfo {
	return ui.RoomInfo{
		RoomKey: c.Client.Room(),
		Me:      c.Config.Me,
		Partner: c.Config.Partner,
		Role:    string(c.Config.Role()),
		Present: c.Client.PartnerPresent(),
	}
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

func LoadConfig(opts config.Options) (*config.Client, error) {
	cfg, err := config.LoadClient(opts)
	if err != nil {
		return nil, client.NewError("load config", err)
	}
	return cfg, nil
}

// connect loads the configuration and joins the pair's room behind a
// spinner.
func connect(ctx context.Context, f *flags) (*ConnectionContext, error) {
	cfg, err := LoadConfig(f.options())
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireIdentity(); err != nil {
		return nil, err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	defer stopSpinner()
	conn, err := NewConnectionContext(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stopSpinner()
	return conn, nil
}
