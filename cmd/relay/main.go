// Command relay runs the akai-itoo room relay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/logging"
	"github.com/Vinitharameshchand/akai-itoo/internal/metrics"
	"github.com/Vinitharameshchand/akai-itoo/internal/ratelimit"
	"github.com/Vinitharameshchand/akai-itoo/internal/server"
	"github.com/Vinitharameshchand/akai-itoo/internal/signaling"
	"github.com/Vinitharameshchand/akai-itoo/internal/version"
	"github.com/Vinitharameshchand/akai-itoo/internal/waitlist"
)

// waitlistLimiterTTL is how long an idle client address keeps its budget.
const waitlistLimiterTTL = 10 * time.Minute

func newRootCmd() *cobra.Command {
	var (
		configPath string
		address    string
	)

	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Room relay for akai-itoo pairs",
		Long:          `relay multiplexes chat, typing, game, vibe and WebRTC signaling events between the two members of each room.`,
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.HTTP.Address = address
			}
			logging.Init(cfg.Log.Level)
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	cmd.Flags().StringVar(&address, "addr", "", "listen address, overrides http.address")
	return cmd
}

// run serves the relay until ctx is cancelled.
func run(ctx context.Context, cfg *config.Server) error {
	collector := metrics.NewPrometheusCollector()
	hub := signaling.NewHub(signaling.NewRegistry(), collector)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go hub.Run(ctx)

	var waitlistHandler *waitlist.Handler
	if cfg.Waitlist.Enabled {
		store, err := waitlist.OpenSQLite(cfg.Waitlist.Path)
		if err != nil {
			return fmt.Errorf("open waitlist: %w", err)
		}
		defer store.Close()

		limiter := ratelimit.NewKeyed(cfg.Waitlist.Policy(), waitlistLimiterTTL)
		defer limiter.Close()
		waitlistHandler = waitlist.NewHandler(store, limiter)
	}

	slog.Info("relay configured",
		"service", cfg.Service.Name,
		"environment", cfg.Service.Environment,
		"version", version.String(),
		"waitlist", cfg.Waitlist.Enabled,
		"rate_limit", cfg.RateLimit.Enabled,
	)
	return server.New(cfg, hub, collector, waitlistHandler).ListenAndServe(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("relay stopped", "error", err)
		stop()
		os.Exit(1)
	}
}
