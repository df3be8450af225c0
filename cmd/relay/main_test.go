package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
)

func TestRunStopsWithContext(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.HTTP.Address = "127.0.0.1:0"
	cfg.Waitlist.Path = filepath.Join(t.TempDir(), "waitlist.db")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not shut down")
	}
	_, err := os.Stat(cfg.Waitlist.Path)
	assert.NoError(t, err)
}

func TestRootRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("websocket:\n  path: ws\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRootRejectsMissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
