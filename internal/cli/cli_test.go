package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinitharameshchand/akai-itoo/internal/client"
	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
	"github.com/Vinitharameshchand/akai-itoo/internal/server"
	"github.com/Vinitharameshchand/akai-itoo/internal/signaling"
)

func startRelay(t *testing.T) string {
	t.Helper()
	hub := signaling.NewHub(signaling.NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(server.New(config.DefaultServer(), hub, nil, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoomKeyCommand(t *testing.T) {
	out, err := run(t, "roomkey", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-bob\nbob plays O\n", out)

	out, err = run(t, "roomkey", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice\nalice plays X\n", out)

	_, err = run(t, "roomkey", " alice")
	assert.Error(t, err)
	_, err = run(t, "roomkey")
	assert.Error(t, err)
}

func TestRoomsCommand(t *testing.T) {
	relayURL := startRelay(t)

	out, err := run(t, "rooms", "--relay", relayURL, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Rooms,0")
	assert.Contains(t, out, "Connections,0")

	_, err = run(t, "rooms", "--relay", relayURL, "--format", "yaml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestVibeReachesPartner(t *testing.T) {
	relayURL := startRelay(t)

	cfg, err := config.LoadClient(config.Options{RelayURL: relayURL, Me: "bob", Partner: "alice"})
	require.NoError(t, err)
	bob, err := client.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(bob.Close)
	events := client.NewHandler(bob)
	go events.Start()

	out, err := run(t, "vibe", "mood", "happy", "--relay", relayURL, "--me", "alice", "--partner", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "mood set to happy")

	select {
	case got := <-events.Vibe:
		assert.Equal(t, protocol.VibeUpdate{RoomID: "alice-bob", Type: protocol.VibeMood, Value: "happy"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("partner received no vibe")
	}
}

func TestVibeArguments(t *testing.T) {
	_, err := run(t, "vibe", "weather", "sunny")
	assert.ErrorContains(t, err, "unknown vibe type")

	_, err = run(t, "vibe", "mood")
	assert.Error(t, err)

	_, err = run(t, "vibe", "--watch", "mood")
	assert.Error(t, err)
}

func TestCommandsNeedIdentity(t *testing.T) {
	t.Setenv("ITOO_ME", "")
	_, err := run(t, "vibe", "mood", "happy", "--relay", startRelay(t))
	assert.ErrorIs(t, err, config.ErrNoIdentity)
}

func TestParseVibeValue(t *testing.T) {
	assert.Equal(t, "happy", parseVibeValue("happy"))
	assert.Equal(t, true, parseVibeValue("true"))
	assert.Equal(t, float64(3), parseVibeValue("3"))
	assert.Equal(t, map[string]any{"water": float64(2)}, parseVibeValue(`{"water":2}`))
}

func TestCinemaHostMissingFile(t *testing.T) {
	_, err := run(t, "cinema", "host", "does-not-exist.ivf")
	assert.Error(t, err)
}
