package media

import (
	"net"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
)

func TestLooksTunneled(t *testing.T) {
	assert.True(t, looksTunneled("wg0", nil))
	assert.True(t, looksTunneled("utun3", nil))
	assert.True(t, looksTunneled("CloudflareWARP", nil))
	assert.True(t, looksTunneled("eth0", []net.IP{net.ParseIP("100.100.1.2")}))
	assert.False(t, looksTunneled("eth0", []net.IP{net.ParseIP("192.168.1.20")}))
}

func TestConfigFromClient(t *testing.T) {
	cfg := &config.Client{
		STUNServer: config.DefaultSTUN,
		TURNServer: "turn:turn.example.com",
		TURNUser:   "itoo",
		TURNPass:   "secret",
		ForceRelay: true,
	}
	got := ConfigFromClient(cfg)

	assert.Equal(t, webrtc.ICETransportPolicyRelay, got.Policy)
	assert.Len(t, got.ICEServers, 2)
	assert.Equal(t, []string{config.DefaultSTUN}, got.ICEServers[0].URLs)
	assert.Equal(t, "itoo", got.ICEServers[1].Username)

	noTurn := ConfigFromClient(&config.Client{STUNServer: config.DefaultSTUN, ForceRelay: true})
	assert.Equal(t, webrtc.ICETransportPolicyAll, noTurn.Policy)
	assert.Len(t, noTurn.ICEServers, 1)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "negotiating", StateNegotiating.String())
	assert.Equal(t, "State(9)", State(9).String())
}
