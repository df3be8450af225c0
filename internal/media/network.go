package media

import (
	"net"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
)

// Config holds what a session needs to build peer connections.
type Config struct {
	ICEServers []webrtc.ICEServer
	Policy     webrtc.ICETransportPolicy

	// API overrides the default pion API, e.g. with a custom SettingEngine.
	API *webrtc.API
}

// ConfigFromClient builds the ICE configuration. Relay-only ICE is used when
// a TURN server exists and either the user forced it or the host looks
// tunneled.
func ConfigFromClient(cfg *config.Client) Config {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}
	return Config{ICEServers: iceServers, Policy: policy}
}

// cgnatBlock is 100.64.0.0/10, used by carrier-grade NAT, Cloudflare WARP and
// Tailscale.
var cgnatBlock = func() *net.IPNet {
	_, block, _ := net.ParseCIDR("100.64.0.0/10")
	return block
}()

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		var ips []net.IP
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					ips = append(ips, v.IP)
				case *net.IPAddr:
					ips = append(ips, v.IP)
				}
			}
		}

		if looksTunneled(iface.Name, ips) {
			return true
		}
	}
	return false
}

// looksTunneled applies the interface name and CGNAT address heuristics to
// one interface.
func looksTunneled(name string, ips []net.IP) bool {
	name = strings.ToLower(name)
	for _, marker := range []string{"tun", "tap", "wg", "ppp", "warp"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	for _, ip := range ips {
		if cgnatBlock.Contains(ip) {
			return true
		}
	}
	return false
}
