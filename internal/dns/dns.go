package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// publicDNS are servers to be queried if a local lookup fails
var publicDNS = []string{
	"1.1.1.1",                // Cloudflare
	"1.0.0.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.8.8",                // Google
	"8.8.4.4",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
}

// Resolver looks up a host through one DNS path.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

var (
	localTimeout  = 1 * time.Second
	remoteTimeout = 2 * time.Second

	systemResolver Resolver = &net.Resolver{}
	publicResolver          = func(server string) Resolver {
		return &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := new(net.Dialer)
				return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
			},
		}
	}
)

// Lookup resolves a relay hostname to an IP address. IP literals are returned
// as they are. The system resolver is tried first; when it fails, public DNS
// servers are raced and the first answer wins.
func Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	lctx, cancel := context.WithTimeout(ctx, localTimeout)
	ip, err := lookupWith(lctx, systemResolver, host)
	cancel()
	if err == nil {
		return ip, nil
	}

	servers := make([]Resolver, len(publicDNS))
	for i, server := range publicDNS {
		servers[i] = publicResolver(server)
	}
	return race(ctx, host, servers)
}

// race queries every resolver at once and returns the first success.
func race(ctx context.Context, host string, resolvers []Resolver) (string, error) {
	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	results := make(chan result, len(resolvers))
	for _, r := range resolvers {
		go func(r Resolver) {
			ip, err := lookupWith(ctx, r, host)
			results <- result{ip: ip, err: err}
		}(r)
	}

	failures := 0
	for range resolvers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("dns lookup of %s timed out", host)
		}
	}
	return "", fmt.Errorf("failed to resolve %s: all %d resolvers failed", host, failures)
}

func lookupWith(ctx context.Context, r Resolver, host string) (string, error) {
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("no IP addresses found")
	}

	// Prefer IPv4
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

// DialContext resolves the host part of addr with Lookup before dialing.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip, err := Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}
