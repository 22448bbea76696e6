package voice

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// RequireSecureEndpoint enforces the capture policy: the backend endpoint
// must be loopback or carried over TLS before the microphone may be opened.
func RequireSecureEndpoint(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse endpoint %q: %w", raw, ErrSecureContext)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "wss", "https":
		return nil
	case "ws", "http":
		if isLoopbackHost(parsed.Hostname()) {
			return nil
		}
		return fmt.Errorf("endpoint %q: %w", raw, ErrSecureContext)
	default:
		return fmt.Errorf("endpoint %q has unsupported scheme %q: %w", raw, parsed.Scheme, ErrSecureContext)
	}
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
