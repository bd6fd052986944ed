package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/plexlist/internal/shared"
)

const defaultPlexPort = "32400"

// FallbackHosts are tried, in order, when the configured Plex host cannot be reached.
var FallbackHosts = []string{"127.0.0.1", "localhost", "host.docker.internal"}

// ResolveURL returns the first reachable server address: raw itself, or raw with its host
// replaced by one of [FallbackHosts]. Reachability is a TCP connect within timeout.
func ResolveURL(ctx context.Context, raw string, timeout time.Duration) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: plex url %q", shared.ErrInvalidConfig, raw)
	}

	port := u.Port()
	if port == "" {
		port = defaultPlexPort
	}

	if reachable(ctx, net.JoinHostPort(u.Hostname(), port), timeout) {
		return raw, nil
	}

	for _, host := range FallbackHosts {
		if host == u.Hostname() {
			continue
		}
		if reachable(ctx, net.JoinHostPort(host, port), timeout) {
			alt := *u
			alt.Host = net.JoinHostPort(host, port)
			return alt.String(), nil
		}
	}

	return "", fmt.Errorf("%w: cannot reach plex at %s or any fallback host", shared.ErrServiceUnavailable, raw)
}

func reachable(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
