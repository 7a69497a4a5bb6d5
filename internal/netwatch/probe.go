package netwatch

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/services"
)

// Checker reports connectivity to the backend.
type Checker interface {
	Online(ctx context.Context) bool
}

// Probe checks reachability by opening a TCP connection to the API host.
type Probe struct {
	address string
	timeout time.Duration
	dialer  *net.Dialer
}

// NewProbe builds a probe for the host of baseURL. The port defaults from the
// URL scheme.
func NewProbe(baseURL string, timeout time.Duration) (*Probe, error) {
	address, err := hostPort(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Probe{address: address, timeout: timeout, dialer: &net.Dialer{}}, nil
}

// NewProbeFromConfig uses api.base_url and sync.connectivity_timeout.
func NewProbeFromConfig(cfg *config.Config) (*Probe, error) {
	return NewProbe(cfg.API.BaseURL, cfg.ConnectivityTimeout())
}

// Address returns the host:port being probed.
func (p *Probe) Address() string {
	return p.address
}

// Online reports whether a connection could be opened within the timeout.
func (p *Probe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func hostPort(baseURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "netwatch", "parse base url", baseURL, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", services.Wrap(services.ErrConfiguration, "netwatch", "parse base url", fmt.Sprintf("%q has no host", baseURL), nil)
	}
	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", services.Wrap(services.ErrConfiguration, "netwatch", "parse base url", fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
		}
	}
	return net.JoinHostPort(host, port), nil
}

// Always is a Checker with a fixed answer.
type Always bool

func (a Always) Online(context.Context) bool { return bool(a) }
