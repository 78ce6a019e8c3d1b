package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single resolution.
const DefaultTimeout = 5 * time.Second

// ConnectivityError is recorded as the cause of an upload attempt that was
// skipped because the server host did not resolve.
type ConnectivityError struct {
	Host string
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("probe: %s is unreachable (dns lookup failed)", e.Host)
}

// lookupFunc resolves a host. Abstracted so tests do not depend on DNS.
type lookupFunc func(ctx context.Context, host string) ([]string, error)

// DNSProber resolves one host name.
type DNSProber struct {
	host    string
	timeout time.Duration
	lookup  lookupFunc
}

// New returns a prober for host. A non-positive timeout uses DefaultTimeout.
func New(host string, timeout time.Duration) *DNSProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DNSProber{
		host:    host,
		timeout: timeout,
		lookup:  net.DefaultResolver.LookupHost,
	}
}

// ForURL returns a prober for the host part of rawURL.
func ForURL(rawURL string, timeout time.Duration) (*DNSProber, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("probe: parse %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("probe: %q has no host", rawURL)
	}
	return New(u.Hostname(), timeout), nil
}

// Host returns the name this prober resolves.
func (p *DNSProber) Host() string { return p.host }

// Probe reports whether the host resolves within the timeout.
func (p *DNSProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addrs, err := p.lookup(ctx, p.host)
	if err != nil || len(addrs) == 0 {
		slog.Debug("probe: host did not resolve", "host", p.host, "err", err)
		return false
	}
	return true
}

// Unreachable returns the error recorded for a skipped attempt.
func (p *DNSProber) Unreachable() error {
	return &ConnectivityError{Host: p.host}
}
