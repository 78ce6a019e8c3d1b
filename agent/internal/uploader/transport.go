package uploader

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// DefaultTimeout bounds a single request when none is configured.
const DefaultTimeout = 15 * time.Second

// TLSOptions configures the transport's server verification.
type TLSOptions struct {
	InsecureSkipVerify bool
	CAFile             string
}

// credentialTransport sets the agent key header on every outgoing request.
type credentialTransport struct {
	base   http.RoundTripper
	header string
	key    string
}

func (t *credentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(t.header, t.key)
	return t.base.RoundTrip(req)
}

// NewHTTPClient builds the http.Client shared by uploads and key validation.
func NewHTTPClient(timeout time.Duration, opts TLSOptions) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tlsCfg := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // operator-configured
		MinVersion:         tls.VersionTLS12,
	}
	if opts.CAFile != "" {
		caPEM, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("uploader: read ca file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("uploader: no valid certs in ca file %q", opts.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// WithCredential returns a copy of client whose requests carry key in header.
func WithCredential(client *http.Client, header, key string) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := *client
	c.Transport = &credentialTransport{base: base, header: header, key: key}
	return &c
}
