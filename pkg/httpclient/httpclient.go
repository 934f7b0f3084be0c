// Package httpclient builds the transport every scan request goes through.
//
// One transport is shared per scan so keep-alive connections are reused
// whether or not a request follows redirects.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/vulnscan/vulnscan/pkg/duration"
)

// Config holds transport and client options.
type Config struct {
	// Timeout bounds one request including reading the body (default 12s).
	Timeout time.Duration

	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool

	// Proxy is an optional http, https, socks5 or socks5h proxy URL.
	Proxy string

	// Headers are added to every request that does not already carry them.
	Headers http.Header

	// FollowRedirects makes the client follow up to 10 redirects.
	FollowRedirects bool

	MaxIdleConns    int
	MaxConnsPerHost int
}

// DefaultConfig returns the scanner's transport defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         duration.HTTPRequest,
		MaxIdleConns:    32,
		MaxConnsPerHost: 8,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.MaxConnsPerHost <= 0 {
		c.MaxConnsPerHost = d.MaxConnsPerHost
	}
}

// NewTransport returns a pooled transport configured from cfg. It fails
// only when cfg.Proxy is malformed.
func NewTransport(cfg Config) (*http.Transport, error) {
	cfg.applyDefaults()

	dialer := &net.Dialer{
		Timeout:   duration.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       duration.IdleConnTimeout,
		TLSHandshakeTimeout:   duration.TLSHandshake,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
		DialContext:           dialer.DialContext,
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in via -insecure
		},
	}

	if cfg.Proxy != "" {
		p, err := ParseProxy(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		if err := p.Apply(transport); err != nil {
			return nil, err
		}
	}
	return transport, nil
}

// NewClient wraps rt in an http.Client with cfg's timeout, default headers
// and redirect policy.
func NewClient(rt http.RoundTripper, cfg Config) *http.Client {
	cfg.applyDefaults()

	if len(cfg.Headers) > 0 {
		rt = &headerTransport{base: rt, headers: cfg.Headers}
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// New builds a transport and a client on top of it.
func New(cfg Config) (*http.Client, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(transport, cfg), nil
}
