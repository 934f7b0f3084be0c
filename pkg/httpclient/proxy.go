package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

var proxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks5":  true,
	"socks5h": true,
}

// Proxy is a parsed proxy URL.
type Proxy struct {
	URL *url.URL
}

// ParseProxy validates raw. A missing scheme defaults to http.
func ParseProxy(raw string) (*Proxy, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProxy, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if !proxySchemes[u.Scheme] {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrProxy, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrProxy)
	}
	if u.Port() == "" {
		port := "8080"
		if u.Scheme == "socks5" || u.Scheme == "socks5h" {
			port = "1080"
		}
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return &Proxy{URL: u}, nil
}

// IsSOCKS reports whether the proxy speaks SOCKS5.
func (p *Proxy) IsSOCKS() bool {
	return p.URL.Scheme == "socks5" || p.URL.Scheme == "socks5h"
}

// Apply routes t through the proxy. HTTP proxies use CONNECT via t.Proxy;
// SOCKS proxies replace the dialer.
func (p *Proxy) Apply(t *http.Transport) error {
	if !p.IsSOCKS() {
		t.Proxy = http.ProxyURL(p.URL)
		return nil
	}

	// x/net/proxy only knows "socks5"; hostnames are passed through to the
	// proxy either way, which is what socks5h asks for.
	u := *p.URL
	u.Scheme = "socks5"
	d, err := proxy.FromURL(&u, proxy.Direct)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProxy, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return fmt.Errorf("%w: dialer does not support contexts", ErrProxy)
	}
	t.Proxy = nil
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return cd.DialContext(ctx, network, addr)
	}
	return nil
}
