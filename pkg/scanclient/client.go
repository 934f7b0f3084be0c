// Package scanclient is the single path every scan request takes.
//
// A Client composes the sliding-window rate limiter, the adaptive ceiling
// controller, the request budget and the root-page cache around one pooled
// transport. Each request is admitted by the limiter, counted against the
// budget, sent with the identifying default headers, and its outcome fed
// back to the controller. Checks only ever see this type.
package scanclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vulnscan/vulnscan/pkg/budget"
	"github.com/vulnscan/vulnscan/pkg/cache"
	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/duration"
	"github.com/vulnscan/vulnscan/pkg/httpclient"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/metrics"
	"github.com/vulnscan/vulnscan/pkg/ratelimit"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the scan target. Only its scheme and host are kept; the
	// root "scheme://host/" is what relative paths resolve against.
	BaseURL string

	// MaxRPS is the baseline requests-per-second ceiling. <= 0 disables
	// rate limiting. Callers clamp it to defaults.MaxRPSCeiling.
	MaxRPS float64

	// Timeout bounds one request (default 12s).
	Timeout time.Duration

	// MaxRequests caps total request attempts. <= 0 is unlimited.
	MaxRequests int

	// Adaptive enables outcome-driven ceiling adjustment.
	Adaptive bool

	// OnAdaptiveEvent is called after each applied adjustment (optional).
	OnAdaptiveEvent ratelimit.EventFunc

	// Headers are added to the default header set; they override the
	// defaults and are overridden by per-call headers.
	Headers map[string]string

	Proxy              string
	InsecureSkipVerify bool

	// MaxBodySize bounds how much of each body is read (default 2MB).
	MaxBodySize int64

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// GetOptions are per-call options for Get.
type GetOptions struct {
	Params      map[string]string
	Headers     map[string]string
	NoRedirects bool
	BypassCache bool
}

// Client issues rate limited, budgeted requests against one target.
// It is safe for concurrent use.
type Client struct {
	base     *url.URL
	follow   *http.Client
	noFollow *http.Client

	limiter  *ratelimit.Limiter
	adaptive *ratelimit.Controller
	budget   *budget.Budget
	cache    *cache.Cache[*Response]

	maxBody int64
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New validates cfg.BaseURL and builds a client.
func New(cfg Config) (*Client, error) {
	base, err := RootURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaults.MaxBodySize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.HTTPRequest
	}

	hcfg := httpclient.Config{
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Proxy:              cfg.Proxy,
		Headers:            httpclient.MergeHeaders(DefaultHeaders(), cfg.Headers),
	}
	transport, err := httpclient.NewTransport(hcfg)
	if err != nil {
		return nil, err
	}
	noFollow := httpclient.NewClient(transport, hcfg)
	hcfg.FollowRedirects = true
	follow := httpclient.NewClient(transport, hcfg)

	c := &Client{
		base:     base,
		follow:   follow,
		noFollow: noFollow,
		limiter:  ratelimit.New(cfg.MaxRPS),
		budget:   budget.New(cfg.MaxRequests),
		cache:    cache.New[*Response](),
		maxBody:  cfg.MaxBodySize,
		logger:   logger,
		metrics:  cfg.Metrics,
	}

	onEvent := cfg.OnAdaptiveEvent
	c.adaptive = ratelimit.NewController(c.limiter, ratelimit.AdaptiveConfig{
		Enabled: cfg.Adaptive,
		OnEvent: func(event ratelimit.EventType, ceiling float64) {
			c.logger.Info("adaptive rate change",
				slog.String("event", string(event)),
				slog.Float64("ceiling", ceiling))
			c.metrics.AdaptiveEvent(string(event))
			c.metrics.SetCeiling(ceiling)
			if onEvent != nil {
				onEvent(event, ceiling)
			}
		},
	})
	c.metrics.SetCeiling(cfg.MaxRPS)
	return c, nil
}

// DefaultHeaders returns the identifying headers sent with every request.
func DefaultHeaders() map[string]string {
	return map[string]string{
		defaults.HeaderName: defaults.HeaderValue,
		"User-Agent":        defaults.UserAgent,
	}
}

// RootURL parses raw and reduces it to "scheme://host/". Anything but an
// absolute http or https URL is rejected with ErrInvalidTarget.
func RootURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidTarget, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidTarget, raw)
	}
	return &url.URL{Scheme: scheme, Host: u.Host, Path: "/"}, nil
}

// BaseURL returns the root every relative path resolves against. It always
// ends with "/".
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Requests returns the number of request attempts counted so far.
func (c *Client) Requests() int64 {
	return c.budget.Count()
}

// Ceiling returns the current requests-per-second ceiling.
func (c *Client) Ceiling() float64 {
	return c.limiter.Ceiling()
}

// Baseline returns the configured ceiling the adaptive controller
// recovers towards.
func (c *Client) Baseline() float64 {
	return c.adaptive.Baseline()
}

// Resolve turns path into an absolute URL. Absolute http(s) inputs pass
// through unchanged; anything else is joined to the root after stripping
// leading slashes.
func (c *Client) Resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("scanclient: bad path %q: %w", path, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// Get issues a GET for path. Only the bare root with no params, no headers
// and redirects followed is served from or stored in the cache, and only a
// 200 response is stored.
func (c *Client) Get(ctx context.Context, path string, opts GetOptions) (*Response, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}
	if len(opts.Params) > 0 {
		if target, err = withParams(target, opts.Params); err != nil {
			return nil, err
		}
	}

	var key string
	if cache.Cacheable(path, len(opts.Params) > 0, len(opts.Headers) > 0, opts.BypassCache || opts.NoRedirects) {
		key = cache.Key(http.MethodGet, target)
		if resp, ok := c.cache.Get(key); ok {
			c.logger.Debug("cache hit", slog.String("url", target))
			return resp, nil
		}
	}

	resp, err := c.do(ctx, http.MethodGet, target, opts.Headers, !opts.NoRedirects)
	if err != nil {
		return nil, err
	}
	if key != "" && resp.StatusCode == http.StatusOK {
		c.cache.Put(key, resp)
	}
	return resp, nil
}

// Head issues a HEAD for path, following redirects.
func (c *Client) Head(ctx context.Context, path string) (*Response, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodHead, target, nil, true)
}

// Options issues an OPTIONS for path with extra headers, following
// redirects.
func (c *Client) Options(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodOptions, target, headers, true)
}

// RequestVariant issues a GET on an absolute URL with params merged into
// its query string; params win over an existing value of the same name.
// It is the primitive behind every baseline-versus-variant comparison.
func (c *Client) RequestVariant(ctx context.Context, absURL string, params map[string]string) (*Response, error) {
	target, err := withParams(absURL, params)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, target, nil, true)
}

func withParams(raw string, params map[string]string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("scanclient: bad url %q: %w", raw, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// do runs one attempt: admission, budget, network call, outcome.
func (c *Client) do(ctx context.Context, method, target string, headers map[string]string, follow bool) (*Response, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := c.budget.Increment(); err != nil {
		return nil, err
	}
	c.metrics.SetBudgetUsed(c.budget.Count())

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("scanclient: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hc := c.noFollow
	if follow {
		hc = c.follow
	}

	start := time.Now()
	resp, err := c.roundTrip(hc, req)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.adaptive.Record(false, 0)
		c.metrics.ObserveRequest(method, 0, elapsed)
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("url", target),
			slog.String("error", err.Error()))
		return nil, &RequestError{
			Method: method,
			URL:    target,
			Kind:   httpclient.Classify(err),
			Err:    err,
		}
	}

	c.adaptive.Record(true, resp.StatusCode)
	c.metrics.ObserveRequest(method, resp.StatusCode, elapsed)
	c.logger.Debug("request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", resp.Len()),
		slog.Duration("elapsed", elapsed))
	return resp, nil
}

// roundTrip sends req and reads the body in full so a body read failure
// counts as a failed attempt.
func (c *Client) roundTrip(hc *http.Client, req *http.Request) (*Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer iohelper.DrainAndClose(resp.Body)

	body, truncated, err := iohelper.ReadBody(resp.Body, c.maxBody)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Truncated:  truncated,
		URL:        resp.Request.URL.String(),
	}, nil
}
