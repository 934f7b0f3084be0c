package modules

import (
	"context"

	"github.com/vulnscan/vulnscan/pkg/apis"
	"github.com/vulnscan/vulnscan/pkg/cors"
	"github.com/vulnscan/vulnscan/pkg/crawler"
	"github.com/vulnscan/vulnscan/pkg/exposures"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/forms"
	"github.com/vulnscan/vulnscan/pkg/jsmap"
	"github.com/vulnscan/vulnscan/pkg/mixed"
	"github.com/vulnscan/vulnscan/pkg/policy"
	"github.com/vulnscan/vulnscan/pkg/redirect"
	"github.com/vulnscan/vulnscan/pkg/reflection"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
	"github.com/vulnscan/vulnscan/pkg/sqli"
	"github.com/vulnscan/vulnscan/pkg/ssrf"
	"github.com/vulnscan/vulnscan/pkg/stats"
	"github.com/vulnscan/vulnscan/pkg/waf"
	"github.com/vulnscan/vulnscan/pkg/xss"
)

type runFunc func(ctx context.Context, c *scanclient.Client, target string, opts Options) ([]finding.Finding, error)

// builtin adapts a check package to Module.
type builtin struct {
	id   ID
	desc string
	run  runFunc
}

func (b builtin) ID() ID              { return b.id }
func (b builtin) Description() string { return b.desc }

func (b builtin) Run(ctx context.Context, c *scanclient.Client, target string, opts Options) ([]finding.Finding, error) {
	return b.run(ctx, c, target, opts)
}

func builtins() []Module {
	return []Module{
		builtin{Policy, "security.txt presence and fields", runPolicy},
		builtin{Crawl, "same-host page and parameter discovery", runCrawl},
		builtin{Forms, "form inventory of the root page", runForms},
		builtin{CORS, "cross-origin preflight and GET behaviour", runCORS},
		builtin{Exposures, "fixed list of sensitive files (HEAD first)", runExposures},
		builtin{Redirect, "open redirect through redirect-style parameters", runRedirect},
		builtin{JSMap, "script sources, API routes and template expressions", runJSMap},
		builtin{APIs, "REST endpoint exposure and sensitive JSON keys", runAPIs},
		builtin{Mixed, "plain-http resources on an https root", runMixed},
		builtin{XSS, "reflected XSS signals with benign markers", runXSS},
		builtin{SQLi, "error and boolean SQL injection signals", runSQLi},
		builtin{SSRF, "URL-like parameters (passive)", runSSRF},
		builtin{Reflect, "parameter reflection with confirmation", runReflect},
		builtin{WAF, "WAF headers and filtering of harmless probes", runWAF},
		builtin{Stats, "status codes of well-known paths", runStats},
	}
}

func runCrawl(ctx context.Context, c *scanclient.Client, target string, opts Options) ([]finding.Finding, error) {
	cfg := opts.Crawl
	if cfg == (crawler.Config{}) {
		cfg = crawler.DefaultConfig()
	}
	res, err := crawler.New(c, cfg).Crawl(ctx, target)
	if res == nil {
		return nil, err
	}
	return res.Findings, err
}

func runExposures(ctx context.Context, c *scanclient.Client, _ string, _ Options) ([]finding.Finding, error) {
	return exposures.Run(ctx, c)
}

func runReflect(ctx context.Context, c *scanclient.Client, target string, opts Options) ([]finding.Finding, error) {
	return reflection.NewTester(c, reflection.Config{ExtraParams: opts.Params}).Run(ctx, target)
}

func runXSS(ctx context.Context, c *scanclient.Client, target string, opts Options) ([]finding.Finding, error) {
	cfg := xss.DefaultConfig()
	cfg.Params = opts.Params
	cfg.Evasion = opts.Evasion
	return xss.NewTester(c, cfg).Run(ctx, target)
}

func runSQLi(ctx context.Context, c *scanclient.Client, target string, opts Options) ([]finding.Finding, error) {
	return sqli.NewTester(c, sqli.Config{Params: opts.Params, Evasion: opts.Evasion}).Run(ctx, target)
}

func runRedirect(ctx context.Context, c *scanclient.Client, target string, _ Options) ([]finding.Finding, error) {
	return redirect.NewTester(c).Run(ctx, target)
}

func runWAF(ctx context.Context, c *scanclient.Client, target string, _ Options) ([]finding.Finding, error) {
	return waf.NewTester(c).Run(ctx, target)
}

func runCORS(ctx context.Context, c *scanclient.Client, _ string, _ Options) ([]finding.Finding, error) {
	return cors.NewTester(c).Run(ctx)
}

func runSSRF(ctx context.Context, _ *scanclient.Client, target string, _ Options) ([]finding.Finding, error) {
	return ssrf.Analyze(ctx, target)
}

func runMixed(ctx context.Context, c *scanclient.Client, _ string, _ Options) ([]finding.Finding, error) {
	return mixed.Run(ctx, c, c.BaseURL())
}

func runStats(ctx context.Context, c *scanclient.Client, _ string, _ Options) ([]finding.Finding, error) {
	return stats.Run(ctx, c)
}

func runForms(ctx context.Context, c *scanclient.Client, _ string, _ Options) ([]finding.Finding, error) {
	return forms.Run(ctx, c)
}

func runPolicy(ctx context.Context, c *scanclient.Client, _ string, _ Options) ([]finding.Finding, error) {
	return policy.Run(ctx, c)
}

func runJSMap(ctx context.Context, c *scanclient.Client, _ string, _ Options) ([]finding.Finding, error) {
	return jsmap.Run(ctx, c, c.BaseURL())
}

func runAPIs(ctx context.Context, c *scanclient.Client, _ string, opts Options) ([]finding.Finding, error) {
	return apis.NewTester(c, apis.Config{Extra: opts.ExtraRoutes}).Run(ctx)
}
