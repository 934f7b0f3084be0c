// Package jsmap maps the JavaScript served by the root page: which scripts
// it loads, which /rest/ routes they mention, and how many template
// expressions they carry.
package jsmap

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/probe"
	"github.com/vulnscan/vulnscan/pkg/regexcache"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name findings are reported under.
const Module = "jsmap"

// TitleRoute marks one discovered API route; the detail is the route.
const TitleRoute = "API route"

const (
	scriptPattern   = `(?i)<script[^>]+src=["']([^"']+)`
	routePattern    = `/rest/[a-zA-Z0-9_\-/]+`
	templatePattern = `\{\{[^}]+\}\}`

	maxBody        = 400_000
	maxScripts     = 40
	maxRoutes      = 200
	templateWindow = 50_000
)

// Run fetches the root page of baseURL and every same-host script it
// references. Scripts on other hosts are counted but not fetched.
func Run(ctx context.Context, client probe.Getter, baseURL string) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	root, err := fetch(ctx, client, "")
	if err != nil {
		return out.List(), err
	}
	if root == "" {
		out.Info("Root page unavailable", "")
		return out.List(), nil
	}

	scripts := Scripts(root, base)
	out.Info("Scripts found", strconv.Itoa(len(scripts)))

	seen := make(map[string]bool)
	templates := 0
	for _, s := range scripts {
		if s.Host != base.Host {
			continue
		}
		body, err := fetch(ctx, client, s.String())
		if err != nil {
			return out.List(), err
		}
		if body == "" {
			continue
		}
		for _, r := range regexcache.MustGet(routePattern).FindAllString(body, -1) {
			if len(seen) < maxRoutes && !seen[r] {
				seen[r] = true
				out.Info(TitleRoute, r)
			}
		}
		templates += len(regexcache.MustGet(templatePattern).FindAllStringIndex(iohelper.Head(body, templateWindow), -1))
	}

	if templates > 0 {
		out.Info("Template expressions", "count ~"+strconv.Itoa(templates))
	}
	out.Info("Total API routes", strconv.Itoa(len(seen)))
	return out.List(), nil
}

// fetch returns the body of path when it looks like script or HTML. Request
// failures read as an empty body; only fatal errors are returned.
func fetch(ctx context.Context, client probe.Getter, path string) (string, error) {
	resp, err := client.Get(ctx, path, scanclient.GetOptions{})
	if err != nil {
		if probe.Fatal(err) {
			return "", err
		}
		return "", nil
	}
	ct := resp.ContentType()
	if path == "" || strings.Contains(ct, "javascript") || strings.Contains(ct, "text/html") ||
		strings.HasSuffix(strings.SplitN(path, "?", 2)[0], ".js") {
		return iohelper.Head(resp.Text(), maxBody), nil
	}
	return "", nil
}

// Scripts returns the script src URLs of body resolved against base, at
// most 40, in order of appearance.
func Scripts(body string, base *url.URL) []*url.URL {
	var out []*url.URL
	for _, src := range regexcache.Submatches(scriptPattern, body) {
		ref, err := url.Parse(strings.TrimSpace(src))
		if err != nil {
			continue
		}
		out = append(out, base.ResolveReference(ref))
		if len(out) >= maxScripts {
			break
		}
	}
	return out
}

// RoutesFromFindings returns the routes of the TitleRoute findings of f.
func RoutesFromFindings(f []finding.Finding) []string {
	var routes []string
	for _, x := range f {
		if x.Module == Module && x.Title == TitleRoute {
			routes = append(routes, x.Detail)
		}
	}
	return routes
}
