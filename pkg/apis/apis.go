// Package apis requests a fixed set of REST endpoints, plus any routes
// discovered elsewhere, and inspects the JSON they return.
package apis

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/jsonutil"
	"github.com/vulnscan/vulnscan/pkg/probe"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name findings are reported under.
const Module = "apis"

// CommonEndpoints are always requested, in order.
var CommonEndpoints = []string{
	"/rest/products",
	"/rest/products/1",
	"/rest/user/login",
	"/rest/user/whoami",
	"/rest/basket/1",
	"/rest/admin/application-version",
	"/rest/complaints",
	"/rest/reviews",
}

// SensitiveKeys are matched as substrings of lower-cased top-level keys.
var SensitiveKeys = []string{"token", "jwt", "auth", "role", "admin", "password"}

const (
	routePrefix  = "/rest/"
	maxEndpoints = 200
	maxJSON      = 5000
	maxKeys      = 40
	keysShown    = 6
	maxCTLen     = 60
	maxDetailLen = 160
)

// Config configures a Tester.
type Config struct {
	// Extra are additional routes; only /rest/ routes are kept.
	Extra []string
}

// Tester runs the API check.
type Tester struct {
	client probe.Getter
	cfg    Config
}

// NewTester returns a tester sending requests through client.
func NewTester(client probe.Getter, cfg Config) *Tester {
	return &Tester{client: client, cfg: cfg}
}

// Endpoints returns CommonEndpoints followed by the distinct /rest/ routes
// of extra, at most 200 in total.
func Endpoints(extra []string) []string {
	out := append([]string(nil), CommonEndpoints...)
	seen := make(map[string]bool, len(out))
	for _, e := range out {
		seen[e] = true
	}
	for _, e := range extra {
		if len(out) >= maxEndpoints {
			break
		}
		if strings.HasPrefix(e, routePrefix) && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// Run requests every endpoint. A 200 JSON answer is low; one exposing
// password or jwt keys is medium.
func (t *Tester) Run(ctx context.Context) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)

	for _, ep := range Endpoints(t.cfg.Extra) {
		resp, err := t.client.Get(ctx, ep, scanclient.GetOptions{})
		if err != nil {
			if probe.Fatal(err) {
				return out.List(), err
			}
			out.Info(fmt.Sprintf("API %s error", ep), err.Error())
			continue
		}

		ct := resp.ContentType()
		sev := finding.Info
		var keys, sensitive []string
		if resp.StatusCode == http.StatusOK && strings.Contains(strings.ToLower(ct), "json") {
			sev = finding.Low
			if k, err := jsonutil.ObjectKeys([]byte(iohelper.Head(resp.Text(), maxJSON)), maxKeys); err == nil {
				keys = k
				sensitive = Sensitive(keys)
			}
			for _, s := range sensitive {
				if s == "password" || s == "jwt" {
					sev = finding.Medium
				}
			}
		}

		detail := iohelper.Head(ct, maxCTLen)
		if len(keys) > 0 {
			detail += " keys=" + strings.Join(keys[:min(len(keys), keysShown)], ",")
		}
		if len(sensitive) > 0 {
			detail += " sens=" + strings.Join(sensitive, ",")
		}
		out.Add(sev, fmt.Sprintf("API %s -> %d", ep, resp.StatusCode), iohelper.Head(detail, maxDetailLen))
		if len(sensitive) > 0 {
			out.Info("Sensitive fields "+ep, strings.Join(sensitive, ","))
		}
	}
	return out.List(), nil
}

// Sensitive returns the SensitiveKeys patterns found in keys, in the order
// they are first matched.
func Sensitive(keys []string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, k := range keys {
		low := strings.ToLower(k)
		for _, p := range SensitiveKeys {
			if strings.Contains(low, p) && !seen[p] {
				seen[p] = true
				found = append(found, p)
			}
		}
	}
	return found
}
