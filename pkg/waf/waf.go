// Package waf looks for signs of a web application firewall in front of
// the target: identifying response headers, and harmless probes that get
// a block status or a much shorter page than the baseline.
package waf

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/probe"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name findings are reported under.
const Module = "waf"

// Hint is a response header that some WAF or CDN vendors add.
type Hint struct {
	Header string
	Vendor string
}

// HeaderHints are matched case-insensitively against the baseline.
var HeaderHints = []Hint{
	{"x-sucuri-id", "Sucuri"},
	{"x-sucuri-cache", "Sucuri"},
	{"x-waf", ""},
	{"x-mod-security", "ModSecurity"},
	{"x-imperva-id", "Imperva"},
	{"cf-ray", "Cloudflare"},
	{"x-cdn", ""},
	{"x-akamai", "Akamai"},
	{"x-akamai-request-id", "Akamai"},
	{"x-datadome", "DataDome"},
	{"x-distil-cs", "Distil"},
}

// ProbeParam carries every probe value.
const ProbeParam = "waf_test"

// Probes are sent in order on ProbeParam.
var Probes = []string{"1<test>", "1%3Ctest%3E", "OR1=1"}

var blockStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusNotAcceptable:      true,
	http.StatusTooManyRequests:    true,
	http.StatusNotImplemented:     true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
}

const (
	shrinkDelta = 250
	shrinkRatio = 0.60
)

// Tester runs the WAF check.
type Tester struct {
	client probe.Requester
}

// NewTester returns a tester sending requests through client.
func NewTester(client probe.Requester) *Tester {
	return &Tester{client: client}
}

// Run fetches the target path once, then sends each probe without the
// target's own parameters.
func (t *Tester) Run(ctx context.Context, target string) ([]finding.Finding, error) {
	tgt, err := probe.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	out := probe.NewFindings(Module)
	baseline, err := t.client.Get(ctx, tgt.Path, scanclient.GetOptions{})
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("Baseline request failed", err.Error())
		return out.List(), nil
	}

	if hits, vendors := MatchHeaders(baseline.Header); len(hits) > 0 {
		detail := strings.Join(hits, ", ")
		if len(vendors) > 0 {
			detail += " (vendors: " + strings.Join(vendors, ", ") + ")"
		}
		out.Info("WAF suspected from headers", detail)
	}

	blocked := 0
	for _, v := range Probes {
		resp, err := probe.Send(ctx, t.client, tgt, map[string]string{ProbeParam: v})
		if err != nil {
			if probe.Fatal(err) {
				return out.List(), err
			}
			continue
		}
		if Blocked(baseline.StatusCode, baseline.Len(), resp.StatusCode, resp.Len()) {
			blocked++
		}
	}

	if blocked > 0 {
		sev := finding.Info
		if blocked >= 2 {
			sev = finding.Low
		}
		out.Add(sev, "Possible active filtering (WAF)", fmt.Sprintf("blocked probes=%d", blocked))
	}
	return out.List(), nil
}

// MatchHeaders returns the hint headers present in h, in hint order, and
// the distinct vendors they point to.
func MatchHeaders(h http.Header) (hits, vendors []string) {
	seen := make(map[string]bool)
	for _, hint := range HeaderHints {
		if _, ok := h[http.CanonicalHeaderKey(hint.Header)]; !ok {
			continue
		}
		hits = append(hits, hint.Header)
		if hint.Vendor != "" && !seen[hint.Vendor] {
			seen[hint.Vendor] = true
			vendors = append(vendors, hint.Vendor)
		}
	}
	return hits, vendors
}

// Blocked reports whether a probe response looks like a block compared
// with the baseline: a block status the baseline did not have, or the
// same status with a page that shrank sharply.
func Blocked(baseStatus, baseLen, status, length int) bool {
	if blockStatuses[status] && status != baseStatus {
		return true
	}
	return status == baseStatus &&
		probe.Delta(length, baseLen) > shrinkDelta &&
		float64(length) < float64(baseLen)*shrinkRatio
}
