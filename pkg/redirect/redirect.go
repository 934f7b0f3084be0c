// Package redirect checks redirect-style parameters for open redirects.
package redirect

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
const Module = "redirect"

// Destination is the external host every variant points at.
const Destination = "example.org"

// CandidateKeys mark a parameter as redirect-like when its lower-cased
// name contains one of them. Keys shorter than three characters must match
// the whole name.
var CandidateKeys = []string{"url", "next", "redirect", "return", "target", "dest", "destination", "continue", "r", "go"}

// Variant is one way of spelling the external destination.
type Variant struct {
	Tag      string
	Value    string
	Severity finding.Severity
}

// Variants are sent in order for every candidate.
var Variants = []Variant{
	{"abs", "https://" + Destination, finding.Medium},
	{"schemeless", "//" + Destination, finding.Medium},
	{"encoded", "%2F%2F" + Destination, finding.Low},
}

// Tester runs the open redirect check.
type Tester struct {
	client probe.Requester
}

// NewTester returns a tester sending requests through client.
func NewTester(client probe.Requester) *Tester {
	return &Tester{client: client}
}

// Candidates returns the redirect-like parameter names of t in order.
func Candidates(t *probe.Target) []string {
	var out []string
	for _, name := range t.Names() {
		if isCandidate(name) {
			out = append(out, name)
		}
	}
	return out
}

func isCandidate(name string) bool {
	low := strings.ToLower(name)
	for _, k := range CandidateKeys {
		if len(k) < 3 {
			if low == k {
				return true
			}
			continue
		}
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// Run sends every variant to every candidate parameter of target without
// following redirects.
func (t *Tester) Run(ctx context.Context, target string) ([]finding.Finding, error) {
	tgt, err := probe.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	out := probe.NewFindings(Module)
	candidates := Candidates(tgt)
	if len(candidates) == 0 {
		out.Info("No parameters found", "no typical redirect parameters")
		return out.List(), nil
	}

	for _, k := range candidates {
		for _, v := range Variants {
			resp, err := t.client.Get(ctx, tgt.Base, scanclient.GetOptions{
				Params:      tgt.Replace(k, v.Value),
				NoRedirects: true,
			})
			if err != nil {
				if probe.Fatal(err) {
					return out.List(), err
				}
				out.Info("Parameter check failed", fmt.Sprintf("%s/%s: %v", k, v.Tag, err))
				continue
			}

			loc := resp.Header.Get("Location")
			switch {
			case isRedirect(resp.StatusCode) && loc != "":
				if strings.Contains(loc, Destination) {
					out.Add(v.Severity, "Open redirect variant "+v.Tag, fmt.Sprintf("param=%s -> %s", k, loc))
				} else {
					out.Info("Redirect with modification", fmt.Sprintf("param=%s status=%d", k, resp.StatusCode))
				}
			case strings.Contains(resp.Text(), Destination):
				out.Add(finding.Low, "Redirect URL reflected", fmt.Sprintf("param=%s variant=%s", k, v.Tag))
			}
		}
	}
	return out.List(), nil
}
