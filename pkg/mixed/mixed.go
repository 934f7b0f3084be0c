// Package mixed looks for plain-http resources referenced from an https
// root page.
package mixed

import (
	"context"
	"fmt"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/probe"
	"github.com/vulnscan/vulnscan/pkg/regexcache"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name findings are reported under.
const Module = "mixed"

const (
	refPattern = `(?i)http://[^"'\s>]+`

	maxBody   = 300_000
	maxRefs   = 40
	maxListed = 10
	maxRefLen = 160
)

// Run fetches the root of baseURL and lists the http:// references in it.
// Non-https roots are skipped without a request.
func Run(ctx context.Context, client probe.Getter, baseURL string) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)
	if !strings.HasPrefix(baseURL, "https://") {
		out.Info("Not an HTTPS scheme", "mixed content check skipped")
		return out.List(), nil
	}

	resp, err := client.Get(ctx, "", scanclient.GetOptions{})
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("Root fetch failed", err.Error())
		return out.List(), nil
	}

	refs := References(iohelper.Head(resp.Text(), maxBody))
	if len(refs) == 0 {
		out.Info("No mixed content found", "")
		return out.List(), nil
	}

	out.Add(finding.Low, "HTTP resources on HTTPS page", fmt.Sprintf("count=%d", len(refs)))
	for _, ref := range refs[:min(len(refs), maxListed)] {
		out.Info("HTTP resource", iohelper.Head(ref, maxRefLen))
	}
	return out.List(), nil
}

// References returns the distinct http:// URLs in body in order of first
// appearance, at most 40.
func References(body string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, m := range regexcache.MustGet(refPattern).FindAllString(body, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		refs = append(refs, m)
		if len(refs) >= maxRefs {
			break
		}
	}
	return refs
}
