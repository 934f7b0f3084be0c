// Package stats fetches a few well-known paths and summarizes the status
// codes the target returns.
package stats

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/probe"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name findings are reported under.
const Module = "stats"

// Paths are fetched in order, relative to the scan root.
var Paths = []string{"", "robots.txt", "sitemap.xml"}

// Run fetches every path and reports one finding per request plus a
// status summary. Any 5xx answer adds a low finding.
func Run(ctx context.Context, client probe.Getter) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)
	counts := make(map[int]int)

	for _, p := range Paths {
		resp, err := client.Get(ctx, p, scanclient.GetOptions{})
		if err != nil {
			if probe.Fatal(err) {
				return out.List(), err
			}
			out.Info("Request error", fmt.Sprintf("%s: %v", display(p), err))
			continue
		}
		counts[resp.StatusCode]++
		out.Info("Request", fmt.Sprintf("%s -> %d", display(p), resp.StatusCode))
	}

	if len(counts) == 0 {
		return out.List(), nil
	}
	summary := Summary(counts)
	out.Info("Status summary", summary)
	for code := range counts {
		if code >= 500 {
			out.Add(finding.Low, "5xx responses observed", summary)
			break
		}
	}
	return out.List(), nil
}

func display(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// Summary renders counts as "code:n" pairs in ascending code order.
func Summary(counts map[int]int) string {
	codes := make([]int, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%d:%d", c, counts[c])
	}
	return strings.Join(parts, ", ")
}
