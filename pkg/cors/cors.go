// Package cors checks how the target answers cross-origin requests from an
// origin it has no reason to trust.
package cors

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
const Module = "cors"

// TestOrigin is sent as Origin on every request.
const TestOrigin = "https://example-bugbounty-origin.test"

const (
	headerACAO = "Access-Control-Allow-Origin"
	headerACAC = "Access-Control-Allow-Credentials"
)

// Requester is the part of the scan client the check uses.
type Requester interface {
	Get(ctx context.Context, path string, opts scanclient.GetOptions) (*scanclient.Response, error)
	Options(ctx context.Context, path string, headers map[string]string) (*scanclient.Response, error)
}

// Tester runs the CORS check against the site root.
type Tester struct {
	client Requester
}

// NewTester returns a tester sending requests through client.
func NewTester(client Requester) *Tester {
	return &Tester{client: client}
}

// Run sends a preflight, then a simple GET, both carrying TestOrigin.
func (t *Tester) Run(ctx context.Context) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)

	pre, err := t.client.Options(ctx, "", map[string]string{
		"Origin":                        TestOrigin,
		"Access-Control-Request-Method": http.MethodGet,
	})
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("CORS preflight error", err.Error())
	} else {
		sev, detail := Preflight(pre.Header)
		out.Add(sev, "CORS preflight", detail)
	}

	resp, err := t.client.Get(ctx, "", scanclient.GetOptions{
		Headers: map[string]string{"Origin": TestOrigin},
	})
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("CORS GET error", err.Error())
		return out.List(), nil
	}

	acao, acac := resp.Header.Get(headerACAO), resp.Header.Get(headerACAC)
	if acao == "" {
		out.Info("CORS GET without ACAO", "")
		return out.List(), nil
	}
	out.Add(Simple(acao, acac), "CORS GET response", fmt.Sprintf("ACAO=%s; ACAC=%s", acao, acac))
	return out.List(), nil
}

// Preflight rates a preflight response: a wildcard origin is low, and a
// wildcard with credentials allowed is medium.
func Preflight(h http.Header) (finding.Severity, string) {
	acao, acac := h.Get(headerACAO), h.Get(headerACAC)
	sev := finding.Info
	var detail []string

	if acao != "" {
		detail = append(detail, "ACAO="+acao)
		if acao == "*" {
			sev = finding.Low
		}
	} else {
		detail = append(detail, "ACAO=absent")
	}
	if acac != "" {
		detail = append(detail, "ACAC="+acac)
		if strings.EqualFold(acac, "true") && acao == "*" {
			sev = finding.Medium
		}
	}
	return sev, strings.Join(detail, ", ")
}

// Simple rates the allow headers of a plain GET. Both a wildcard and an
// echo of the test origin with credentials are low.
func Simple(acao, acac string) finding.Severity {
	if acao == "*" {
		return finding.Low
	}
	if strings.EqualFold(acac, "true") && acao == TestOrigin {
		return finding.Low
	}
	return finding.Info
}
