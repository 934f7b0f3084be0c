// Package reflection checks whether query parameter values come back in
// the response body.
//
// Each parameter is set to a fixed token; when the token is echoed, a
// second token confirms the reflection follows the input rather than
// being a cached or coincidental match.
package reflection

import (
	"context"
	"fmt"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/probe"
)

// Module is the name findings are reported under.
const Module = "reflect"

const (
	tokenPrefix = "REFLECT_TEST_"
	firstToken  = tokenPrefix + "12345"
	secondToken = tokenPrefix + "A_B"

	maxParams = 20
	maxBody   = 300_000

	// extraDefault is the value given to parameters the target lacks.
	extraDefault = "1"
)

// Finding titles.
const (
	TitleReflected  = "Parameter reflected"
	TitleUnstable   = "Unstable reflection"
	TitleNoParams   = "No parameters"
	TitleNone       = "No reflection found"
	TitleParamError = "Parameter check failed"
)

// Config configures a Tester.
type Config struct {
	// ExtraParams are tested in addition to the target's own parameters.
	ExtraParams []string
}

// Tester runs the reflection check.
type Tester struct {
	client probe.Requester
	cfg    Config
}

// NewTester returns a tester sending requests through client.
func NewTester(client probe.Requester, cfg Config) *Tester {
	return &Tester{client: client, cfg: cfg}
}

// Run tests up to 20 parameters of target.
func (t *Tester) Run(ctx context.Context, target string) ([]finding.Finding, error) {
	tgt, err := probe.ParseTarget(target)
	if err != nil {
		return nil, err
	}
	tgt = tgt.WithDefaults(t.cfg.ExtraParams, extraDefault)

	out := probe.NewFindings(Module)
	if len(tgt.Params) == 0 {
		out.Info(TitleNoParams, "nothing to test")
		return out.List(), nil
	}

	names := tgt.Names()
	if len(names) > maxParams {
		names = names[:maxParams]
	}

	tested := 0
	for _, name := range names {
		resp, err := probe.Send(ctx, t.client, tgt, tgt.Replace(name, firstToken))
		if err != nil {
			if probe.Fatal(err) {
				return out.List(), err
			}
			out.Info(TitleParamError, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		if strings.Contains(iohelper.Head(resp.Text(), maxBody), firstToken) {
			confirm, err := probe.Send(ctx, t.client, tgt, tgt.Replace(name, secondToken))
			if err != nil {
				if probe.Fatal(err) {
					return out.List(), err
				}
				out.Info(TitleParamError, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			if strings.Contains(iohelper.Head(confirm.Text(), maxBody), secondToken) {
				out.Add(finding.Low, TitleReflected, name+" reflected in HTML")
			} else {
				out.Info(TitleUnstable, name)
			}
		}
		tested++
	}

	if !out.Any(func(f finding.Finding) bool { return f.Title == TitleReflected }) {
		out.Info(TitleNone, fmt.Sprintf("params tested=%d", tested))
	}
	return out.List(), nil
}
