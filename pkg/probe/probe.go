// Package probe holds the baseline-versus-variant pattern the active
// checks share.
//
// A check parses its target into a base URL and ordered parameters, sends
// one baseline request, then perturbs one parameter at a time with each
// payload variant and compares the response with the baseline. Request
// errors inside that loop are findings, not failures; only Fatal errors
// (spent budget, cancelled scan) leave the check early.
package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Getter fetches a path relative to the scan root.
type Getter interface {
	Get(ctx context.Context, path string, opts scanclient.GetOptions) (*scanclient.Response, error)
}

// Requester is the part of the scan client a probe needs.
type Requester interface {
	Getter
	RequestVariant(ctx context.Context, absURL string, params map[string]string) (*scanclient.Response, error)
}

var _ Requester = (*scanclient.Client)(nil)

// Param is one query parameter of a target.
type Param struct {
	Name  string
	Value string
}

// Target is a parsed scan target: the URL without its query, and the
// query's parameters in order of first appearance.
type Target struct {
	// Base is scheme://host/path with an empty path shown as "/".
	Base   string
	Path   string
	Params []Param
}

// ParseTarget splits raw into base and parameters. For a repeated name the
// first value wins. Parameters with an empty value are dropped.
func ParseTarget(raw string) (*Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanclient.ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", scanclient.ErrInvalidTarget, raw)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	t := &Target{
		Base: u.Scheme + "://" + u.Host + path,
		Path: path,
	}

	seen := make(map[string]bool)
	for _, part := range strings.Split(u.RawQuery, "&") {
		k, v, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(k)
		if err != nil || name == "" || seen[name] {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil || value == "" {
			continue
		}
		seen[name] = true
		t.Params = append(t.Params, Param{Name: name, Value: value})
	}
	return t, nil
}

// Names returns the parameter names in order.
func (t *Target) Names() []string {
	names := make([]string, len(t.Params))
	for i, p := range t.Params {
		names[i] = p.Name
	}
	return names
}

// Has reports whether the target carries a parameter called name.
func (t *Target) Has(name string) bool {
	for _, p := range t.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Value returns the value of name, or "" when absent.
func (t *Target) Value(name string) string {
	for _, p := range t.Params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// WithDefaults returns a copy of t extended by every name in names that it
// does not already carry, each set to sentinel.
func (t *Target) WithDefaults(names []string, sentinel string) *Target {
	out := &Target{Base: t.Base, Path: t.Path, Params: append([]Param(nil), t.Params...)}
	for _, n := range names {
		if n != "" && !out.Has(n) {
			out.Params = append(out.Params, Param{Name: n, Value: sentinel})
		}
	}
	return out
}

// Values returns the parameters as a map.
func (t *Target) Values() map[string]string {
	m := make(map[string]string, len(t.Params))
	for _, p := range t.Params {
		m[p.Name] = p.Value
	}
	return m
}

// Replace returns the parameter map with name set to value. name need not
// already be present.
func (t *Target) Replace(name, value string) map[string]string {
	m := t.Values()
	m[name] = value
	return m
}

// Baseline fetches the unmodified target: through RequestVariant when it
// has parameters, otherwise as a plain GET of its path.
func Baseline(ctx context.Context, r Requester, t *Target) (*scanclient.Response, error) {
	if len(t.Params) > 0 {
		return r.RequestVariant(ctx, t.Base, t.Values())
	}
	return r.Get(ctx, t.Path, scanclient.GetOptions{})
}

// Send issues one variant request against the target's base URL.
func Send(ctx context.Context, r Requester, t *Target, params map[string]string) (*scanclient.Response, error) {
	return r.RequestVariant(ctx, t.Base, params)
}

// Variants returns base followed by evasion when enabled.
func Variants[V any](base, evasion []V, enabled bool) []V {
	out := append([]V(nil), base...)
	if enabled {
		out = append(out, evasion...)
	}
	return out
}

// Delta returns |a-b|.
func Delta(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// Fatal reports whether err must end the check.
func Fatal(err error) bool {
	return scanclient.Fatal(err)
}

// Findings accumulates findings for one module.
type Findings struct {
	module string
	list   []finding.Finding
}

// NewFindings starts an empty list for module.
func NewFindings(module string) *Findings {
	return &Findings{module: module}
}

// Add appends a finding.
func (f *Findings) Add(sev finding.Severity, title, detail string) {
	f.list = append(f.list, finding.New(f.module, sev, title, detail))
}

// Info appends an info finding.
func (f *Findings) Info(title, detail string) {
	f.Add(finding.Info, title, detail)
}

// Any reports whether some finding satisfies match.
func (f *Findings) Any(match func(finding.Finding) bool) bool {
	for _, x := range f.list {
		if match(x) {
			return true
		}
	}
	return false
}

// List returns the accumulated findings.
func (f *Findings) List() []finding.Finding {
	return f.list
}
