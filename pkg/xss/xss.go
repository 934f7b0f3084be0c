// Package xss looks for reflected cross-site scripting signals.
//
// For each parameter a unique marker is sent alone, then with a raw quote
// and with an attribute-breaking suffix. A marker that comes back is a
// reflection (low); a quote that comes back unescaped raises it to medium.
// The check never sends script content.
package xss

import (
	"context"
	"fmt"
	"html"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vulnscan/vulnscan/pkg/duration"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/probe"
)

// Module is the name findings are reported under.
const Module = "xss"

// MarkerPrefix starts every marker value.
const MarkerPrefix = "XSS_TEST_"

// Context is where in the page a marker was reflected.
type Context string

const (
	ContextScript    Context = "script-block"
	ContextEvent     Context = "event-handler"
	ContextAttribute Context = "attribute"
	ContextText      Context = "text"
)

// Attempt tags.
const (
	tagRef       = "ref"
	tagQuote     = "quote"
	tagAttr      = "attr_injection"
	tagPctQuote  = "pct_quote"
	tagEntQuote  = "html_ent_q"
	tagBacktick  = "backtick"
	tagBackslash = "backslash"
)

type attempt struct {
	tag    string
	suffix string
}

var (
	baseAttempts = []attempt{
		{tagRef, ""},
		{tagQuote, `"`},
		{tagAttr, `" benign="1`},
	}
	evasionAttempts = []attempt{
		{tagPctQuote, "%22"},
		{tagEntQuote, "&#34;"},
		{tagBacktick, "`"},
		{tagBackslash, `\`},
	}
)

const (
	snippetRadius = 50
	lengthDelta   = 80
)

// Config configures a Tester.
type Config struct {
	// Params are the parameter names to test. None means nothing is sent.
	Params []string

	// Evasion adds encoded and alternate-quote attempts.
	Evasion bool

	// Pacing is the minimum gap between attempts; zero disables it.
	Pacing time.Duration
}

// DefaultConfig returns the standard pacing with no parameters.
func DefaultConfig() Config {
	return Config{Pacing: duration.XSSAttemptPause}
}

// Tester runs the XSS check.
type Tester struct {
	client probe.Requester
	cfg    Config

	// marker is swapped in tests
	marker func() string
}

// NewTester returns a tester sending requests through client.
func NewTester(client probe.Requester, cfg Config) *Tester {
	return &Tester{client: client, cfg: cfg, marker: newMarker}
}

func newMarker() string {
	return MarkerPrefix + strconv.FormatInt(time.Now().Unix(), 10) + strconv.Itoa(100+rand.IntN(900))
}

type result struct {
	reflected bool
	encoded   bool
	snippet   string
	raw       string
	length    int
}

// Run tests every configured parameter of target.
func (t *Tester) Run(ctx context.Context, target string) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)
	if len(t.cfg.Params) == 0 {
		return out.List(), nil
	}

	tgt, err := probe.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	baseline, err := probe.Baseline(ctx, t.client, tgt)
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("Baseline request failed", err.Error())
		return out.List(), nil
	}
	baseLen := baseline.Len()

	limit := rate.Inf
	if t.cfg.Pacing > 0 {
		limit = rate.Every(t.cfg.Pacing)
	}
	pacer := rate.NewLimiter(limit, 1)
	attempts := probe.Variants(baseAttempts, evasionAttempts, t.cfg.Evasion)

	for _, p := range t.cfg.Params {
		marker := t.marker()
		results := make(map[string]result, len(attempts))

		for _, a := range attempts {
			if err := pacer.Wait(ctx); err != nil {
				return out.List(), err
			}
			payload := marker + a.suffix
			resp, err := probe.Send(ctx, t.client, tgt, tgt.Replace(p, payload))
			if err != nil {
				if probe.Fatal(err) {
					return out.List(), err
				}
				out.Info(fmt.Sprintf("Parameter %s error", p), err.Error())
				break
			}
			results[a.tag] = inspect(resp.Text(), marker, payload)
		}

		if f, ok := analyze(p, results, baseLen); ok {
			out.Add(f.Severity, f.Title, f.Detail)
		}
	}
	return out.List(), nil
}

func inspect(body, marker, payload string) result {
	r := result{
		reflected: strings.Contains(body, payload),
		encoded:   strings.Contains(body, "&quot;") || strings.Contains(body, "&#34;"),
		length:    len(body),
	}
	if idx := strings.Index(body, marker); idx != -1 {
		start := max(0, idx-snippetRadius)
		end := min(len(body), idx+len(marker)+snippetRadius)
		r.raw = body[start:end]
		r.snippet = html.EscapeString(r.raw)
	}
	return r
}

// analyze turns one parameter's attempt results into at most one finding.
func analyze(param string, results map[string]result, baseLen int) (finding.Finding, bool) {
	ref, ok := results[tagRef]
	if !ok || !ref.reflected {
		length := baseLen
		if ok {
			length = ref.length
		}
		if d := probe.Delta(length, baseLen); d > lengthDelta {
			return finding.New(Module, finding.Info,
				fmt.Sprintf("Parameter %s: significant length change", param),
				fmt.Sprintf("delta=%d (no direct reflection)", d)), true
		}
		return finding.Finding{}, false
	}

	ctxType := Classify(ref.raw)
	severity := finding.Low
	bits := []string{"context=" + string(ctxType)}
	if ref.encoded {
		bits = append(bits, "quotes escaped")
	} else {
		bits = append(bits, "quotes not escaped")
	}

	if results[tagQuote].reflected && !ref.encoded {
		severity = finding.Medium
		bits = append(bits, "raw quote reflected")
	}
	if attr := results[tagAttr]; attr.reflected && !ref.encoded {
		severity = finding.Medium
		if strings.Contains(attr.raw, `benign="1`) {
			bits = append(bits, `attribute break possible (benign="1 found)`)
		}
	}

	title := fmt.Sprintf("Parameter %s reflected", param)
	if severity == finding.Medium && ctxType == ContextAttribute && !ref.encoded {
		title = fmt.Sprintf("Parameter %s potentially exploitable (attribute)", param)
	}

	var evaded []string
	for _, a := range evasionAttempts {
		if results[a.tag].reflected {
			evaded = append(evaded, a.tag)
		}
	}
	if len(evaded) > 0 {
		bits = append(bits, "evasion="+strings.Join(evaded, ";"))
	}

	detail := strings.Join(bits, " | ") + " | snippet=..." + ref.snippet + "..."
	return finding.New(Module, severity, title, detail), true
}

// Classify guesses the reflection context from the text around a marker.
func Classify(snippet string) Context {
	low := strings.ToLower(snippet)
	switch {
	case strings.Contains(low, "script"):
		return ContextScript
	case strings.Contains(low, "onerror"), strings.Contains(low, "onload"), strings.Contains(low, "onclick"):
		return ContextEvent
	case strings.Contains(snippet, `="`), strings.Contains(snippet, "='"):
		return ContextAttribute
	}
	return ContextText
}
