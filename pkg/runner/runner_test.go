package runner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vulnscan/vulnscan/pkg/budget"
	"github.com/vulnscan/vulnscan/pkg/crawler"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/jsmap"
	"github.com/vulnscan/vulnscan/pkg/metrics"
	"github.com/vulnscan/vulnscan/pkg/modules"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

const target = "http://example.test/?id=1"

type fakeModule struct {
	id  modules.ID
	run func(ctx context.Context, opts modules.Options) ([]finding.Finding, error)
}

func (f fakeModule) ID() modules.ID       { return f.id }
func (f fakeModule) Description() string { return "fake " + string(f.id) }

func (f fakeModule) Run(ctx context.Context, _ *scanclient.Client, _ string, opts modules.Options) ([]finding.Finding, error) {
	return f.run(ctx, opts)
}

func emit(id modules.ID, fs ...finding.Finding) fakeModule {
	return fakeModule{id: id, run: func(context.Context, modules.Options) ([]finding.Finding, error) {
		return fs, nil
	}}
}

func registry(t *testing.T, ms ...modules.Module) *modules.Registry {
	t.Helper()
	r := modules.NewRegistry()
	for _, m := range ms {
		require.NoError(t, r.Register(m))
	}
	return r
}

func TestRun_RejectsInvalidTarget(t *testing.T) {
	for _, tgt := range []string{"ftp://example.test/", "example.test", ""} {
		t.Run(tgt, func(t *testing.T) {
			rep, err := New(Config{
				Target:   tgt,
				Modules:  []modules.ID{modules.Stats},
				Registry: registry(t, emit(modules.Stats)),
			}).Run(context.Background())
			assert.ErrorIs(t, err, ErrInvalidTarget)
			assert.ErrorIs(t, err, scanclient.ErrInvalidTarget)
			assert.Nil(t, rep)
		})
	}
}

func TestRun_NoModules(t *testing.T) {
	_, err := New(Config{Target: target}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoModules)
}

func TestRun_UnregisteredModule(t *testing.T) {
	_, err := New(Config{
		Target:   target,
		Modules:  []modules.ID{modules.WAF},
		Registry: registry(t, emit(modules.Stats)),
	}).Run(context.Background())
	assert.ErrorIs(t, err, modules.ErrUnknownModule)
}

// A failing or panicking module is recorded and the scan moves on.
func TestRun_ContinuesAfterModuleErrors(t *testing.T) {
	reg := registry(t,
		emit(modules.Policy, finding.New("policy", finding.Low, "Required field missing", "contact")),
		fakeModule{id: modules.CORS, run: func(context.Context, modules.Options) ([]finding.Finding, error) {
			return []finding.Finding{finding.New("cors", finding.Info, "CORS preflight", "none")},
				fmt.Errorf("cors: %w", budget.ErrExhausted)
		}},
		fakeModule{id: modules.Mixed, run: func(context.Context, modules.Options) ([]finding.Finding, error) {
			panic("boom")
		}},
		emit(modules.Stats, finding.New("stats", finding.Info, "Status summary", "200:1")),
	)

	var started []modules.ID
	var failed []modules.ID
	var seen []string
	rep, err := New(Config{
		Target:   target,
		Modules:  []modules.ID{modules.Policy, modules.CORS, modules.Mixed, modules.Stats},
		Registry: reg,
		Hooks: Hooks{
			ModuleStart: func(id modules.ID, note string) {
				assert.Empty(t, note)
				started = append(started, id)
			},
			Finding:     func(f finding.Finding) { seen = append(seen, f.Title) },
			ModuleError: func(e *ModuleError) { failed = append(failed, e.Module) },
		},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []modules.ID{modules.Policy, modules.CORS, modules.Mixed, modules.Stats}, started)
	assert.Equal(t, []string{"Required field missing", "CORS preflight", "Status summary"}, seen)
	assert.Len(t, rep.Findings, 3)
	assert.Equal(t, 3, rep.Total)

	require.Len(t, rep.Errors, 2)
	assert.Equal(t, []modules.ID{modules.CORS, modules.Mixed}, failed)
	assert.ErrorIs(t, rep.Errors[0], budget.ErrExhausted)
	assert.ErrorIs(t, rep.Errors[1], ErrModulePanic)
	assert.Contains(t, rep.Errors[1].Error(), "boom")
	assert.ErrorIs(t, rep.Err(), budget.ErrExhausted)
}

func TestRun_MinSeverityFilter(t *testing.T) {
	reg := registry(t, emit(modules.XSS,
		finding.New("xss", finding.Info, "Parameter q error", "timeout"),
		finding.New("xss", finding.Medium, "Parameter q reflected", "raw quote reflected"),
		finding.New("xss", finding.Low, "Parameter p reflected", "context=text"),
	))

	var hooked int
	rep, err := New(Config{
		Target:      target,
		Modules:     []modules.ID{modules.XSS},
		Registry:    reg,
		MinSeverity: finding.Low,
		Hooks:       Hooks{Finding: func(finding.Finding) { hooked++ }},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Total)
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, finding.Medium, rep.Findings[0].Severity)
	assert.Equal(t, 2, hooked)
	assert.Equal(t, map[finding.Severity]int{finding.Medium: 1, finding.Low: 1}, rep.Summary())
	assert.NoError(t, rep.Err())
}

func TestRun_PassesOptions(t *testing.T) {
	var got modules.Options
	reg := registry(t, fakeModule{id: modules.SQLi, run: func(_ context.Context, opts modules.Options) ([]finding.Finding, error) {
		got = opts
		return nil, nil
	}})

	_, err := New(Config{
		Target:   target,
		Modules:  []modules.ID{modules.SQLi},
		Registry: reg,
		Params:   []string{"id", "q"},
		Evasion:  true,
		Crawl:    crawler.Config{MaxDepth: 2},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "q"}, got.Params)
	assert.True(t, got.Evasion)
	assert.Equal(t, 2, got.Crawl.MaxDepth)
	assert.Empty(t, got.ExtraRoutes)
}

func TestRun_AutoXSSSQLiUsesCrawlParams(t *testing.T) {
	calls := map[modules.ID][]string{}
	capture := func(id modules.ID) fakeModule {
		return fakeModule{id: id, run: func(_ context.Context, opts modules.Options) ([]finding.Finding, error) {
			calls[id] = opts.Params
			return nil, nil
		}}
	}
	reg := registry(t,
		emit(modules.Crawl,
			finding.New(crawler.Module, finding.Info, "PARAM:a", "from link /"),
			finding.New(crawler.Module, finding.Info, "PARAM:b", "from link /x"),
			finding.New(crawler.Module, finding.Info, "PARAM:c", "from GET form"),
		),
		capture(modules.XSS),
		capture(modules.SQLi),
	)

	var notes []string
	_, err := New(Config{
		Target:          target,
		Modules:         []modules.ID{modules.Crawl},
		Registry:        reg,
		AutoXSSSQLi:     true,
		AutoParamsLimit: 2,
		Hooks: Hooks{ModuleStart: func(id modules.ID, note string) {
			notes = append(notes, string(id)+"|"+note)
		}},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, calls[modules.XSS])
	assert.Equal(t, []string{"a", "b"}, calls[modules.SQLi])
	assert.Equal(t, []string{"crawl|", "xss|auto params: a, b", "sqli|auto params: a, b"}, notes)
}

func TestRun_AutoXSSSQLiNeedsCrawl(t *testing.T) {
	ran := false
	reg := registry(t,
		emit(modules.Stats, finding.New(crawler.Module, finding.Info, "PARAM:a", "")),
		fakeModule{id: modules.XSS, run: func(context.Context, modules.Options) ([]finding.Finding, error) {
			ran = true
			return nil, nil
		}},
	)
	_, err := New(Config{
		Target:      target,
		Modules:     []modules.ID{modules.Stats},
		Registry:    reg,
		AutoXSSSQLi: true,
	}).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRun_APIsAuto(t *testing.T) {
	route := finding.New(jsmap.Module, finding.Info, jsmap.TitleRoute, "/rest/products")

	tests := []struct {
		name     string
		selected []modules.ID
		wantRuns int
		wantNote string
	}{
		{"apis selected", []modules.ID{modules.JSMap, modules.APIs}, 1, ""},
		{"second pass", []modules.ID{modules.JSMap}, 1, "apis auto: 1 routes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runs int
			var extra []string
			var note string
			reg := registry(t,
				emit(modules.JSMap, route),
				fakeModule{id: modules.APIs, run: func(_ context.Context, opts modules.Options) ([]finding.Finding, error) {
					runs++
					extra = opts.ExtraRoutes
					return nil, nil
				}},
			)
			_, err := New(Config{
				Target:   target,
				Modules:  tt.selected,
				Registry: reg,
				APIsAuto: true,
				Hooks: Hooks{ModuleStart: func(id modules.ID, n string) {
					if id == modules.APIs {
						note = n
					}
				}},
			}).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantRuns, runs)
			assert.Equal(t, []string{"/rest/products"}, extra)
			assert.Equal(t, tt.wantNote, note)
		})
	}
}

func TestRun_APIsWithoutAutoGetsNoRoutes(t *testing.T) {
	var extra []string
	reg := registry(t,
		emit(modules.JSMap, finding.New(jsmap.Module, finding.Info, jsmap.TitleRoute, "/rest/a")),
		fakeModule{id: modules.APIs, run: func(_ context.Context, opts modules.Options) ([]finding.Finding, error) {
			extra = opts.ExtraRoutes
			return nil, nil
		}},
	)
	_, err := New(Config{
		Target:   target,
		Modules:  []modules.ID{modules.JSMap, modules.APIs},
		Registry: reg,
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, extra)
}

func TestRun_CancelStopsRemainingModules(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secondRan := false
	reg := registry(t,
		fakeModule{id: modules.Policy, run: func(context.Context, modules.Options) ([]finding.Finding, error) {
			cancel()
			return []finding.Finding{finding.New("policy", finding.Info, "security.txt missing", "status=404")}, nil
		}},
		fakeModule{id: modules.Stats, run: func(context.Context, modules.Options) ([]finding.Finding, error) {
			secondRan = true
			return nil, nil
		}},
	)
	rep, err := New(Config{
		Target:   target,
		Modules:  []modules.ID{modules.Policy, modules.Stats},
		Registry: reg,
	}).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Len(t, rep.Findings, 1)
	assert.False(t, secondRan)
}

func TestRun_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	reg := registry(t,
		emit(modules.Policy),
		fakeModule{id: modules.CORS, run: func(context.Context, modules.Options) ([]finding.Finding, error) {
			return nil, budget.ErrExhausted
		}},
	)
	_, err := New(Config{
		Target:         target,
		Modules:        []modules.ID{modules.Policy, modules.CORS},
		Registry:       reg,
		TracerProvider: tp,
	}).Run(context.Background())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "vulnscan.module", spans[0].Name())
	assert.Equal(t, "vulnscan.module", spans[1].Name())
	assert.Equal(t, "vulnscan.scan", spans[2].Name())
	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Len(t, spans[1].Events(), 1, "module error is recorded on its span")
}

func TestRun_RecordsFindingMetrics(t *testing.T) {
	m := metrics.New()
	reg := registry(t, emit(modules.Stats,
		finding.New("stats", finding.Info, "Request", "/ -> 200"),
		finding.New("stats", finding.Info, "Request", "robots.txt -> 404"),
		finding.New("stats", finding.Low, "5xx responses observed", "1"),
	))
	_, err := New(Config{
		Target:   target,
		Modules:  []modules.ID{modules.Stats},
		Registry: reg,
		Metrics:  m,
	}).Run(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "vulnscan_findings_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per module and severity")
}

// Root links to /next?x=2; a depth 1 crawl visits both pages and finds x.
func TestRun_CrawlScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><a href="/next?x=2">next</a></html>`)
		default:
			fmt.Fprint(w, `<html>end</html>`)
		}
	}))
	defer srv.Close()

	rep, err := New(Config{
		Target:  srv.URL + "/?id=1",
		Modules: []modules.ID{modules.Crawl},
		Crawl:   crawler.Config{MaxDepth: 1, MaxPages: 5},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, crawler.ParamsFromFindings(rep.Findings))
	var pages string
	for _, f := range rep.Findings {
		if f.Title == crawler.TitlePages {
			pages = f.Detail
		}
	}
	assert.Equal(t, "2", pages)
	assert.Equal(t, int64(2), rep.Requests)
	assert.Empty(t, rep.Errors)
}

func TestRun_BudgetExhaustionKeepsEarlierFindings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	rep, err := New(Config{
		Target:  srv.URL + "/",
		Modules: []modules.ID{modules.Policy, modules.Stats},
		Client:  scanclient.Config{MaxRequests: 2},
	}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Errors, 1)
	assert.Equal(t, modules.Stats, rep.Errors[0].Module)
	assert.ErrorIs(t, rep.Errors[0], budget.ErrExhausted)

	var policy int
	for _, f := range rep.Findings {
		if f.Module == "policy" {
			policy++
		}
	}
	assert.Greater(t, policy, 0)
}
