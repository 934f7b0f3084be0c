// Package runner drives one scan: it builds the scan's client, runs the
// selected modules one after another and collects what they report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vulnscan/vulnscan/pkg/crawler"
	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/jsmap"
	"github.com/vulnscan/vulnscan/pkg/metrics"
	"github.com/vulnscan/vulnscan/pkg/modules"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

const tracerName = "github.com/vulnscan/vulnscan/pkg/runner"

// Config describes one scan.
type Config struct {
	// Target is the scan URL. Its query string is what the parameter
	// checks work from; its scheme and host become the client's root.
	Target string

	// Modules run in this order.
	Modules []modules.ID

	// Params are parameter names handed to xss, sqli and reflect.
	Params  []string
	Evasion bool
	Crawl   crawler.Config

	// AutoXSSSQLi re-runs xss and sqli on parameters the crawl module
	// discovered, at most AutoParamsLimit of them.
	AutoXSSSQLi     bool
	AutoParamsLimit int

	// APIsAuto feeds routes found by jsmap into apis. When apis is not
	// among Modules it runs once more at the end with those routes.
	APIsAuto bool

	// MinSeverity drops lower findings from the report and the Finding
	// hook. Empty keeps everything.
	MinSeverity finding.Severity

	// Client configures the scan's client. BaseURL is replaced by Target.
	Client scanclient.Config

	Registry       *modules.Registry
	Logger         *slog.Logger
	Metrics        *metrics.Collector
	TracerProvider trace.TracerProvider
	Hooks          Hooks
}

// Hooks let a front end follow a scan as it happens. All are optional and
// are called from the scan goroutine.
type Hooks struct {
	// ModuleStart is called before each module. note is empty for
	// selected modules and describes the extra input of automatic passes.
	ModuleStart func(id modules.ID, note string)

	// Finding is called for every reported finding, after the severity
	// filter.
	Finding func(f finding.Finding)

	// ModuleError is called when a module stops early.
	ModuleError func(err *ModuleError)
}

// Report is the outcome of one scan.
type Report struct {
	Target   string            `json:"target"`
	Modules  []modules.ID      `json:"modules"`
	Findings []finding.Finding `json:"findings"`
	Errors   []*ModuleError    `json:"-"`
	Total    int               `json:"total"`
	Requests int64             `json:"requests"`
	Started  time.Time         `json:"started"`
	Duration time.Duration     `json:"duration"`
}

// Summary counts reported findings by severity.
func (r *Report) Summary() map[finding.Severity]int {
	return finding.CountBySeverity(r.Findings)
}

// Err joins the module errors, or returns nil when every module finished.
func (r *Report) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Runner executes scans. It holds no per-scan state; each Run builds its
// own client, limiter and budget.
type Runner struct {
	cfg      Config
	registry *modules.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New returns a runner for cfg. A nil Registry uses modules.Default().
func New(cfg Config) *Runner {
	reg := cfg.Registry
	if reg == nil {
		reg = modules.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if cfg.AutoParamsLimit <= 0 {
		cfg.AutoParamsLimit = defaults.AutoParamsLimit
	}
	return &Runner{
		cfg:      cfg,
		registry: reg,
		logger:   logger,
		tracer:   tp.Tracer(tracerName),
	}
}

// scan is the state of one Run.
type scan struct {
	*Runner
	client *scanclient.Client
	report *Report
	raw    []finding.Finding
	routes []string
}

// Run executes the configured modules against the target. A module error
// is recorded and the next module runs; findings gathered before the error
// are kept. Run returns a non-nil report unless the scan could not start.
// If ctx ends, the remaining modules are skipped and ctx.Err() is returned
// with the partial report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if len(r.cfg.Modules) == 0 {
		return nil, ErrNoModules
	}
	for _, id := range r.cfg.Modules {
		if _, ok := r.registry.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %s", modules.ErrUnknownModule, id)
		}
	}

	ccfg := r.cfg.Client
	ccfg.BaseURL = r.cfg.Target
	if ccfg.Logger == nil {
		ccfg.Logger = r.logger
	}
	if ccfg.Metrics == nil {
		ccfg.Metrics = r.cfg.Metrics
	}
	client, err := scanclient.New(ccfg)
	if err != nil {
		if errors.Is(err, scanclient.ErrInvalidTarget) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
		}
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "vulnscan.scan",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("target", r.cfg.Target),
			attribute.String("modules", modules.Names(r.cfg.Modules)),
			attribute.Float64("max_rps", ccfg.MaxRPS),
			attribute.Int("max_requests", ccfg.MaxRequests),
		),
	)
	defer span.End()

	s := &scan{
		Runner: r,
		client: client,
		report: &Report{
			Target:  r.cfg.Target,
			Modules: slices.Clone(r.cfg.Modules),
			Started: time.Now(),
		},
	}
	r.logger.Info("scan started",
		slog.String("target", r.cfg.Target),
		slog.String("modules", modules.Names(r.cfg.Modules)))

	err = s.execute(ctx)

	rep := s.report
	rep.Requests = client.Requests()
	rep.Duration = time.Since(rep.Started)
	r.cfg.Metrics.SetBudgetUsed(rep.Requests)

	span.SetAttributes(
		attribute.Int("findings", len(rep.Findings)),
		attribute.Int64("requests", rep.Requests),
		attribute.Int("module_errors", len(rep.Errors)),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(rep.Errors) > 0:
		span.SetStatus(codes.Error, "scan completed with module errors")
	default:
		span.SetStatus(codes.Ok, "")
	}

	r.logger.Info("scan finished",
		slog.Int("findings", len(rep.Findings)),
		slog.Int("total", rep.Total),
		slog.Int64("requests", rep.Requests),
		slog.Duration("duration", rep.Duration))
	return rep, err
}

func (s *scan) execute(ctx context.Context) error {
	cfg := s.cfg
	for _, id := range cfg.Modules {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := s.options()
		if id == modules.APIs && cfg.APIsAuto {
			opts.ExtraRoutes = s.routes
		}
		fs := s.runModule(ctx, id, "", opts)
		if id == modules.JSMap {
			s.routes = jsmap.RoutesFromFindings(fs)
		}
	}

	if cfg.AutoXSSSQLi && slices.Contains(cfg.Modules, modules.Crawl) {
		params := crawler.ParamsFromFindings(s.raw)
		if len(params) > cfg.AutoParamsLimit {
			params = params[:cfg.AutoParamsLimit]
		}
		if len(params) > 0 {
			opts := s.options()
			opts.Params = params
			note := "auto params: " + strings.Join(params, ", ")
			for _, id := range []modules.ID{modules.XSS, modules.SQLi} {
				if err := ctx.Err(); err != nil {
					return err
				}
				s.runModule(ctx, id, note, opts)
			}
		}
	}

	if cfg.APIsAuto && len(s.routes) > 0 &&
		slices.Contains(cfg.Modules, modules.JSMap) && !slices.Contains(cfg.Modules, modules.APIs) {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := s.options()
		opts.ExtraRoutes = s.routes
		s.runModule(ctx, modules.APIs, fmt.Sprintf("apis auto: %d routes", len(s.routes)), opts)
	}
	return ctx.Err()
}

func (s *scan) options() modules.Options {
	return modules.Options{
		Params:  s.cfg.Params,
		Evasion: s.cfg.Evasion,
		Crawl:   s.cfg.Crawl,
	}
}

// runModule runs one module, records its findings and error, and returns
// everything it produced before the severity filter.
func (s *scan) runModule(ctx context.Context, id modules.ID, note string, opts modules.Options) []finding.Finding {
	if h := s.cfg.Hooks.ModuleStart; h != nil {
		h(id, note)
	}
	m, ok := s.registry.Lookup(id)
	if !ok {
		s.fail(id, fmt.Errorf("%w: %s", modules.ErrUnknownModule, id))
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "vulnscan.module",
		trace.WithAttributes(attribute.String("module", string(id))))
	defer span.End()
	if note != "" {
		span.SetAttributes(attribute.String("note", note))
	}

	start := time.Now()
	before := s.client.Requests()
	fs, err := invoke(ctx, m, s.client, s.cfg.Target, opts)

	s.raw = append(s.raw, fs...)
	s.report.Total += len(fs)
	for _, f := range fs {
		s.cfg.Metrics.FindingRecorded(f.Module, string(f.Severity))
		if !f.Severity.AtLeast(s.cfg.MinSeverity) {
			continue
		}
		s.report.Findings = append(s.report.Findings, f)
		if h := s.cfg.Hooks.Finding; h != nil {
			h(f)
		}
	}

	requests := s.client.Requests() - before
	span.SetAttributes(
		attribute.Int("findings", len(fs)),
		attribute.Int64("requests", requests),
	)
	attrs := []any{
		slog.String("module", string(id)),
		slog.Int("findings", len(fs)),
		slog.Int64("requests", requests),
		slog.Duration("elapsed", time.Since(start)),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("module failed", append(attrs, slog.String("error", err.Error()))...)
		s.fail(id, err)
		return fs
	}
	s.logger.Info("module finished", attrs...)
	return fs
}

func (s *scan) fail(id modules.ID, err error) {
	merr := &ModuleError{Module: id, Err: err}
	s.report.Errors = append(s.report.Errors, merr)
	if h := s.cfg.Hooks.ModuleError; h != nil {
		h(merr)
	}
}

// invoke runs m and turns a panic into an error.
func invoke(ctx context.Context, m modules.Module, c *scanclient.Client, target string, opts modules.Options) (fs []finding.Finding, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Debug("module panic", slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrModulePanic, p)
		}
	}()
	return m.Run(ctx, c, target, opts)
}
