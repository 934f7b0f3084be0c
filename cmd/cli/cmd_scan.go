package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/vulnscan/vulnscan/pkg/config"
	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/duration"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/jsonutil"
	"github.com/vulnscan/vulnscan/pkg/modules"
	"github.com/vulnscan/vulnscan/pkg/ratelimit"
	"github.com/vulnscan/vulnscan/pkg/runner"
	"github.com/vulnscan/vulnscan/pkg/ui"
)

const scanUsage = `Scan one target with the selected modules. Module selection:
-all, then -modules, then -profile, else the hardening profile.`

// scanSummary is the last JSON line of a -json scan.
type scanSummary struct {
	Target         string                   `json:"target"`
	Modules        []modules.ID             `json:"modules"`
	SeverityCounts map[finding.Severity]int `json:"severity_counts"`
	Reported       int                      `json:"reported"`
	Total          int                      `json:"total"`
	Requests       int64                    `json:"requests"`
	Errors         []string                 `json:"errors,omitempty"`
	Duration       string                   `json:"duration"`
}

func runScan(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig("scan", args, (*config.Config).BindFlags, scanUsage, stderr)
	if err != nil {
		code := exitCode(err)
		if code != defaults.ExitSuccess {
			ui.NewPrinter(stderr).Error("error: %v", err)
		}
		return code
	}

	// Human output goes to stderr when stdout carries JSON.
	human := stdout
	if cfg.JSON {
		human = stderr
	}
	applyColor(cfg, human)
	p := ui.NewPrinter(human)
	logger := newLogger(cfg, stderr)

	p.Banner()
	for _, w := range cfg.Normalize() {
		p.Warn("%s", w)
	}
	if err := cfg.ValidateScan(); err != nil {
		p.Error("error: %v", err)
		return exitCode(err)
	}
	rc, err := cfg.RunnerConfig()
	if err != nil {
		p.Error("error: %v", err)
		return exitCode(err)
	}

	tp, shutdown := setupTracing(cfg, logger)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), duration.Shutdown)
		defer cancel()
		shutdown(sctx)
	}()

	var enc *jsonutil.Encoder
	if cfg.JSON {
		enc = jsonutil.NewStreamEncoder(stdout)
	}
	rc.Logger = logger
	rc.TracerProvider = tp
	rc.Client.OnAdaptiveEvent = func(event ratelimit.EventType, ceiling float64) {
		p.Adaptive(event, ceiling)
	}
	rc.Hooks = runner.Hooks{
		ModuleStart: p.ModuleStart,
		Finding: func(f finding.Finding) {
			p.Finding(f)
			if enc != nil {
				if err := enc.Encode(f); err != nil {
					logger.Warn("writing finding", slog.String("error", err.Error()))
				}
			}
		},
		ModuleError: func(e *runner.ModuleError) {
			p.ModuleError(e.Module, e.Err)
		},
	}

	p.Notice("Target: %s", rc.Target)
	p.Notice("Modules: %s", modules.Names(rc.Modules))
	p.Notice("Max RPS: %g  Max requests: %s  Adaptive: %t",
		rc.Client.MaxRPS, budgetLabel(rc.Client.MaxRequests), rc.Client.Adaptive)

	rep, err := runner.New(rc).Run(ctx)
	if rep == nil {
		p.Error("error: %v", err)
		return exitCode(err)
	}

	p.Summary(rep.Summary())
	p.Notice("Requests: %d  Duration: %s", rep.Requests, rep.Duration.Round(time.Millisecond))
	if enc != nil {
		if err := enc.Encode(summarize(rep)); err != nil {
			logger.Warn("writing summary", slog.String("error", err.Error()))
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.Warn("scan interrupted; partial results shown")
		} else {
			p.Error("error: %v", err)
		}
		return exitCode(err)
	}
	return defaults.ExitSuccess
}

func budgetLabel(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func summarize(rep *runner.Report) scanSummary {
	s := scanSummary{
		Target:         rep.Target,
		Modules:        rep.Modules,
		SeverityCounts: rep.Summary(),
		Reported:       len(rep.Findings),
		Total:          rep.Total,
		Requests:       rep.Requests,
		Duration:       rep.Duration.Round(time.Millisecond).String(),
	}
	for _, e := range rep.Errors {
		s.Errors = append(s.Errors, e.Error())
	}
	return s
}
