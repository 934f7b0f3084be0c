package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/vulnscan/vulnscan/pkg/api"
	"github.com/vulnscan/vulnscan/pkg/config"
	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/metrics"
	"github.com/vulnscan/vulnscan/pkg/scanstore"
	"github.com/vulnscan/vulnscan/pkg/ui"
)

const serveUsage = `Run the scan API service. Submitted scans inherit the budget, timeout
and rate settings below; a request's max_rps may lower the rate.`

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig("serve", args, (*config.Config).BindServeFlags, serveUsage, stderr)
	if err != nil {
		code := exitCode(err)
		if code != defaults.ExitSuccess {
			ui.NewPrinter(stderr).Error("error: %v", err)
		}
		return code
	}
	applyColor(cfg, stdout)
	p := ui.NewPrinter(stdout)
	p.Banner()
	for _, w := range cfg.Normalize() {
		p.Warn("%s", w)
	}
	if err := cfg.Validate(); err != nil {
		p.Error("error: %v", err)
		return exitCode(err)
	}

	var logger *slog.Logger
	if cfg.JSON {
		level := slog.LevelInfo
		if cfg.Verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
	} else {
		logger = newLogger(cfg, stderr)
	}

	tp, shutdown := setupTracing(cfg, logger)
	defer shutdown(context.Background())

	col := metrics.New()
	scanner := &api.Scanner{
		Base:           *cfg,
		Logger:         logger,
		Metrics:        col,
		TracerProvider: tp,
	}
	mgr := scanstore.NewManager(scanstore.ManagerConfig{
		Run:     scanner.Run,
		Logger:  logger,
		Metrics: col,
	})
	srv := api.New(api.Options{
		Manager: mgr,
		Scanner: scanner,
		Metrics: col,
		Logger:  logger,
	})

	p.Notice("Listening on http://%s (Ctrl+C to stop)", cfg.Listen)
	if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
		p.Error("error: %v", err)
		return defaults.ExitRuntimeError
	}
	return defaults.ExitSuccess
}
