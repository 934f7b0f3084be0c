package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/vulnscan/vulnscan/pkg/config"
	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/metrics"
	"github.com/vulnscan/vulnscan/pkg/runner"
	"github.com/vulnscan/vulnscan/pkg/scanstore"
)

// ProfileCustom selects the request's module list instead of a profile.
const ProfileCustom = "custom"

// Scanner turns API requests into runner scans on top of a base
// configuration. Safety settings of the base (budget, timeout, proxy,
// headers) apply to every request.
type Scanner struct {
	Base           config.Config
	Logger         *slog.Logger
	Metrics        *metrics.Collector
	TracerProvider trace.TracerProvider
}

// normalizeRequest fills the request defaults in place.
func normalizeRequest(req *scanstore.Request) {
	req.URL = strings.TrimSpace(req.URL)
	req.Profile = strings.ToLower(strings.TrimSpace(req.Profile))
	if req.Profile == "" {
		req.Profile = defaults.Profile
	}
	req.Modules = strings.TrimSpace(req.Modules)
}

// Config resolves req against the base configuration. Any profile but
// "custom" wins over the module list; "custom" without modules runs
// every module.
func (s *Scanner) Config(req scanstore.Request) (runner.Config, error) {
	normalizeRequest(&req)
	cfg := s.Base
	cfg.Target = req.URL
	cfg.All = false
	cfg.Modules = nil
	cfg.Profile = ""
	switch {
	case req.Profile != ProfileCustom:
		cfg.Profile = req.Profile
	case req.Modules != "":
		cfg.Modules = strings.Split(req.Modules, ",")
	default:
		cfg.All = true
	}
	if req.MaxRPS > 0 {
		cfg.MaxRPS = req.MaxRPS
	}
	cfg.Evasion = cfg.Evasion || req.Evasion

	for _, w := range cfg.Normalize() {
		s.logger().Warn(w, slog.String("url", req.URL))
	}
	if err := cfg.ValidateScan(); err != nil {
		return runner.Config{}, err
	}
	rc, err := cfg.RunnerConfig()
	if err != nil {
		return runner.Config{}, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	rc.Logger = s.logger()
	rc.Metrics = s.Metrics
	rc.TracerProvider = s.TracerProvider
	return rc, nil
}

// Run executes one scan. It satisfies scanstore.RunFunc.
func (s *Scanner) Run(ctx context.Context, req scanstore.Request) (*runner.Report, error) {
	rc, err := s.Config(req)
	if err != nil {
		return nil, err
	}
	return runner.New(rc).Run(ctx)
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
