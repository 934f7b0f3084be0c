package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/vulnscan/vulnscan/pkg/config"
	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/modules"
	"github.com/vulnscan/vulnscan/pkg/runner"
	"github.com/vulnscan/vulnscan/pkg/tracing"
	"github.com/vulnscan/vulnscan/pkg/ui"
)

// errUsage marks failures caused by how the command was invoked.
var errUsage = errors.New("usage error")

// configPath finds the -config value in args before flags are parsed, so
// the file can seed the flag defaults.
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// loadConfig builds the command's configuration: defaults, then the
// optional YAML file, then flags.
func loadConfig(name string, args []string, bind func(*config.Config, *flag.FlagSet), usage string, stderr io.Writer) (*config.Config, error) {
	cfg := config.Default()
	path := configPath(args)
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("config", path, "YAML config file; flags override its values")
	bind(cfg, fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s %s [flags]\n\n%s\n\nFlags:\n", defaults.ToolName, name, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", errUsage, fs.Args())
	}
	return cfg, nil
}

// newLogger returns the diagnostic logger. It writes to stderr so stdout
// stays free for findings.
func newLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// setupTracing installs the OTLP tracer provider when an endpoint is set.
// The returned shutdown func is never nil.
func setupTracing(cfg *config.Config, logger *slog.Logger) (trace.TracerProvider, func(context.Context)) {
	if cfg.OTLPEndpoint == "" {
		return nil, func(context.Context) {}
	}
	p, err := tracing.Setup(tracing.Options{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
		return nil, func(context.Context) {}
	}
	logger.Debug("tracing enabled", slog.String("endpoint", cfg.OTLPEndpoint))
	return p.TracerProvider(), func(ctx context.Context) {
		if err := p.Shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown", slog.String("error", err.Error()))
		}
	}
}

// applyColor turns styling off when asked or when w is not a terminal.
func applyColor(cfg *config.Config, w io.Writer) {
	ui.SetNoColor(cfg.NoColor || !ui.IsTerminal(w))
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return defaults.ExitSuccess
	case errors.Is(err, flag.ErrHelp):
		return defaults.ExitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrMissingRequired),
		errors.Is(err, runner.ErrInvalidTarget),
		errors.Is(err, runner.ErrNoModules),
		errors.Is(err, modules.ErrUnknownModule),
		errors.Is(err, modules.ErrUnknownProfile):
		return defaults.ExitUserError
	default:
		return defaults.ExitRuntimeError
	}
}
