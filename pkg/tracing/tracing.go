// Package tracing exports scan spans to an OpenTelemetry collector.
//
// Tracing is opt-in. Without Setup the global no-op provider is used and
// the runner's spans cost nothing.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/duration"
)

// ErrNoEndpoint is returned by Setup when neither an endpoint nor an
// exporter is configured.
var ErrNoEndpoint = errors.New("tracing: no OTLP endpoint configured")

// Options configures the tracer provider.
type Options struct {
	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "vulnscan").
	ServiceName string

	// Insecure uses a plaintext connection.
	Insecure bool

	// Headers are sent with every export.
	Headers map[string]string

	// ShutdownTimeout bounds the final flush (default: 10s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter construction (default: 10s).
	ConnectionTimeout time.Duration

	// Exporter replaces the OTLP exporter when set. Endpoint is then
	// ignored.
	Exporter sdktrace.SpanExporter
}

// Provider owns an SDK tracer provider installed as the global one.
type Provider struct {
	opts Options
	tp   *sdktrace.TracerProvider
}

// Setup builds the exporter and provider and installs the provider
// globally. The exporter dials lazily, so an unreachable collector does
// not block scans.
func Setup(opts Options) (*Provider, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.Shutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.OTLPConnect
	}

	exporter := opts.Exporter
	if exporter == nil {
		if opts.Endpoint == "" {
			return nil, ErrNoEndpoint
		}
		var err error
		exporter, err = newOTLPExporter(opts)
		if err != nil {
			return nil, fmt.Errorf("tracing: create exporter: %w", err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(Resource(opts.ServiceName)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return &Provider{opts: opts, tp: tp}, nil
}

func newOTLPExporter(opts Options) (*otlptrace.Exporter, error) {
	var dialOpts []grpc.DialOption
	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(dialOpts) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithDialOption(dialOpts...))
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()
	return otlptracegrpc.New(ctx, exporterOpts...)
}

// Resource describes this process to the collector. It is not merged with
// resource.Default() to avoid schema URL conflicts.
func Resource(service string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "scanner"),
	)
}

// TracerProvider returns the installed provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// ServiceName returns the service name being used.
func (p *Provider) ServiceName() string {
	return p.opts.ServiceName
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ShutdownTimeout)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing: shutdown tracer provider: %w", err)
	}
	return nil
}
