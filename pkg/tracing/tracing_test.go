package tracing

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vulnscan/vulnscan/pkg/defaults"
)

// skipIfNoOTLPCollector skips the test if no OTLP collector is listening.
func skipIfNoOTLPCollector(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "localhost:4317", 100*time.Millisecond)
	if err != nil {
		t.Skipf("Skipping: no OTLP collector at localhost:4317: %v", err)
	}
	conn.Close()
}

func TestSetup_RequiresEndpoint(t *testing.T) {
	_, err := Setup(Options{})
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestSetup_ExportsSpansWithResource(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	p, err := Setup(Options{Exporter: exp})
	require.NoError(t, err)
	assert.Equal(t, defaults.ToolName, p.ServiceName())
	assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "vulnscan.scan")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "vulnscan.scan", spans[0].Name)

	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, defaults.ToolName, attrs["service.name"])
	assert.Equal(t, defaults.Version, attrs["service.version"])
}

func TestSetup_OTLPEndpoint(t *testing.T) {
	skipIfNoOTLPCollector(t)

	p, err := Setup(Options{
		Endpoint:          "localhost:4317",
		ServiceName:       "custom-scanner",
		Insecure:          true,
		ShutdownTimeout:   100 * time.Millisecond,
		ConnectionTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "custom-scanner", p.ServiceName())
	assert.NoError(t, p.Shutdown(context.Background()))
}
