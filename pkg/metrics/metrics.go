// Package metrics exposes scanner activity as Prometheus metrics.
//
// A Collector owns its own registry so several scanners in one process (or
// one test binary) never collide on the global default registry. Every
// method is safe to call on a nil *Collector, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vulnscan"

// Collector holds the scanner's metric families.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateCeiling     prometheus.Gauge
	adaptiveEvents  *prometheus.CounterVec
	budgetUsed      prometheus.Gauge
	findingsTotal   *prometheus.CounterVec
	scans           *prometheus.GaugeVec
}

// New creates a collector and registers its metrics on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "HTTP requests sent to scan targets.",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Round-trip time of requests sent to scan targets.",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		rateCeiling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_ceiling",
			Help:      "Current requests-per-second ceiling.",
		}),
		adaptiveEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adaptive_events_total",
				Help:      "Adaptive rate ceiling adjustments.",
			},
			[]string{"type"},
		),
		budgetUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_used",
			Help:      "Requests counted against the request budget.",
		}),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Findings produced by scan modules.",
			},
			[]string{"module", "severity"},
		),
		scans: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scans",
				Help:      "Scans held by the scan service, by status.",
			},
			[]string{"status"},
		),
	}

	c.registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.rateCeiling,
		c.adaptiveEvents,
		c.budgetUsed,
		c.findingsTotal,
		c.scans,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition
// format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveRequest records one completed attempt. code 0 marks a network
// failure and is exported as "error".
func (c *Collector) ObserveRequest(method string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	c.requestsTotal.WithLabelValues(method, label).Inc()
	c.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// SetCeiling publishes the limiter's current ceiling.
func (c *Collector) SetCeiling(v float64) {
	if c == nil {
		return
	}
	c.rateCeiling.Set(v)
}

// AdaptiveEvent counts one ceiling adjustment of the given type.
func (c *Collector) AdaptiveEvent(eventType string) {
	if c == nil {
		return
	}
	c.adaptiveEvents.WithLabelValues(eventType).Inc()
}

// SetBudgetUsed publishes the request budget counter.
func (c *Collector) SetBudgetUsed(n int64) {
	if c == nil {
		return
	}
	c.budgetUsed.Set(float64(n))
}

// FindingRecorded counts one finding.
func (c *Collector) FindingRecorded(module, severity string) {
	if c == nil {
		return
	}
	c.findingsTotal.WithLabelValues(module, severity).Inc()
}

// SetScans replaces the per-status scan gauge. Statuses absent from counts
// are reset to zero.
func (c *Collector) SetScans(counts map[string]int) {
	if c == nil {
		return
	}
	c.scans.Reset()
	for status, n := range counts {
		c.scans.WithLabelValues(status).Set(float64(n))
	}
}
