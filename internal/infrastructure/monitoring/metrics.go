// Package monitoring exposes Prometheus metrics for the embedding engine:
// render outcomes, live instances, close reasons, delegation traffic, and
// transport connections.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Render metrics
	RendersStarted  prometheus.Counter
	RendersFailed   *prometheus.CounterVec
	RenderDuration  prometheus.Histogram
	InstancesActive prometheus.Gauge

	// Lifecycle metrics
	ClosesTotal *prometheus.CounterVec
	ErrorsTotal *prometheus.CounterVec

	// Delegation metrics
	Delegations *prometheus.CounterVec

	// Transport metrics
	ContextsConnected prometheus.Gauge
	MessagesTotal     *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a new metrics collector registered on the default
// registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameport_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frameport_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RendersStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frameport_renders_started_total",
				Help: "Total number of render pipelines started",
			},
		),
		RendersFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameport_renders_failed_total",
				Help: "Total number of failed renders by error kind",
			},
			[]string{"kind"},
		),
		RenderDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frameport_render_duration_seconds",
				Help:    "Time from render start to remote init",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		InstancesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frameport_instances_active",
				Help: "Number of live embedding instances",
			},
		),

		ClosesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameport_closes_total",
				Help: "Instance closes by termination reason",
			},
			[]string{"reason"},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameport_errors_total",
				Help: "Instance errors by kind",
			},
			[]string{"kind"},
		),

		Delegations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameport_delegations_total",
				Help: "Delegated render attempts by outcome",
			},
			[]string{"outcome"},
		),

		ContextsConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frameport_contexts_connected",
				Help: "Remote browsing contexts currently connected",
			},
		),
		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frameport_messages_total",
				Help: "Transport messages by direction and type",
			},
			[]string{"direction", "type"},
		),
	}
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Uptime returns time since metrics creation.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
