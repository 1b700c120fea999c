// Package metrics exposes Prometheus instrumentation for generation jobs and
// model provider calls. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for audit generation
type Metrics struct {
	registry *prometheus.Registry

	// Provider call latency by provider and outcome
	ProviderLatency *prometheus.HistogramVec

	// Generation attempts by outcome (success, parse_error, schema_error, provider_error, refused)
	GenerationAttempts *prometheus.CounterVec

	// Finished jobs by terminal status (completed, failed, cancelled, stale)
	JobOutcomes *prometheus.CounterVec

	// Jobs currently running
	ActiveJobs prometheus.Gauge

	// HTTP request duration by route, method and status code
	RequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizaudit_provider_call_duration_seconds",
			Help:    "Duration of model provider calls by provider and outcome",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}, []string{"provider", "outcome"}),

		GenerationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bizaudit_generation_attempts_total",
			Help: "Report generation attempts by outcome",
		}, []string{"outcome"}),

		JobOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bizaudit_jobs_total",
			Help: "Finished audit jobs by terminal status",
		}, []string{"status"}),

		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bizaudit_jobs_active",
			Help: "Audit jobs currently generating",
		}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizaudit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route, method and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveProviderCall records one model provider call
func (m *Metrics) ObserveProviderCall(provider, outcome string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider, outcome).Observe(d.Seconds())
	}
}

// IncGenerationAttempt records the outcome of one generation attempt
func (m *Metrics) IncGenerationAttempt(outcome string) {
	if m != nil {
		m.GenerationAttempts.WithLabelValues(outcome).Inc()
	}
}

// JobStarted increments the active job gauge
func (m *Metrics) JobStarted() {
	if m != nil {
		m.ActiveJobs.Inc()
	}
}

// JobFinished decrements the active job gauge and records the terminal status
func (m *Metrics) JobFinished(status string) {
	if m != nil {
		m.ActiveJobs.Dec()
		m.JobOutcomes.WithLabelValues(status).Inc()
	}
}

// JobReaped records a job lost to a restart and failed by the stale sweep
func (m *Metrics) JobReaped() {
	if m != nil {
		m.JobOutcomes.WithLabelValues("stale").Inc()
	}
}

// ObserveRequest records one served HTTP request. route must come from a
// fixed set so label cardinality stays bounded.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
	}
}
