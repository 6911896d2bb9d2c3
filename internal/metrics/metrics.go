package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeSuccess is the outcome label of a flow that returned no error.
// Failed flows are labelled with their error code.
const OutcomeSuccess = "success"

// Metrics holds the service collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Auth flow metrics
	FlowTotal    *prometheus.CounterVec
	FlowDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Audit delivery metrics
	AuditFailures *prometheus.CounterVec
}

// New creates a Metrics with process and Go runtime collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		FlowTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyauth_flow_total",
				Help: "Total number of auth flows by outcome code",
			},
			[]string{"flow", "outcome"},
		),
		FlowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyauth_flow_duration_seconds",
				Help:    "Duration of auth flows in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow"},
		),
		RateLimitHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "keyauth_rate_limit_hits_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		AuditFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyauth_audit_failures_total",
				Help: "Total number of audit events that could not be delivered",
			},
			[]string{"action"},
		),
	}
}

// ObserveFlow records one completed flow. outcome is OutcomeSuccess or an
// error code.
func (m *Metrics) ObserveFlow(flow, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FlowTotal.WithLabelValues(flow, outcome).Inc()
	m.FlowDuration.WithLabelValues(flow).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
