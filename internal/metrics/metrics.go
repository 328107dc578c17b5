// Package metrics holds the Prometheus collectors of the trends service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reflections        *prometheus.CounterVec
	narrativeFailures  *prometheus.CounterVec
	debounceRejections prometheus.Counter
	aggregateLatency   *prometheus.HistogramVec
	panics             *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reflections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinjo_reflections_generated_total",
				Help: "Reflections generated and persisted, by narrative model",
			},
			[]string{"model"},
		),
		narrativeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinjo_narrative_failures_total",
				Help: "AI narrative calls that failed, by reason",
			},
			[]string{"reason"},
		),
		debounceRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kinjo_regenerate_debounced_total",
				Help: "Regeneration requests dropped by the debounce window",
			},
		),
		aggregateLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kinjo_aggregate_duration_seconds",
				Help:    "Latency of aggregate computations including store reads",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"op"},
		),
		panics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinjo_http_panics_total",
				Help: "Handler panics recovered, by route template",
			},
			[]string{"route"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.reflections, m.narrativeFailures, m.debounceRejections, m.aggregateLatency, m.panics)
	return m
}

func (m *Metrics) ReflectionGenerated(model string) {
	if m == nil {
		return
	}
	m.reflections.WithLabelValues(model).Inc()
}

func (m *Metrics) NarrativeFailed(reason string) {
	if m == nil {
		return
	}
	m.narrativeFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) Debounced() {
	if m == nil {
		return
	}
	m.debounceRejections.Inc()
}

// ObserveAggregate records the time since start under op.
func (m *Metrics) ObserveAggregate(op string, start time.Time) {
	if m == nil {
		return
	}
	m.aggregateLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) PanicRecovered(route string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(route).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
