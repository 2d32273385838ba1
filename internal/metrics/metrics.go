// Package metrics holds the Prometheus collectors for the analyzer service.
// Collectors are registered on a private registry rather than the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "faceanalyzer"

// LLM call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeInvalidJSON = "invalid_json"
)

// Metrics groups every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	LLMCalls         *prometheus.CounterVec
	LLMDuration      *prometheus.HistogramVec
	RankedCandidates prometheus.Histogram
	Fallbacks        *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route"}),
		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Calls to the inference provider, by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		LLMDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Inference provider latency by pipeline stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"stage"}),
		RankedCandidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_candidates",
			Help:      "Number of services shortlisted by the ranking step.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fallback recommendations served instead of a model answer.",
		}, []string{"kind"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLLM records one provider call. A nil receiver is a no-op so callers
// can run without metrics.
func (m *Metrics) ObserveLLM(stage, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(stage, outcome).Inc()
	m.LLMDuration.WithLabelValues(stage).Observe(took.Seconds())
}

// ObserveCandidates records the size of a ranking shortlist.
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.RankedCandidates.Observe(float64(n))
}

// ObserveFallback counts a fallback answer of the given kind.
func (m *Metrics) ObserveFallback(kind string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(kind).Inc()
}
