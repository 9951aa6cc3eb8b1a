// Package metrics provides Prometheus metrics export for the search pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports pipeline metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Turn metrics
	turnLatency *prometheus.HistogramVec
	turns       *prometheus.CounterVec

	// LLM metrics
	llmLatency *prometheus.HistogramVec
	llmTokens  *prometheus.CounterVec

	// Retrieval metrics
	retrievalHits prometheus.Histogram

	// Image metrics
	imageFetches   *prometheus.CounterVec
	imageSelection *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.turnLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopsight_turn_duration_seconds",
		Help:    "Wall-clock duration of one search turn.",
		Buckets: cfg.LatencyBuckets,
	}, []string{"outcome"})

	e.turns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsight_turns_total",
		Help: "Search turns by outcome.",
	}, []string{"outcome"})

	e.llmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopsight_llm_duration_seconds",
		Help:    "LLM completion call duration.",
		Buckets: cfg.LatencyBuckets,
	}, []string{"call"})

	e.llmTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsight_llm_tokens_total",
		Help: "LLM tokens used, by call and direction.",
	}, []string{"call", "direction"})

	e.retrievalHits = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopsight_retrieval_hits",
		Help:    "Knowledge-base hits per query.",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	})

	e.imageFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsight_image_fetches_total",
		Help: "Image fetch attempts by result.",
	}, []string{"result"})

	e.imageSelection = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsight_image_selection_total",
		Help: "Image selections by outcome.",
	}, []string{"outcome"})

	registry.MustRegister(
		e.turnLatency,
		e.turns,
		e.llmLatency,
		e.llmTokens,
		e.retrievalHits,
		e.imageFetches,
		e.imageSelection,
	)

	return e
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ObserveTurn records one finished search turn.
func (e *PrometheusExporter) ObserveTurn(outcome string, duration time.Duration) {
	e.turns.WithLabelValues(outcome).Inc()
	e.turnLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveLLMCall records one completion call.
func (e *PrometheusExporter) ObserveLLMCall(call string, duration time.Duration, promptTokens, completionTokens int) {
	e.llmLatency.WithLabelValues(call).Observe(duration.Seconds())
	e.llmTokens.WithLabelValues(call, "prompt").Add(float64(promptTokens))
	e.llmTokens.WithLabelValues(call, "completion").Add(float64(completionTokens))
}

// ObserveRetrieval records the hit count of one knowledge-base query.
func (e *PrometheusExporter) ObserveRetrieval(hits int) {
	e.retrievalHits.Observe(float64(hits))
}

// ObserveImageFetch records one image fetch attempt.
func (e *PrometheusExporter) ObserveImageFetch(result string) {
	e.imageFetches.WithLabelValues(result).Inc()
}

// ObserveImageSelection records one selection outcome.
func (e *PrometheusExporter) ObserveImageSelection(outcome string) {
	e.imageSelection.WithLabelValues(outcome).Inc()
}
