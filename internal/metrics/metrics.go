// Package metrics exposes Prometheus collectors for the classification and
// extraction paths on a private registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrolog/apollo/internal/model"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry       *prometheus.Registry
	classified     *prometheus.CounterVec
	classifyErrors *prometheus.CounterVec
	duration       prometheus.Histogram
	llmRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apollo_classifications_total",
			Help: "Messages classified, by predicted class.",
		}, []string{"prediction"}),
		classifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apollo_classification_errors_total",
			Help: "Failed classifications, by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apollo_classification_duration_seconds",
			Help:    "Time spent classifying one message.",
			Buckets: prometheus.ExponentialBuckets(0.002, 2, 12),
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apollo_llm_requests_total",
			Help: "Delegated LLM requests, by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	m.registry.MustRegister(
		m.classified, m.classifyErrors, m.duration, m.llmRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveClassification records one classification attempt.
func (m *Metrics) ObserveClassification(d time.Duration, c model.Classification, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
	if err != nil {
		m.classifyErrors.WithLabelValues(ErrorKind(err)).Inc()
		return
	}
	m.classified.WithLabelValues(strconv.Itoa(c.Prediction)).Inc()
}

// ObserveLLM records one delegated request. operation is the route name.
func (m *Metrics) ObserveLLM(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmRequests.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ErrorKind maps a classification error to a low-cardinality label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrTokenization):
		return "tokenization"
	case errors.Is(err, model.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, model.ErrInference):
		return "inference"
	case errors.Is(err, model.ErrArtifactLoad):
		return "artifact_load"
	default:
		return "other"
	}
}
