// Package metrics exposes pipeline counters and latencies to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shapeCluster/internal/ports"
)

// Recorder records clustering runs using Prometheus collectors registered on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	runsTotal  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	instrument *prometheus.GaugeVec
	inertia    prometheus.Gauge
	iterations prometheus.Histogram
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shapecluster_runs_total",
				Help: "Total number of pipeline runs by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shapecluster_errors_total",
				Help: "Total number of pipeline errors by kind",
			},
			[]string{"kind"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shapecluster_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		instrument: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shapecluster_last_run_instruments",
				Help: "Instruments included and excluded by the last normalization",
			},
			[]string{"state"},
		),
		inertia: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shapecluster_last_inertia",
				Help: "Inertia of the last fitted model",
			},
		),
		iterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shapecluster_fit_iterations",
				Help:    "Refinement iterations of the winning k-means restart",
				Buckets: prometheus.LinearBuckets(5, 5, 10),
			},
		),
	}
}

// RecordRun counts a finished run of operation.
func (r *Recorder) RecordRun(operation string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.runsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records stage latency in seconds.
func (r *Recorder) RecordLatency(stage string, seconds float64) {
	r.latency.WithLabelValues(stage).Observe(seconds)
}

// RecordCollection records the included and excluded instrument counts.
func (r *Recorder) RecordCollection(included, excluded int) {
	r.instrument.WithLabelValues("included").Set(float64(included))
	r.instrument.WithLabelValues("excluded").Set(float64(excluded))
}

// RecordFit records the quality of a fitted model.
func (r *Recorder) RecordFit(inertia float64, iterations int) {
	r.inertia.Set(inertia)
	r.iterations.Observe(float64(iterations))
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var _ ports.Metrics = (*Recorder)(nil)
