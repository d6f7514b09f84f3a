// Package metrics provides Prometheus metrics for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	RecordsProcessed prometheus.Counter
	RecordsDropped   prometheus.Counter
	RecordsInserted  prometheus.Counter
	RecordsDuplicate prometheus.Counter
	SinkFailures     *prometheus.CounterVec
	RateLookups      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the pipeline metrics on reg. A nil reg uses a fresh registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "etl"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by final status",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of pipeline runs",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		RecordsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Canonical records produced by the transformer",
		}),
		RecordsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Input rows dropped during cleaning",
		}),
		RecordsInserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_inserted_total",
			Help:      "Rows inserted into the relational store",
		}),
		RecordsDuplicate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_duplicate_total",
			Help:      "Rows skipped as duplicates of stored records",
		}),
		SinkFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_failures_total",
				Help:      "Loader sink failures by sink",
			},
			[]string{"sink"},
		),
		RateLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_lookups_total",
				Help:      "Exchange-rate lookups by source",
			},
			[]string{"source"},
		),
		gatherer: reg,
	}
}

// ObserveRun records the outcome of one pipeline run.
func (m *Metrics) ObserveRun(status string, d time.Duration, processed, dropped int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
	m.RecordsProcessed.Add(float64(processed))
	m.RecordsDropped.Add(float64(dropped))
}

// ObserveInsert records relational insert counts.
func (m *Metrics) ObserveInsert(inserted, skipped int) {
	if m == nil {
		return
	}
	m.RecordsInserted.Add(float64(inserted))
	m.RecordsDuplicate.Add(float64(skipped))
}

// SinkFailed counts one failed sink write.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// RateLookup counts a rate lookup served from source.
func (m *Metrics) RateLookup(source string) {
	if m == nil {
		return
	}
	m.RateLookups.WithLabelValues(source).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
