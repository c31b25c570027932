// Package metrics exposes prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the pipeline's prometheus collectors around one registry.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsNormalized prometheus.Counter
	DocumentsRejected   *prometheus.CounterVec
	SegmentsBuilt       prometheus.Counter
	SegmentQueryErrors  prometheus.Counter
	SweepRuns           prometheus.Counter
	RepresentativeDocs  prometheus.Counter
	SuppressedDocs      prometheus.Counter
	NormalizeDuration   prometheus.Histogram
	ClusterDuration     prometheus.Histogram
}

// New creates a metrics bundle backed by its own registry.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		DocumentsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_normalized_total",
			Help:      "Documents successfully normalized and indexed.",
		}),
		DocumentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rejected_total",
			Help:      "Documents rejected during normalization, by reason.",
		}, []string{"reason"}),
		SegmentsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_built_total",
			Help:      "Cluster segments that survived the minimum-entries threshold.",
		}),
		SegmentQueryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_query_errors_total",
			Help:      "Per-segment document queries that failed.",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Completed representative sweep runs.",
		}),
		RepresentativeDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "representative_documents_total",
			Help:      "Documents marked representative by a sweep.",
		}),
		SuppressedDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_documents_total",
			Help:      "Documents suppressed as near-duplicates by a sweep.",
		}),
		NormalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "normalize_duration_seconds",
			Help:      "Time spent normalizing one document.",
			Buckets:   prometheus.DefBuckets,
		}),
		ClusterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_build_duration_seconds",
			Help:      "Time spent building one set of clusters.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	registry.MustRegister(
		m.DocumentsNormalized,
		m.DocumentsRejected,
		m.SegmentsBuilt,
		m.SegmentQueryErrors,
		m.SweepRuns,
		m.RepresentativeDocs,
		m.SuppressedDocs,
		m.NormalizeDuration,
		m.ClusterDuration,
	)
	return m
}

// Registry returns the underlying registry for the metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
