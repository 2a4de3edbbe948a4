package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// retrieval engine.
type Metrics struct {
	ChunksCompleted  prometheus.Counter
	ChunksFailed     prometheus.Counter
	PitsRetrieved    prometheus.Counter
	ParseFailures    prometheus.Counter
	RetrievalRunning prometheus.Gauge

	// Per-chunk processing metrics.
	ArchiveFiles  prometheus.Histogram
	ChunkDuration prometheus.Histogram

	// Session metrics.
	SessionRequests         *prometheus.CounterVec // labels: kind={login,query,archive}, outcome={success,error,empty}
	SessionReauths          prometheus.Counter
	ArchiveDownloadDuration prometheus.Histogram

	// Catalog metrics.
	CatalogCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all retrieval metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ChunksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowpit_etl",
			Name:      "chunks_completed_total",
			Help:      "Total date chunks retrieved and recorded successfully.",
		}),
		ChunksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowpit_etl",
			Name:      "chunks_failed_total",
			Help:      "Total date chunks that exhausted their retries.",
		}),
		PitsRetrieved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowpit_etl",
			Name:      "pits_retrieved_total",
			Help:      "Total snow pit documents downloaded and parsed.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowpit_etl",
			Name:      "parse_failures_total",
			Help:      "Total extracted documents that failed to parse.",
		}),
		RetrievalRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snowpit_etl",
			Name:      "retrieval_running",
			Help:      "1 when a retrieval run is active, 0 when idle.",
		}),
		ArchiveFiles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "snowpit_etl",
			Name:      "archive_files",
			Help:      "Number of CAAML documents per downloaded archive.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		ChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "snowpit_etl",
			Name:      "chunk_duration_seconds",
			Help:      "Duration of a complete chunk download-extract-parse cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SessionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snowpit_etl",
			Name:      "session_requests_total",
			Help:      "SnowPilot requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		SessionReauths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowpit_etl",
			Name:      "session_reauths_total",
			Help:      "Re-authentications triggered by rejected requests.",
		}),
		ArchiveDownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "snowpit_etl",
			Name:      "archive_download_duration_seconds",
			Help:      "Archive download request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snowpit_etl",
			Name:      "catalog_cache_total",
			Help:      "Catalog parse cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.ChunksCompleted,
		m.ChunksFailed,
		m.PitsRetrieved,
		m.ParseFailures,
		m.RetrievalRunning,
		m.ArchiveFiles,
		m.ChunkDuration,
		m.SessionRequests,
		m.SessionReauths,
		m.ArchiveDownloadDuration,
		m.CatalogCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ChunksCompleted:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "snowpit_etl", Name: "chunks_completed_total"}),
		ChunksFailed:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "snowpit_etl", Name: "chunks_failed_total"}),
		PitsRetrieved:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "snowpit_etl", Name: "pits_retrieved_total"}),
		ParseFailures:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "snowpit_etl", Name: "parse_failures_total"}),
		RetrievalRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "snowpit_etl", Name: "retrieval_running"}),
		ArchiveFiles:            prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "snowpit_etl", Name: "archive_files"}),
		ChunkDuration:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "snowpit_etl", Name: "chunk_duration_seconds"}),
		SessionRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "snowpit_etl", Name: "session_requests_total"}, []string{"kind", "outcome"}),
		SessionReauths:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "snowpit_etl", Name: "session_reauths_total"}),
		ArchiveDownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "snowpit_etl", Name: "archive_download_duration_seconds"}),
		CatalogCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "snowpit_etl", Name: "catalog_cache_total"}, []string{"result"}),
	}
}
