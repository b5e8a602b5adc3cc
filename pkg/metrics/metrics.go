package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Indexing metrics
	UnitsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexcache_units_indexed_total",
			Help: "Total number of work units indexed by operation",
		},
		[]string{"operation"},
	)

	UnitsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexcache_units_skipped_total",
			Help: "Total number of malformed work units skipped by operation",
		},
		[]string{"operation"},
	)

	UnitsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexcache_units_failed_total",
			Help: "Total number of work units that exhausted retries by operation",
		},
		[]string{"operation"},
	)

	BatchesCommittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexcache_batches_committed_total",
			Help: "Total number of atomic cache batches committed",
		},
	)

	IndexJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexcache_index_job_duration_seconds",
			Help:    "Indexing job duration in seconds by operation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"operation"},
	)

	// Upstream metrics
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexcache_upstream_requests_total",
			Help: "Total number of upstream API requests by path and status",
		},
		[]string{"path", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexcache_upstream_request_duration_seconds",
			Help:    "Upstream API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// Read path metrics
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexcache_cache_hits_total",
			Help: "Total number of cache hits by record kind",
		},
		[]string{"kind"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexcache_cache_misses_total",
			Help: "Total number of cache misses by record kind",
		},
		[]string{"kind"},
	)

	LiveFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexcache_live_fallbacks_total",
			Help: "Total number of read-time live upstream fallbacks",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexcache_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexcache_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(UnitsIndexedTotal)
	prometheus.MustRegister(UnitsSkippedTotal)
	prometheus.MustRegister(UnitsFailedTotal)
	prometheus.MustRegister(BatchesCommittedTotal)
	prometheus.MustRegister(IndexJobDuration)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(LiveFallbacksTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
