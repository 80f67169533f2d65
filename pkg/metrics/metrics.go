package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vein_cache_requests_total",
			Help: "Total number of requests served by the proxy, by asset kind and cache status",
		},
		[]string{"kind", "status"}, // status: hit, miss, error
	)

	CacheBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vein_cache_bytes_total",
			Help: "Total bytes served from cache, by asset kind",
		},
		[]string{"kind"},
	)

	// Upstream client metrics
	UpstreamFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vein_upstream_fetch_duration_seconds",
			Help:    "Time taken to fetch an asset from an upstream origin",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"origin", "outcome"},
	)

	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vein_upstream_retries_total",
			Help: "Total number of retry attempts against an upstream origin",
		},
		[]string{"origin"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vein_circuit_breaker_state",
			Help: "Circuit breaker state per origin (0=closed, 1=half-open, 2=open)",
		},
		[]string{"origin"},
	)

	// Asset index snapshot metrics, refreshed by Collector
	CachedAssetsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vein_cached_assets",
			Help: "Total number of cached asset entries in the index",
		},
	)

	ManifestsAnalyzedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vein_manifests_analyzed",
			Help: "Total number of gem manifests recorded in the index",
		},
	)

	CatalogNamesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vein_catalog_names",
			Help: "Total number of distinct package names known to the catalog",
		},
	)

	// Quarantine metrics
	QuarantineVersionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vein_quarantine_versions",
			Help: "Number of gem versions by quarantine status",
		},
		[]string{"status"}, // quarantine, available, pinned, yanked
	)

	QuarantinePromotionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vein_quarantine_promotions_total",
			Help: "Total number of versions promoted out of quarantine",
		},
	)

	QuarantineBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vein_quarantine_blocks_total",
			Help: "Total number of versions manually blocked by an operator",
		},
	)

	QuarantineUpstreamYanksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vein_quarantine_upstream_yanks_total",
			Help: "Total number of versions yanked due to an upstream-detected yank",
		},
	)

	// Object store metrics
	ObjectStoreWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vein_objectstore_writes_total",
			Help: "Total number of atomic object store writes, by outcome",
		},
		[]string{"outcome"},
	)

	ObjectStoreBytesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vein_objectstore_bytes_stored",
			Help: "Approximate total bytes held in the object store",
		},
	)

	// Manifest analyzer metrics
	ManifestAnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vein_manifest_analysis_duration_seconds",
			Help:    "Time taken to analyze a gem and produce its manifest",
			Buckets: prometheus.DefBuckets,
		},
	)

	SBOMGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vein_sbom_generated_total",
			Help: "Total number of SBOM documents generated",
		},
	)

	// HTTP surface metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vein_api_requests_total",
			Help: "Total number of proxy HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vein_api_request_duration_seconds",
			Help:    "Proxy HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	SingleFlightCollapsedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vein_singleflight_collapsed_total",
			Help: "Total number of concurrent fetches collapsed into a single upstream call",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheRequestsTotal,
		CacheBytesTotal,
		UpstreamFetchDuration,
		UpstreamRetriesTotal,
		CircuitBreakerState,
		CachedAssetsTotal,
		ManifestsAnalyzedTotal,
		CatalogNamesTotal,
		QuarantineVersionsTotal,
		QuarantinePromotionsTotal,
		QuarantineBlocksTotal,
		QuarantineUpstreamYanksTotal,
		ObjectStoreWritesTotal,
		ObjectStoreBytesStored,
		ManifestAnalysisDuration,
		SBOMGeneratedTotal,
		APIRequestsTotal,
		APIRequestDuration,
		SingleFlightCollapsedTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
