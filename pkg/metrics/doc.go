/*
Package metrics provides Prometheus metrics collection and exposition for the
proxy.

It defines and registers every counter, gauge, and histogram exposed at
/metrics, plus a Collector that periodically snapshots asset index stats into
gauges and a HealthChecker used by the /health, /ready, and /live endpoints.

# Metrics Catalog

Cache:

vein_cache_requests_total{kind, status}:
  - Type: Counter
  - Description: Requests served by the proxy, by asset kind and cache status
  - Labels: kind (gem_artifact, gem_quick, crate_artifact, npm_tarball), status (hit, miss, error)

vein_cache_bytes_total{kind}:
  - Type: Counter
  - Description: Bytes served from cache, by asset kind

Upstream:

vein_upstream_fetch_duration_seconds{origin, outcome}:
  - Type: Histogram
  - Description: Time taken to fetch an asset from an upstream origin

vein_upstream_retries_total{origin}:
  - Type: Counter
  - Description: Retry attempts against an upstream origin

vein_circuit_breaker_state{origin}:
  - Type: Gauge
  - Description: Circuit breaker state per origin (0=closed, 1=half-open, 2=open)

Asset index snapshot, refreshed by Collector every 15s:

vein_cached_assets:
  - Type: Gauge
  - Description: Total number of cached asset entries in the index

vein_manifests_analyzed:
  - Type: Gauge
  - Description: Total number of gem manifests recorded in the index

vein_catalog_names:
  - Type: Gauge
  - Description: Total number of distinct package names known to the catalog

Quarantine:

vein_quarantine_versions{status}:
  - Type: Gauge
  - Description: Number of gem versions by quarantine status
  - Labels: status (quarantine, available, pinned, yanked)

vein_quarantine_promotions_total / vein_quarantine_blocks_total:
  - Type: Counter
  - Description: Versions promoted out of quarantine / manually blocked

Object store:

vein_objectstore_writes_total{outcome}:
  - Type: Counter
  - Description: Atomic object store writes, by outcome

vein_objectstore_bytes_stored:
  - Type: Gauge
  - Description: Approximate total bytes held in the object store

Manifest analyzer:

vein_manifest_analysis_duration_seconds:
  - Type: Histogram
  - Description: Time taken to analyze a gem and produce its manifest

vein_sbom_generated_total:
  - Type: Counter
  - Description: SBOM documents generated

HTTP surface:

vein_api_requests_total{method, status} / vein_api_request_duration_seconds{method}:
  - Type: Counter / Histogram
  - Description: Proxy HTTP request count and duration

vein_singleflight_collapsed_total:
  - Type: Counter
  - Description: Concurrent fetches collapsed into a single upstream call

# Usage

	import "github.com/cuemby/vein/pkg/metrics"

	metrics.CacheRequestsTotal.WithLabelValues("gem_artifact", "hit").Inc()

	timer := metrics.NewTimer()
	// ... fetch from upstream ...
	timer.ObserveDurationVec(metrics.UpstreamFetchDuration, origin, "ok")

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())

# Design Patterns

Package Init Registration:
  - All metrics registered in init(), MustRegister panics on duplicate
    registration, so collisions surface at process start rather than
    at scrape time.

Label Discipline:
  - Labels are bounded (asset kind, cache status, HTTP method/status);
    never a package name, version, or gem file digest.

Collector:
  - Polls assetindex.Index.Stats on a fixed 15s ticker and sets the
    snapshot gauges; Start/Stop mirror a typical background-worker
    lifecycle so it composes with graceful shutdown.
*/
package metrics
