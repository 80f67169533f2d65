// Package proxy is the HTTP surface of the mirror: it classifies each
// request into one of the registry's route shapes, serves cached
// bytes, and drives the cache-miss pipeline (fetch, store, analyze,
// quarantine-record) with at-most-one in-flight upstream fetch per
// asset identity.
package proxy

import (
	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/config"
	"github.com/cuemby/vein/pkg/httpcache"
	"github.com/cuemby/vein/pkg/log"
	"github.com/cuemby/vein/pkg/manifest"
	"github.com/cuemby/vein/pkg/metrics"
	"github.com/cuemby/vein/pkg/objectstore"
	"github.com/cuemby/vein/pkg/quarantine"
	"github.com/cuemby/vein/pkg/upstream"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Engine wires every proxy dependency together and builds the HTTP
// handler. It is the one object cmd/vein constructs to get a running
// instance.
type Engine struct {
	store       *objectstore.Store
	index       assetindex.Index
	upstream    *upstream.Client
	cache       *httpcache.Helper
	quarantine  *quarantine.Engine
	analyzer    *manifest.Analyzer
	group       singleflight.Group
	upstreamURL string
	logger      zerolog.Logger
}

// New builds an Engine from its components. cfg.URL is kept as the
// pass-through target for requests that match no typed route; the
// sparse-crate-index config.json and rewritten npm tarball URLs are
// built from the incoming request's host instead.
func New(store *objectstore.Store, index assetindex.Index, client *upstream.Client, qe *quarantine.Engine, cfg config.UpstreamConfig) *Engine {
	return &Engine{
		store:       store,
		index:       index,
		upstream:    client,
		cache:       httpcache.New(store, index, client),
		quarantine:  qe,
		analyzer:    manifest.NewAnalyzer(),
		upstreamURL: cfg.URL,
		logger:      log.WithComponent("proxy"),
	}
}

// singleflightFetch guarantees at-most-one in-flight upstream fetch for
// a given asset key at steady state: duplicate concurrent callers wait
// on the first and receive its result.
func (e *Engine) singleflightFetch(key string, fn func() (*fetchedArtifact, error)) (*fetchedArtifact, error) {
	v, err, shared := e.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if shared {
		metrics.SingleFlightCollapsedTotal.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*fetchedArtifact), nil
}

// fetchedArtifact is the committed result of a cache-miss fetch: the
// bytes are already durably stored under StoragePath.
type fetchedArtifact struct {
	StoragePath string
	SizeBytes   int64
	SHA256      string
	ContentType string
}
