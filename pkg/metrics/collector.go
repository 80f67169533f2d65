package metrics

import (
	"context"
	"time"

	"github.com/cuemby/vein/pkg/assetindex"
)

// Collector periodically snapshots asset index stats into gauges, so
// /metrics reflects cache and quarantine size without every request
// path having to touch Prometheus directly.
type Collector struct {
	index  assetindex.Index
	stopCh chan struct{}
}

// NewCollector builds a Collector over an asset index.
func NewCollector(index assetindex.Index) *Collector {
	return &Collector{
		index:  index,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting on a 15 second tick, collecting immediately
// on call.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector's background goroutine.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats, err := c.index.Stats(context.Background())
	if err != nil {
		return
	}

	CachedAssetsTotal.Set(float64(stats.CachedAssets))
	ManifestsAnalyzedTotal.Set(float64(stats.ManifestsAnalyzed))
	CatalogNamesTotal.Set(float64(stats.CatalogNames))

	for status, count := range stats.GemVersionsByStatus {
		QuarantineVersionsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}
