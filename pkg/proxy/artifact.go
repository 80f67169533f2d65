package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/errs"
	"github.com/cuemby/vein/pkg/metrics"
)

// serveArtifact serves a single registry artifact (gem, gemspec,
// crate, npm tarball) identified by key/storagePath, fetching and
// storing it on a cache miss.
func (e *Engine) serveArtifact(w http.ResponseWriter, r *http.Request, key assetindex.AssetKey, storagePath, upstreamPath, contentType, downloadName string) {
	ctx := r.Context()

	if key.Kind == assetindex.KindGemArtifact || key.Kind == assetindex.KindGemQuick {
		downloadable, err := e.quarantine.IsDownloadable(ctx, key.Name, key.Version, key.Platform)
		if err != nil {
			e.writeError(w, fmt.Errorf("check quarantine status: %w", err))
			return
		}
		if !downloadable {
			e.writeError(w, errs.NotFound(fmt.Sprintf("%s %s is yanked", key.Name, key.Version), nil))
			return
		}
	}

	cached, err := e.index.GetCachedAsset(ctx, key)
	if err != nil && err != assetindex.ErrNotFound {
		e.writeError(w, fmt.Errorf("read cache entry: %w", err))
		return
	}

	if cached != nil {
		metrics.CacheRequestsTotal.WithLabelValues(string(key.Kind), "hit").Inc()
		e.serveStoredArtifact(w, cached.StoragePath, cached.SizeBytes, cached.SHA256, contentType, downloadName)
		return
	}

	artifact, err := e.singleflightFetch(key.StorageKey(), func() (*fetchedArtifact, error) {
		return e.fetchAndStoreArtifact(ctx, key, storagePath, upstreamPath, contentType)
	})
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(string(key.Kind), "error").Inc()
		e.writeError(w, err)
		return
	}

	metrics.CacheRequestsTotal.WithLabelValues(string(key.Kind), "miss").Inc()
	e.serveStoredArtifact(w, artifact.StoragePath, artifact.SizeBytes, artifact.SHA256, artifact.ContentType, downloadName)
}

// fetchAndStoreArtifact runs the cache-miss artifact pipeline from the
// proxy engine's contract: stream the upstream 2xx body into the
// object store atomically while hashing it, commit it, then upsert the
// asset index and (for gems) the manifest and quarantine records.
func (e *Engine) fetchAndStoreArtifact(ctx context.Context, key assetindex.AssetKey, storagePath, upstreamPath, contentType string) (*fetchedArtifact, error) {
	result, err := e.upstream.Fetch(ctx, upstreamPath)
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()

	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return nil, errs.NotFound(fmt.Sprintf("upstream returned %d for %s", result.StatusCode, upstreamPath), nil)
	}

	hasher := sha256.New()
	n, err := e.store.Put(storagePath, io.TeeReader(result.Body, hasher))
	if err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}
	sum := hex.EncodeToString(hasher.Sum(nil))

	asset := &assetindex.CachedAsset{
		Key:          key,
		StoragePath:  storagePath,
		SizeBytes:    n,
		SHA256:       sum,
		ContentType:  contentType,
		Immutable:    true,
		FetchedAt:    time.Now(),
		RevalidateAt: time.Now().Add(100 * 365 * 24 * time.Hour), // artifacts never revalidate
	}
	if err := e.index.PutCachedAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("index artifact: %w", err)
	}
	metrics.CacheBytesTotal.WithLabelValues(string(key.Kind)).Add(float64(n))

	if key.Kind == assetindex.KindGemArtifact {
		e.analyzeAndRecordGem(ctx, key, storagePath, n, sum)
	}

	return &fetchedArtifact{StoragePath: storagePath, SizeBytes: n, SHA256: sum, ContentType: contentType}, nil
}

// analyzeAndRecordGem runs the manifest analyzer and quarantine
// recording for a newly cached gem artifact. Per the error propagation
// policy, failures here are logged and never fail the client response.
func (e *Engine) analyzeAndRecordGem(ctx context.Context, key assetindex.AssetKey, storagePath string, size int64, sha256Hex string) {
	r, err := e.store.OpenReader(storagePath)
	if err != nil {
		e.logger.Warn().Err(err).Str("gem", key.Name).Msg("could not reopen cached gem for manifest analysis")
		return
	}
	defer r.Close()

	var prevSBOM string
	if prev, err := e.index.GetManifest(ctx, key.Name, key.Version, key.Platform); err == nil {
		prevSBOM = prev.SBOMJSON
	}

	rec, err := e.analyzer.Analyze(r, key.Platform, size, sha256Hex, prevSBOM)
	if err != nil {
		e.logger.Warn().Err(err).Str("gem", key.Name).Str("version", key.Version).Msg("manifest analysis failed")
	} else if rec != nil {
		rec.Name, rec.Version = key.Name, key.Version
		if err := e.index.PutManifest(ctx, rec); err != nil {
			e.logger.Warn().Err(err).Str("gem", key.Name).Msg("failed to store manifest")
		}
	}

	if err := e.quarantine.RecordObservation(ctx, key.Name, key.Version, key.Platform, sha256Hex); err != nil {
		e.logger.Warn().Err(err).Str("gem", key.Name).Str("version", key.Version).Msg("failed to record quarantine observation")
	}
	if err := e.index.PutCatalogName(ctx, key.Name); err != nil {
		e.logger.Warn().Err(err).Str("gem", key.Name).Msg("failed to record catalog name")
	}
}

func (e *Engine) serveStoredArtifact(w http.ResponseWriter, storagePath string, size int64, sha256Hex, contentType, downloadName string) {
	r, err := e.store.OpenReader(storagePath)
	if err != nil {
		e.writeError(w, fmt.Errorf("open stored artifact: %w", err))
		return
	}
	defer r.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("X-Checksum-SHA256", sha256Hex)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, r)
}

func (e *Engine) writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	if status >= 500 {
		e.logger.Error().Err(err).Msg("proxy request failed")
	} else {
		e.logger.Debug().Err(err).Msg("proxy request rejected")
	}
	http.Error(w, http.StatusText(status), status)
}

// contentTypeForKind returns the response content-type for an artifact
// kind, per §4.6.
func contentTypeForKind(kind assetindex.AssetKind) string {
	switch kind {
	case assetindex.KindGemQuick:
		return "application/x-deflate"
	case assetindex.KindNPMTarball:
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
