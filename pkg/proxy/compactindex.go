package proxy

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/httpcache"
	"github.com/cuemby/vein/pkg/objectstore"
)

const compactIndexTTL = 5 * time.Minute

func (e *Engine) handleCompactVersions(w http.ResponseWriter, r *http.Request) {
	e.serveCompactDocument(w, r, "versions", "/versions")
}

func (e *Engine) handleCompactNames(w http.ResponseWriter, r *http.Request) {
	e.serveCompactDocument(w, r, "names", "/names")
}

func (e *Engine) handleCompactInfo(w http.ResponseWriter, r *http.Request) {
	gem := chi.URLParam(r, "gem")
	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "compact_info_" + gem}

	body, err := e.cache.FetchCachedText(r.Context(), key, objectstore.CompactIndexInfoPath(gem), "/info/"+gem, "text/plain; charset=utf-8", httpcache.BestEffort, compactIndexTTL)
	if err != nil {
		e.writeError(w, err)
		return
	}

	lines := strings.Split(body, "\n")
	filtered, err := e.quarantine.FilterInfoLines(r.Context(), gem, lines)
	if err != nil {
		e.writeError(w, err)
		return
	}

	e.writeCachedText(w, r, key, strings.Join(filtered, "\n"))
}

func (e *Engine) serveCompactDocument(w http.ResponseWriter, r *http.Request, part, upstreamPath string) {
	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "compact_" + part}
	body, err := e.cache.FetchCachedText(r.Context(), key, objectstore.CompactIndexPath(part), upstreamPath, "text/plain; charset=utf-8", httpcache.BestEffort, compactIndexTTL)
	if err != nil {
		e.writeError(w, err)
		return
	}
	e.writeCachedText(w, r, key, body)
}

// writeCachedText writes body with the validator headers recorded for
// key's cache entry, if any, plus the fixed index TTL's Cache-Control.
func (e *Engine) writeCachedText(w http.ResponseWriter, r *http.Request, key assetindex.AssetKey, body string) {
	if cached, err := e.index.GetCachedAsset(r.Context(), key); err == nil {
		if cached.ETag != "" {
			w.Header().Set("ETag", cached.ETag)
		}
		if cached.LastModified != "" {
			w.Header().Set("Last-Modified", cached.LastModified)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
