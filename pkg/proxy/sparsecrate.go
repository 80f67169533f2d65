package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/errs"
	"github.com/cuemby/vein/pkg/httpcache"
	"github.com/cuemby/vein/pkg/objectstore"
)

// handleSparseIndexConfig synthesizes crates.io's sparse-index
// config.json locally so `dl` points back at this proxy instead of
// the real registry.
func (e *Engine) handleSparseIndexConfig(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	doc := map[string]string{
		"dl":  scheme + "://" + r.Host + "/api/v1/crates",
		"api": scheme + "://" + r.Host,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		e.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleSparseIndexLine serves one crates.io sparse-index line file,
// addressed by its sharded path under /index/.
func (e *Engine) handleSparseIndexLine(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")
	if err := RejectUnsafeSegment(rest); err != nil {
		e.writeError(w, errs.Validation("invalid sparse index path", err))
		return
	}

	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "crates_index_" + rest}
	storagePath := objectstore.SparseIndexLinePath(rest)
	body, err := e.cache.FetchCachedText(r.Context(), key, storagePath, "/"+rest, "text/plain; charset=utf-8", httpcache.BestEffort, compactIndexTTL)
	if err != nil {
		e.writeError(w, err)
		return
	}
	e.writeCachedText(w, r, key, body)
}
