package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/errs"
)

// handleSBOM serves the CycloneDX SBOM generated for a previously
// analyzed gem version. If platform is omitted, a second lookup is
// tried with platform=ruby before giving up.
func (e *Engine) handleSBOM(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	version := q.Get("version")
	platform := q.Get("platform")

	if name == "" || version == "" {
		e.writeError(w, errs.Validation("name and version are required", nil))
		return
	}

	rec, err := e.index.GetManifest(r.Context(), name, version, platform)
	if err == assetindex.ErrNotFound && platform == "" {
		rec, err = e.index.GetManifest(r.Context(), name, version, "ruby")
	}
	if err == assetindex.ErrNotFound {
		e.writeError(w, errs.NotFound("no sbom for "+name+" "+version, nil))
		return
	}
	if err != nil {
		e.writeError(w, err)
		return
	}
	if rec.SBOMJSON == "" {
		e.writeError(w, errs.NotFound("no sbom recorded for "+name+" "+version, nil))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+"-"+version+`.cdx.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rec.SBOMJSON))
}

// handleHealth reports a JSON stats summary, 503 if the index can't be
// reached.
func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := e.index.Stats(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":             "ok",
		"cached_assets":      stats.CachedAssets,
		"manifests_analyzed": stats.ManifestsAnalyzed,
		"catalog_names":      stats.CatalogNames,
	})
}
