package proxy

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/errs"
	"github.com/cuemby/vein/pkg/objectstore"
)

func (e *Engine) handleGemArtifact(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "artifact")
	stem, ok := trimSuffix(filename, ".gem")
	if !ok {
		e.writeError(w, errs.Validation("artifact is not a .gem file: "+filename, nil))
		return
	}
	id, err := ParseArtifactStem(stem)
	if err != nil {
		e.writeError(w, err)
		return
	}

	key := assetindex.AssetKey{Kind: assetindex.KindGemArtifact, Name: id.Name, Version: id.Version, Platform: id.Platform}
	storagePath := objectstore.GemPath(id.Name, id.Version, id.Platform)
	upstreamPath := "/" + storagePath
	e.serveArtifact(w, r, key, storagePath, upstreamPath, contentTypeForKind(key.Kind), filename)
}

func (e *Engine) handleQuickMarshal(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "artifact")
	stem, ok := trimSuffix(filename, ".gemspec.rz")
	if !ok {
		e.writeError(w, errs.Validation("artifact is not a .gemspec.rz file: "+filename, nil))
		return
	}
	id, err := ParseArtifactStem(stem)
	if err != nil {
		e.writeError(w, err)
		return
	}

	key := assetindex.AssetKey{Kind: assetindex.KindGemQuick, Name: id.Name, Version: id.Version, Platform: id.Platform}
	storagePath := objectstore.QuickMarshalPath(id.Name, id.Version, id.Platform)
	upstreamPath := "/" + storagePath
	e.serveArtifact(w, r, key, storagePath, upstreamPath, contentTypeForKind(key.Kind), filename)
}

func (e *Engine) handleCrateDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")
	if err := RejectUnsafeSegment(name); err != nil {
		e.writeError(w, err)
		return
	}
	if err := RejectUnsafeSegment(version); err != nil {
		e.writeError(w, err)
		return
	}

	key := assetindex.AssetKey{Kind: assetindex.KindCrateArtifact, Name: name, Version: version}
	storagePath := objectstore.CratePath(name, version)
	upstreamPath := fmt.Sprintf("/api/v1/crates/%s/%s/download", name, version)
	filename := fmt.Sprintf("%s-%s.crate", name, version)
	e.serveArtifact(w, r, key, storagePath, upstreamPath, contentTypeForKind(key.Kind), filename)
}

// trimSuffix reports whether s ends with suffix and, if so, returns
// the trimmed stem.
func trimSuffix(s, suffix string) (string, bool) {
	if len(s) <= len(suffix) || s[len(s)-len(suffix):] != suffix {
		return "", false
	}
	return s[:len(s)-len(suffix)], true
}
