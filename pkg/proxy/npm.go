package proxy

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/errs"
	"github.com/cuemby/vein/pkg/httpcache"
	"github.com/cuemby/vein/pkg/objectstore"
)

const npmMetadataTTL = 60 * time.Second

// isNPMRequest detects an npm client request per §4.6: the npm-command
// header, a User-Agent starting "npm/", or an Accept header asking for
// the npm-specific metadata media type.
func isNPMRequest(r *http.Request) bool {
	if r.Header.Get("npm-command") != "" {
		return true
	}
	if strings.HasPrefix(r.Header.Get("User-Agent"), "npm/") {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Accept"), "application/vnd.npm") {
		return true
	}
	return false
}

func (e *Engine) serveNPM(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if err := RejectUnsafeSegment(path); err != nil {
		e.writeError(w, errs.Validation("invalid npm path", err))
		return
	}
	if rejectNPMSegments(path) {
		e.writeError(w, errs.Validation("invalid npm path segment", nil))
		return
	}

	if idx := strings.Index(path, "/-/"); idx >= 0 {
		e.serveNPMTarball(w, r, path[:idx], path[idx+len("/-/"):])
		return
	}
	e.serveNPMMetadata(w, r, path)
}

// rejectNPMSegments rejects npm paths containing traversal markers,
// literal dots as standalone segments, backslashes, or empty segments
// after the percent-decoding net/http already performed on r.URL.Path.
func rejectNPMSegments(path string) bool {
	if strings.Contains(path, "\\") {
		return true
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

func (e *Engine) serveNPMMetadata(w http.ResponseWriter, r *http.Request, name string) {
	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "npm_meta_" + name}
	body, err := e.cache.FetchCachedText(r.Context(), key, objectstore.NPMMetadataPath(name), "/"+name, "application/json", httpcache.BestEffort, npmMetadataTTL)
	if err != nil {
		e.writeError(w, err)
		return
	}

	rewritten, err := rewriteNPMTarballURLs(body, r)
	if err != nil {
		// Malformed upstream JSON: serve verbatim rather than fail the
		// client entirely.
		rewritten = body
	}
	e.writeCachedText(w, r, key, rewritten)
}

func (e *Engine) serveNPMTarball(w http.ResponseWriter, r *http.Request, name, tarball string) {
	key := assetindex.AssetKey{Kind: assetindex.KindNPMTarball, Name: name, Version: tarball}
	storagePath := objectstore.NPMTarballPath(name, tarball)
	upstreamPath := "/" + name + "/-/" + tarball
	e.serveArtifact(w, r, key, storagePath, upstreamPath, contentTypeForKind(key.Kind), tarball)
}

// rewriteNPMTarballURLs rewrites every version's dist.tarball URL in an
// npm package metadata document to point back at this proxy, so a
// subsequent `npm install` downloads through the mirror rather than the
// origin registry directly.
func rewriteNPMTarballURLs(body string, r *http.Request) (string, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return "", err
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	base := scheme + "://" + r.Host + "/"

	versions, ok := doc["versions"].(map[string]interface{})
	if ok {
		for _, v := range versions {
			ver, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			dist, ok := ver["dist"].(map[string]interface{})
			if !ok {
				continue
			}
			tarball, ok := dist["tarball"].(string)
			if !ok {
				continue
			}
			if idx := strings.LastIndex(tarball, "/-/"); idx >= 0 {
				start := strings.LastIndex(tarball[:idx], "/") + 1
				if start > 0 {
					// keep the "@scope/" segment of a scoped package name
					if prev := strings.LastIndex(tarball[:start-1], "/"); strings.HasPrefix(tarball[prev+1:], "@") {
						start = prev + 1
					}
				}
				dist["tarball"] = base + tarball[start:]
			}
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
