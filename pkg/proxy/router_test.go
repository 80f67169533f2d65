package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vein/pkg/assetindex/boltindex"
	"github.com/cuemby/vein/pkg/config"
	"github.com/cuemby/vein/pkg/objectstore"
	"github.com/cuemby/vein/pkg/quarantine"
	"github.com/cuemby/vein/pkg/upstream"
)

// newTestEngine wires a full Engine against an in-process upstream
// fixture, a temp-dir bolt index, and a temp-dir object store. It
// mirrors how cmd/vein assembles the same pieces at startup.
func newTestEngine(t *testing.T, upstreamHandler http.Handler) (*Engine, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(upstreamHandler)
	t.Cleanup(srv.Close)

	store, err := objectstore.Open(t.TempDir())
	require.NoError(t, err)

	idx, err := boltindex.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	cfg := config.UpstreamConfig{URL: srv.URL}
	client := upstream.New(cfg)
	qe := quarantine.New(idx, config.DelayPolicyConfig{Enabled: false})

	return New(store, idx, client, qe, cfg), srv
}

func TestHandleHealth(t *testing.T) {
	e, _ := newTestEngine(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/up", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleHomepage(t *testing.T) {
	e, _ := newTestEngine(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCompactVersions(t *testing.T) {
	upstreamMux := http.NewServeMux()
	upstreamMux.HandleFunc("/versions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte("created_at: 2024-01-01\n---\nfoo 1.0.0 deadbeef\n"))
	})
	e, _ := newTestEngine(t, upstreamMux)

	req := httptest.NewRequest(http.MethodGet, "/versions", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "foo 1.0.0")
	assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))

	// Second request should be served from cache without re-hitting
	// upstream's handler body a second time for content.
	rec2 := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/versions", nil))
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, rec.Body.String(), rec2.Body.String())
}

func TestHandleCompactInfoFiltersQuarantinedLines(t *testing.T) {
	upstreamMux := http.NewServeMux()
	upstreamMux.HandleFunc("/info/foo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1.0.0 |checksum:aaa\n2.0.0 |checksum:bbb"))
	})
	e, _ := newTestEngine(t, upstreamMux)

	req := httptest.NewRequest(http.MethodGet, "/info/foo", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// With quarantine disabled, RecordObservation is never invoked by
	// this route (only the artifact pipeline observes versions), so the
	// filter should pass every line through untouched.
	assert.Contains(t, rec.Body.String(), "1.0.0")
	assert.Contains(t, rec.Body.String(), "2.0.0")
}

func TestHandleGemArtifactCacheMissThenHit(t *testing.T) {
	const gemBody = "not a real gem archive, just bytes"
	upstreamMux := http.NewServeMux()
	upstreamMux.HandleFunc("/gems/foo-1.0.0.gem", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(gemBody))
	})
	e, _ := newTestEngine(t, upstreamMux)

	req := httptest.NewRequest(http.MethodGet, "/gems/foo-1.0.0.gem", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gemBody, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Checksum-SHA256"))

	rec2 := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/gems/foo-1.0.0.gem", nil))
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, gemBody, rec2.Body.String())
}

func TestHandleGemArtifactRejectsUnsafeStem(t *testing.T) {
	e, _ := newTestEngine(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/gems/..-1.0.gem", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestHandleSBOMNotFoundBeforeAnyObservation(t *testing.T) {
	e, _ := newTestEngine(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/.well-known/vein/sbom?name=foo&version=1.0.0", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleQuarantineStats(t *testing.T) {
	e, _ := newTestEngine(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/quarantine/api/stats", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled":true`)
}

func TestHandleSparseIndexConfig(t *testing.T) {
	e, _ := newTestEngine(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/index/config.json", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dl"`)
	assert.Contains(t, rec.Body.String(), `"api"`)
}

func TestPassthroughWithNoUpstreamConfigured(t *testing.T) {
	store, err := objectstore.Open(t.TempDir())
	require.NoError(t, err)
	idx, err := boltindex.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	cfg := config.UpstreamConfig{}
	client := upstream.New(cfg)
	qe := quarantine.New(idx, config.DelayPolicyConfig{Enabled: false})
	e := New(store, idx, client, qe, cfg)

	req := httptest.NewRequest(http.MethodGet, "/some/unknown/path", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
