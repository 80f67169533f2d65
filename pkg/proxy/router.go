package proxy

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/cuemby/vein/pkg/metrics"
)

// Handler builds the chi router exposing every route shape from §4.6
// plus the operator-facing quarantine API.
func (e *Engine) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(e.observeRequest)

	r.Get("/", e.handleHomepage)
	r.Get("/up", e.handleHealth)
	r.Get("/.well-known/vein/sbom", e.handleSBOM)

	r.Get("/gems/{artifact}", e.handleGemArtifact)
	r.Get("/quick/Marshal.4.8/{artifact}", e.handleQuickMarshal)
	r.Get("/api/v1/crates/{name}/{version}/download", e.handleCrateDownload)

	r.Get("/versions", e.handleCompactVersions)
	r.Get("/names", e.handleCompactNames)
	r.Get("/info/{gem}", e.handleCompactInfo)

	r.Get("/index/config.json", e.handleSparseIndexConfig)
	r.Get("/index/*", e.handleSparseIndexLine)

	r.Get("/quarantine/api/stats", e.handleQuarantineStats)
	r.Get("/quarantine/api/pending", e.handleQuarantinePending)
	r.Post("/quarantine/{gem}/{version}/approve", e.handleQuarantineApprove)
	r.Post("/quarantine/{gem}/{version}/block", e.handleQuarantineBlock)

	r.NotFound(e.handlePassthroughOrNPM)

	return r
}

// observeRequest records per-request metrics and the structured log
// line required by §7: {method, path, response_code, duration_ms}.
func (e *Engine) observeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, http.StatusText(rec.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method).Observe(duration.Seconds())

		e.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("response_code", rec.status).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (e *Engine) handleHomepage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><h1>vein</h1><p>caching registry mirror</p></body></html>"))
}

// stemWithoutExt strips the given extensions (checked in order) from
// filename, returning the stem and the matched extension.
func stemWithoutExt(filename string, exts ...string) (stem, ext string) {
	for _, e := range exts {
		if strings.HasSuffix(filename, e) {
			return strings.TrimSuffix(filename, e), e
		}
	}
	return filename, ""
}
