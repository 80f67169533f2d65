package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/cuemby/vein/pkg/errs"
)

// handlePassthroughOrNPM is the catch-all for requests that matched no
// typed route: npm client traffic is classified and served from cache,
// anything else with an upstream configured is forwarded verbatim.
func (e *Engine) handlePassthroughOrNPM(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if isNPMRequest(r) {
		e.serveNPM(w, r)
		return
	}

	if e.upstreamURL == "" {
		e.writeError(w, errs.NotFound("no route and no upstream configured", nil))
		return
	}
	e.servePassthrough(w, r)
}

// servePassthrough forwards a request verbatim to the configured
// upstream origin: the request path+query is joined to the upstream
// base, stripping the base's trailing slash, and the entire response
// is forwarded except Transfer-Encoding.
func (e *Engine) servePassthrough(w http.ResponseWriter, r *http.Request) {
	target, err := url.Parse(strings.TrimSuffix(e.upstreamURL, "/"))
	if err != nil {
		e.writeError(w, errs.Internal("invalid upstream url", err))
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host
	}
	proxy.ModifyResponse = func(resp *http.Response) error {
		resp.Header.Del("Transfer-Encoding")
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		e.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("passthrough request failed")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	proxy.ServeHTTP(w, r)
}
