// Package upstream is the outbound HTTP client the proxy uses to fetch
// assets and index documents from the registry it mirrors. It retries
// transient failures with a configurable backoff strategy, trips a
// per-origin circuit breaker after repeated failures, and falls
// through a list of fallback origins when the primary is unavailable.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/vein/pkg/config"
	"github.com/cuemby/vein/pkg/errs"
	"github.com/cuemby/vein/pkg/log"
	"github.com/cuemby/vein/pkg/metrics"
)

// Client fetches resources from one or more origin registries.
type Client struct {
	origins  []string
	retry    config.RetryConfig
	http     *http.Client
	breakers *breakerRegistry
}

// New builds a Client from an UpstreamConfig. origins()[0] is the
// primary; the remainder are tried in order whenever the origin before
// them fails (its breaker is open, or its attempts ended in a network
// error or 5xx).
func New(cfg config.UpstreamConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.ConnectionPool,
		MaxIdleConnsPerHost: cfg.ConnectionPool,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		origins:  cfg.Origins(),
		retry:    cfg.Reliability.Retry,
		http:     &http.Client{Transport: transport, Timeout: 30 * time.Second},
		breakers: newBreakerRegistry(),
	}
}

// Result is a fully-read upstream response: status, headers needed for
// cache-control decisions, and the body.
type Result struct {
	StatusCode   int
	ETag         string
	LastModified string
	ContentType  string
	ContentLength int64
	Body         io.ReadCloser
	Origin       string
}

// Fetch retrieves path from the first available origin, retrying each
// origin per the configured RetryConfig before falling through to the
// next. A 404 from an origin is not retried; it is a valid, final
// answer that the caller must itself decide whether to chase further.
func (c *Client) Fetch(ctx context.Context, path string) (*Result, error) {
	var lastErr error
	for _, origin := range c.origins {
		result, err := c.fetchFromOrigin(ctx, origin, path)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.WithOrigin(origin).Warn().Err(err).Str("path", path).Msg("upstream origin failed, trying next fallback")
	}
	return nil, errs.UpstreamUnavailable(fmt.Sprintf("all origins exhausted for %s", path), lastErr)
}

func (c *Client) fetchFromOrigin(ctx context.Context, origin, path string) (*Result, error) {
	b := c.breakers.get(origin)
	if !b.Allow() {
		return nil, fmt.Errorf("circuit breaker open for %s", origin)
	}

	url := origin + path
	maxAttempts := 1
	if c.retry.Enabled {
		maxAttempts = c.retry.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		timer := metrics.NewTimer()
		resp, err := c.do(ctx, url)
		if err == nil && resp.StatusCode < 500 {
			timer.ObserveDurationVec(metrics.UpstreamFetchDuration, origin, "ok")
			b.RecordSuccess()
			return toResult(origin, resp), nil
		}

		timer.ObserveDurationVec(metrics.UpstreamFetchDuration, origin, "error")
		if err == nil {
			_ = resp.Body.Close()
			err = fmt.Errorf("upstream returned %d", resp.StatusCode)
		}
		lastErr = err
		b.RecordFailure()

		if attempt == maxAttempts {
			break
		}
		metrics.UpstreamRetriesTotal.WithLabelValues(origin).Inc()
		wait := backoffWait(c.retry, attempt)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// FetchConditional issues one GET with conditional-request headers set,
// used for revalidation. Unlike Fetch, it asks only the primary origin,
// once, with no retry and no fallback. A 304 response is reported via
// Result.StatusCode; its Body is empty.
func (c *Client) FetchConditional(ctx context.Context, path, etag, lastModified string) (*Result, error) {
	origin := c.origins[0]
	b := c.breakers.get(origin)
	if !b.Allow() {
		return nil, errs.UpstreamUnavailable("circuit breaker open", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+path, nil)
	if err != nil {
		return nil, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	timer := metrics.NewTimer()
	resp, err := c.http.Do(req)
	if err != nil {
		timer.ObserveDurationVec(metrics.UpstreamFetchDuration, origin, "error")
		b.RecordFailure()
		return nil, err
	}
	timer.ObserveDurationVec(metrics.UpstreamFetchDuration, origin, "ok")
	b.RecordSuccess()
	return toResult(origin, resp), nil
}

func toResult(origin string, resp *http.Response) *Result {
	return &Result{
		StatusCode:    resp.StatusCode,
		ETag:          resp.Header.Get("ETag"),
		LastModified:  resp.Header.Get("Last-Modified"),
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
		Origin:        origin,
	}
}
