package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vein/pkg/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.UpstreamConfig{
		URL:         srv.URL,
		Reliability: config.ReliabilityConfig{Retry: config.RetryConfig{Enabled: false}},
	}
	return New(cfg), srv
}

func TestFetch_Success(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("hello"))
	}))

	result, err := client.Fetch(context.Background(), "/gems/rails-7.1.0.gem")
	require.NoError(t, err)
	defer result.Body.Close()

	body, _ := io.ReadAll(result.Body)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, `"v1"`, result.ETag)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestFetch_404IsFinalNotRetried(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))

	result, err := client.Fetch(context.Background(), "/gems/missing.gem")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, 1, requests)
}

func TestFetch_RetriesOn5xx(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	client.retry = config.RetryConfig{
		Enabled: true, MaxAttempts: 5, InitialBackoffMs: 1, MaxBackoffSecs: 1,
		BackoffStrategy: config.BackoffConstant,
	}

	result, err := client.Fetch(context.Background(), "/gems/rails-7.1.0.gem")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, 3, requests)
}

func TestFetchConditional_NotModified(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte("body"))
	}))

	result, err := client.FetchConditional(context.Background(), "/info/rails", `"v1"`, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, result.StatusCode)
}

func TestFetch_AllOriginsExhausted(t *testing.T) {
	cfg := config.UpstreamConfig{
		URL:         "http://127.0.0.1:1",
		Reliability: config.ReliabilityConfig{Retry: config.RetryConfig{Enabled: false}},
	}
	client := New(cfg)

	_, err := client.Fetch(context.Background(), "/gems/rails-7.1.0.gem")
	assert.Error(t, err)
}
