package httpcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/assetindex/boltindex"
	"github.com/cuemby/vein/pkg/config"
	"github.com/cuemby/vein/pkg/objectstore"
	"github.com/cuemby/vein/pkg/upstream"
)

func newTestHelper(t *testing.T, handler http.Handler) (*Helper, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := objectstore.Open(t.TempDir())
	require.NoError(t, err)

	idx, err := boltindex.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	client := upstream.New(config.UpstreamConfig{URL: srv.URL, Reliability: config.ReliabilityConfig{Retry: config.DefaultRetryConfig()}})
	return New(store, idx, client), srv
}

func TestFetchCachedText_ColdFetch(t *testing.T) {
	requests := 0
	helper, _ := newTestHelper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("line1\nline2\n"))
	}))

	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "rails"}
	body, err := helper.FetchCachedText(context.Background(), key, "compact_index/info/rails", "/info/rails", "text/plain", Strict, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", body)
	assert.Equal(t, 1, requests)
}

func TestFetchCachedText_ServesFreshFromCacheWithoutRefetch(t *testing.T) {
	requests := 0
	helper, _ := newTestHelper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("line1\n"))
	}))

	ctx := context.Background()
	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "rails"}

	_, err := helper.FetchCachedText(ctx, key, "compact_index/info/rails", "/info/rails", "text/plain", Strict, time.Hour)
	require.NoError(t, err)

	body, err := helper.FetchCachedText(ctx, key, "compact_index/info/rails", "/info/rails", "text/plain", Strict, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "line1\n", body)
	assert.Equal(t, 1, requests, "second call within the ttl window must not hit upstream")
}

func TestFetchCachedText_RevalidatesStaleCopy(t *testing.T) {
	requests := 0
	helper, _ := newTestHelper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("line1\n"))
	}))

	ctx := context.Background()
	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "rails"}

	// ttl=0 forces every subsequent call to revalidate immediately.
	_, err := helper.FetchCachedText(ctx, key, "compact_index/info/rails", "/info/rails", "text/plain", Strict, 0)
	require.NoError(t, err)

	body, err := helper.FetchCachedText(ctx, key, "compact_index/info/rails", "/info/rails", "text/plain", Strict, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "line1\n", body)
	assert.Equal(t, 2, requests, "second call must revalidate since the first entry's ttl already elapsed")
}

func TestFetchCachedText_BestEffortServesStaleOnUpstreamFailure(t *testing.T) {
	up := true
	helper, srv := newTestHelper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("line1\n"))
	}))

	ctx := context.Background()
	key := assetindex.AssetKey{Kind: assetindex.KindIndexDocument, Name: "rails"}

	_, err := helper.FetchCachedText(ctx, key, "compact_index/info/rails", "/info/rails", "text/plain", BestEffort, 0)
	require.NoError(t, err)

	up = false
	body, err := helper.FetchCachedText(ctx, key, "compact_index/info/rails", "/info/rails", "text/plain", BestEffort, 0)
	require.NoError(t, err)
	assert.Equal(t, "line1\n", body)

	srv.Close()
}
