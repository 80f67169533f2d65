// Package httpcache implements conditional HTTP revalidation for the
// small text documents the proxy serves directly (compact index lines,
// npm metadata, sparse-index line files): fetch once,
// remember the validator (ETag/Last-Modified), and on the next request
// ask upstream "has this changed?" instead of re-downloading it whole.
package httpcache

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/errs"
	"github.com/cuemby/vein/pkg/objectstore"
	"github.com/cuemby/vein/pkg/upstream"
)

// MetaMode controls how revalidation failures are handled.
type MetaMode int

const (
	// Strict surfaces upstream errors to the caller, even when a cached
	// copy exists.
	Strict MetaMode = iota
	// BestEffort serves a stale cached copy (if any) rather than fail
	// the request when upstream is unreachable.
	BestEffort
)

// Helper fetches and revalidates small cacheable text documents.
type Helper struct {
	store    *objectstore.Store
	index    assetindex.Index
	upstream *upstream.Client
}

// New builds a Helper over the given object store, asset index, and
// upstream client.
func New(store *objectstore.Store, index assetindex.Index, client *upstream.Client) *Helper {
	return &Helper{store: store, index: index, upstream: client}
}

// FetchCachedText returns the body of upstreamPath, serving a cached
// copy that is still fresh, revalidating a stale one, or fetching fresh
// if nothing is cached yet. key identifies the asset index record; the
// document lands in the object store at storagePath, which callers
// derive from the layout helpers in pkg/objectstore so the on-disk tree
// matches the documented filesystem layout.
func (h *Helper) FetchCachedText(ctx context.Context, key assetindex.AssetKey, storagePath, upstreamPath, contentType string, mode MetaMode, ttl time.Duration) (string, error) {
	cached, err := h.index.GetCachedAsset(ctx, key)
	if err != nil && err != assetindex.ErrNotFound {
		return "", fmt.Errorf("read cache entry: %w", err)
	}

	if cached != nil && time.Now().Before(cached.RevalidateAt) {
		return h.readStored(cached.StoragePath)
	}

	var etag, lastModified string
	if cached != nil {
		etag, lastModified = cached.ETag, cached.LastModified
	}

	result, fetchErr := h.upstream.FetchConditional(ctx, upstreamPath, etag, lastModified)
	if fetchErr != nil {
		if cached != nil && mode == BestEffort {
			return h.readStored(cached.StoragePath)
		}
		return "", errs.UpstreamUnavailable("revalidation fetch failed", fetchErr)
	}

	if result.StatusCode == 304 && cached != nil {
		cached.RevalidateAt = time.Now().Add(ttl)
		if err := h.index.PutCachedAsset(ctx, cached); err != nil {
			return "", fmt.Errorf("refresh cache entry: %w", err)
		}
		return h.readStored(cached.StoragePath)
	}

	if result.StatusCode != 200 {
		if result.Body != nil {
			_ = result.Body.Close()
		}
		if cached != nil && mode == BestEffort {
			return h.readStored(cached.StoragePath)
		}
		return "", errs.NotFound(fmt.Sprintf("upstream returned %d for %s", result.StatusCode, upstreamPath), nil)
	}
	defer result.Body.Close()

	if _, err := h.store.Put(storagePath, result.Body); err != nil {
		return "", fmt.Errorf("store cached text: %w", err)
	}

	record := &assetindex.CachedAsset{
		Key:          key,
		StoragePath:  storagePath,
		ETag:         result.ETag,
		LastModified: result.LastModified,
		ContentType:  contentType,
		FetchedAt:    time.Now(),
		RevalidateAt: time.Now().Add(ttl),
	}
	if err := h.index.PutCachedAsset(ctx, record); err != nil {
		return "", fmt.Errorf("index cached text: %w", err)
	}
	return h.readStored(storagePath)
}

func (h *Helper) readStored(path string) (string, error) {
	r, err := h.store.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open cached text: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read cached text: %w", err)
	}
	return string(data), nil
}
