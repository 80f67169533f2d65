// Package boltindex is the embedded, one-writer implementation of
// assetindex.Index backed by go.etcd.io/bbolt: a single file, one bucket
// per relation, JSON-encoded values. bbolt has no secondary indexes, so
// orderings that a SQL backend would push into a WHERE/ORDER BY clause
// are computed here by scanning the bucket and sorting in memory.
package boltindex

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/vein/pkg/assetindex"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCachedAssets = []byte("cached_assets")
	bucketManifests    = []byte("manifests")
	bucketCatalogNames = []byte("catalog_names")
	bucketCatalogMeta  = []byte("catalog_meta")
	bucketGemVersions  = []byte("gem_versions")
)

// Index is the bbolt-backed assetindex.Index implementation.
type Index struct {
	db *bolt.DB
}

// Open creates or opens the bbolt file at dataDir/vein.db and ensures
// every bucket exists.
func Open(dataDir string) (*Index, error) {
	dbPath := filepath.Join(dataDir, "vein.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open asset index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{
			bucketCachedAssets,
			bucketManifests,
			bucketCatalogNames,
			bucketCatalogMeta,
			bucketGemVersions,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

func (i *Index) Close() error { return i.db.Close() }

func versionKey(name, version, platform string) []byte {
	if platform == "" {
		return []byte(name + "|" + version)
	}
	return []byte(name + "|" + version + "|" + platform)
}

// --- cached assets ---

func (i *Index) GetCachedAsset(_ context.Context, key assetindex.AssetKey) (*assetindex.CachedAsset, error) {
	var asset assetindex.CachedAsset
	err := i.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCachedAssets).Get([]byte(key.StorageKey()))
		if data == nil {
			return assetindex.ErrNotFound
		}
		return json.Unmarshal(data, &asset)
	})
	if err != nil {
		return nil, err
	}

	// Best-effort last_accessed bump: a failure here must not shadow the
	// hit the caller already has in hand.
	now := time.Now().UTC()
	_ = i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCachedAssets)
		storageKey := []byte(key.StorageKey())
		data := b.Get(storageKey)
		if data == nil {
			return nil
		}
		var fresh assetindex.CachedAsset
		if err := json.Unmarshal(data, &fresh); err != nil {
			return nil
		}
		fresh.LastAccessed = now
		updated, err := json.Marshal(fresh)
		if err != nil {
			return nil
		}
		return b.Put(storageKey, updated)
	})
	asset.LastAccessed = now

	return &asset, nil
}

func (i *Index) PutCachedAsset(_ context.Context, asset *assetindex.CachedAsset) error {
	asset.LastAccessed = time.Now().UTC()
	return i.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(asset)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketCachedAssets).Put([]byte(asset.Key.StorageKey()), data)
	})
}

func (i *Index) DeleteCachedAsset(_ context.Context, key assetindex.AssetKey) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCachedAssets).Delete([]byte(key.StorageKey()))
	})
}

// --- manifests ---

func (i *Index) GetManifest(_ context.Context, name, version, platform string) (*assetindex.ManifestRecord, error) {
	var rec assetindex.ManifestRecord
	err := i.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketManifests).Get(versionKey(name, version, platform))
		if data == nil {
			return assetindex.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (i *Index) PutManifest(_ context.Context, rec *assetindex.ManifestRecord) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketManifests).Put(versionKey(rec.Name, rec.Version, rec.Platform), data)
	})
}

// --- catalog names ---

func (i *Index) PutCatalogName(_ context.Context, name string) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCatalogNames).Put([]byte(name), []byte{1})
	})
}

func (i *Index) ListCatalogNames(_ context.Context, prefix string, limit, offset int) ([]string, error) {
	var names []string
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCatalogNames).Cursor()
		var all []string
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if prefix == "" || strings.HasPrefix(string(k), prefix) {
				all = append(all, string(k))
			}
		}
		sort.Strings(all)
		if offset >= len(all) {
			return nil
		}
		end := len(all)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		names = all[offset:end]
		return nil
	})
	return names, err
}

func (i *Index) CatalogNameCount(_ context.Context) (int, error) {
	count := 0
	err := i.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketCatalogNames).Stats().KeyN
		return nil
	})
	return count, err
}

// --- catalog meta ---

func (i *Index) GetCatalogMeta(_ context.Context, key string) (string, bool, error) {
	var val string
	var found bool
	err := i.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCatalogMeta).Get([]byte(key))
		if data != nil {
			val = string(data)
			found = true
		}
		return nil
	})
	return val, found, err
}

func (i *Index) PutCatalogMeta(_ context.Context, key, value string) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCatalogMeta).Put([]byte(key), []byte(value))
	})
}

// --- gem versions / quarantine ---

// RecordNewVersion inserts a version record if absent. A conflicting
// SHA-256 for an existing (name, version, platform) is left untouched;
// the caller is expected to log the mismatch as a policy violation.
func (i *Index) RecordNewVersion(_ context.Context, gv *assetindex.GemVersion) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGemVersions)
		key := versionKey(gv.Name, gv.Version, gv.Platform)
		if existing := b.Get(key); existing != nil {
			return nil
		}
		if gv.CreatedAt.IsZero() {
			gv.CreatedAt = gv.ObservedAt
		}
		gv.UpdatedAt = gv.CreatedAt
		data, err := json.Marshal(gv)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (i *Index) GetGemVersion(_ context.Context, name, version, platform string) (*assetindex.GemVersion, error) {
	var gv assetindex.GemVersion
	err := i.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketGemVersions).Get(versionKey(name, version, platform))
		if data == nil {
			return assetindex.ErrNotFound
		}
		return json.Unmarshal(data, &gv)
	})
	if err != nil {
		return nil, err
	}
	return &gv, nil
}

func (i *Index) ListGemVersions(_ context.Context, name string) ([]*assetindex.GemVersion, error) {
	var out []*assetindex.GemVersion
	prefix := []byte(name + "|")
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketGemVersions).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var gv assetindex.GemVersion
			if err := json.Unmarshal(v, &gv); err != nil {
				return err
			}
			out = append(out, &gv)
		}
		return nil
	})
	sort.Slice(out, func(a, b int) bool { return assetindex.CompareVersions(out[a].Version, out[b].Version) < 0 })
	return out, err
}

func (i *Index) ListQuarantined(_ context.Context, opts ...assetindex.ListOption) ([]*assetindex.GemVersion, error) {
	q := assetindex.ResolveListQuery(opts)
	var out []*assetindex.GemVersion
	err := i.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGemVersions).ForEach(func(_, v []byte) error {
			var gv assetindex.GemVersion
			if err := json.Unmarshal(v, &gv); err != nil {
				return err
			}
			if gv.Status != assetindex.StatusQuarantine {
				return nil
			}
			if q.ReadyAsOf != nil && gv.AvailableAfter.Unix() > *q.ReadyAsOf {
				return nil
			}
			out = append(out, &gv)
			return nil
		})
	})
	sort.Slice(out, func(a, b int) bool { return out[a].AvailableAfter.Before(out[b].AvailableAfter) })
	return out, err
}

func (i *Index) SetStatus(_ context.Context, name, version, platform string, status assetindex.QuarantineStatus, reason string) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGemVersions)
		key := versionKey(name, version, platform)
		data := b.Get(key)
		if data == nil {
			return assetindex.ErrNotFound
		}
		var gv assetindex.GemVersion
		if err := json.Unmarshal(data, &gv); err != nil {
			return err
		}
		if gv.Status == assetindex.StatusYanked && status != assetindex.StatusYanked {
			return assetindex.ErrTerminalState
		}
		gv.Status = status
		gv.StatusReason = reason
		gv.UpdatedAt = time.Now().UTC()
		updated, err := json.Marshal(gv)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

// MarkUpstreamYanked transitions a version to yanked from any
// non-terminal state and records UpstreamYanked, distinct from an
// operator Block. Idempotent if already yanked.
func (i *Index) MarkUpstreamYanked(_ context.Context, name, version, platform, reason string) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGemVersions)
		key := versionKey(name, version, platform)
		data := b.Get(key)
		if data == nil {
			return assetindex.ErrNotFound
		}
		var gv assetindex.GemVersion
		if err := json.Unmarshal(data, &gv); err != nil {
			return err
		}
		if gv.Status == assetindex.StatusYanked {
			return nil
		}
		gv.Status = assetindex.StatusYanked
		gv.StatusReason = reason
		gv.UpstreamYanked = true
		gv.UpdatedAt = time.Now().UTC()
		updated, err := json.Marshal(gv)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

// GetAllGems returns every distinct (name, version) pair among cached
// gem artifacts, ordered (name, version) ascending.
func (i *Index) GetAllGems(_ context.Context) ([]assetindex.GemIdentity, error) {
	seen := make(map[assetindex.GemIdentity]struct{})
	err := i.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCachedAssets).ForEach(func(_, v []byte) error {
			var asset assetindex.CachedAsset
			if err := json.Unmarshal(v, &asset); err != nil {
				return err
			}
			if asset.Key.Kind != assetindex.KindGemArtifact {
				return nil
			}
			seen[assetindex.GemIdentity{Name: asset.Key.Name, Version: asset.Key.Version}] = struct{}{}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := make([]assetindex.GemIdentity, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return assetindex.CompareVersions(out[a].Version, out[b].Version) < 0
	})
	return out, nil
}

// SBOMCoverage reports how many analyzed manifests carry a generated
// SBOM document.
func (i *Index) SBOMCoverage(_ context.Context) (assetindex.SBOMCoverage, error) {
	var cov assetindex.SBOMCoverage
	err := i.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketManifests).ForEach(func(_, v []byte) error {
			var rec assetindex.ManifestRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			cov.MetadataRows++
			if rec.SBOMJSON != "" {
				cov.WithSBOM++
			}
			return nil
		})
	})
	return cov, err
}

// GetLatestAvailableVersion returns the greatest version of name visible
// as of asOf: status available/pinned, or quarantine with AvailableAfter
// <= asOf, excluding any version with UpstreamYanked set.
func (i *Index) GetLatestAvailableVersion(_ context.Context, name string, asOf time.Time) (*assetindex.GemVersion, error) {
	var best *assetindex.GemVersion
	prefix := []byte(name + "|")
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketGemVersions).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var gv assetindex.GemVersion
			if err := json.Unmarshal(v, &gv); err != nil {
				return err
			}
			if gv.UpstreamYanked {
				continue
			}
			eligible := gv.Status == assetindex.StatusAvailable || gv.Status == assetindex.StatusPinned ||
				(gv.Status == assetindex.StatusQuarantine && !gv.AvailableAfter.After(asOf))
			if !eligible {
				continue
			}
			if best == nil || assetindex.CompareVersions(gv.Version, best.Version) > 0 {
				cp := gv
				best = &cp
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, assetindex.ErrNotFound
	}
	return best, nil
}

func (i *Index) Stats(_ context.Context) (assetindex.IndexStats, error) {
	var stats assetindex.IndexStats
	stats.GemVersionsByStatus = make(map[assetindex.QuarantineStatus]int)
	err := i.db.View(func(tx *bolt.Tx) error {
		stats.CachedAssets = tx.Bucket(bucketCachedAssets).Stats().KeyN
		stats.ManifestsAnalyzed = tx.Bucket(bucketManifests).Stats().KeyN
		stats.CatalogNames = tx.Bucket(bucketCatalogNames).Stats().KeyN

		if err := tx.Bucket(bucketCachedAssets).ForEach(func(_, v []byte) error {
			var asset assetindex.CachedAsset
			if err := json.Unmarshal(v, &asset); err != nil {
				return err
			}
			if asset.LastAccessed.After(stats.LastAccessed) {
				stats.LastAccessed = asset.LastAccessed
			}
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(bucketGemVersions).ForEach(func(_, v []byte) error {
			var gv assetindex.GemVersion
			if err := json.Unmarshal(v, &gv); err != nil {
				return err
			}
			stats.GemVersionsByStatus[gv.Status]++
			return nil
		})
	})
	return stats, err
}
