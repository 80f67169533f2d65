// Package sqlindex is the network-attached implementation of
// assetindex.Index, backed by Postgres via database/sql + sqlx. Unlike
// boltindex it keeps real secondary indexes (gem_versions by name,
// status, available_after) and relies on the database's connection pool
// for concurrent access instead of bbolt's single-writer lock.
package sqlindex

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Index is the Postgres-backed assetindex.Index implementation.
type Index struct {
	db *sqlx.DB
}

// Open connects to the given Postgres URL, sizes the connection pool,
// and ensures the schema exists.
func Open(ctx context.Context, url string, poolSize int) (*Index, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect asset index database: %w", err)
	}
	if poolSize <= 0 {
		poolSize = 16
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	idx := &Index{db: db}
	if err := idx.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) Close() error { return i.db.Close() }

func (i *Index) migrate(ctx context.Context) error {
	_, err := i.db.ExecContext(ctx, schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate asset index schema: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS cached_assets (
	storage_key   TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	name          TEXT NOT NULL,
	version       TEXT NOT NULL,
	platform      TEXT NOT NULL DEFAULT '',
	storage_path  TEXT NOT NULL,
	size_bytes    BIGINT NOT NULL,
	sha256        TEXT NOT NULL DEFAULT '',
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	content_type  TEXT NOT NULL DEFAULT '',
	immutable     BOOLEAN NOT NULL DEFAULT false,
	fetched_at    TIMESTAMPTZ NOT NULL,
	revalidate_at TIMESTAMPTZ NOT NULL,
	last_accessed TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS manifests (
	name                   TEXT NOT NULL,
	version                TEXT NOT NULL,
	platform               TEXT NOT NULL DEFAULT '',
	licenses_json          TEXT NOT NULL DEFAULT '[]',
	authors_json           TEXT NOT NULL DEFAULT '[]',
	description            TEXT NOT NULL DEFAULT '',
	dependencies_json      TEXT NOT NULL DEFAULT '[]',
	has_native_extension   BOOLEAN NOT NULL DEFAULT false,
	has_embedded_binaries  BOOLEAN NOT NULL DEFAULT false,
	languages_json         TEXT NOT NULL DEFAULT '[]',
	urls_json              TEXT NOT NULL DEFAULT '{}',
	sbom_json              TEXT NOT NULL DEFAULT '',
	size_bytes             BIGINT NOT NULL DEFAULT 0,
	sha256                 TEXT NOT NULL DEFAULT '',
	analyzed_at            TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (name, version, platform)
);

CREATE TABLE IF NOT EXISTS catalog_names (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS catalog_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gem_versions (
	name            TEXT NOT NULL,
	version         TEXT NOT NULL,
	platform        TEXT NOT NULL DEFAULT '',
	sha256          TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	status_reason   TEXT NOT NULL DEFAULT '',
	upstream_yanked BOOLEAN NOT NULL DEFAULT false,
	observed_at     TIMESTAMPTZ NOT NULL,
	available_after TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (name, version, platform)
);
CREATE INDEX IF NOT EXISTS gem_versions_name_idx ON gem_versions (name);
CREATE INDEX IF NOT EXISTS gem_versions_status_idx ON gem_versions (status);
CREATE INDEX IF NOT EXISTS gem_versions_available_after_idx ON gem_versions (available_after);
`

type cachedAssetRow struct {
	StorageKey   string    `db:"storage_key"`
	Kind         string    `db:"kind"`
	Name         string    `db:"name"`
	Version      string    `db:"version"`
	Platform     string    `db:"platform"`
	StoragePath  string    `db:"storage_path"`
	SizeBytes    int64     `db:"size_bytes"`
	SHA256       string    `db:"sha256"`
	ETag         string    `db:"etag"`
	LastModified string    `db:"last_modified"`
	ContentType  string    `db:"content_type"`
	Immutable    bool      `db:"immutable"`
	FetchedAt    time.Time `db:"fetched_at"`
	RevalidateAt time.Time `db:"revalidate_at"`
	LastAccessed sql.NullTime `db:"last_accessed"`
}

func (r cachedAssetRow) toDomain() *assetindex.CachedAsset {
	asset := &assetindex.CachedAsset{
		Key: assetindex.AssetKey{
			Kind:     assetindex.AssetKind(r.Kind),
			Name:     r.Name,
			Version:  r.Version,
			Platform: r.Platform,
		},
		StoragePath:  r.StoragePath,
		SizeBytes:    r.SizeBytes,
		SHA256:       r.SHA256,
		ETag:         r.ETag,
		LastModified: r.LastModified,
		ContentType:  r.ContentType,
		Immutable:    r.Immutable,
		FetchedAt:    r.FetchedAt,
		RevalidateAt: r.RevalidateAt,
	}
	if r.LastAccessed.Valid {
		asset.LastAccessed = r.LastAccessed.Time
	}
	return asset
}

func (i *Index) GetCachedAsset(ctx context.Context, key assetindex.AssetKey) (*assetindex.CachedAsset, error) {
	var row cachedAssetRow
	err := i.db.GetContext(ctx, &row, `SELECT * FROM cached_assets WHERE storage_key = $1`, key.StorageKey())
	if err == sql.ErrNoRows {
		return nil, assetindex.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached asset: %w", err)
	}
	asset := row.toDomain()

	// Best-effort last_accessed bump: a failure here must not shadow the
	// hit the caller already has in hand.
	now := time.Now().UTC()
	if _, err := i.db.ExecContext(ctx,
		`UPDATE cached_assets SET last_accessed = $1 WHERE storage_key = $2`, now, key.StorageKey()); err == nil {
		asset.LastAccessed = now
	}

	return asset, nil
}

func (i *Index) PutCachedAsset(ctx context.Context, a *assetindex.CachedAsset) error {
	a.LastAccessed = time.Now().UTC()
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO cached_assets (storage_key, kind, name, version, platform, storage_path,
			size_bytes, sha256, etag, last_modified, content_type, immutable, fetched_at, revalidate_at, last_accessed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (storage_key) DO UPDATE SET
			storage_path = EXCLUDED.storage_path,
			size_bytes = EXCLUDED.size_bytes,
			sha256 = EXCLUDED.sha256,
			etag = EXCLUDED.etag,
			last_modified = EXCLUDED.last_modified,
			content_type = EXCLUDED.content_type,
			immutable = EXCLUDED.immutable,
			fetched_at = EXCLUDED.fetched_at,
			revalidate_at = EXCLUDED.revalidate_at,
			last_accessed = EXCLUDED.last_accessed
	`, a.Key.StorageKey(), string(a.Key.Kind), a.Key.Name, a.Key.Version, a.Key.Platform, a.StoragePath,
		a.SizeBytes, a.SHA256, a.ETag, a.LastModified, a.ContentType, a.Immutable, a.FetchedAt, a.RevalidateAt, a.LastAccessed)
	if err != nil {
		return fmt.Errorf("put cached asset: %w", err)
	}
	return nil
}

func (i *Index) DeleteCachedAsset(ctx context.Context, key assetindex.AssetKey) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM cached_assets WHERE storage_key = $1`, key.StorageKey())
	return err
}

type manifestRow struct {
	Name                string    `db:"name"`
	Version             string    `db:"version"`
	Platform            string    `db:"platform"`
	LicensesJSON        string    `db:"licenses_json"`
	AuthorsJSON         string    `db:"authors_json"`
	Description         string    `db:"description"`
	DependenciesJSON    string    `db:"dependencies_json"`
	HasNativeExtension  bool      `db:"has_native_extension"`
	HasEmbeddedBinaries bool      `db:"has_embedded_binaries"`
	LanguagesJSON       string    `db:"languages_json"`
	URLsJSON            string    `db:"urls_json"`
	SBOMJSON            string    `db:"sbom_json"`
	SizeBytes           int64     `db:"size_bytes"`
	SHA256              string    `db:"sha256"`
	AnalyzedAt          time.Time `db:"analyzed_at"`
}

func (i *Index) GetManifest(ctx context.Context, name, version, platform string) (*assetindex.ManifestRecord, error) {
	var row manifestRow
	err := i.db.GetContext(ctx, &row,
		`SELECT * FROM manifests WHERE name=$1 AND version=$2 AND platform=$3`, name, version, platform)
	if err == sql.ErrNoRows {
		return nil, assetindex.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	deps, err := decodeDependencies(row.DependenciesJSON)
	if err != nil {
		return nil, err
	}
	langs, err := decodeStrings(row.LanguagesJSON)
	if err != nil {
		return nil, err
	}
	licenses, err := decodeStrings(row.LicensesJSON)
	if err != nil {
		return nil, err
	}
	authors, err := decodeStrings(row.AuthorsJSON)
	if err != nil {
		return nil, err
	}
	urls, err := decodeStringMap(row.URLsJSON)
	if err != nil {
		return nil, err
	}
	return &assetindex.ManifestRecord{
		Name: row.Name, Version: row.Version, Platform: row.Platform,
		Licenses: licenses, Authors: authors, Description: row.Description,
		Dependencies: deps, HasNativeExtension: row.HasNativeExtension,
		HasEmbeddedBinaries: row.HasEmbeddedBinaries,
		Languages:           langs, URLs: urls, SBOMJSON: row.SBOMJSON,
		SizeBytes: row.SizeBytes, SHA256: row.SHA256, AnalyzedAt: row.AnalyzedAt,
	}, nil
}

func (i *Index) PutManifest(ctx context.Context, rec *assetindex.ManifestRecord) error {
	deps, err := encodeDependencies(rec.Dependencies)
	if err != nil {
		return err
	}
	langs, err := encodeStrings(rec.Languages)
	if err != nil {
		return err
	}
	licenses, err := encodeStrings(rec.Licenses)
	if err != nil {
		return err
	}
	authors, err := encodeStrings(rec.Authors)
	if err != nil {
		return err
	}
	urls, err := encodeStringMap(rec.URLs)
	if err != nil {
		return err
	}
	_, err = i.db.ExecContext(ctx, `
		INSERT INTO manifests (name, version, platform, licenses_json, authors_json, description,
			dependencies_json, has_native_extension, has_embedded_binaries, languages_json, urls_json,
			sbom_json, size_bytes, sha256, analyzed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (name, version, platform) DO UPDATE SET
			licenses_json = EXCLUDED.licenses_json,
			authors_json = EXCLUDED.authors_json,
			description = EXCLUDED.description,
			dependencies_json = EXCLUDED.dependencies_json,
			has_native_extension = EXCLUDED.has_native_extension,
			has_embedded_binaries = EXCLUDED.has_embedded_binaries,
			languages_json = EXCLUDED.languages_json,
			urls_json = EXCLUDED.urls_json,
			sbom_json = EXCLUDED.sbom_json,
			size_bytes = EXCLUDED.size_bytes,
			sha256 = EXCLUDED.sha256,
			analyzed_at = EXCLUDED.analyzed_at
	`, rec.Name, rec.Version, rec.Platform, licenses, authors, rec.Description,
		deps, rec.HasNativeExtension, rec.HasEmbeddedBinaries, langs, urls,
		rec.SBOMJSON, rec.SizeBytes, rec.SHA256, rec.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}
	return nil
}

func (i *Index) PutCatalogName(ctx context.Context, name string) error {
	_, err := i.db.ExecContext(ctx, `INSERT INTO catalog_names (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
	return err
}

func (i *Index) ListCatalogNames(ctx context.Context, prefix string, limit, offset int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	var names []string
	err := i.db.SelectContext(ctx, &names,
		`SELECT name FROM catalog_names WHERE name LIKE $1 ORDER BY name LIMIT $2 OFFSET $3`,
		prefix+"%", limit, offset)
	return names, err
}

func (i *Index) CatalogNameCount(ctx context.Context) (int, error) {
	var n int
	err := i.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM catalog_names`)
	return n, err
}

func (i *Index) GetCatalogMeta(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := i.db.GetContext(ctx, &val, `SELECT value FROM catalog_meta WHERE key=$1`, key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (i *Index) PutCatalogMeta(ctx context.Context, key, value string) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO catalog_meta (key, value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	return err
}

// RecordNewVersion inserts a version record if absent; a conflicting row
// is left untouched (first-writer-wins), mirroring boltindex.
func (i *Index) RecordNewVersion(ctx context.Context, gv *assetindex.GemVersion) error {
	if gv.CreatedAt.IsZero() {
		gv.CreatedAt = gv.ObservedAt
	}
	gv.UpdatedAt = gv.CreatedAt
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO gem_versions (name, version, platform, sha256, status, status_reason, upstream_yanked, observed_at, available_after, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (name, version, platform) DO NOTHING
	`, gv.Name, gv.Version, gv.Platform, gv.SHA256, string(gv.Status), gv.StatusReason, gv.UpstreamYanked,
		gv.ObservedAt, gv.AvailableAfter, gv.CreatedAt, gv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("record new version: %w", err)
	}
	return nil
}

type gemVersionRow struct {
	Name           string    `db:"name"`
	Version        string    `db:"version"`
	Platform       string    `db:"platform"`
	SHA256         string    `db:"sha256"`
	Status         string    `db:"status"`
	StatusReason   string    `db:"status_reason"`
	UpstreamYanked bool      `db:"upstream_yanked"`
	ObservedAt     time.Time `db:"observed_at"`
	AvailableAfter time.Time `db:"available_after"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r gemVersionRow) toDomain() *assetindex.GemVersion {
	return &assetindex.GemVersion{
		Name: r.Name, Version: r.Version, Platform: r.Platform, SHA256: r.SHA256,
		Status: assetindex.QuarantineStatus(r.Status), StatusReason: r.StatusReason,
		UpstreamYanked: r.UpstreamYanked,
		ObservedAt:     r.ObservedAt, AvailableAfter: r.AvailableAfter,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (i *Index) GetGemVersion(ctx context.Context, name, version, platform string) (*assetindex.GemVersion, error) {
	var row gemVersionRow
	err := i.db.GetContext(ctx, &row,
		`SELECT * FROM gem_versions WHERE name=$1 AND version=$2 AND platform=$3`, name, version, platform)
	if err == sql.ErrNoRows {
		return nil, assetindex.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get gem version: %w", err)
	}
	return row.toDomain(), nil
}

func (i *Index) ListGemVersions(ctx context.Context, name string) ([]*assetindex.GemVersion, error) {
	var rows []gemVersionRow
	err := i.db.SelectContext(ctx, &rows,
		`SELECT * FROM gem_versions WHERE name=$1 ORDER BY version`, name)
	if err != nil {
		return nil, fmt.Errorf("list gem versions: %w", err)
	}
	out := make([]*assetindex.GemVersion, len(rows))
	for idx, r := range rows {
		out[idx] = r.toDomain()
	}
	sort.SliceStable(out, func(a, b int) bool {
		return assetindex.CompareVersions(out[a].Version, out[b].Version) < 0
	})
	return out, nil
}

func (i *Index) ListQuarantined(ctx context.Context, opts ...assetindex.ListOption) ([]*assetindex.GemVersion, error) {
	q := assetindex.ResolveListQuery(opts)
	var rows []gemVersionRow
	var err error
	if q.ReadyAsOf != nil {
		cutoff := time.Unix(*q.ReadyAsOf, 0).UTC()
		err = i.db.SelectContext(ctx, &rows,
			`SELECT * FROM gem_versions WHERE status=$1 AND available_after <= $2 ORDER BY available_after`,
			string(assetindex.StatusQuarantine), cutoff)
	} else {
		err = i.db.SelectContext(ctx, &rows,
			`SELECT * FROM gem_versions WHERE status=$1 ORDER BY available_after`,
			string(assetindex.StatusQuarantine))
	}
	if err != nil {
		return nil, fmt.Errorf("list quarantined versions: %w", err)
	}
	out := make([]*assetindex.GemVersion, len(rows))
	for idx, r := range rows {
		out[idx] = r.toDomain()
	}
	return out, nil
}

// SetStatus applies a status transition. Yanked is terminal: the WHERE
// clause excludes rows already yanked when the new status is not
// yanked, and such an attempt is reported as ErrTerminalState rather
// than silently succeeding or looking like a missing row.
func (i *Index) SetStatus(ctx context.Context, name, version, platform string, status assetindex.QuarantineStatus, reason string) error {
	res, err := i.db.ExecContext(ctx, `
		UPDATE gem_versions SET status=$1, status_reason=$2, updated_at=$3
		WHERE name=$4 AND version=$5 AND platform=$6
		  AND NOT (status = $7 AND $1 <> $7)
	`, string(status), reason, time.Now().UTC(), name, version, platform, string(assetindex.StatusYanked))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	existing, err := i.GetGemVersion(ctx, name, version, platform)
	if err != nil {
		return err
	}
	if existing.Status == assetindex.StatusYanked && status != assetindex.StatusYanked {
		return assetindex.ErrTerminalState
	}
	return nil
}

// MarkUpstreamYanked transitions a version to yanked from any
// non-terminal state and records UpstreamYanked, distinct from an
// operator Block. Idempotent if already yanked.
func (i *Index) MarkUpstreamYanked(ctx context.Context, name, version, platform, reason string) error {
	_, err := i.db.ExecContext(ctx, `
		UPDATE gem_versions SET status=$1, status_reason=$2, upstream_yanked=true, updated_at=$3
		WHERE name=$4 AND version=$5 AND platform=$6 AND status <> $1
	`, string(assetindex.StatusYanked), reason, time.Now().UTC(), name, version, platform)
	if err != nil {
		return fmt.Errorf("mark upstream yanked: %w", err)
	}
	return nil
}

// GetAllGems returns every distinct (name, version) pair among cached
// gem artifacts, ordered (name, version) ascending.
func (i *Index) GetAllGems(ctx context.Context) ([]assetindex.GemIdentity, error) {
	var rows []struct {
		Name    string `db:"name"`
		Version string `db:"version"`
	}
	err := i.db.SelectContext(ctx, &rows,
		`SELECT DISTINCT name, version FROM cached_assets WHERE kind=$1 ORDER BY name, version`,
		string(assetindex.KindGemArtifact))
	if err != nil {
		return nil, fmt.Errorf("get all gems: %w", err)
	}
	out := make([]assetindex.GemIdentity, len(rows))
	for idx, r := range rows {
		out[idx] = assetindex.GemIdentity{Name: r.Name, Version: r.Version}
	}
	return out, nil
}

// SBOMCoverage reports how many analyzed manifests carry a generated
// SBOM document.
func (i *Index) SBOMCoverage(ctx context.Context) (assetindex.SBOMCoverage, error) {
	var cov assetindex.SBOMCoverage
	err := i.db.GetContext(ctx, &cov.MetadataRows, `SELECT COUNT(*) FROM manifests`)
	if err != nil {
		return cov, fmt.Errorf("sbom coverage: %w", err)
	}
	err = i.db.GetContext(ctx, &cov.WithSBOM, `SELECT COUNT(*) FROM manifests WHERE sbom_json <> ''`)
	if err != nil {
		return cov, fmt.Errorf("sbom coverage: %w", err)
	}
	return cov, nil
}

// GetLatestAvailableVersion returns the greatest version of name visible
// as of asOf: status available/pinned, or quarantine with
// available_after <= asOf, excluding any version with upstream_yanked
// set. The winning row is picked in application code with the same
// semver-with-lexical-fallback comparator ListGemVersions sorts by.
func (i *Index) GetLatestAvailableVersion(ctx context.Context, name string, asOf time.Time) (*assetindex.GemVersion, error) {
	var rows []gemVersionRow
	err := i.db.SelectContext(ctx, &rows, `
		SELECT * FROM gem_versions
		WHERE name=$1 AND upstream_yanked = false
		  AND (status IN ($2, $3) OR (status = $4 AND available_after <= $5))
	`, name, string(assetindex.StatusAvailable), string(assetindex.StatusPinned), string(assetindex.StatusQuarantine), asOf)
	if err != nil {
		return nil, fmt.Errorf("get latest available version: %w", err)
	}
	var best *assetindex.GemVersion
	for _, r := range rows {
		gv := r.toDomain()
		if best == nil || assetindex.CompareVersions(gv.Version, best.Version) > 0 {
			best = gv
		}
	}
	if best == nil {
		return nil, assetindex.ErrNotFound
	}
	return best, nil
}

func (i *Index) Stats(ctx context.Context) (assetindex.IndexStats, error) {
	var stats assetindex.IndexStats
	stats.GemVersionsByStatus = make(map[assetindex.QuarantineStatus]int)

	if err := i.db.GetContext(ctx, &stats.CachedAssets, `SELECT COUNT(*) FROM cached_assets`); err != nil {
		return stats, err
	}
	if err := i.db.GetContext(ctx, &stats.ManifestsAnalyzed, `SELECT COUNT(*) FROM manifests`); err != nil {
		return stats, err
	}
	if err := i.db.GetContext(ctx, &stats.CatalogNames, `SELECT COUNT(*) FROM catalog_names`); err != nil {
		return stats, err
	}

	var lastAccessed sql.NullTime
	if err := i.db.GetContext(ctx, &lastAccessed, `SELECT MAX(last_accessed) FROM cached_assets`); err != nil {
		return stats, err
	}
	if lastAccessed.Valid {
		stats.LastAccessed = lastAccessed.Time
	}

	rows, err := i.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM gem_versions GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.GemVersionsByStatus[assetindex.QuarantineStatus(status)] = count
	}
	return stats, rows.Err()
}
