package assetindex

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Index lookups when the requested record
// does not exist.
var ErrNotFound = errors.New("assetindex: not found")

// ErrTerminalState is returned by SetStatus when the existing record is
// already yanked: yanked is a terminal state per the quarantine state
// machine and no further transition is applied.
var ErrTerminalState = errors.New("assetindex: version is in a terminal yanked state")

// Index is the capability set the proxy depends on. Both backends
// (boltindex, sqlindex) implement this one interface so the proxy,
// quarantine engine, and manifest analyzer never know which is in use.
type Index interface {
	// Cached assets
	GetCachedAsset(ctx context.Context, key AssetKey) (*CachedAsset, error)
	PutCachedAsset(ctx context.Context, asset *CachedAsset) error
	DeleteCachedAsset(ctx context.Context, key AssetKey) error

	// Manifests
	GetManifest(ctx context.Context, name, version, platform string) (*ManifestRecord, error)
	PutManifest(ctx context.Context, manifest *ManifestRecord) error

	// Catalog names (the full set of known gem/crate/package names)
	PutCatalogName(ctx context.Context, name string) error
	ListCatalogNames(ctx context.Context, prefix string, limit, offset int) ([]string, error)
	CatalogNameCount(ctx context.Context) (int, error)

	// Catalog meta (small opaque key/value pairs, e.g. sync cursors)
	GetCatalogMeta(ctx context.Context, key string) (string, bool, error)
	PutCatalogMeta(ctx context.Context, key, value string) error

	// GetAllGems returns every distinct (name, version) pair among cached
	// gem artifacts, ordered (name, version) ascending.
	GetAllGems(ctx context.Context) ([]GemIdentity, error)

	// SBOMCoverage reports how many analyzed manifests carry a generated
	// SBOM document.
	SBOMCoverage(ctx context.Context) (SBOMCoverage, error)

	// Gem version / quarantine records
	RecordNewVersion(ctx context.Context, gv *GemVersion) error
	GetGemVersion(ctx context.Context, name, version, platform string) (*GemVersion, error)
	ListGemVersions(ctx context.Context, name string) ([]*GemVersion, error)
	ListQuarantined(ctx context.Context, before ...ListOption) ([]*GemVersion, error)
	// GetLatestAvailableVersion returns the greatest version of name that
	// is visible as of asOf: status available/pinned, or quarantine with
	// AvailableAfter <= asOf, excluding any version with UpstreamYanked
	// set. Returns ErrNotFound if no such version exists.
	GetLatestAvailableVersion(ctx context.Context, name string, asOf time.Time) (*GemVersion, error)
	// SetStatus applies a quarantine status transition. Yanked is a
	// terminal state: if the existing record is already yanked and the
	// new status is not, SetStatus returns ErrTerminalState and leaves
	// the record unchanged.
	SetStatus(ctx context.Context, name, version, platform string, status QuarantineStatus, reason string) error
	// MarkUpstreamYanked records an upstream-detected yank: transitions
	// the version to yanked (from any non-terminal state) and sets
	// UpstreamYanked, distinct from an operator-driven Block.
	MarkUpstreamYanked(ctx context.Context, name, version, platform, reason string) error

	// Operations
	Stats(ctx context.Context) (IndexStats, error)
	Close() error
}

// ListOption configures a listing query. It exists so ListQuarantined
// can take an optional "ready to promote as of" cutoff without a second
// overload.
type ListOption func(*ListQuery)

// ListQuery is the resolved set of options for a listing call.
type ListQuery struct {
	ReadyAsOf *int64 // unix seconds; nil means "all quarantined, regardless of timer"
}

// ReadyAsOf restricts ListQuarantined to versions whose AvailableAfter
// has already passed as of the given unix-seconds timestamp.
func ReadyAsOf(unixSeconds int64) ListOption {
	return func(q *ListQuery) { q.ReadyAsOf = &unixSeconds }
}

// ResolveListQuery applies a set of ListOptions, for use by Index
// implementations.
func ResolveListQuery(opts []ListOption) ListQuery {
	var q ListQuery
	for _, o := range opts {
		o(&q)
	}
	return q
}
