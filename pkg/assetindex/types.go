// Package assetindex defines the metadata store backing the proxy: the
// registry of cached assets, manifests, catalog names, and the
// quarantine state of every gem version the proxy has ever observed.
// Two implementations exist behind the Index interface: boltindex (a
// single embedded file, one writer) and sqlindex (a network-attached
// relational store with a real connection pool).
package assetindex

import "time"

// AssetKind classifies a cached asset by the registry surface it
// belongs to.
type AssetKind string

const (
	KindGemArtifact   AssetKind = "gem_artifact"
	KindGemQuick      AssetKind = "gem_quick"
	KindCrateArtifact AssetKind = "crate_artifact"
	KindNPMTarball    AssetKind = "npm_tarball"
	KindIndexDocument AssetKind = "index_document"
)

// AssetKey uniquely identifies one cached asset.
type AssetKey struct {
	Kind     AssetKind
	Name     string
	Version  string
	Platform string // gem platform, e.g. "ruby", "x86_64-linux"; "" elsewhere
}

// StorageKey derives the object store relative path component used as
// this key's identity inside the index (not the filesystem layout path,
// which objectstore computes separately from the same fields).
func (k AssetKey) StorageKey() string {
	s := string(k.Kind) + "|" + k.Name + "|" + k.Version
	if k.Platform != "" {
		s += "|" + k.Platform
	}
	return s
}

// CachedAsset is a durable record of one object the proxy has fetched
// and stored, plus the revalidation metadata needed to conditionally
// refresh it.
type CachedAsset struct {
	Key          AssetKey
	StoragePath  string // objectstore-relative path to the bytes
	SizeBytes    int64
	SHA256       string
	ETag         string
	LastModified string
	ContentType  string
	Immutable    bool // artifacts never change once published; index docs can
	FetchedAt    time.Time
	RevalidateAt time.Time
	LastAccessed time.Time // monotonically forward-updated on every hit
}

// ManifestRecord is the result of analyzing one gem artifact: its
// parsed metadata plus the generated SBOM document.
type ManifestRecord struct {
	Name                string
	Version             string
	Platform            string
	Licenses            []string
	Authors             []string
	Description         string
	Dependencies        []Dependency
	HasNativeExtension  bool
	HasEmbeddedBinaries bool
	Languages           []string
	URLs                map[string]string
	SBOMJSON            string // CycloneDX 1.5 JSON, empty if not yet generated
	SizeBytes           int64
	SHA256              string
	AnalyzedAt          time.Time
}

// Dependency is one runtime or development dependency extracted from a
// gem's metadata.
type Dependency struct {
	Name            string
	Requirement     string
	Kind            string // "runtime", "development", "optional" or "unknown"
}

// QuarantineStatus is the lifecycle state of one observed gem version.
type QuarantineStatus string

const (
	StatusQuarantine QuarantineStatus = "quarantine"
	StatusAvailable  QuarantineStatus = "available"
	StatusPinned     QuarantineStatus = "pinned"
	StatusYanked     QuarantineStatus = "yanked"
)

// GemVersion is the quarantine record for one observed gem version.
type GemVersion struct {
	Name           string
	Version        string
	Platform       string
	SHA256         string
	Status         QuarantineStatus
	StatusReason   string
	ObservedAt     time.Time // first time the proxy saw this version (published_at)
	AvailableAfter time.Time
	UpstreamYanked bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GemIdentity is a distinct (name, version) pair drawn from cached gem
// artifacts, independent of quarantine or manifest state.
type GemIdentity struct {
	Name    string
	Version string
}

// SBOMCoverage summarizes how many analyzed manifests carry a generated
// CycloneDX document alongside the total row count.
type SBOMCoverage struct {
	MetadataRows int
	WithSBOM     int
}

// IndexStats is a point-in-time snapshot used by `vein stats` and the
// periodic metrics collector.
type IndexStats struct {
	CachedAssets        int
	ManifestsAnalyzed   int
	CatalogNames        int
	GemVersionsByStatus map[QuarantineStatus]int
	LastAccessed        time.Time // zero if no cached asset has ever been hit
}
