// Package objectstore is the path-addressed filesystem layer the
// proxy stores cached registry artifacts in. Every write lands through a
// temp-file-then-rename sequence so a reader never observes a partially
// written file, and a crash mid-write leaves only an orphaned temp file
// behind instead of a corrupt asset.
package objectstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/vein/pkg/metrics"
)

// Store is a root directory on disk, addressed by relative paths.
type Store struct {
	root string
}

// Open prepares a Store rooted at dir, creating it if necessary.
func Open(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve object store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create object store root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the store's absolute root directory.
func (s *Store) Root() string { return s.root }

// Path resolves a relative key to an absolute filesystem path, without
// touching the filesystem.
func (s *Store) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Exists reports whether key is present in the store.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Size returns the size in bytes of the object stored at key.
func (s *Store) Size(key string) (int64, error) {
	info, err := os.Stat(s.Path(key))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// OpenReader returns a reader for the object at key. The caller must Close it.
func (s *Store) OpenReader(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Put writes r to key atomically: content lands in a sibling temp file
// named "{key}.tmp-{pid}-{nanos}" and is renamed into place only after a
// full, successful write and fsync.
func (s *Store) Put(key string, r io.Reader) (int64, error) {
	dest := s.Path(key)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		metrics.ObjectStoreWritesTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp-%d-%d", dest, os.Getpid(), time.Now().UnixNano())
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		metrics.ObjectStoreWritesTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("create temp object: %w", err)
	}

	n, copyErr := io.Copy(f, r)
	syncErr := f.Sync()
	closeErr := f.Close()

	if copyErr != nil || syncErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		metrics.ObjectStoreWritesTotal.WithLabelValues("error").Inc()
		if copyErr != nil {
			return 0, fmt.Errorf("write temp object: %w", copyErr)
		}
		if syncErr != nil {
			return 0, fmt.Errorf("sync temp object: %w", syncErr)
		}
		return 0, fmt.Errorf("close temp object: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		metrics.ObjectStoreWritesTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("rename temp object into place: %w", err)
	}

	metrics.ObjectStoreWritesTotal.WithLabelValues("ok").Inc()
	metrics.ObjectStoreBytesStored.Add(float64(n))
	return n, nil
}

// Remove deletes the object at key, if present.
func (s *Store) Remove(key string) error {
	err := os.Remove(s.Path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// GemPath returns the layout path for a gem artifact:
// gems/{name}/{name}-{version}[-{platform}].gem
func GemPath(name, version, platform string) string {
	file := name + "-" + version
	if platform != "" && platform != "ruby" {
		file += "-" + platform
	}
	file += ".gem"
	return strings.Join([]string{"gems", name, file}, "/")
}

// QuickMarshalPath returns the layout path for a gem's quick marshal
// metadata: quick/Marshal.4.8/{name}/{name}-{version}[-{platform}].gemspec.rz
func QuickMarshalPath(name, version, platform string) string {
	file := name + "-" + version
	if platform != "" && platform != "ruby" {
		file += "-" + platform
	}
	file += ".gemspec.rz"
	return strings.Join([]string{"quick", "Marshal.4.8", name, file}, "/")
}

// CratePath returns the layout path for a crate artifact:
// crates/{name}/{name}-{version}.crate
func CratePath(name, version string) string {
	file := name + "-" + version + ".crate"
	return strings.Join([]string{"crates", name, file}, "/")
}

// NPMTarballPath returns the layout path for an npm tarball:
// npm/{name}/{tarball}, scope separators escaped to '_'.
func NPMTarballPath(name, tarball string) string {
	return strings.Join([]string{"npm", escapeNPMScope(name), tarball}, "/")
}

// NPMMetadataPath returns the layout path for a cached npm package
// document: npm_index/{name}/metadata.json
func NPMMetadataPath(name string) string {
	return strings.Join([]string{"npm_index", escapeNPMScope(name), "metadata.json"}, "/")
}

// NPMVersionPath returns the layout path for a single cached npm version
// document: npm_index/{name}/versions/{version}.json
func NPMVersionPath(name, version string) string {
	return strings.Join([]string{"npm_index", escapeNPMScope(name), "versions", version + ".json"}, "/")
}

func escapeNPMScope(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

// CompactIndexPath returns the layout path for the gem compact index
// files: compact_index/versions, compact_index/names, or
// compact_index/info/{gem}.
func CompactIndexPath(part string) string {
	return strings.Join([]string{"compact_index", part}, "/")
}

// CompactIndexInfoPath returns compact_index/info/{gem}.
func CompactIndexInfoPath(gem string) string {
	return strings.Join([]string{"compact_index", "info", gem}, "/")
}

// SparseCratePath returns the layout path for a crates.io-style sparse
// index line file: crates_index/{prefix-derived-path}
func SparseCratePath(name string) string {
	return strings.Join([]string{"crates_index", indexPrefix(name)}, "/")
}

// SparseIndexLinePath returns the layout path for a sparse index line
// file addressed directly by the client-requested prefix path (the
// wildcard tail of /index/*, already in crates.io's own sharded form).
func SparseIndexLinePath(requestedPath string) string {
	return strings.Join([]string{"crates_index", requestedPath}, "/")
}

// indexPrefix mirrors the crates.io sharded index directory scheme,
// returning the full relative path (prefix directories plus the name).
func indexPrefix(name string) string {
	switch len(name) {
	case 0:
		return "_/" + name
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[:2] + "/" + name[2:4] + "/" + name
	}
}
