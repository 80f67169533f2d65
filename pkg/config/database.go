package config

import "strings"

// DatabaseBackend is the resolved storage backend for the asset index.
type DatabaseBackend struct {
	Kind     DatabaseBackendKind
	Path     string // Kind == BackendBolt
	URL      string // Kind == BackendPostgres
}

type DatabaseBackendKind string

const (
	BackendBolt     DatabaseBackendKind = "bolt"
	BackendPostgres DatabaseBackendKind = "postgres"
)

// DatabaseConfig configures the asset index's persistence layer. A bare
// Path selects the embedded bbolt backend; a URL with a postgres://
// scheme selects the network-attached relational backend.
type DatabaseConfig struct {
	Path        string            `yaml:"path"`
	URL         string            `yaml:"url"`
	Reliability ReliabilityConfig `yaml:"reliability"`
}

// DefaultDatabaseConfig mirrors the embedded-store default.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Path:        "./vein.db",
		Reliability: ReliabilityConfig{Retry: DefaultDatabaseRetryConfig()},
	}
}

// Backend resolves the configured database to a concrete backend kind.
func (c DatabaseConfig) Backend() DatabaseBackend {
	if c.URL != "" && (strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://")) {
		return DatabaseBackend{Kind: BackendPostgres, URL: c.URL}
	}
	return DatabaseBackend{Kind: BackendBolt, Path: c.Path}
}
