package config

import "path/filepath"

// StorageConfig is the object store root on disk.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// DefaultStorageConfig mirrors the default gem cache directory.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{Path: "./gems"}
}

// NormalizePaths resolves the configured path to an absolute path.
func (c *StorageConfig) NormalizePaths() error {
	abs, err := filepath.Abs(c.Path)
	if err != nil {
		return err
	}
	c.Path = abs
	return nil
}
