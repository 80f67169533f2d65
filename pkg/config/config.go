// Package config holds the typed configuration surface for vein. Loading
// from TOML/environment and validating unknown keys is left to the
// caller; this package only defines the shape and the field defaults.
package config

// ServerConfig controls the proxy's listening behavior.
type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// DefaultServerConfig mirrors the bind defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:  ":8080",
		MetricsAddr: ":9090",
	}
}

// Config is the full typed configuration for a vein instance.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Database    DatabaseConfig    `yaml:"database"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	DelayPolicy DelayPolicyConfig `yaml:"delay_policy"`
}

// Default returns a Config populated with every component's defaults.
func Default() Config {
	return Config{
		Server:      DefaultServerConfig(),
		Storage:     DefaultStorageConfig(),
		Database:    DefaultDatabaseConfig(),
		Upstream:    DefaultUpstreamConfig(),
		DelayPolicy: DefaultDelayPolicyConfig(),
	}
}
