package config

import "time"

// BackoffStrategy selects how retry wait times grow between attempts.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffFibonacci   BackoffStrategy = "fibonacci"
	BackoffConstant    BackoffStrategy = "constant"
)

// RetryConfig controls retry behavior for a single upstream-facing client.
type RetryConfig struct {
	Enabled           bool            `yaml:"enabled"`
	MaxAttempts       int             `yaml:"max_attempts"`
	InitialBackoffMs  int             `yaml:"initial_backoff_ms"`
	MaxBackoffSecs    int             `yaml:"max_backoff_secs"`
	BackoffStrategy   BackoffStrategy `yaml:"backoff_strategy"`
	JitterFactor      float64         `yaml:"jitter_factor"`
}

// DefaultRetryConfig matches the upstream-client defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:          true,
		MaxAttempts:      3,
		InitialBackoffMs: 100,
		MaxBackoffSecs:   30,
		BackoffStrategy:  BackoffExponential,
		JitterFactor:     1.0,
	}
}

// DefaultDatabaseRetryConfig matches the database-client defaults, which
// tolerate longer outages than a single HTTP fetch would.
func DefaultDatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:          true,
		MaxAttempts:      5,
		InitialBackoffMs: 500,
		MaxBackoffSecs:   30,
		BackoffStrategy:  BackoffExponential,
		JitterFactor:     1.0,
	}
}

// InitialBackoff returns the first-attempt wait as a time.Duration.
func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the backoff ceiling as a time.Duration.
func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffSecs) * time.Second
}

// ReliabilityConfig groups the retry policy for a client.
type ReliabilityConfig struct {
	Retry RetryConfig `yaml:"retry"`
}
