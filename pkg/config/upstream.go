package config

// UpstreamConfig describes the origin registry this instance mirrors,
// plus any fallback mirrors tried in order when the origin before them
// fails.
type UpstreamConfig struct {
	URL             string            `yaml:"url"`
	FallbackURLs    []string          `yaml:"fallback_urls"`
	Reliability     ReliabilityConfig `yaml:"reliability"`
	ConnectionPool  int               `yaml:"connection_pool_size"`
}

// DefaultUpstreamConfig mirrors the gem-registry default.
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		URL:            "https://rubygems.org/",
		Reliability:    ReliabilityConfig{Retry: DefaultRetryConfig()},
		ConnectionPool: 16,
	}
}

// Origins returns the primary URL followed by the configured fallbacks,
// the order the upstream client tries them in.
func (c UpstreamConfig) Origins() []string {
	out := make([]string, 0, 1+len(c.FallbackURLs))
	out = append(out, c.URL)
	out = append(out, c.FallbackURLs...)
	return out
}
