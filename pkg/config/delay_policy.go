package config

// GemDelayOverride overrides the default quarantine delay for a gem name
// or name pattern.
type GemDelayOverride struct {
	Name      string `yaml:"name"`
	DelayDays int    `yaml:"delay_days"`
	Pattern   bool   `yaml:"pattern"`
}

// PinnedVersion marks a specific gem version as always available,
// bypassing quarantine entirely.
type PinnedVersion struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Reason  string `yaml:"reason"`
}

// DelayPolicyConfig is the supply-chain quarantine policy.
type DelayPolicyConfig struct {
	Enabled                    bool               `yaml:"enabled"`
	DefaultDelayDays           int                `yaml:"default_delay_days"`
	SkipWeekends               bool               `yaml:"skip_weekends"`
	BusinessHoursOnly          bool               `yaml:"business_hours_only"`
	ReleaseHourUTC             int                `yaml:"release_hour_utc"`
	Gems                       []GemDelayOverride `yaml:"gems"`
	Pinned                     []PinnedVersion    `yaml:"pinned"`
	AllowYankedDirectDownload  bool               `yaml:"allow_yanked_direct_download"`
}

// DefaultDelayPolicyConfig mirrors the policy's field defaults.
func DefaultDelayPolicyConfig() DelayPolicyConfig {
	return DelayPolicyConfig{
		Enabled:           false,
		DefaultDelayDays:  3,
		SkipWeekends:      true,
		BusinessHoursOnly: true,
		ReleaseHourUTC:    9,
	}
}

// DelayForGem resolves the quarantine delay, in days, for a gem name.
// Exact-name overrides are checked first, then pattern overrides in
// declared order, falling back to DefaultDelayDays.
func (c DelayPolicyConfig) DelayForGem(name string) int {
	for _, g := range c.Gems {
		if !g.Pattern && g.Name == name {
			return g.DelayDays
		}
	}
	for _, g := range c.Gems {
		if g.Pattern && globMatch(g.Name, name) {
			return g.DelayDays
		}
	}
	return c.DefaultDelayDays
}

// IsPinned reports whether a name/version pair is pinned.
func (c DelayPolicyConfig) IsPinned(name, version string) bool {
	for _, p := range c.Pinned {
		if p.Name == name && p.Version == version {
			return true
		}
	}
	return false
}

// PinReason returns the recorded reason for a pin, or "" if not pinned.
func (c DelayPolicyConfig) PinReason(name, version string) string {
	for _, p := range c.Pinned {
		if p.Name == name && p.Version == version {
			return p.Reason
		}
	}
	return ""
}

// globMatch implements the small pattern language the policy allows:
// an exact string, "*suffix", "prefix*", "prefix*suffix", or a lone "*".
func globMatch(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	star := -1
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' {
			star = i
			break
		}
	}
	if star == -1 {
		return pattern == name
	}
	prefix := pattern[:star]
	suffix := pattern[star+1:]
	if len(prefix)+len(suffix) > len(name) {
		return false
	}
	return (prefix == "" || hasPrefix(name, prefix)) &&
		(suffix == "" || hasSuffix(name, suffix))
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
