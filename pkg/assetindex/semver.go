package assetindex

import "github.com/Masterminds/semver/v3"

// CompareVersions orders two version strings. Both must parse as
// semver for a numeric comparison; if either fails to parse (common for
// gem pre-1.0 4-segment versions and other non-semver schemes), it
// falls back to a plain lexical comparison so listings still produce a
// stable, deterministic order.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
