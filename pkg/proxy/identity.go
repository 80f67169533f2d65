package proxy

import (
	"strings"

	"github.com/cuemby/vein/pkg/errs"
)

// ParsedIdentity is the (name, version, platform) triple recovered from
// an artifact filename.
type ParsedIdentity struct {
	Name     string
	Version  string
	Platform string
}

// ParseArtifactStem splits a filename stem (the filename with its known
// extension removed) into name/version/platform. It finds the first
// '-'-delimited token whose first character is an ASCII digit: the
// tokens before it join back into the name, that token is the version,
// and anything after joins back into the platform.
func ParseArtifactStem(stem string) (ParsedIdentity, error) {
	if err := rejectUnsafe(stem); err != nil {
		return ParsedIdentity{}, err
	}

	tokens := strings.Split(stem, "-")
	versionIdx := -1
	for i, tok := range tokens {
		if tok != "" && tok[0] >= '0' && tok[0] <= '9' {
			versionIdx = i
			break
		}
	}
	if versionIdx <= 0 {
		return ParsedIdentity{}, errs.Validation("could not locate version token in artifact stem: "+stem, nil)
	}

	name := strings.Join(tokens[:versionIdx], "-")
	version := tokens[versionIdx]
	platform := strings.Join(tokens[versionIdx+1:], "-")

	if name == "" || version == "" {
		return ParsedIdentity{}, errs.Validation("empty name or version in artifact stem: "+stem, nil)
	}

	return ParsedIdentity{Name: name, Version: version, Platform: platform}, nil
}

// rejectUnsafe rejects path-traversal-prone inputs before any I/O.
func rejectUnsafe(s string) error {
	if s == "" || strings.Contains(s, "..") || strings.Contains(s, "//") || strings.HasPrefix(s, "/") {
		return errs.Validation("unsafe path segment: "+s, nil)
	}
	return nil
}

// RejectUnsafeSegment exposes rejectUnsafe for callers outside this
// package's artifact-stem parsing (crate and npm path validation).
func RejectUnsafeSegment(s string) error {
	return rejectUnsafe(s)
}
