package quarantine

import (
	"context"
	"strings"
)

// FilterInfoLines filters a gem's compact-index info document (one line
// per version) down to the versions currently visible per quarantine
// policy. Each line's first whitespace-delimited token is the version,
// optionally suffixed "-{platform}".
func (e *Engine) FilterInfoLines(ctx context.Context, gem string, lines []string) ([]string, error) {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			out = append(out, line)
			continue
		}
		version, platform := splitVersionToken(firstField(line))
		if platform == "ruby" {
			platform = ""
		}
		visible, err := e.IsVisible(ctx, gem, version, platform)
		if err != nil {
			return nil, err
		}
		if visible {
			out = append(out, line)
		}
	}
	return out, nil
}

func firstField(line string) string {
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i]
	}
	return line
}

// splitVersionToken splits a compact-index version token
// ("1.2.3" or "1.2.3-x86_64-linux") into version and platform.
func splitVersionToken(token string) (version, platform string) {
	if i := strings.IndexByte(token, '-'); i >= 0 {
		return token[:i], token[i+1:]
	}
	return token, ""
}
