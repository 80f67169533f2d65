package sqlindex

import (
	"encoding/json"

	"github.com/cuemby/vein/pkg/assetindex"
)

func encodeDependencies(deps []assetindex.Dependency) (string, error) {
	if deps == nil {
		deps = []assetindex.Dependency{}
	}
	b, err := json.Marshal(deps)
	return string(b), err
}

func decodeDependencies(s string) ([]assetindex.Dependency, error) {
	var deps []assetindex.Dependency
	if s == "" {
		return deps, nil
	}
	return deps, json.Unmarshal([]byte(s), &deps)
}

func encodeStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	return string(b), err
}

func decodeStrings(s string) ([]string, error) {
	var ss []string
	if s == "" {
		return ss, nil
	}
	return ss, json.Unmarshal([]byte(s), &ss)
}

func encodeStringMap(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func decodeStringMap(s string) (map[string]string, error) {
	m := map[string]string{}
	if s == "" {
		return m, nil
	}
	return m, json.Unmarshal([]byte(s), &m)
}
