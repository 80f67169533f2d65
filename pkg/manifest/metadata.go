// Package manifest analyzes gem artifacts: it parses the gzip-compressed
// YAML metadata stream gems ship, detects native extensions and
// embedded binaries from the archive's file list, and produces a
// CycloneDX SBOM document for the result.
package manifest

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// RawMetadata is the gem's metadata.gz content decoded from YAML into a
// generic node tree, so Ruby-specific tags (!ruby/object:Gem::Version,
// !ruby/object:Gem::Requirement, etc.) can be unwrapped by reading the
// scalar value off a tagged node instead of registering Go types for
// every tag the ecosystem has ever emitted.
type RawMetadata struct {
	Name         string
	Version      string
	Platform     string
	Licenses     []string
	Authors      []string
	Description  string
	Dependencies []RawDependency
	URLs         map[string]string
	Extensions   []string
	Metadata     map[string]string
}

// RawDependency is one dependency entry before canonicalization.
type RawDependency struct {
	Name         string
	Type         string
	Requirements []RequirementPair
}

// RequirementPair is one [operator, version] entry from a gem
// requirement list.
type RequirementPair struct {
	Operator string
	Version  string
}

// ParseMetadataYAML decodes a gem's metadata.gz YAML body into
// RawMetadata. A gem without a parseable metadata stream returns an
// error; the caller logs and continues with a null manifest.
func ParseMetadataYAML(data []byte) (*RawMetadata, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	m := &RawMetadata{
		URLs:     map[string]string{},
		Metadata: map[string]string{},
	}

	fields := mapNode(doc)
	m.Name = scalarField(fields, "name")
	m.Version = unwrapVersionField(fields["version"])
	m.Platform = scalarField(fields, "platform")
	m.Licenses = stringListField(fields, "licenses", "license")
	m.Authors = stringListField(fields, "authors", "author")
	m.Description = scalarField(fields, "description")
	m.Extensions = stringListField(fields, "extensions")
	m.Dependencies = dependenciesField(fields["dependencies"])

	if metaNode, ok := fields["metadata"]; ok {
		for k, v := range mapNode(metaNode) {
			if v.Kind == yaml.ScalarNode {
				m.Metadata[k] = v.Value
				if isURLKey(k) {
					m.URLs[k] = v.Value
				}
			}
		}
	}
	for _, key := range []string{"homepage"} {
		if v := scalarField(fields, key); v != "" {
			m.URLs[key] = v
		}
	}

	return m, nil
}

func mapNode(n *yaml.Node) map[string]*yaml.Node {
	out := map[string]*yaml.Node{}
	if n == nil {
		return out
	}
	target := n
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		target = n.Content[0]
	}
	if target.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(target.Content); i += 2 {
		out[target.Content[i].Value] = target.Content[i+1]
	}
	return out
}

func scalarField(fields map[string]*yaml.Node, key string) string {
	n, ok := fields[key]
	if !ok {
		return ""
	}
	return unwrapScalar(n)
}

// unwrapScalar returns a node's string value whether it's a plain
// scalar or a Ruby-tagged wrapper like !ruby/object:Gem::Version whose
// real value sits one level down under a "version" key.
func unwrapScalar(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "version" {
				return unwrapScalar(n.Content[i+1])
			}
		}
	}
	return ""
}

func unwrapVersionField(n *yaml.Node) string {
	return unwrapScalar(n)
}

func stringListField(fields map[string]*yaml.Node, keys ...string) []string {
	for _, key := range keys {
		n, ok := fields[key]
		if !ok {
			continue
		}
		switch n.Kind {
		case yaml.ScalarNode:
			if n.Value == "" || n.Tag == "!!null" {
				return nil
			}
			return []string{n.Value}
		case yaml.SequenceNode:
			var out []string
			for _, item := range n.Content {
				if v := unwrapScalar(item); v != "" {
					out = append(out, v)
				}
			}
			return out
		}
	}
	return nil
}

func dependenciesField(n *yaml.Node) []RawDependency {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	var deps []RawDependency
	for _, item := range n.Content {
		fields := mapNode(item)
		dep := RawDependency{
			Name: scalarField(fields, "name"),
			Type: canonicalDependencyType(scalarField(fields, "type")),
		}
		if reqNode, ok := fields["requirement"]; ok {
			reqFields := mapNode(reqNode)
			dep.Requirements = requirementPairs(reqFields["requirements"])
		}
		if len(dep.Requirements) == 0 {
			dep.Requirements = []RequirementPair{{Operator: ">=", Version: "0"}}
		}
		deps = append(deps, dep)
	}
	return deps
}

func canonicalDependencyType(raw string) string {
	raw = strings.TrimPrefix(raw, ":")
	raw = strings.ToLower(raw)
	switch raw {
	case "runtime", "development", "optional":
		return raw
	default:
		return "unknown"
	}
}

func requirementPairs(n *yaml.Node) []RequirementPair {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	var pairs []RequirementPair
	for _, pairNode := range n.Content {
		if pairNode.Kind != yaml.SequenceNode || len(pairNode.Content) < 2 {
			continue
		}
		pairs = append(pairs, RequirementPair{
			Operator: unwrapScalar(pairNode.Content[0]),
			Version:  unwrapScalar(pairNode.Content[1]),
		})
	}
	return pairs
}

// CanonicalRequirement flattens a dependency's requirement pairs into
// "op ver, op ver, ...".
func (d RawDependency) CanonicalRequirement() string {
	parts := make([]string, 0, len(d.Requirements))
	for _, r := range d.Requirements {
		parts = append(parts, r.Operator+" "+r.Version)
	}
	return strings.Join(parts, ", ")
}

func isURLKey(key string) bool {
	switch key {
	case "source_code_uri", "documentation_uri", "bug_tracker_uri", "changelog_uri",
		"wiki_uri", "mailing_list_uri", "homepage_uri", "funding_uri":
		return true
	default:
		return false
	}
}
