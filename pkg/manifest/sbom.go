package manifest

import (
	"encoding/json"
	"fmt"

	cyclonedx "github.com/CycloneDX/cyclonedx-go"
)

// BuildSBOM produces a minimal CycloneDX 1.5 JSON document for one gem
// version. If existingSBOMJSON is non-empty it is returned unchanged:
// an SBOM generated on a previous fetch of the same artifact is treated
// as authoritative rather than regenerated.
func BuildSBOM(rec *RawMetadata, platform, sha256Hex string, existingSBOMJSON string) (string, error) {
	if existingSBOMJSON != "" {
		return existingSBOMJSON, nil
	}

	group := platform
	purl := fmt.Sprintf("pkg:gem/%s@%s", rec.Name, rec.Version)

	component := cyclonedx.Component{
		Type:    cyclonedx.ComponentTypeLibrary,
		Name:    rec.Name,
		Version: rec.Version,
		Group:   group,
		PackageURL: purl,
	}

	if len(rec.Licenses) > 0 {
		choices := make(cyclonedx.Licenses, 0, len(rec.Licenses))
		for _, lic := range rec.Licenses {
			choices = append(choices, cyclonedx.LicenseChoice{
				License: &cyclonedx.License{ID: lic},
			})
		}
		component.Licenses = &choices
	}

	if sha256Hex != "" {
		component.Hashes = &[]cyclonedx.Hash{
			{Algorithm: cyclonedx.HashAlgoSHA256, Value: sha256Hex},
		}
	}

	var props []cyclonedx.Property
	if rec.Description != "" {
		props = append(props, cyclonedx.Property{Name: "description", Value: rec.Description})
	}
	for k, v := range rec.URLs {
		props = append(props, cyclonedx.Property{Name: "url:" + k, Value: v})
	}
	for k, v := range rec.Metadata {
		props = append(props, cyclonedx.Property{Name: "metadata:" + k, Value: v})
	}
	if len(props) > 0 {
		component.Properties = &props
	}

	bom := cyclonedx.NewBOM()
	bom.SpecVersion = cyclonedx.SpecVersion1_5
	bom.Metadata = &cyclonedx.Metadata{Component: &component}
	bom.Components = &[]cyclonedx.Component{component}

	data, err := json.Marshal(bom)
	if err != nil {
		return "", fmt.Errorf("marshal sbom: %w", err)
	}
	return string(data), nil
}
