package manifest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/log"
)

// Analyzer turns a fetched .gem artifact into an assetindex.ManifestRecord.
type Analyzer struct{}

// NewAnalyzer constructs an Analyzer. It holds no state; each analysis
// is self-contained and safe to run concurrently.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze reads the outer gem tar from r, locates metadata.gz and
// data.tar.gz among its entries, and produces a ManifestRecord. A gem
// without a parseable metadata stream returns (nil, nil): the caller
// logs nothing further and the proxy continues without a manifest.
// previousSBOMJSON, if non-empty, is reused verbatim rather than
// regenerated.
func (a *Analyzer) Analyze(r io.Reader, platform string, sizeBytes int64, sha256Hex string, previousSBOMJSON string) (*assetindex.ManifestRecord, error) {
	tr := tar.NewReader(r)

	var metadataBytes []byte
	var dataTarBytes []byte

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read gem archive: %w", err)
		}
		switch hdr.Name {
		case "metadata.gz":
			b, err := readAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read metadata.gz: %w", err)
			}
			metadataBytes = b
		case "data.tar.gz":
			b, err := readAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read data.tar.gz: %w", err)
			}
			dataTarBytes = b
		}
	}

	if metadataBytes == nil {
		log.Warn("manifest: gem archive has no metadata.gz stream, skipping analysis")
		return nil, nil
	}

	yamlBody, err := gunzip(metadataBytes)
	if err != nil {
		log.Warn("manifest: metadata.gz did not decompress, skipping analysis: " + err.Error())
		return nil, nil
	}

	raw, err := ParseMetadataYAML(yamlBody)
	if err != nil {
		log.Warn("manifest: metadata stream did not parse as YAML, skipping analysis: " + err.Error())
		return nil, nil
	}

	if platform == "" {
		platform = raw.Platform
	}
	if platform == "" {
		platform = "ruby"
	}

	rec := &assetindex.ManifestRecord{
		Name:        raw.Name,
		Version:     raw.Version,
		Platform:    platform,
		Licenses:    raw.Licenses,
		Authors:     raw.Authors,
		Description: raw.Description,
		URLs:        raw.URLs,
		SizeBytes:   sizeBytes,
		SHA256:      sha256Hex,
	}

	rec.Dependencies = make([]assetindex.Dependency, 0, len(raw.Dependencies))
	for _, d := range raw.Dependencies {
		rec.Dependencies = append(rec.Dependencies, assetindex.Dependency{
			Name:        d.Name,
			Requirement: d.CanonicalRequirement(),
			Kind:        d.Type,
		})
	}

	if len(dataTarBytes) > 0 {
		analysis, err := AnalyzeDataTar(bytes.NewReader(dataTarBytes))
		if err != nil {
			log.Warn("manifest: data.tar.gz scan failed: " + err.Error())
		} else {
			rec.HasNativeExtension = analysis.HasNativeExtension
			rec.HasEmbeddedBinaries = analysis.HasEmbeddedBinaries
			rec.Languages = analysis.Languages
		}
	}

	if len(raw.Extensions) > 0 || platform != "ruby" {
		rec.HasNativeExtension = true
	}

	sbom, err := BuildSBOM(raw, platform, sha256Hex, previousSBOMJSON)
	if err != nil {
		log.Warn("manifest: sbom generation failed: " + err.Error())
	} else {
		rec.SBOMJSON = sbom
	}

	return rec, nil
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

func gunzip(b []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
