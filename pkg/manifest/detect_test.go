package manifest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildDataTarGz(t *testing.T, names []string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: 0, Typeflag: tar.TypeReg}
		assert.NoError(t, tw.WriteHeader(hdr))
	}
	assert.NoError(t, tw.Close())
	assert.NoError(t, gz.Close())
	return &buf
}

func TestAnalyzeDataTar(t *testing.T) {
	tests := []struct {
		name                    string
		entries                 []string
		wantNativeExtension     bool
		wantEmbeddedBinaries    bool
		wantLanguagesSuperset   []string
	}{
		{
			name:                "ext prefix native extension",
			entries:             []string{"ext/example/extconf.rb", "lib/example.rb"},
			wantNativeExtension: true,
			wantLanguagesSuperset: []string{"Ruby", "C"},
		},
		{
			name:                "so extension native extension",
			entries:             []string{"lib/native.so"},
			wantNativeExtension: true,
		},
		{
			name:                 "vendor prefix embedded binary",
			entries:              []string{"vendor/bundle/some-binary"},
			wantEmbeddedBinaries: true,
		},
		{
			name:                 "bin script is not embedded binary",
			entries:              []string{"bin/console.rb"},
			wantEmbeddedBinaries: false,
		},
		{
			name:                 "bin non-script is embedded binary",
			entries:              []string{"bin/helper.exe"},
			wantEmbeddedBinaries: true,
		},
		{
			name:                  "cargo.toml detects rust",
			entries:               []string{"Cargo.toml", "src/lib.rs"},
			wantLanguagesSuperset: []string{"Rust"},
		},
		{
			name: "plain ruby lib has no native extension or binaries",
			entries: []string{
				"lib/example.rb",
				"lib/example/version.rb",
			},
			wantNativeExtension:  false,
			wantEmbeddedBinaries: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := buildDataTarGz(t, tt.entries)
			result, err := AnalyzeDataTar(buf)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantNativeExtension, result.HasNativeExtension)
			assert.Equal(t, tt.wantEmbeddedBinaries, result.HasEmbeddedBinaries)
			for _, lang := range tt.wantLanguagesSuperset {
				assert.Contains(t, result.Languages, lang)
			}
		})
	}
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple extension", "foo.rb", "rb"},
		{"no extension", "Rakefile", ""},
		{"trailing dot", "weird.", ""},
		{"multiple dots", "archive.tar.gz", "gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fileExtension(tt.in))
		})
	}
}
