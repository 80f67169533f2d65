package manifest

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"path"
	"strings"
)

// DataTarAnalysis is the result of scanning a gem's data.tar.gz entry
// list for native extensions, embedded binaries, and languages.
type DataTarAnalysis struct {
	HasNativeExtension  bool
	HasEmbeddedBinaries bool
	Languages           []string
}

var nativeExtExtensions = map[string]bool{
	"so": true, "dll": true, "bundle": true, "dylib": true,
}

var embeddedBinaryExtensions = map[string]bool{
	"exe": true, "msi": true, "dll": true, "pdb": true,
}

var scriptExtensions = map[string]bool{
	"rb": true, "sh": true, "bat": true, "cmd": true, "ps1": true, "py": true,
}

var languageByExtension = map[string]string{
	"rb": "Ruby",
	"c":  "C",
	"h":  "C",
	"cc": "C++", "cpp": "C++", "cxx": "C++", "hpp": "C++",
	"rs": "Rust",
	"go": "Go",
	"java": "Java",
	"js":   "JavaScript",
	"ts":   "TypeScript",
	"py":   "Python",
}

var languageByFilename = map[string]string{
	"cargo.toml": "Rust",
	"extconf.rb": "C",
	"gemfile":    "Ruby",
	"rakefile":   "Ruby",
	"go.mod":     "Go",
	"package.json": "JavaScript",
}

// AnalyzeDataTar scans the gzip-compressed tar entry names of a gem's
// data.tar.gz stream. It never reads file contents: detection is purely
// name/extension/prefix based, matching the heuristics registries apply
// when indexing gems rather than parsing object-file headers.
func AnalyzeDataTar(r io.Reader) (*DataTarAnalysis, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	result := &DataTarAnalysis{}
	languages := map[string]bool{}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		classifyEntry(hdr.Name, result, languages)
	}

	for lang := range languages {
		result.Languages = append(result.Languages, lang)
	}
	return result, nil
}

func classifyEntry(name string, result *DataTarAnalysis, languages map[string]bool) {
	clean := strings.TrimPrefix(path.Clean(name), "./")
	base := path.Base(clean)
	ext := fileExtension(base)

	if strings.HasPrefix(clean, "ext/") || nativeExtExtensions[ext] {
		result.HasNativeExtension = true
	}

	switch {
	case strings.HasPrefix(clean, "vendor/"),
		strings.HasPrefix(clean, "libexec/"),
		strings.HasPrefix(clean, "resources/"):
		result.HasEmbeddedBinaries = true
	case embeddedBinaryExtensions[ext]:
		result.HasEmbeddedBinaries = true
	case strings.HasPrefix(clean, "bin/") && ext != "" && !scriptExtensions[ext]:
		result.HasEmbeddedBinaries = true
	}

	if lang, ok := languageByFilename[strings.ToLower(base)]; ok {
		languages[lang] = true
	} else if lang, ok := languageByExtension[ext]; ok {
		languages[lang] = true
	}
}

func fileExtension(base string) string {
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}
