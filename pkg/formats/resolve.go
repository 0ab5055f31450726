package formats

import (
	"mime"
	"path"
	"strings"

	"github.com/taigrr/threedviewer/pkg/errkind"
)

// Resolve picks the model format for a file. The extension wins; the
// declared content type is only consulted when the extension is missing or
// unknown. Dependency formats are rejected with errkind.DependencyAsPrimary.
func Resolve(filename, contentType string) (Format, error) {
	ext := ExtOf(filename)
	if f, ok := byExt[ext]; ok {
		if f.Kind != Model {
			return Format{}, errkind.NewDependencyAsPrimary(ext)
		}
		return *f, nil
	}

	if f, ok := byMIME[normalizeMIME(contentType)]; ok {
		if f.Kind != Model {
			return Format{}, errkind.NewDependencyAsPrimary(f.Extensions[0])
		}
		return *f, nil
	}
	return Format{}, errkind.NewUnsupportedFormat(ext)
}

// ResolveDependency classifies a sibling file referenced by a model.
func ResolveDependency(name string) (Format, bool) {
	f, ok := byExt[ExtOf(name)]
	if !ok || f.Kind != Dependency {
		return Format{}, false
	}
	return *f, true
}

// ExtOf returns the lower-cased extension of name without the dot.
func ExtOf(name string) string {
	// URLs may carry a query string.
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return normalizeExt(path.Ext(name))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func normalizeMIME(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt, _, _ = strings.Cut(ct, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
