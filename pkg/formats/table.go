// Package formats maps filenames and content types to the 3D formats the
// viewer understands. The table separates model formats, which can be
// opened on their own, from dependency formats that a model references.
package formats

import "slices"

// ID names a format. For most formats it equals the canonical extension.
type ID string

const (
	GLB  ID = "glb"
	GLTF ID = "gltf"
	OBJ  ID = "obj"
	STL  ID = "stl"
	PLY  ID = "ply"

	MTL  ID = "mtl"
	BIN  ID = "bin"
	PNG  ID = "png"
	JPEG ID = "jpeg"
	WEBP ID = "webp"
	BMP  ID = "bmp"
	KTX2 ID = "ktx2"
)

// Kind separates primary models from the files they depend on.
type Kind int

const (
	Model Kind = iota
	Dependency
)

func (k Kind) String() string {
	if k == Dependency {
		return "dependency"
	}
	return "model"
}

// Format describes one row of the format table.
type Format struct {
	ID         ID
	Kind       Kind
	Extensions []string
	MIMETypes  []string
	Binary     bool // payload is binary rather than text
	// Siblings is set when the format may reference other files by name.
	Siblings bool
}

var table = []Format{
	{ID: GLB, Kind: Model, Extensions: []string{"glb"}, MIMETypes: []string{"model/gltf-binary"}, Binary: true, Siblings: true},
	{ID: GLTF, Kind: Model, Extensions: []string{"gltf"}, MIMETypes: []string{"model/gltf+json"}, Siblings: true},
	{ID: OBJ, Kind: Model, Extensions: []string{"obj"}, MIMETypes: []string{"model/obj", "text/prs.wavefront-obj"}, Siblings: true},
	{ID: STL, Kind: Model, Extensions: []string{"stl"}, MIMETypes: []string{"model/stl", "application/sla", "model/x.stl-binary", "model/x.stl-ascii"}, Binary: true},
	{ID: PLY, Kind: Model, Extensions: []string{"ply"}, MIMETypes: []string{"application/ply", "model/x-ply", "text/plain+ply"}, Binary: true},

	{ID: MTL, Kind: Dependency, Extensions: []string{"mtl"}, MIMETypes: []string{"model/mtl"}},
	{ID: BIN, Kind: Dependency, Extensions: []string{"bin"}, MIMETypes: []string{"application/gltf-buffer"}, Binary: true},
	{ID: PNG, Kind: Dependency, Extensions: []string{"png"}, MIMETypes: []string{"image/png"}, Binary: true},
	{ID: JPEG, Kind: Dependency, Extensions: []string{"jpg", "jpeg"}, MIMETypes: []string{"image/jpeg"}, Binary: true},
	{ID: WEBP, Kind: Dependency, Extensions: []string{"webp"}, MIMETypes: []string{"image/webp"}, Binary: true},
	{ID: BMP, Kind: Dependency, Extensions: []string{"bmp"}, MIMETypes: []string{"image/bmp"}, Binary: true},
	{ID: KTX2, Kind: Dependency, Extensions: []string{"ktx2"}, MIMETypes: []string{"image/ktx2"}, Binary: true},
}

var (
	byExt  = map[string]*Format{}
	byMIME = map[string]*Format{}
	byID   = map[ID]*Format{}
)

func init() {
	for i := range table {
		f := &table[i]
		byID[f.ID] = f
		for _, ext := range f.Extensions {
			byExt[ext] = f
		}
		for _, m := range f.MIMETypes {
			byMIME[m] = f
		}
	}
}

// Lookup returns the format registered under id.
func Lookup(id ID) (Format, bool) {
	f, ok := byID[id]
	if !ok {
		return Format{}, false
	}
	return *f, true
}

// IsModel reports whether ext (without dot, any case) names a model format.
func IsModel(ext string) bool {
	f, ok := byExt[normalizeExt(ext)]
	return ok && f.Kind == Model
}

// IsDependency reports whether ext names a dependency format.
func IsDependency(ext string) bool {
	f, ok := byExt[normalizeExt(ext)]
	return ok && f.Kind == Dependency
}

// Extensions lists every extension of the given kind, sorted.
func Extensions(kind Kind) []string {
	var out []string
	for _, f := range table {
		if f.Kind == kind {
			out = append(out, f.Extensions...)
		}
	}
	slices.Sort(out)
	return out
}

// MIMETypes returns the content types registered for id.
func MIMETypes(id ID) []string {
	f, ok := byID[id]
	if !ok {
		return nil
	}
	return slices.Clone(f.MIMETypes)
}
