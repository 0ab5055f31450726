// Package decoders selects and initializes the parser for a model format.
// Initialized decoders live in a process-wide cache; concurrent
// acquisitions of the same format share one initialization.
package decoders

import "github.com/taigrr/threedviewer/pkg/formats"

// Sub-decoder names.
const (
	Draco = "draco"
	KTX2  = "ktx2"
)

// SubDecoderRef names an optional or required helper a primary decoder can use.
type SubDecoderRef struct {
	Name string
	// PathHint is appended to the loader's AssetBase to locate the
	// sub-decoder's runtime assets.
	PathHint string
	Required bool
}

// Descriptor describes how to decode one format. Descriptors are static.
type Descriptor struct {
	FormatID    formats.ID
	Primary     string
	SubDecoders []SubDecoderRef
}

var gltfSubs = []SubDecoderRef{
	{Name: Draco, PathHint: "draco/"},
	{Name: KTX2, PathHint: "basis/"},
}

var descriptors = map[formats.ID]Descriptor{
	formats.GLB:  {FormatID: formats.GLB, Primary: "gltf", SubDecoders: gltfSubs},
	formats.GLTF: {FormatID: formats.GLTF, Primary: "gltf", SubDecoders: gltfSubs},
	formats.OBJ:  {FormatID: formats.OBJ, Primary: "obj"},
	formats.STL:  {FormatID: formats.STL, Primary: "stl"},
	formats.PLY:  {FormatID: formats.PLY, Primary: "ply"},
}

// DescriptorFor returns the descriptor of a model format.
func DescriptorFor(id formats.ID) (Descriptor, bool) {
	d, ok := descriptors[id]
	if !ok {
		return Descriptor{}, false
	}
	d.SubDecoders = append([]SubDecoderRef(nil), d.SubDecoders...)
	return d, true
}
