package models

import (
	"image"
	"math"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

// Options are shared by every format loader.
type Options struct {
	// SmoothNormals averages normals when the file provides none.
	SmoothNormals bool
	// Clean runs Mesh.Clean on every decoded mesh.
	Clean bool
	// MergeTolerance quantizes positions when merging STL/PLY vertices.
	// Zero means exact matching.
	MergeTolerance float64
	// Siblings resolves external files. Nil means none are available.
	Siblings SiblingResolver
	// Capabilities lists the optional sub-decoders that were initialized.
	Capabilities Capabilities
}

// Capabilities holds optional sub-decoders. A nil field means the
// capability is disabled and content needing it is skipped with a warning.
type Capabilities struct {
	Draco MeshDecompressor
	KTX2  TextureTranscoder
}

// DracoPrimitive is the compressed payload of one glTF primitive.
type DracoPrimitive struct {
	Data       []byte
	Attributes map[string]uint32
}

// DecodedPrimitive is geometry returned by a MeshDecompressor.
type DecodedPrimitive struct {
	Positions []math3d.Vec3
	Normals   []math3d.Vec3
	UVs       []math3d.Vec2
	Indices   []uint32
}

// MeshDecompressor expands compressed mesh data.
type MeshDecompressor interface {
	Decompress(p DracoPrimitive) (*DecodedPrimitive, error)
}

// TextureTranscoder decodes GPU-compressed texture containers.
type TextureTranscoder interface {
	Transcode(data []byte) (image.Image, error)
}

// finishMesh computes normals and bounds and optionally cleans the mesh.
func (o Options) finishMesh(m *Mesh) {
	if o.Clean {
		m.Clean()
	}
	if !m.HasNormals() {
		if o.SmoothNormals {
			m.CalculateSmoothNormals()
		} else {
			m.CalculateNormals()
		}
	}
	m.CalculateBounds()
}

// vertexKey quantizes a position for vertex merging.
type vertexKey struct {
	x, y, z int64
}

func quantize(p math3d.Vec3, tolerance float64) vertexKey {
	if tolerance <= 0 {
		tolerance = 1e-12
	}
	s := 1 / tolerance
	return vertexKey{
		x: int64(math.Round(p.X * s)),
		y: int64(math.Round(p.Y * s)),
		z: int64(math.Round(p.Z * s)),
	}
}
