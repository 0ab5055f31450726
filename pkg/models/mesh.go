// Package models holds the in-memory scene graph produced by the format
// decoders, and the decoders themselves for glTF/GLB, OBJ+MTL, STL and PLY.
package models

import (
	"image"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

// Mesh is an indexed triangle mesh in its node's local space. Lines carries
// optional line segments used by helpers and measurement overlays.
type Mesh struct {
	Name      string
	Vertices  []MeshVertex
	Faces     []Face
	Lines     []Line
	Materials []Material

	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// MeshVertex holds all vertex attributes.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Color    [3]float64 // per-vertex colour; zero means unset
}

// Face is a triangle referencing Mesh.Vertices.
type Face struct {
	V        [3]int
	Material int // index into Mesh.Materials, -1 for none
}

// Line is a segment between two vertices.
type Line struct {
	A, B     int
	Material int
}

// Material is a minimal PBR material shared by every decoder.
type Material struct {
	Name      string
	BaseColor [4]float64 // RGBA in 0-1 range
	Metallic  float64
	Roughness float64
	BaseMap   image.Image
	// Unlit materials skip shading; overlays and helpers use them.
	Unlit bool
}

// DefaultMaterial is used for faces without a material.
func DefaultMaterial() Material {
	return Material{Name: "default", BaseColor: [4]float64{0.8, 0.8, 0.8, 1}, Roughness: 1}
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

// CalculateBounds recomputes BoundsMin and BoundsMax. Non-finite positions
// are skipped; an empty mesh gets a zero box.
func (m *Mesh) CalculateBounds() {
	b := m.Bounds()
	if b.IsEmpty() {
		m.BoundsMin, m.BoundsMax = math3d.Zero3(), math3d.Zero3()
		return
	}
	m.BoundsMin, m.BoundsMax = b.Min, b.Max
}

// Bounds returns the local-space box over every vertex.
func (m *Mesh) Bounds() math3d.Box3 {
	b := math3d.EmptyBox3()
	for _, v := range m.Vertices {
		b = b.ExpandPoint(v.Position)
	}
	return b
}

// Center returns the center of the cached bounds.
func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

// Size returns the dimensions of the cached bounds.
func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

func (m *Mesh) TriangleCount() int { return len(m.Faces) }

func (m *Mesh) VertexCount() int { return len(m.Vertices) }

func (m *Mesh) faceNormal(f Face) math3d.Vec3 {
	p0 := m.Vertices[f.V[0]].Position
	p1 := m.Vertices[f.V[1]].Position
	p2 := m.Vertices[f.V[2]].Position
	return p1.Sub(p0).Cross(p2.Sub(p0))
}

// CalculateNormals assigns each face's normal to its three vertices.
// Shared vertices end up with the last face's normal.
func (m *Mesh) CalculateNormals() {
	for _, f := range m.Faces {
		n := m.faceNormal(f).Normalize()
		for _, vi := range f.V {
			m.Vertices[vi].Normal = n
		}
	}
}

// CalculateSmoothNormals averages area-weighted face normals per vertex.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Zero3()
	}
	for _, f := range m.Faces {
		n := m.faceNormal(f)
		for _, vi := range f.V {
			m.Vertices[vi].Normal = m.Vertices[vi].Normal.Add(n)
		}
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// HasNormals reports whether any vertex carries a usable normal.
func (m *Mesh) HasNormals() bool {
	for _, v := range m.Vertices {
		if v.Normal.LenSq() > 1e-6 {
			return true
		}
	}
	return false
}

// Transform bakes mat into the vertex data.
func (m *Mesh) Transform(mat math3d.Mat4) {
	for i := range m.Vertices {
		m.Vertices[i].Position = mat.MulVec3(m.Vertices[i].Position)
		m.Vertices[i].Normal = mat.MulVec3Dir(m.Vertices[i].Normal).Normalize()
	}
	m.CalculateBounds()
}

// Clone returns a deep copy. Texture images are shared.
func (m *Mesh) Clone() *Mesh {
	c := *m
	c.Vertices = append([]MeshVertex(nil), m.Vertices...)
	c.Faces = append([]Face(nil), m.Faces...)
	c.Lines = append([]Line(nil), m.Lines...)
	c.Materials = append([]Material(nil), m.Materials...)
	return &c
}

// Triangle returns the three positions of face i.
func (m *Mesh) Triangle(i int) (a, b, c math3d.Vec3) {
	f := m.Faces[i].V
	return m.Vertices[f[0]].Position, m.Vertices[f[1]].Position, m.Vertices[f[2]].Position
}

// MaterialFor returns the material of face i, or nil when unassigned.
func (m *Mesh) MaterialFor(i int) *Material {
	idx := m.Faces[i].Material
	if idx < 0 || idx >= len(m.Materials) {
		return nil
	}
	return &m.Materials[idx]
}

// sortedKey orders a face's indices so winding does not matter.
func sortedKey(a, b, c int) [3]int {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return [3]int{a, b, c}
}

// CleanStats reports what Clean removed.
type CleanStats struct {
	Degenerate   int
	Internal     int
	Duplicate    int
	Unreferenced int
}

// Total returns the number of faces removed.
func (s CleanStats) Total() int { return s.Degenerate + s.Internal + s.Duplicate }

// Clean drops degenerate, internal and duplicate faces, then compacts the
// vertex array. Internal pairs must be found before duplicates, otherwise
// deduplication would eat one half of each pair.
func (m *Mesh) Clean() CleanStats {
	var s CleanStats
	s.Degenerate = m.RemoveDegenerateFaces()
	s.Internal = m.RemoveInternalFaces()
	s.Duplicate = m.DeduplicateFaces()
	s.Unreferenced = m.RemoveUnreferencedVertices()
	return s
}

func (m *Mesh) keepFaces(keep func(i int, f Face) bool) int {
	kept := m.Faces[:0:0]
	for i, f := range m.Faces {
		if keep(i, f) {
			kept = append(kept, f)
		}
	}
	removed := len(m.Faces) - len(kept)
	m.Faces = kept
	return removed
}

// DeduplicateFaces keeps the first of any faces sharing the same three vertices.
func (m *Mesh) DeduplicateFaces() int {
	seen := make(map[[3]int]struct{}, len(m.Faces))
	return m.keepFaces(func(_ int, f Face) bool {
		k := sortedKey(f.V[0], f.V[1], f.V[2])
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

// RemoveInternalFaces removes pairs of faces over the same vertices whose
// normals point in opposite directions.
func (m *Mesh) RemoveInternalFaces() int {
	groups := make(map[[3]int][]int)
	normals := make([]math3d.Vec3, len(m.Faces))
	for i, f := range m.Faces {
		normals[i] = m.faceNormal(f).Normalize()
		k := sortedKey(f.V[0], f.V[1], f.V[2])
		groups[k] = append(groups[k], i)
	}

	drop := make(map[int]bool)
	for _, idx := range groups {
		for a := 0; a < len(idx); a++ {
			if drop[idx[a]] {
				continue
			}
			for b := a + 1; b < len(idx); b++ {
				if drop[idx[b]] {
					continue
				}
				if normals[idx[a]].Dot(normals[idx[b]]) < -0.99 {
					drop[idx[a]], drop[idx[b]] = true, true
					break
				}
			}
		}
	}
	if len(drop) == 0 {
		return 0
	}
	return m.keepFaces(func(i int, _ Face) bool { return !drop[i] })
}

// RemoveDegenerateFaces drops faces with repeated indices or near-zero area.
func (m *Mesh) RemoveDegenerateFaces() int {
	const minArea = 1e-10
	return m.keepFaces(func(_ int, f Face) bool {
		if f.V[0] == f.V[1] || f.V[1] == f.V[2] || f.V[0] == f.V[2] {
			return false
		}
		return m.faceNormal(f).Len()*0.5 > minArea
	})
}

// RemoveUnreferencedVertices compacts Vertices to those used by a face or
// line and remaps indices. Returns the number of vertices removed.
func (m *Mesh) RemoveUnreferencedVertices() int {
	if len(m.Vertices) == 0 || (len(m.Faces) == 0 && len(m.Lines) == 0) {
		return 0
	}
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		used[f.V[0]], used[f.V[1]], used[f.V[2]] = true, true, true
	}
	for _, l := range m.Lines {
		used[l.A], used[l.B] = true, true
	}

	remap := make([]int, len(m.Vertices))
	out := make([]MeshVertex, 0, len(m.Vertices))
	for i, v := range m.Vertices {
		if used[i] {
			remap[i] = len(out)
			out = append(out, v)
		}
	}
	for i := range m.Faces {
		for j := range 3 {
			m.Faces[i].V[j] = remap[m.Faces[i].V[j]]
		}
	}
	for i := range m.Lines {
		m.Lines[i].A, m.Lines[i].B = remap[m.Lines[i].A], remap[m.Lines[i].B]
	}
	removed := len(m.Vertices) - len(out)
	m.Vertices = out
	return removed
}
