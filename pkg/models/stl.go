package models

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

// ErrNotSTL is returned for payloads that are neither binary nor ASCII STL.
var ErrNotSTL = errors.New("not an STL file")

// STLLoader loads binary and ASCII STL files.
type STLLoader struct {
	Options
	// NoDedupe gives every triangle its own vertices.
	NoDedupe bool
}

// NewSTLLoader creates a loader with exact vertex merging.
func NewSTLLoader(opts Options) *STLLoader {
	return &STLLoader{Options: opts}
}

// Load parses data as STL.
func (l *STLLoader) Load(data []byte, name string) (*Scene, error) {
	var (
		mesh *Mesh
		err  error
	)
	if isBinarySTL(data) {
		mesh, err = l.loadBinary(data, path.Base(name))
	} else {
		mesh, err = l.loadASCII(data, path.Base(name))
	}
	if err != nil {
		return nil, err
	}

	if l.SmoothNormals {
		// Facet normals are flat; recompute when smooth shading is wanted.
		mesh.CalculateSmoothNormals()
	}
	l.finishMesh(mesh)
	scene := NewScene(path.Base(name))
	node := NewNode(mesh.Name, TagModel)
	node.Mesh = mesh
	scene.Root.Add(node)
	return scene, nil
}

// isBinarySTL reports whether data is binary STL. ASCII files start with
// "solid", but so do some binary headers; the declared triangle count
// settles it.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return true
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	return uint64(len(data)) == 84+uint64(count)*50
}

// vertexIndex merges vertices by quantized position unless NoDedupe is set.
type vertexIndex struct {
	mesh      *Mesh
	tolerance float64
	seen      map[vertexKey]int
}

func (l *STLLoader) newIndex(m *Mesh) *vertexIndex {
	vi := &vertexIndex{mesh: m, tolerance: l.MergeTolerance}
	if !l.NoDedupe {
		vi.seen = make(map[vertexKey]int)
	}
	return vi
}

func (vi *vertexIndex) add(p, n math3d.Vec3) int {
	if vi.seen != nil {
		k := quantize(p, vi.tolerance)
		if idx, ok := vi.seen[k]; ok {
			return idx
		}
		vi.seen[k] = len(vi.mesh.Vertices)
	}
	vi.mesh.Vertices = append(vi.mesh.Vertices, MeshVertex{Position: p, Normal: n})
	return len(vi.mesh.Vertices) - 1
}

func (l *STLLoader) loadBinary(data []byte, name string) (*Mesh, error) {
	count := binary.LittleEndian.Uint32(data[80:84])
	want := 84 + uint64(count)*50
	if uint64(len(data)) < want {
		return nil, fmt.Errorf("binary STL truncated: header declares %d triangles (%d bytes), got %d bytes", count, want, len(data))
	}

	mesh := NewMesh(name)
	mesh.Faces = make([]Face, 0, count)
	idx := l.newIndex(mesh)

	off := 84
	for range count {
		normal := readVec3LE(data[off:])
		off += 12
		var f Face
		f.Material = -1
		for v := range 3 {
			f.V[v] = idx.add(readVec3LE(data[off:]), normal)
			off += 12
		}
		off += 2 // attribute byte count
		mesh.Faces = append(mesh.Faces, f)
	}
	return mesh, nil
}

func readVec3LE(b []byte) math3d.Vec3 {
	return math3d.V3(
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	)
}

func (l *STLLoader) loadASCII(data []byte, name string) (*Mesh, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return nil, ErrNotSTL
	}

	mesh := NewMesh(name)
	idx := l.newIndex(mesh)

	var (
		normal  math3d.Vec3
		corners []int
		inFacet bool
		inLoop  bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "solid":
			if len(fields) > 1 {
				mesh.Name = fields[1]
			}
		case "facet":
			if len(fields) >= 5 && strings.EqualFold(fields[1], "normal") {
				n, err := parseVec3(fields[1:], lineNum, "facet normal")
				if err != nil {
					return nil, err
				}
				normal = n.Normalize()
			}
			inFacet, corners = true, corners[:0]
		case "outer":
			inLoop = true
		case "vertex":
			if !inFacet || !inLoop {
				return nil, fmt.Errorf("line %d: vertex outside facet loop", lineNum)
			}
			p, err := parseVec3(fields, lineNum, "vertex")
			if err != nil {
				return nil, err
			}
			corners = append(corners, idx.add(p, normal))
		case "endloop":
			inLoop = false
		case "endfacet":
			if len(corners) >= 3 {
				mesh.Faces = append(mesh.Faces, Face{V: [3]int{corners[0], corners[1], corners[2]}, Material: -1})
			}
			inFacet = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ascii stl: %w", err)
	}
	return mesh, nil
}

// MeshSTLBytes encodes mesh faces as binary STL. Used to build fixtures and
// to export the current model.
func MeshSTLBytes(m *Mesh) []byte {
	var buf bytes.Buffer
	header := make([]byte, 80)
	copy(header, m.Name)
	buf.Write(header)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(m.Faces)))
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		n := b.Sub(a).Cross(c.Sub(a)).Normalize()
		for _, v := range []math3d.Vec3{n, a, b, c} {
			_ = binary.Write(&buf, binary.LittleEndian, [3]float32{float32(v.X), float32(v.Y), float32(v.Z)})
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}
