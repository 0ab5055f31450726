package models

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

const asciiSquare = `solid square
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 1 1 0
    endloop
  endfacet
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
endsolid square`

func stlMesh(t *testing.T, l *STLLoader, data []byte) *Mesh {
	t.Helper()
	s, err := l.Load(data, "test.stl")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s.Root.Children[0].Mesh
}

func TestSTLASCII(t *testing.T) {
	m := stlMesh(t, NewSTLLoader(Options{}), []byte(asciiSquare))
	if m.Name != "square" {
		t.Errorf("Name = %q, want square", m.Name)
	}
	if m.TriangleCount() != 2 || m.VertexCount() != 4 {
		t.Errorf("counts = %d tris / %d verts, want 2 / 4", m.TriangleCount(), m.VertexCount())
	}
}

func binarySTL(tris [][4]math3d.Vec3) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, tri := range tris {
		for _, v := range tri {
			binary.Write(&buf, binary.LittleEndian, [3]float32{float32(v.X), float32(v.Y), float32(v.Z)})
		}
		binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func TestSTLBinary(t *testing.T) {
	data := binarySTL([][4]math3d.Vec3{
		{math3d.V3(0, 0, 1), math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)},
	})
	m := stlMesh(t, NewSTLLoader(Options{}), data)
	if m.TriangleCount() != 1 || m.VertexCount() != 3 {
		t.Errorf("counts = %d/%d, want 1/3", m.TriangleCount(), m.VertexCount())
	}
	if m.Vertices[0].Normal.Z != 1 {
		t.Errorf("normal = %v, want +Z", m.Vertices[0].Normal)
	}
}

func TestSTLDedupe(t *testing.T) {
	tris := [][4]math3d.Vec3{
		{math3d.V3(0, 0, 1), math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(1, 1, 0)},
		{math3d.V3(0, 0, 1), math3d.V3(0, 0, 0), math3d.V3(1, 1, 0), math3d.V3(0, 1, 0)},
	}
	if m := stlMesh(t, NewSTLLoader(Options{}), binarySTL(tris)); m.VertexCount() != 4 {
		t.Errorf("merged VertexCount = %d, want 4", m.VertexCount())
	}
	l := NewSTLLoader(Options{})
	l.NoDedupe = true
	if m := stlMesh(t, l, binarySTL(tris)); m.VertexCount() != 6 {
		t.Errorf("NoDedupe VertexCount = %d, want 6", m.VertexCount())
	}
}

func TestSTLDetection(t *testing.T) {
	if isBinarySTL([]byte("solid test\nfacet normal 0 0 1\n")) {
		t.Error("ASCII STL detected as binary")
	}
	if !isBinarySTL(binarySTL(nil)) {
		t.Error("empty binary STL not detected")
	}

	// A binary header that happens to start with "solid".
	data := binarySTL([][4]math3d.Vec3{{}})
	copy(data, "solid but binary")
	if !isBinarySTL(data) {
		t.Error("binary STL with solid header not detected")
	}
}

func TestSTLErrors(t *testing.T) {
	truncated := binarySTL([][4]math3d.Vec3{{}})
	binary.LittleEndian.PutUint32(truncated[80:], 5)

	tests := []struct {
		name string
		data []byte
		is   error
	}{
		{"empty", nil, ErrNotSTL},
		{"garbage", []byte("hello world"), ErrNotSTL},
		{"truncated", truncated, nil},
		{"bad vertex", []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex a b c\n"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSTLLoader(Options{}).Load(tt.data, "bad.stl")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestMeshSTLBytesRoundTrip(t *testing.T) {
	src := stlMesh(t, NewSTLLoader(Options{}), []byte(asciiSquare))
	m := stlMesh(t, NewSTLLoader(Options{}), MeshSTLBytes(src))
	if m.TriangleCount() != 2 || m.Size() != math3d.V3(1, 1, 0) {
		t.Errorf("round trip = %d tris, size %v", m.TriangleCount(), m.Size())
	}
}
