package models

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
)

// ErrNotPLY is returned when the payload lacks the ply magic line.
var ErrNotPLY = errors.New("not a PLY file")

// PLYLoader loads ASCII and binary (little and big endian) PLY files.
// Vertex positions, normals, colours and texture coordinates are read;
// faces are fan-triangulated.
type PLYLoader struct {
	Options
}

// NewPLYLoader creates a PLY loader.
func NewPLYLoader(opts Options) *PLYLoader {
	return &PLYLoader{Options: opts}
}

type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLE
	plyBinaryBE
)

type plyProperty struct {
	name      string
	typ       string // scalar type, or list item type
	countType string // non-empty for list properties
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   plyFormat
	elements []plyElement
}

// Load parses data as PLY.
func (l *PLYLoader) Load(data []byte, name string) (*Scene, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	hdr, err := readPLYHeader(r)
	if err != nil {
		return nil, err
	}

	var rd plyValueReader
	if hdr.format == plyASCII {
		rd = &plyASCIIReader{s: bufio.NewScanner(r)}
	} else {
		var order binary.ByteOrder = binary.LittleEndian
		if hdr.format == plyBinaryBE {
			order = binary.BigEndian
		}
		rd = &plyBinaryReader{r: r, order: order}
	}

	mesh := NewMesh(path.Base(name))
	for _, el := range hdr.elements {
		switch el.name {
		case "vertex":
			err = readPLYVertices(rd, el, mesh)
		case "face":
			err = readPLYFaces(rd, el, mesh)
		default:
			err = skipPLYElement(rd, el)
		}
		if err != nil {
			return nil, fmt.Errorf("ply %s: %w", el.name, err)
		}
	}

	l.finishMesh(mesh)
	scene := NewScene(path.Base(name))
	node := NewNode(mesh.Name, TagModel)
	node.Mesh = mesh
	scene.Root.Add(node)
	return scene, nil
}

func readPLYHeader(r *bufio.Reader) (*plyHeader, error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return nil, ErrNotPLY
	}

	hdr := &plyHeader{}
	var cur *plyElement
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("ply header: %w", io.ErrUnexpectedEOF)
		}
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "format":
			if len(f) < 2 {
				return nil, errors.New("ply header: bad format line")
			}
			switch f[1] {
			case "ascii":
				hdr.format = plyASCII
			case "binary_little_endian":
				hdr.format = plyBinaryLE
			case "binary_big_endian":
				hdr.format = plyBinaryBE
			default:
				return nil, fmt.Errorf("ply header: unknown format %q", f[1])
			}
		case "element":
			if len(f) < 3 {
				return nil, errors.New("ply header: bad element line")
			}
			n, err := strconv.Atoi(f[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("ply header: bad element count %q", f[2])
			}
			hdr.elements = append(hdr.elements, plyElement{name: f[1], count: n})
			cur = &hdr.elements[len(hdr.elements)-1]
		case "property":
			if cur == nil {
				return nil, errors.New("ply header: property before element")
			}
			switch {
			case len(f) >= 5 && f[1] == "list":
				cur.props = append(cur.props, plyProperty{name: f[4], countType: f[2], typ: f[3]})
			case len(f) >= 3:
				cur.props = append(cur.props, plyProperty{name: f[2], typ: f[1]})
			default:
				return nil, errors.New("ply header: bad property line")
			}
			if _, ok := plyTypeSize[cur.props[len(cur.props)-1].typ]; !ok {
				return nil, fmt.Errorf("ply header: unknown type %q", cur.props[len(cur.props)-1].typ)
			}
		case "end_header":
			return hdr, nil
		}
	}
}

var plyTypeSize = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4, "double": 8, "float64": 8,
}

// plyValueReader reads one scalar of the given PLY type.
type plyValueReader interface {
	read(typ string) (float64, error)
}

type plyASCIIReader struct {
	s      *bufio.Scanner
	fields []string
}

func (a *plyASCIIReader) read(string) (float64, error) {
	for len(a.fields) == 0 {
		if !a.s.Scan() {
			if err := a.s.Err(); err != nil {
				return 0, err
			}
			return 0, io.ErrUnexpectedEOF
		}
		a.fields = strings.Fields(a.s.Text())
	}
	v, err := strconv.ParseFloat(a.fields[0], 64)
	a.fields = a.fields[1:]
	return v, err
}

type plyBinaryReader struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (b *plyBinaryReader) read(typ string) (float64, error) {
	n := plyTypeSize[typ]
	if _, err := io.ReadFull(b.r, b.buf[:n]); err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	p := b.buf[:n]
	switch typ {
	case "char", "int8":
		return float64(int8(p[0])), nil
	case "uchar", "uint8":
		return float64(p[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(p))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(p)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(p))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(p)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(p))), nil
	default:
		return math.Float64frombits(b.order.Uint64(p)), nil
	}
}

func readPLYVertices(rd plyValueReader, el plyElement, mesh *Mesh) error {
	mesh.Vertices = make([]MeshVertex, 0, el.count)
	for i := 0; i < el.count; i++ {
		var v MeshVertex
		for _, p := range el.props {
			if p.countType != "" {
				if err := skipPLYList(rd, p); err != nil {
					return err
				}
				continue
			}
			x, err := rd.read(p.typ)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", i, err)
			}
			switch p.name {
			case "x":
				v.Position.X = x
			case "y":
				v.Position.Y = x
			case "z":
				v.Position.Z = x
			case "nx":
				v.Normal.X = x
			case "ny":
				v.Normal.Y = x
			case "nz":
				v.Normal.Z = x
			case "s", "u", "texture_u":
				v.UV.X = x
			case "t", "v", "texture_v":
				v.UV.Y = x
			case "red", "diffuse_red":
				v.Color[0] = colorChannel(x, p.typ)
			case "green", "diffuse_green":
				v.Color[1] = colorChannel(x, p.typ)
			case "blue", "diffuse_blue":
				v.Color[2] = colorChannel(x, p.typ)
			}
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}
	return nil
}

func colorChannel(v float64, typ string) float64 {
	if typ == "float" || typ == "float32" || typ == "double" || typ == "float64" {
		return v
	}
	return v / 255
}

func readPLYFaces(rd plyValueReader, el plyElement, mesh *Mesh) error {
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			if p.countType == "" {
				if _, err := rd.read(p.typ); err != nil {
					return fmt.Errorf("face %d: %w", i, err)
				}
				continue
			}
			if p.name != "vertex_indices" && p.name != "vertex_index" {
				if err := skipPLYList(rd, p); err != nil {
					return err
				}
				continue
			}
			n, err := rd.read(p.countType)
			if err != nil {
				return fmt.Errorf("face %d: %w", i, err)
			}
			if n < 0 || n > 1<<16 {
				return fmt.Errorf("face %d: bad corner count %v", i, n)
			}
			idx := make([]int, int(n))
			for k := range idx {
				x, err := rd.read(p.typ)
				if err != nil {
					return fmt.Errorf("face %d: %w", i, err)
				}
				idx[k] = int(x)
				if idx[k] < 0 || idx[k] >= len(mesh.Vertices) {
					return fmt.Errorf("face %d: vertex index %d out of range", i, idx[k])
				}
			}
			for k := 1; k+1 < len(idx); k++ {
				mesh.Faces = append(mesh.Faces, Face{V: [3]int{idx[0], idx[k], idx[k+1]}, Material: -1})
			}
		}
	}
	return nil
}

func skipPLYList(rd plyValueReader, p plyProperty) error {
	n, err := rd.read(p.countType)
	if err != nil {
		return err
	}
	for range int(n) {
		if _, err := rd.read(p.typ); err != nil {
			return err
		}
	}
	return nil
}

func skipPLYElement(rd plyValueReader, el plyElement) error {
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			if p.countType != "" {
				if err := skipPLYList(rd, p); err != nil {
					return err
				}
				continue
			}
			if _, err := rd.read(p.typ); err != nil {
				return err
			}
		}
	}
	return nil
}
