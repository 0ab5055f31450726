package models

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

// OBJLoader loads Wavefront OBJ files. Material libraries and their
// textures are optional siblings: when missing, a warning is recorded and
// the faces fall back to the default material.
type OBJLoader struct {
	Options
}

// NewOBJLoader creates a loader with flat normals.
func NewOBJLoader(opts Options) *OBJLoader {
	return &OBJLoader{Options: opts}
}

type objVertexKey struct {
	pos, uv, normal int
}

// Load parses data. name becomes the scene and default mesh name.
func (l *OBJLoader) Load(data []byte, name string) (*Scene, error) {
	scene := NewScene(path.Base(name))
	mesh := NewMesh(path.Base(name))

	var (
		positions []math3d.Vec3
		colors    [][3]float64
		normals   []math3d.Vec3
		uvs       []math3d.Vec2
		library   = map[string]Material{}
		matIndex  = map[string]int{}
		current   = -1
		seen      = make(map[objVertexKey]int)
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "v":
			p, err := parseVec3(fields, lineNum, "vertex")
			if err != nil {
				return nil, err
			}
			positions = append(positions, p)
			// Some exporters append r g b after the position.
			var c [3]float64
			if len(fields) >= 7 {
				for i := range 3 {
					c[i], _ = strconv.ParseFloat(fields[4+i], 64)
				}
			}
			colors = append(colors, c)

		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: texture coordinate needs u v", lineNum)
			}
			u, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid u: %w", lineNum, err)
			}
			v, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid v: %w", lineNum, err)
			}
			uvs = append(uvs, math3d.V2(u, v))

		case "vn":
			n, err := parseVec3(fields, lineNum, "normal")
			if err != nil {
				return nil, err
			}
			normals = append(normals, n.Normalize())

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", lineNum)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, field := range fields[1:] {
				pi, ti, ni, err := parseFaceVertex(field)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNum, err)
				}
				pi = resolveIndex(pi, len(positions))
				ti = resolveIndex(ti, len(uvs))
				ni = resolveIndex(ni, len(normals))
				if pi < 0 || pi >= len(positions) {
					return nil, fmt.Errorf("line %d: position index out of range", lineNum)
				}

				key := objVertexKey{pi, ti, ni}
				vi, ok := seen[key]
				if !ok {
					v := MeshVertex{Position: positions[pi], Color: colors[pi]}
					if ti >= 0 && ti < len(uvs) {
						v.UV = uvs[ti]
					}
					if ni >= 0 && ni < len(normals) {
						v.Normal = normals[ni]
					}
					vi = len(mesh.Vertices)
					mesh.Vertices = append(mesh.Vertices, v)
					seen[key] = vi
				}
				corners = append(corners, vi)
			}
			// Fan triangulation; assumes convex polygons.
			for i := 1; i < len(corners)-1; i++ {
				mesh.Faces = append(mesh.Faces, Face{
					V:        [3]int{corners[0], corners[i], corners[i+1]},
					Material: current,
				})
			}

		case "o", "g":
			if len(fields) > 1 {
				mesh.Name = strings.Join(fields[1:], " ")
			}

		case "mtllib":
			for _, lib := range fields[1:] {
				l.loadLibrary(scene, lib, library)
			}

		case "usemtl":
			if len(fields) < 2 {
				current = -1
				continue
			}
			mname := strings.Join(fields[1:], " ")
			idx, ok := matIndex[mname]
			if !ok {
				m, found := library[mname]
				if !found {
					m = DefaultMaterial()
					m.Name = mname
				}
				idx = len(mesh.Materials)
				mesh.Materials = append(mesh.Materials, m)
				matIndex[mname] = idx
			}
			current = idx
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}

	l.finishMesh(mesh)
	node := NewNode(mesh.Name, TagModel)
	node.Mesh = mesh
	scene.Root.Add(node)
	return scene, nil
}

// loadLibrary merges a material library into library. Problems are warnings.
func (l *OBJLoader) loadLibrary(scene *Scene, name string, library map[string]Material) {
	data, err := ReadSibling(l.Siblings, name)
	if err != nil {
		if IsNotFound(err) {
			scene.Warn(fmt.Sprintf("material library %s not found", name))
		} else {
			scene.Warn(fmt.Sprintf("material library %s: %v", name, err))
		}
		return
	}
	mats, err := ParseMTL(data)
	if err != nil {
		scene.Warn(fmt.Sprintf("material library %s: %v", name, err))
		return
	}
	dir := path.Dir(name)
	for _, m := range mats {
		if m.texture != "" {
			m.BaseMap = l.loadTexture(scene, path.Join(dir, m.texture))
		}
		library[m.Name] = m.Material
	}
}

func (l *OBJLoader) loadTexture(scene *Scene, name string) image.Image {
	data, err := ReadSibling(l.Siblings, name)
	if err != nil {
		if IsNotFound(err) {
			scene.Warn(fmt.Sprintf("texture %s not found", name))
		} else {
			scene.Warn(fmt.Sprintf("texture %s: %v", name, err))
		}
		return nil
	}
	img, err := decodeImage(data, "", name, l.Capabilities.KTX2)
	if err != nil {
		scene.Warn(fmt.Sprintf("texture %s: %v", name, err))
		return nil
	}
	return img
}

func parseVec3(fields []string, lineNum int, what string) (math3d.Vec3, error) {
	if len(fields) < 4 {
		return math3d.Vec3{}, fmt.Errorf("line %d: %s needs x y z", lineNum, what)
	}
	var xyz [3]float64
	for i := range 3 {
		f, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return math3d.Vec3{}, fmt.Errorf("line %d: invalid %s component: %w", lineNum, what, err)
		}
		xyz[i] = f
	}
	return math3d.V3(xyz[0], xyz[1], xyz[2]), nil
}

// parseFaceVertex parses v, v/vt, v/vt/vn or v//vn. Missing parts are 0.
func parseFaceVertex(s string) (pos, uv, normal int, err error) {
	parts := strings.Split(s, "/")
	if pos, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid vertex index %q", parts[0])
	}
	if len(parts) > 1 && parts[1] != "" {
		if uv, err = strconv.Atoi(parts[1]); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid texture index %q", parts[1])
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if normal, err = strconv.Atoi(parts[2]); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid normal index %q", parts[2])
		}
	}
	return pos, uv, normal, nil
}

// resolveIndex converts a 1-based or negative OBJ index to 0-based.
// Returns -1 for an unspecified index.
func resolveIndex(idx, count int) int {
	switch {
	case idx == 0:
		return -1
	case idx < 0:
		return count + idx
	default:
		return idx - 1
	}
}
