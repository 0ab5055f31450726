package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // texture codecs
	_ "image/png"
	"path"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

const (
	extDraco  = "KHR_draco_mesh_compression"
	extBasisu = "KHR_texture_basisu"
)

// ErrMissingCapability is returned when a file requires a sub-decoder that
// is not available.
var ErrMissingCapability = errors.New("required capability not available")

// GLTFLoader decodes glTF and GLB payloads. External buffers are mandatory
// and fail the load when missing; external images are optional.
type GLTFLoader struct {
	Options
}

// NewGLTFLoader creates a loader with smooth normals enabled.
func NewGLTFLoader(opts Options) *GLTFLoader {
	opts.SmoothNormals = true
	return &GLTFLoader{Options: opts}
}

type gltfBuild struct {
	*GLTFLoader
	doc       *gltf.Document
	scene     *Scene
	materials []Material
	meshes    map[int]*Mesh
	images    map[int]image.Image
	visiting  map[int]bool
	warned    map[string]bool
}

// Load decodes data. name is used for the scene and error messages.
func (l *GLTFLoader) Load(data []byte, name string) (*Scene, error) {
	doc := new(gltf.Document)
	dec := gltf.NewDecoderFS(bytes.NewReader(data), SiblingFS(l.Siblings))
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}

	for _, ext := range doc.ExtensionsRequired {
		if ext == extDraco && l.Capabilities.Draco == nil {
			return nil, fmt.Errorf("%s: %w", ext, ErrMissingCapability)
		}
	}

	b := &gltfBuild{
		GLTFLoader: l,
		doc:        doc,
		scene:      NewScene(path.Base(name)),
		meshes:     make(map[int]*Mesh),
		images:     make(map[int]image.Image),
		visiting:   make(map[int]bool),
		warned:     make(map[string]bool),
	}
	b.materials = b.extractMaterials()

	for _, idx := range b.rootNodes() {
		child, err := b.node(idx)
		if err != nil {
			return nil, err
		}
		b.scene.Root.Add(child)
	}
	return b.scene, nil
}

func (b *gltfBuild) warnOnce(msg string) {
	if b.warned[msg] {
		return
	}
	b.warned[msg] = true
	b.scene.Warn(msg)
}

// rootNodes returns the nodes of the default scene, or every parentless
// node when the file declares no scenes.
func (b *gltfBuild) rootNodes() []int {
	doc := b.doc
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			idx = int(*doc.Scene)
		}
		out := make([]int, 0, len(doc.Scenes[idx].Nodes))
		for _, n := range doc.Scenes[idx].Nodes {
			out = append(out, int(n))
		}
		return out
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[int(c)] = true
		}
	}
	var out []int
	for i := range doc.Nodes {
		if !child[i] {
			out = append(out, i)
		}
	}
	return out
}

func (b *gltfBuild) node(idx int) (*Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node %d out of range", idx)
	}
	if b.visiting[idx] {
		return nil, fmt.Errorf("node %d: cycle in node hierarchy", idx)
	}
	b.visiting[idx] = true
	defer delete(b.visiting, idx)

	src := b.doc.Nodes[idx]
	n := NewNode(src.Name, TagModel)
	n.Transform = localTransform(src)

	if src.Mesh != nil {
		m, err := b.mesh(int(*src.Mesh))
		if err != nil {
			return nil, err
		}
		n.Mesh = m
	}
	for _, c := range src.Children {
		child, err := b.node(int(c))
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

func localTransform(n *gltf.Node) math3d.Mat4 {
	identity := [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	if n.Matrix != identity && n.Matrix != [16]float64{} {
		return math3d.Mat4FromSlice(n.Matrix[:])
	}

	m := math3d.Identity()
	if t := n.Translation; t != [3]float64{} {
		m = m.Mul(math3d.Translate(math3d.V3(t[0], t[1], t[2])))
	}
	if r := n.Rotation; r != [4]float64{0, 0, 0, 1} && r != [4]float64{} {
		m = m.Mul(math3d.QuatToMat4(r[0], r[1], r[2], r[3]))
	}
	if s := n.Scale; s != [3]float64{1, 1, 1} && s != [3]float64{} {
		m = m.Mul(math3d.Scale(math3d.V3(s[0], s[1], s[2])))
	}
	return m
}

// mesh converts a glTF mesh once; nodes that instance it share the result.
func (b *gltfBuild) mesh(idx int) (*Mesh, error) {
	if m, ok := b.meshes[idx]; ok {
		return m, nil
	}
	if idx < 0 || idx >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh %d out of range", idx)
	}
	src := b.doc.Meshes[idx]
	m := NewMesh(src.Name)
	m.Materials = b.materials

	for pi, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			b.warnOnce(fmt.Sprintf("mesh %q: skipping non-triangle primitives", src.Name))
			continue
		}
		geo, err := b.primitive(prim)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", idx, pi, err)
		}
		if geo == nil {
			continue
		}
		appendPrimitive(m, geo, prim.Material)
	}

	b.finishMesh(m)
	b.meshes[idx] = m
	return m, nil
}

func appendPrimitive(m *Mesh, geo *DecodedPrimitive, material *int) {
	mat := -1
	if material != nil && int(*material) < len(m.Materials) {
		mat = int(*material)
	}
	base := len(m.Vertices)
	for i, p := range geo.Positions {
		v := MeshVertex{Position: p}
		if i < len(geo.Normals) {
			v.Normal = geo.Normals[i].Normalize()
		}
		if i < len(geo.UVs) {
			// glTF puts V=0 at the top of the image.
			v.UV = math3d.V2(geo.UVs[i].X, 1-geo.UVs[i].Y)
		}
		m.Vertices = append(m.Vertices, v)
	}
	for i := 0; i+2 < len(geo.Indices); i += 3 {
		m.Faces = append(m.Faces, Face{
			V:        [3]int{base + int(geo.Indices[i]), base + int(geo.Indices[i+1]), base + int(geo.Indices[i+2])},
			Material: mat,
		})
	}
}

// primitive reads one triangle primitive. It returns nil geometry when the
// primitive is skipped.
func (b *gltfBuild) primitive(prim *gltf.Primitive) (*DecodedPrimitive, error) {
	if raw, ok := prim.Extensions[extDraco]; ok {
		return b.dracoPrimitive(raw)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	acr, err := b.accessor(int(posIdx))
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(b.doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	geo := &DecodedPrimitive{Positions: make([]math3d.Vec3, len(positions))}
	for i, p := range positions {
		geo.Positions[i] = math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acr, err := b.accessor(int(idx))
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(b.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
		geo.Normals = make([]math3d.Vec3, len(normals))
		for i, n := range normals {
			geo.Normals[i] = math3d.V3(float64(n[0]), float64(n[1]), float64(n[2]))
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acr, err := b.accessor(int(idx))
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(b.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
		geo.UVs = make([]math3d.Vec2, len(uvs))
		for i, uv := range uvs {
			geo.UVs[i] = math3d.V2(float64(uv[0]), float64(uv[1]))
		}
	}

	if prim.Indices != nil {
		acr, err := b.accessor(int(*prim.Indices))
		if err != nil {
			return nil, err
		}
		geo.Indices, err = modeler.ReadIndices(b.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		geo.Indices = make([]uint32, len(positions))
		for i := range geo.Indices {
			geo.Indices[i] = uint32(i)
		}
	}

	for _, ix := range geo.Indices {
		if int(ix) >= len(geo.Positions) {
			return nil, fmt.Errorf("index %d out of range (%d vertices)", ix, len(geo.Positions))
		}
	}
	return geo, nil
}

func (b *gltfBuild) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return b.doc.Accessors[idx], nil
}

type dracoExtension struct {
	BufferView uint32            `json:"bufferView"`
	Attributes map[string]uint32 `json:"attributes"`
}

func (b *gltfBuild) dracoPrimitive(raw any) (*DecodedPrimitive, error) {
	if b.Capabilities.Draco == nil {
		b.warnOnce("draco-compressed primitives skipped: decompressor not available")
		return nil, nil
	}
	var ext dracoExtension
	if err := decodeExtension(raw, &ext); err != nil {
		return nil, fmt.Errorf("%s: %w", extDraco, err)
	}
	data, err := b.bufferView(int(ext.BufferView))
	if err != nil {
		return nil, err
	}
	geo, err := b.Capabilities.Draco.Decompress(DracoPrimitive{Data: data, Attributes: ext.Attributes})
	if err != nil {
		return nil, fmt.Errorf("draco decompress: %w", err)
	}
	return geo, nil
}

// decodeExtension converts an unregistered extension value into v.
func decodeExtension(raw any, v any) error {
	var data []byte
	switch r := raw.(type) {
	case json.RawMessage:
		data = r
	case []byte:
		data = r
	default:
		var err error
		if data, err = json.Marshal(r); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, v)
}

func (b *gltfBuild) bufferView(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(b.doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", idx)
	}
	bv := b.doc.BufferViews[idx]
	if int(bv.Buffer) >= len(b.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	buf := b.doc.Buffers[bv.Buffer].Data
	start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
	if end > len(buf) {
		return nil, fmt.Errorf("buffer view %d exceeds buffer length", idx)
	}
	return buf[start:end], nil
}

func (b *gltfBuild) extractMaterials() []Material {
	out := make([]Material, len(b.doc.Materials))
	for i, src := range b.doc.Materials {
		m := Material{Name: src.Name, BaseColor: [4]float64{1, 1, 1, 1}, Roughness: 1}
		if pbr := src.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				f := pbr.BaseColorFactor
				m.BaseColor = [4]float64{float64(f[0]), float64(f[1]), float64(f[2]), float64(f[3])}
			}
			if pbr.MetallicFactor != nil {
				m.Metallic = float64(*pbr.MetallicFactor)
			}
			if pbr.RoughnessFactor != nil {
				m.Roughness = float64(*pbr.RoughnessFactor)
			}
			if pbr.BaseColorTexture != nil {
				m.BaseMap = b.texture(int(pbr.BaseColorTexture.Index))
			}
		}
		out[i] = m
	}
	return out
}

type basisuExtension struct {
	Source uint32 `json:"source"`
}

// texture resolves a texture's image. Failures are warnings.
func (b *gltfBuild) texture(idx int) image.Image {
	if idx < 0 || idx >= len(b.doc.Textures) {
		b.warnOnce(fmt.Sprintf("texture %d out of range", idx))
		return nil
	}
	tex := b.doc.Textures[idx]
	if raw, ok := tex.Extensions[extBasisu]; ok && b.Capabilities.KTX2 != nil {
		var ext basisuExtension
		if err := decodeExtension(raw, &ext); err == nil {
			return b.image(int(ext.Source))
		}
	}
	if tex.Source == nil {
		if _, ok := tex.Extensions[extBasisu]; ok {
			b.warnOnce("KTX2 textures skipped: transcoder not available")
		}
		return nil
	}
	return b.image(int(*tex.Source))
}

func (b *gltfBuild) image(idx int) image.Image {
	if img, ok := b.images[idx]; ok {
		return img
	}
	img := b.loadImage(idx)
	b.images[idx] = img
	return img
}

func (b *gltfBuild) loadImage(idx int) image.Image {
	if idx < 0 || idx >= len(b.doc.Images) {
		b.warnOnce(fmt.Sprintf("image %d out of range", idx))
		return nil
	}
	src := b.doc.Images[idx]
	label := src.Name
	if label == "" {
		label = src.URI
	}
	if label == "" || strings.HasPrefix(label, "data:") {
		label = fmt.Sprintf("image %d", idx)
	}

	var data []byte
	var err error
	switch {
	case src.BufferView != nil:
		data, err = b.bufferView(int(*src.BufferView))
	case src.IsEmbeddedResource():
		data, err = src.MarshalData()
	case src.URI != "":
		data, err = ReadSibling(b.Siblings, src.URI)
		if IsNotFound(err) {
			b.warnOnce(fmt.Sprintf("texture %s not found", src.URI))
			return nil
		}
	default:
		return nil
	}
	if err != nil {
		b.warnOnce(fmt.Sprintf("texture %s: %v", label, err))
		return nil
	}

	img, err := decodeImage(data, src.MimeType, src.URI, b.Capabilities.KTX2)
	if err != nil {
		b.warnOnce(fmt.Sprintf("texture %s: %v", label, err))
		return nil
	}
	return img
}

var ktx2Magic = []byte{0xAB, 'K', 'T', 'X', ' ', '2', '0', 0xBB}

// decodeImage decodes PNG, JPEG, WebP and BMP directly and hands KTX2
// containers to the transcoder.
func decodeImage(data []byte, mimeType, name string, ktx2 TextureTranscoder) (image.Image, error) {
	isKTX2 := mimeType == "image/ktx2" || strings.EqualFold(path.Ext(name), ".ktx2") || bytes.HasPrefix(data, ktx2Magic)
	if isKTX2 {
		if ktx2 == nil {
			return nil, fmt.Errorf("ktx2 transcoder not available")
		}
		return ktx2.Transcode(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
