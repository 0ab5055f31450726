package interaction

import (
	"image"
	"image/color"
	"math"

	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
)

// OverlayConfig sizes overlay objects relative to the scene's computed
// scale.
type OverlayConfig struct {
	MarkerFactor float64 `yaml:"marker_factor"`
	LabelFactor  float64 `yaml:"label_factor"`
	// MaxSize caps every overlay dimension in world units.
	MaxSize float64 `yaml:"max_size"`
}

// DefaultOverlayConfig returns the default sizes.
func DefaultOverlayConfig() OverlayConfig {
	return OverlayConfig{MarkerFactor: 1, LabelFactor: 2.5, MaxSize: 2}
}

type label struct {
	anchor        math3d.Vec3
	width, height float64
}

// Overlay owns markers, lines and labels. They live under Root, which is
// tagged as overlay so it never contributes to bounds or model picks.
type Overlay struct {
	Root   *models.Node
	Config OverlayConfig

	scale    float64
	labels   map[*models.Node]label
	revision uint64
}

// NewOverlay returns an empty overlay at scale 1.
func NewOverlay(cfg OverlayConfig) *Overlay {
	d := DefaultOverlayConfig()
	if cfg.MarkerFactor <= 0 {
		cfg.MarkerFactor = d.MarkerFactor
	}
	if cfg.LabelFactor <= 0 {
		cfg.LabelFactor = d.LabelFactor
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = d.MaxSize
	}
	return &Overlay{
		Root:   models.NewNode("overlays", models.TagOverlay),
		Config: cfg,
		scale:  1,
		labels: make(map[*models.Node]label),
	}
}

// SetScale sets the computed scale used for objects added afterwards.
func (o *Overlay) SetScale(s float64) {
	if s > 0 {
		o.scale = s
	}
}

// MarkerSize is the current marker radius.
func (o *Overlay) MarkerSize() float64 {
	return math.Min(o.scale*o.Config.MarkerFactor, o.Config.MaxSize)
}

// LabelHeight is the current label height.
func (o *Overlay) LabelHeight() float64 {
	return math.Min(o.scale*o.Config.LabelFactor, o.Config.MaxSize)
}

// Revision changes whenever an object is added, removed or turned.
func (o *Overlay) Revision() uint64 { return o.revision }

// Len returns the number of overlay objects.
func (o *Overlay) Len() int { return len(o.Root.Children) }

// Clear removes every overlay object.
func (o *Overlay) Clear() {
	o.Root.Children = nil
	clear(o.labels)
	o.revision++
}

// Remove detaches the given objects.
func (o *Overlay) Remove(nodes ...*models.Node) {
	for _, n := range nodes {
		o.Root.Remove(n)
		delete(o.labels, n)
	}
	o.revision++
}

func unlitMaterial(c color.Color) models.Material {
	r, g, b, a := c.RGBA()
	return models.Material{
		Name:      "overlay",
		BaseColor: [4]float64{float64(r) / 0xffff, float64(g) / 0xffff, float64(b) / 0xffff, float64(a) / 0xffff},
		Unlit:     true,
	}
}

// AddMarker places an octahedron at pos.
func (o *Overlay) AddMarker(pos math3d.Vec3, c color.Color) *models.Node {
	r := o.MarkerSize()
	m := models.NewMesh("marker")
	for _, p := range []math3d.Vec3{
		math3d.V3(r, 0, 0), math3d.V3(-r, 0, 0),
		math3d.V3(0, r, 0), math3d.V3(0, -r, 0),
		math3d.V3(0, 0, r), math3d.V3(0, 0, -r),
	} {
		m.Vertices = append(m.Vertices, models.MeshVertex{Position: p, Normal: p.Normalize()})
	}
	for _, f := range [8][3]int{
		{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
		{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
	} {
		m.Faces = append(m.Faces, models.Face{V: f, Material: 0})
	}
	m.Materials = []models.Material{unlitMaterial(c)}
	m.CalculateBounds()

	n := models.NewNode("marker", models.TagOverlay)
	n.Transform = math3d.Translate(pos)
	n.Mesh = m
	o.Root.Add(n)
	o.revision++
	return n
}

// AddLine draws a segment from a to b.
func (o *Overlay) AddLine(a, b math3d.Vec3, c color.Color) *models.Node {
	m := models.NewMesh("line")
	m.Vertices = []models.MeshVertex{{Position: a}, {Position: b}}
	m.Lines = []models.Line{{A: 0, B: 1, Material: 0}}
	m.Materials = []models.Material{unlitMaterial(c)}
	m.CalculateBounds()

	n := models.NewNode("line", models.TagOverlay)
	n.Mesh = m
	o.Root.Add(n)
	o.revision++
	return n
}

// AddLabel places a camera-facing text card centered at pos.
func (o *Overlay) AddLabel(text string, pos math3d.Vec3, fg, bg color.Color) *models.Node {
	img := RenderLabel(text, fg, bg)
	return o.addCard(text, img, pos)
}

func (o *Overlay) addCard(name string, img image.Image, pos math3d.Vec3) *models.Node {
	b := img.Bounds()
	h := o.LabelHeight()
	w := h * float64(b.Dx()) / float64(max(1, b.Dy()))
	if w > o.Config.MaxSize*4 {
		h *= o.Config.MaxSize * 4 / w
		w = o.Config.MaxSize * 4
	}

	// Unit quad in the XY plane facing +Z; Billboard scales and turns it.
	m := models.NewMesh("label")
	m.Vertices = []models.MeshVertex{
		{Position: math3d.V3(-0.5, -0.5, 0), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(0, 0)},
		{Position: math3d.V3(0.5, -0.5, 0), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(1, 0)},
		{Position: math3d.V3(0.5, 0.5, 0), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(1, 1)},
		{Position: math3d.V3(-0.5, 0.5, 0), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(0, 1)},
	}
	m.Faces = []models.Face{{V: [3]int{0, 1, 2}}, {V: [3]int{0, 2, 3}}}
	mat := unlitMaterial(color.White)
	mat.BaseMap = img
	m.Materials = []models.Material{mat}
	m.CalculateBounds()

	n := models.NewNode(name, models.TagOverlay)
	n.Mesh = m
	n.Billboard = true
	n.Transform = math3d.Translate(pos).Mul(math3d.Scale(math3d.V3(w, h, 1)))
	o.Root.Add(n)
	o.labels[n] = label{anchor: pos, width: w, height: h}
	o.revision++
	return n
}

// Billboard turns every label to face a camera at eye with the given up.
func (o *Overlay) Billboard(eye, up math3d.Vec3) {
	for n, l := range o.labels {
		n.Transform = billboard(l.anchor, eye, up).Mul(math3d.Scale(math3d.V3(l.width, l.height, 1)))
	}
	if len(o.labels) > 0 {
		o.revision++
	}
}

// billboard returns a transform placing +Z of the local frame towards eye.
func billboard(pos, eye, up math3d.Vec3) math3d.Mat4 {
	f := eye.Sub(pos).Normalize()
	if f.LenSq() == 0 {
		return math3d.Translate(pos)
	}
	r := up.Cross(f).Normalize()
	if r.LenSq() == 0 {
		r = math3d.V3(1, 0, 0)
	}
	u := f.Cross(r)
	return math3d.Mat4{
		r.X, r.Y, r.Z, 0,
		u.X, u.Y, u.Z, 0,
		f.X, f.Y, f.Z, 0,
		pos.X, pos.Y, pos.Z, 1,
	}
}
