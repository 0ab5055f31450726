package render

import (
	"image"

	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
)

func hasVertexColors(m *models.Mesh) bool {
	for _, v := range m.Vertices {
		if v.Color != [3]float64{} {
			return true
		}
	}
	return false
}

func materialColor(mat *models.Material) Color {
	if mat == nil {
		d := models.DefaultMaterial()
		mat = &d
	}
	c := mat.BaseColor
	return FromFloats(c[0], c[1], c[2], c[3])
}

// buildTriangle transforms face i of m to world space. Vertex colours,
// when present, replace the material colour.
func buildTriangle(m *models.Mesh, i int, world math3d.Mat4, base Color, vertexColors bool) Triangle {
	var tri Triangle
	for k, idx := range m.Faces[i].V {
		v := m.Vertices[idx]
		c := base
		if vertexColors {
			c = FromFloats(v.Color[0], v.Color[1], v.Color[2], float64(base.A)/255)
		}
		tri.V[k] = Vertex{
			Position: world.MulVec3(v.Position),
			Normal:   world.MulVec3Dir(v.Normal).Normalize(),
			UV:       v.UV,
			Color:    c,
		}
	}
	return tri
}

// texture converts and caches a material's base map.
func (r *Renderer) texture(img image.Image) *Texture {
	if img == nil {
		return nil
	}
	if t, ok := r.textures[img]; ok {
		return t
	}
	t := TextureFromImage(img)
	r.textures[img] = t
	return t
}

// DrawMesh draws every face and line of m with the world transform.
func (r *Renderer) DrawMesh(m *models.Mesh, world math3d.Mat4) {
	vc := hasVertexColors(m)
	for i := range m.Faces {
		f := m.Faces[i].V
		if f[0] >= len(m.Vertices) || f[1] >= len(m.Vertices) || f[2] >= len(m.Vertices) {
			continue
		}
		mat := m.MaterialFor(i)
		var (
			tex   *Texture
			unlit bool
		)
		if mat != nil {
			tex = r.texture(mat.BaseMap)
			unlit = mat.Unlit
		}
		r.DrawTriangle(buildTriangle(m, i, world, materialColor(mat), vc), tex, unlit)
	}
	for _, l := range m.Lines {
		if l.A >= len(m.Vertices) || l.B >= len(m.Vertices) {
			continue
		}
		var mat *models.Material
		if l.Material >= 0 && l.Material < len(m.Materials) {
			mat = &m.Materials[l.Material]
		}
		r.DrawLine(world.MulVec3(m.Vertices[l.A].Position), world.MulVec3(m.Vertices[l.B].Position), materialColor(mat))
	}
}

// DrawScene draws the visible nodes under root. Models and helpers are
// drawn before overlays so markers sit on top of the geometry they mark.
func (r *Renderer) DrawScene(root *models.Node) {
	if root == nil {
		return
	}
	for _, overlays := range []bool{false, true} {
		root.Walk(math3d.Identity(), func(n *models.Node, world math3d.Mat4) bool {
			if n.Hidden {
				return false
			}
			if n.Mesh != nil && (n.Tag == models.TagOverlay) == overlays {
				r.DrawMesh(n.Mesh, world)
			}
			return true
		})
	}
}
