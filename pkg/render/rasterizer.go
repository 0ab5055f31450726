package render

import (
	"math"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

// Vertex is a world-space triangle corner.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Color    Color
}

// Triangle is three world-space vertices.
type Triangle struct {
	V [3]Vertex
}

// Light is a directional light plus ambient term. A zero Direction makes
// the light follow the camera.
type Light struct {
	Direction math3d.Vec3
	Ambient   float64
	Diffuse   float64
}

// DefaultLight is a headlight with some ambient fill.
func DefaultLight() Light {
	return Light{Ambient: 0.3, Diffuse: 0.7}
}

// Renderer draws triangles and lines into a framebuffer.
type Renderer struct {
	FB     *Framebuffer
	Camera *Camera
	Light  Light
	// Wireframe draws triangle edges instead of filling.
	Wireframe bool

	viewProj math3d.Mat4
	toLight  math3d.Vec3
	textures map[any]*Texture
}

// NewRenderer returns a renderer drawing into fb from cam.
func NewRenderer(fb *Framebuffer, cam *Camera) *Renderer {
	return &Renderer{FB: fb, Camera: cam, Light: DefaultLight(), textures: make(map[any]*Texture)}
}

// Begin latches the camera matrices and light for a frame.
func (r *Renderer) Begin() {
	r.Camera.Aspect = float64(r.FB.Width) / float64(max(1, r.FB.Height))
	r.viewProj = r.Camera.ViewProjection()
	dir := r.Light.Direction
	if dir.LenSq() == 0 {
		dir = r.Camera.Forward()
	}
	r.toLight = dir.Negate().Normalize()
}

type screenVertex struct {
	x, y, z float64
	invW    float64
}

// project maps a world point to screen space. ok is false behind the near
// plane.
func (r *Renderer) project(p math3d.Vec3) (screenVertex, bool) {
	clip := r.viewProj.MulVec4(math3d.V4FromV3(p, 1))
	if clip.W <= r.Camera.Near*0.5 {
		return screenVertex{}, false
	}
	inv := 1 / clip.W
	return screenVertex{
		x:    (clip.X*inv + 1) * 0.5 * float64(r.FB.Width),
		y:    (1 - clip.Y*inv) * 0.5 * float64(r.FB.Height),
		z:    clip.Z * inv,
		invW: inv,
	}, true
}

// intensity is the two-sided Lambert term for normal n.
func (r *Renderer) intensity(n math3d.Vec3) float64 {
	if n.LenSq() == 0 {
		return r.Light.Ambient + r.Light.Diffuse
	}
	d := math.Abs(n.Normalize().Dot(r.toLight))
	return r.Light.Ambient + r.Light.Diffuse*d
}

func edge(a, b screenVertex, x, y float64) float64 {
	return (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
}

// DrawTriangle rasterizes tri with Gouraud shading. tex may be nil. Unlit
// triangles ignore the light.
func (r *Renderer) DrawTriangle(tri Triangle, tex *Texture, unlit bool) {
	var sv [3]screenVertex
	for i := range 3 {
		v, ok := r.project(tri.V[i].Position)
		if !ok {
			return
		}
		sv[i] = v
	}
	if r.Wireframe {
		for i := range 3 {
			r.drawSegment(sv[i], sv[(i+1)%3], tri.V[i].Color)
		}
		return
	}

	area := edge(sv[0], sv[1], sv[2].x, sv[2].y)
	if area == 0 || math.IsNaN(area) {
		return
	}

	var light [3]float64
	for i := range 3 {
		if unlit {
			light[i] = 1
		} else {
			light[i] = r.intensity(tri.V[i].Normal)
		}
	}

	minX := max(0, int(math.Floor(min(sv[0].x, sv[1].x, sv[2].x))))
	maxX := min(r.FB.Width-1, int(math.Ceil(max(sv[0].x, sv[1].x, sv[2].x))))
	minY := max(0, int(math.Floor(min(sv[0].y, sv[1].y, sv[2].y))))
	maxY := min(r.FB.Height-1, int(math.Ceil(max(sv[0].y, sv[1].y, sv[2].y))))

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(sv[1], sv[2], px, py) / area
			w1 := edge(sv[2], sv[0], px, py) / area
			w2 := edge(sv[0], sv[1], px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*sv[0].z + w1*sv[1].z + w2*sv[2].z

			// Perspective-correct weights.
			p0, p1, p2 := w0*sv[0].invW, w1*sv[1].invW, w2*sv[2].invW
			sum := p0 + p1 + p2
			p0, p1, p2 = p0/sum, p1/sum, p2/sum

			c := lerp3(tri.V[0].Color, tri.V[1].Color, tri.V[2].Color, p0, p1, p2)
			if tex != nil {
				u := p0*tri.V[0].UV.X + p1*tri.V[1].UV.X + p2*tri.V[2].UV.X
				v := p0*tri.V[0].UV.Y + p1*tri.V[1].UV.Y + p2*tri.V[2].UV.Y
				c = ModulateColor(c, tex.Sample(u, v))
			}
			if c.A < 8 {
				continue
			}
			c = MultiplyColor(c, p0*light[0]+p1*light[1]+p2*light[2])
			r.FB.plot(x, y, z, c)
		}
	}
}

func lerp3(a, b, c Color, wa, wb, wc float64) Color {
	return Color{
		R: clampByte(float64(a.R)*wa + float64(b.R)*wb + float64(c.R)*wc + 0.5),
		G: clampByte(float64(a.G)*wa + float64(b.G)*wb + float64(c.G)*wc + 0.5),
		B: clampByte(float64(a.B)*wa + float64(b.B)*wb + float64(c.B)*wc + 0.5),
		A: clampByte(float64(a.A)*wa + float64(b.A)*wb + float64(c.A)*wc + 0.5),
	}
}

// lineBias pulls lines slightly towards the camera so edges drawn on a
// surface are not hidden by it.
const lineBias = 1e-4

// DrawLine draws a depth-tested segment between world points a and b.
func (r *Renderer) DrawLine(a, b math3d.Vec3, c Color) {
	sa, ok := r.project(a)
	if !ok {
		return
	}
	sb, ok := r.project(b)
	if !ok {
		return
	}
	r.drawSegment(sa, sb, c)
}

func (r *Renderer) drawSegment(a, b screenVertex, c Color) {
	dx, dy := b.x-a.x, b.y-a.y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		r.FB.plot(int(a.x), int(a.y), a.z-lineBias, c)
		return
	}
	// Clip absurd lengths from points very close to the near plane.
	if steps > 4*(r.FB.Width+r.FB.Height) {
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Floor(a.x + dx*t))
		y := int(math.Floor(a.y + dy*t))
		z := a.z + (b.z-a.z)*t
		r.FB.plot(x, y, z-lineBias, c)
	}
}
