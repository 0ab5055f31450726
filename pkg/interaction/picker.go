package interaction

import (
	"math"
	"sync"
	"time"

	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
	"github.com/taigrr/threedviewer/pkg/render"
)

// DefaultPickTTL is how long an intersectable-object list is reused.
const DefaultPickTTL = 500 * time.Millisecond

// Filter selects which nodes a pick may hit.
type Filter int

const (
	// FilterModels hits model geometry only.
	FilterModels Filter = iota
	// FilterOverlays hits markers and labels only.
	FilterOverlays
)

func (f Filter) accepts(n *models.Node) bool {
	switch f {
	case FilterOverlays:
		return n.Tag == models.TagOverlay
	default:
		return n.Tag == models.TagModel
	}
}

// Viewport is the pixel size of the view.
type Viewport struct {
	Width, Height float64
}

// Target is what a pick is cast against. Version identifies the scene;
// a new version never reuses cached objects. Overlays is the overlay
// revision and only keys FilterOverlays picks.
type Target struct {
	Root     *models.Node
	Version  uint64
	Overlays uint64
}

// Hit is the nearest intersection.
type Hit struct {
	Point    math3d.Vec3
	Distance float64
	Node     *models.Node
	Face     int
}

type pickable struct {
	node  *models.Node
	world math3d.Mat4
	box   math3d.Box3
}

type cacheKey struct {
	version  uint64
	filter   Filter
	overlays uint64
}

type cacheEntry struct {
	key      cacheKey
	objects  []pickable
	captured time.Time
}

// Picker casts rays from screen positions into a scene. The flat list of
// intersectable meshes is cached per (scene version, filter) for TTL.
type Picker struct {
	TTL time.Duration
	// MaxDistance limits hits along the ray. Zero means unlimited.
	MaxDistance float64
	Now         func() time.Time

	mu     sync.Mutex
	cache  *cacheEntry
	builds int
}

// NewPicker returns a picker with the default TTL.
func NewPicker() *Picker {
	return &Picker{TTL: DefaultPickTTL, Now: time.Now}
}

// Invalidate drops the cached object list.
func (p *Picker) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = nil
}

// Builds returns how many times the object list was rebuilt.
func (p *Picker) Builds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.builds
}

func (p *Picker) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// objects returns the cached list for key, rebuilding it when the scene
// version or filter differs or the entry is older than TTL.
func (p *Picker) objects(t Target, f Filter) []pickable {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := cacheKey{version: t.Version, filter: f}
	if f == FilterOverlays {
		key.overlays = t.Overlays
	}
	now := p.now()
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultPickTTL
	}
	if c := p.cache; c != nil && c.key == key && now.Sub(c.captured) < ttl {
		return c.objects
	}
	p.cache = &cacheEntry{key: key, objects: collect(t.Root, f), captured: now}
	p.builds++
	return p.cache.objects
}

func collect(root *models.Node, f Filter) []pickable {
	var out []pickable
	if root == nil {
		return nil
	}
	root.Walk(math3d.Identity(), func(n *models.Node, world math3d.Mat4) bool {
		if n.Hidden || n.Tag == models.TagHelper {
			return false
		}
		if n.Mesh != nil && len(n.Mesh.Faces) > 0 && f.accepts(n) {
			out = append(out, pickable{node: n, world: world, box: n.Mesh.Bounds().Transform(world)})
		}
		return true
	})
	return out
}

// Pick returns the nearest model point under (x, y).
func (p *Picker) Pick(x, y float64, vp Viewport, cam *render.Camera, t Target) (math3d.Vec3, bool) {
	h, ok := p.PickHit(x, y, vp, cam, t, FilterModels)
	return h.Point, ok
}

// PickHit casts a ray through (x, y) and returns the nearest hit accepted
// by f.
func (p *Picker) PickHit(x, y float64, vp Viewport, cam *render.Camera, t Target, f Filter) (Hit, bool) {
	if vp.Width <= 0 || vp.Height <= 0 || cam == nil {
		return Hit{}, false
	}
	cam.Aspect = vp.Width / vp.Height
	ray := math3d.ScreenToRay(x, y, vp.Width, vp.Height, cam.ViewProjection().Inverse())

	limit := p.MaxDistance
	if limit <= 0 {
		limit = math.Inf(1)
	}
	best := Hit{Distance: limit, Face: -1}
	found := false
	for _, obj := range p.objects(t, f) {
		if d, ok := ray.IntersectBox(obj.box); !ok || d > best.Distance {
			continue
		}
		m := obj.node.Mesh
		for i, face := range m.Faces {
			if face.V[0] >= len(m.Vertices) || face.V[1] >= len(m.Vertices) || face.V[2] >= len(m.Vertices) {
				continue
			}
			a, b, c := m.Triangle(i)
			d, ok := ray.IntersectTriangle(obj.world.MulVec3(a), obj.world.MulVec3(b), obj.world.MulVec3(c))
			if ok && d < best.Distance {
				best = Hit{Point: ray.At(d), Distance: d, Node: obj.node, Face: i}
				found = true
			}
		}
	}
	if !found {
		return Hit{}, false
	}
	return best, true
}
