package interaction

import (
	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
	"github.com/taigrr/threedviewer/pkg/render"
	"github.com/taigrr/threedviewer/pkg/scene"
)

// Engine ties the controls, picker, overlays, tools and helpers to the
// currently attached scene. It is not safe for concurrent use.
type Engine struct {
	Orbit   *Orbit
	Picker  *Picker
	Overlay *Overlay
	Tools   *Tools
	Helpers *Helpers

	// World holds the model root, helpers and overlays, in draw order.
	World     *models.Node
	Wireframe bool

	current *scene.Normalized
	model   *models.Node
	vp      Viewport
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	FPS     int
	Overlay OverlayConfig
	Picker  *Picker
	Units   string
}

// NewEngine returns an engine with no scene attached.
func NewEngine(opts EngineOptions) *Engine {
	p := opts.Picker
	if p == nil {
		p = NewPicker()
	}
	e := &Engine{
		Orbit:   NewOrbit(opts.FPS),
		Picker:  p,
		Overlay: NewOverlay(opts.Overlay),
		Helpers: NewHelpers(),
		World:   models.NewNode("world", models.TagHelper),
		vp:      Viewport{Width: 1, Height: 1},
	}
	e.Tools = NewTools(e.Overlay)
	e.Tools.Units = opts.Units
	e.World.Add(e.Helpers.Root, e.Overlay.Root)
	return e
}

// Attach replaces the current scene with n and returns the one it
// replaced. Tool state and overlays are dropped, the pick cache is
// invalidated and the camera is fitted to the new scene.
func (e *Engine) Attach(n *scene.Normalized) *scene.Normalized {
	prev := e.current
	if e.model != nil {
		e.World.Remove(e.model)
		e.model = nil
	}
	e.current = n
	e.Picker.Invalidate()
	e.Tools.Reset()
	if n == nil {
		return prev
	}

	e.model = n.Root
	e.World.Children = append([]*models.Node{n.Root}, e.World.Children...)
	e.Overlay.SetScale(n.ComputedScale)
	e.Helpers.Fit(n.Bounds)
	e.Orbit.FOV = n.FOV
	e.Orbit.Fit(n.CameraTarget, n.CameraDistance)
	e.Orbit.Reset()
	return prev
}

// Scene returns the attached scene, or nil.
func (e *Engine) Scene() *scene.Normalized { return e.current }

// SetViewport records the view size in pixels.
func (e *Engine) SetViewport(vp Viewport) {
	if vp.Width > 0 && vp.Height > 0 {
		e.vp = vp
		e.Orbit.SetViewport(vp.Height)
	}
}

// Viewport returns the view size in pixels.
func (e *Engine) Viewport() Viewport { return e.vp }

// Camera builds a render camera from the current orbit pose.
func (e *Engine) Camera() *render.Camera {
	cam := render.NewCamera(e.vp.Width / e.vp.Height)
	cam.Position, cam.Target, cam.Up = e.Orbit.Pose()
	cam.FOV = e.Orbit.FOV
	if n := e.current; n != nil {
		// Clip planes follow the live distance so zooming never clips.
		ratio := e.Orbit.Distance / n.CameraDistance
		cam.Near = n.Near() * ratio
		cam.Far = n.Far() * max(ratio, 1)
	}
	return cam
}

// Pick casts a ray through the pixel (x, y) against the model and feeds
// a hit to the active tool.
func (e *Engine) Pick(x, y float64) (math3d.Vec3, bool) {
	if e.current == nil {
		return math3d.Vec3{}, false
	}
	p, ok := e.Picker.Pick(x, y, e.vp, e.Camera(), Target{Root: e.current.Root, Version: e.current.Version})
	if ok {
		e.Tools.HandlePick(p)
	}
	return p, ok
}

// PickOverlay returns the marker or label under (x, y).
func (e *Engine) PickOverlay(x, y float64) (Hit, bool) {
	version := uint64(0)
	if e.current != nil {
		version = e.current.Version
	}
	t := Target{Root: e.Overlay.Root, Version: version, Overlays: e.Overlay.Revision()}
	return e.Picker.PickHit(x, y, e.vp, e.Camera(), t, FilterOverlays)
}

// Frame advances the controls by one tick and turns labels to the camera.
func (e *Engine) Frame() {
	e.Orbit.Update()
	eye, _, up := e.Orbit.Pose()
	e.Overlay.Billboard(eye, up)
}

// Render draws the world into fb.
func (e *Engine) Render(fb *render.Framebuffer) {
	e.SetViewport(Viewport{Width: float64(fb.Width), Height: float64(fb.Height)})
	eye, _, up := e.Orbit.Pose()
	e.Overlay.Billboard(eye, up)
	r := render.NewRenderer(fb, e.Camera())
	r.Wireframe = e.Wireframe
	r.Begin()
	r.DrawScene(e.World)
}
