// Package viewer combines the loading pipeline and the interaction engine
// behind one object. Loads run in the background; their outcome is
// reported through Subscribe.
package viewer

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/threedviewer/pkg/decoders"
	"github.com/taigrr/threedviewer/pkg/interaction"
	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/pipeline"
	"github.com/taigrr/threedviewer/pkg/render"
	"github.com/taigrr/threedviewer/pkg/scene"
)

// Options configures a Viewer. Zero values take defaults.
type Options struct {
	Logger *zap.Logger
	Loader *decoders.Loader

	Normalize        scene.Config
	Overlay          interaction.OverlayConfig
	MaxBytes         int64
	ProgressInterval time.Duration
	PickTTL          time.Duration
	MaxPickDistance  float64
	FPS              int
	Units            string

	Width, Height int
	Background    string
	Grid, Axes    bool
	Wireframe     bool
}

// Toggles is the display state bound by a UI.
type Toggles struct {
	Grid       bool   `json:"grid"`
	Axes       bool   `json:"axes"`
	Wireframe  bool   `json:"wireframe"`
	Controls   bool   `json:"controls"`
	Background string `json:"background"`
}

// CameraPose is the current camera.
type CameraPose struct {
	Position math3d.Vec3 `json:"position"`
	Target   math3d.Vec3 `json:"target"`
	Up       math3d.Vec3 `json:"up"`
	FOV      float64     `json:"fov"`
	Distance float64     `json:"distance"`
}

// Viewer is safe for concurrent use.
type Viewer struct {
	logger   *zap.Logger
	pipeline *pipeline.Pipeline

	mu         sync.Mutex
	engine     *interaction.Engine
	width      int
	height     int
	bg         render.Color
	bgName     string
	attachedID uint64
}

// New builds a viewer with no model loaded.
func New(opts Options) (*Viewer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := opts.Loader
	if loader == nil {
		loader = decoders.Shared()
	}

	picker := interaction.NewPicker()
	if opts.PickTTL > 0 {
		picker.TTL = opts.PickTTL
	}
	picker.MaxDistance = opts.MaxPickDistance

	v := &Viewer{
		logger: logger,
		engine: interaction.NewEngine(interaction.EngineOptions{
			FPS:     opts.FPS,
			Overlay: opts.Overlay,
			Picker:  picker,
			Units:   opts.Units,
		}),
		width:  opts.Width,
		height: opts.Height,
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		v.width, v.height = 800, 600
	}
	bg := opts.Background
	if bg == "" {
		bg = ThemeDark
	}
	if err := v.SetBackground(bg); err != nil {
		return nil, err
	}
	v.engine.Helpers.ShowGrid(opts.Grid)
	v.engine.Helpers.ShowAxes(opts.Axes)
	v.engine.Wireframe = opts.Wireframe
	v.engine.SetViewport(interaction.Viewport{Width: float64(v.width), Height: float64(v.height)})

	v.pipeline = pipeline.New(pipeline.Options{
		Loader:           loader,
		Normalizer:       scene.NewNormalizer(opts.Normalize, logger.Named("scene")),
		Logger:           logger.Named("pipeline"),
		MaxBytes:         opts.MaxBytes,
		ProgressInterval: opts.ProgressInterval,
		Attach:           v.attach,
	})
	v.pipeline.Subscribe(v.onEvent)
	return v, nil
}

// attach publishes a finished scene. The old scene is released after the
// new one is in place.
func (v *Viewer) attach(s *pipeline.Session, n *scene.Normalized) {
	v.mu.Lock()
	defer v.mu.Unlock()
	prev := v.engine.Attach(n)
	v.attachedID = s.ID
	release(prev)
	v.logger.Debug("scene attached",
		zap.Uint64("session", s.ID),
		zap.Uint64("version", n.Version),
		zap.String("name", n.Name))
}

// onEvent drops the current scene when a newer load fails, so the view
// never shows a model other than the one last requested.
func (v *Viewer) onEvent(ev pipeline.Event) {
	if ev.Type != pipeline.EventError {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine.Scene() == nil || v.attachedID >= ev.SessionID {
		return
	}
	release(v.engine.Attach(nil))
	v.attachedID = ev.SessionID
}

func release(n *scene.Normalized) {
	if n == nil || n.Root == nil {
		return
	}
	n.Root.Children = nil
	n.Root.Mesh = nil
	n.Root = nil
}

// Subscribe registers fn for lifecycle events.
func (v *Viewer) Subscribe(fn func(pipeline.Event)) (unsubscribe func()) {
	return v.pipeline.Subscribe(fn)
}

// Load starts loading req, cancelling any active load, and returns the
// new session's id. Completion is reported through Subscribe.
func (v *Viewer) Load(req pipeline.LoadRequest) uint64 {
	return v.pipeline.StartLoad(req).ID
}

// LoadSession is Load returning the session itself.
func (v *Viewer) LoadSession(req pipeline.LoadRequest) *pipeline.Session {
	return v.pipeline.StartLoad(req)
}

// CancelLoad aborts the active load, if any.
func (v *Viewer) CancelLoad() {
	v.pipeline.CancelActive()
}

// Loading returns the active session, or nil.
func (v *Viewer) Loading() *pipeline.Session {
	return v.pipeline.Active()
}

// Scene returns the attached scene, or nil.
func (v *Viewer) Scene() *scene.Normalized {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Scene()
}

// ResetView restores the fitted camera pose and default angles.
func (v *Viewer) ResetView() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Orbit.Reset()
}

// FitToView re-frames the scene from the current viewing angle.
func (v *Viewer) FitToView() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n := v.engine.Scene(); n != nil {
		v.engine.Orbit.Fit(n.CameraTarget, n.CameraDistance)
		return
	}
	v.engine.Orbit.Fit(math3d.Zero3(), 5)
}

// ToggleGrid flips grid visibility and returns the new state.
func (v *Viewer) ToggleGrid() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Helpers.ShowGrid(v.engine.Helpers.Grid.Hidden)
}

// ToggleAxes flips axes visibility and returns the new state.
func (v *Viewer) ToggleAxes() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Helpers.ShowAxes(v.engine.Helpers.Axes.Hidden)
}

// ToggleWireframe flips wireframe rendering and returns the new state.
func (v *Viewer) ToggleWireframe() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Wireframe = !v.engine.Wireframe
	return v.engine.Wireframe
}

// SetControlsEnabled turns camera input on or off.
func (v *Viewer) SetControlsEnabled(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Orbit.Enabled = on
}

// SetBackground accepts a hex colour or one of the light, dark and
// transparent theme tokens.
func (v *Viewer) SetBackground(s string) error {
	c, err := ParseBackground(s)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bg, v.bgName = c, s
	return nil
}

// Resize sets the view size in pixels.
func (v *Viewer) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid size %dx%d", w, h)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.width, v.height = w, h
	v.engine.SetViewport(interaction.Viewport{Width: float64(w), Height: float64(h)})
	return nil
}

// TakeScreenshot renders the current view and returns it as PNG.
func (v *Viewer) TakeScreenshot() ([]byte, error) {
	v.mu.Lock()
	fb := render.NewFramebuffer(v.width, v.height)
	fb.Clear(v.bg)
	v.engine.Render(fb)
	v.mu.Unlock()

	var buf bytes.Buffer
	if err := fb.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// ToggleTool activates tool, or turns it off when already active, and
// returns the active tool.
func (v *Viewer) ToggleTool(tool interaction.Tool) interaction.Tool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Tools.Toggle(tool)
}

// SetAnnotationText sets the text of the next annotation.
func (v *Viewer) SetAnnotationText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Tools.NextText = text
}

// Pick casts a ray through pixel (x, y). A hit is also fed to the active
// tool.
func (v *Viewer) Pick(x, y float64) (math3d.Vec3, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Pick(x, y)
}

// Frame advances camera inertia and turns labels to face the camera.
func (v *Viewer) Frame() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Frame()
}

// PointerDown, PointerMove, PointerUp and Wheel forward mouse input to
// the orbit controls.
func (v *Viewer) PointerDown(b interaction.Button, x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Orbit.PointerDown(b, x, y)
}

func (v *Viewer) PointerMove(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Orbit.PointerMove(x, y)
}

func (v *Viewer) PointerUp() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Orbit.PointerUp()
}

func (v *Viewer) Wheel(delta float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Orbit.Wheel(delta)
}

// Touch forwards a touch gesture. An empty points slice ends it.
func (v *Viewer) Touch(start bool, points []math3d.Vec2) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case len(points) == 0:
		v.engine.Orbit.TouchEnd()
	case start:
		v.engine.Orbit.TouchStart(points)
	default:
		v.engine.Orbit.TouchMove(points)
	}
}

// CameraPose returns the current camera.
func (v *Viewer) CameraPose() CameraPose {
	v.mu.Lock()
	defer v.mu.Unlock()
	pos, target, up := v.engine.Orbit.Pose()
	return CameraPose{Position: pos, Target: target, Up: up, FOV: v.engine.Orbit.FOV, Distance: v.engine.Orbit.Distance}
}

// ActiveTool returns the active tool and its phase.
func (v *Viewer) ActiveTool() (interaction.Tool, interaction.Phase) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Tools.Active(), v.engine.Tools.Phase()
}

// Toggles returns the display state.
func (v *Viewer) Toggles() Toggles {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Toggles{
		Grid:       !v.engine.Helpers.Grid.Hidden,
		Axes:       !v.engine.Helpers.Axes.Hidden,
		Wireframe:  v.engine.Wireframe,
		Controls:   v.engine.Orbit.Enabled,
		Background: v.bgName,
	}
}

// Annotations returns the committed annotations.
func (v *Viewer) Annotations() []interaction.Annotation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Tools.Annotations()
}

// Measurements returns the committed measurements.
func (v *Viewer) Measurements() []interaction.Measurement {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Tools.Measurements()
}

// Close cancels any active load.
func (v *Viewer) Close() {
	v.pipeline.CancelActive()
	v.mu.Lock()
	defer v.mu.Unlock()
	release(v.engine.Attach(nil))
}
