// Package interaction implements camera controls, ray picking, overlay
// objects and the annotation and measurement tools.
package interaction

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

// Axis is one orbit angle with inertia. Velocity decays to zero through a
// critically damped spring.
type Axis struct {
	Position float64
	Velocity float64
	spring   harmonica.Spring
	accel    float64
}

func newAxis(fps int) Axis {
	return Axis{spring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0)}
}

func (a *Axis) update(damping bool) {
	a.Position += a.Velocity
	if damping {
		a.Velocity, a.accel = a.spring.Update(a.Velocity, a.accel, 0)
		if math.Abs(a.Velocity) < 1e-6 {
			a.Velocity, a.accel = 0, 0
		}
	}
}

func (a *Axis) stop() {
	a.Velocity, a.accel = 0, 0
}

// Button is a pointer button.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

const maxPitch = math.Pi/2 - 0.01

// Orbit rotates, pans and zooms a camera around a target.
type Orbit struct {
	Yaw, Pitch Axis
	Target     math3d.Vec3
	Distance   float64
	// FOV is the vertical field of view in degrees, used to scale panning.
	FOV     float64
	Enabled bool
	Damping bool

	// RotateSpeed is radians per dragged pixel.
	RotateSpeed float64
	// ZoomSpeed scales wheel deltas; distance changes by exp(delta*ZoomSpeed).
	ZoomSpeed float64
	// MinDistance and MaxDistance are multiples of the fitted distance.
	MinDistance float64
	MaxDistance float64

	fps         int
	fitTarget   math3d.Vec3
	fitDistance float64

	drag       Button
	dragging   bool
	lastX      float64
	lastY      float64
	touches    []math3d.Vec2
	viewHeight float64
}

// NewOrbit returns enabled, damped controls at distance 5.
func NewOrbit(fps int) *Orbit {
	if fps <= 0 {
		fps = 60
	}
	o := &Orbit{
		FOV:         45,
		Enabled:     true,
		Damping:     true,
		RotateSpeed: 0.005,
		ZoomSpeed:   0.001,
		MinDistance: 0.05,
		MaxDistance: 20,
		fps:         fps,
		viewHeight:  1,
	}
	o.Yaw, o.Pitch = newAxis(fps), newAxis(fps)
	o.Fit(math3d.Zero3(), 5)
	return o
}

// Fit points the camera at target from distance, keeping the angles.
// The fitted framing becomes the zoom reference and the Reset pose.
func (o *Orbit) Fit(target math3d.Vec3, distance float64) {
	if distance <= 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		distance = 5
	}
	o.fitTarget, o.fitDistance = target, distance
	o.Target, o.Distance = target, distance
	o.Yaw.stop()
	o.Pitch.stop()
}

// Reset restores the fitted framing and the default angles.
func (o *Orbit) Reset() {
	o.Yaw, o.Pitch = newAxis(o.fps), newAxis(o.fps)
	o.Target, o.Distance = o.fitTarget, o.fitDistance
	o.dragging = false
	o.touches = nil
}

// SetViewport records the viewport height used for panning.
func (o *Orbit) SetViewport(height float64) {
	if height > 0 {
		o.viewHeight = height
	}
}

// Rotate adds angular velocity from a drag of (dx, dy) pixels.
func (o *Orbit) Rotate(dx, dy float64) {
	if !o.Enabled {
		return
	}
	o.Yaw.Velocity -= dx * o.RotateSpeed
	o.Pitch.Velocity += dy * o.RotateSpeed
	if !o.Damping {
		o.Update()
		o.Yaw.stop()
		o.Pitch.stop()
	}
}

// Zoom scales the distance. Positive deltas move away.
func (o *Orbit) Zoom(delta float64) {
	if !o.Enabled {
		return
	}
	o.Distance *= math.Exp(delta * o.ZoomSpeed)
	o.clampDistance()
}

// ZoomBy multiplies the distance by factor.
func (o *Orbit) ZoomBy(factor float64) {
	if !o.Enabled || factor <= 0 {
		return
	}
	o.Distance *= factor
	o.clampDistance()
}

func (o *Orbit) clampDistance() {
	lo, hi := o.fitDistance*o.MinDistance, o.fitDistance*o.MaxDistance
	o.Distance = math.Max(lo, math.Min(hi, o.Distance))
}

// Pan moves the target in the camera plane by a drag of (dx, dy) pixels,
// so the point under the cursor follows it.
func (o *Orbit) Pan(dx, dy float64) {
	if !o.Enabled {
		return
	}
	pos, target, up := o.Pose()
	forward := target.Sub(pos).Normalize()
	right := forward.Cross(up).Normalize()
	camUp := right.Cross(forward)
	worldPerPixel := 2 * o.Distance * math.Tan(o.FOV*math.Pi/360) / o.viewHeight
	o.Target = o.Target.
		Add(right.Scale(-dx * worldPerPixel)).
		Add(camUp.Scale(dy * worldPerPixel))
}

// Update advances inertia by one frame and applies the limits.
func (o *Orbit) Update() {
	o.Yaw.update(o.Damping)
	o.Pitch.update(o.Damping)
	if o.Pitch.Position > maxPitch {
		o.Pitch.Position = maxPitch
		o.Pitch.stop()
	} else if o.Pitch.Position < -maxPitch {
		o.Pitch.Position = -maxPitch
		o.Pitch.stop()
	}
	o.clampDistance()
}

// Moving reports whether inertia is still turning the camera.
func (o *Orbit) Moving() bool {
	return o.Yaw.Velocity != 0 || o.Pitch.Velocity != 0
}

// Pose returns the camera position, target and up vector.
func (o *Orbit) Pose() (position, target, up math3d.Vec3) {
	yaw, pitch := o.Yaw.Position, o.Pitch.Position
	dir := math3d.V3(
		math.Sin(yaw)*math.Cos(pitch),
		math.Sin(pitch),
		math.Cos(yaw)*math.Cos(pitch),
	)
	return o.Target.Add(dir.Scale(o.Distance)), o.Target, math3d.V3(0, 1, 0)
}

// PointerDown starts a drag. Left rotates, middle and right pan.
func (o *Orbit) PointerDown(b Button, x, y float64) {
	o.drag, o.dragging = b, true
	o.lastX, o.lastY = x, y
	o.Yaw.stop()
	o.Pitch.stop()
}

// PointerMove continues a drag.
func (o *Orbit) PointerMove(x, y float64) {
	if !o.dragging {
		return
	}
	dx, dy := x-o.lastX, y-o.lastY
	o.lastX, o.lastY = x, y
	if o.drag == ButtonLeft {
		o.Rotate(dx, dy)
	} else {
		o.Pan(dx, dy)
	}
}

// PointerUp ends a drag; inertia keeps turning the camera.
func (o *Orbit) PointerUp() {
	o.dragging = false
}

// Wheel zooms by a scroll delta.
func (o *Orbit) Wheel(delta float64) {
	o.Zoom(delta)
}

// TouchStart begins a gesture with the given touch points.
func (o *Orbit) TouchStart(points []math3d.Vec2) {
	o.touches = append(o.touches[:0], points...)
	o.Yaw.stop()
	o.Pitch.stop()
}

// TouchMove handles one-finger rotation and two-finger pinch and pan.
func (o *Orbit) TouchMove(points []math3d.Vec2) {
	prev := o.touches
	defer func() { o.touches = append(o.touches[:0], points...) }()
	if len(prev) != len(points) || len(points) == 0 {
		return
	}
	switch len(points) {
	case 1:
		d := points[0].Sub(prev[0])
		o.Rotate(d.X, d.Y)
	default:
		before := prev[0].Distance(prev[1])
		after := points[0].Distance(points[1])
		if before > 0 && after > 0 {
			o.ZoomBy(before / after)
		}
		midPrev := prev[0].Lerp(prev[1], 0.5)
		mid := points[0].Lerp(points[1], 0.5)
		d := mid.Sub(midPrev)
		o.Pan(d.X, d.Y)
	}
}

// TouchEnd finishes the gesture.
func (o *Orbit) TouchEnd() {
	o.touches = o.touches[:0]
}
