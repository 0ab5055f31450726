package render

import (
	"math"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

// Camera is a perspective camera. FOV is the vertical field of view in
// degrees.
type Camera struct {
	Position math3d.Vec3
	Target   math3d.Vec3
	Up       math3d.Vec3
	FOV      float64
	Aspect   float64
	Near     float64
	Far      float64
}

// NewCamera returns a camera on +Z looking at the origin.
func NewCamera(aspect float64) *Camera {
	return &Camera{
		Position: math3d.V3(0, 0, 5),
		Up:       math3d.V3(0, 1, 0),
		FOV:      45,
		Aspect:   aspect,
		Near:     0.01,
		Far:      1000,
	}
}

// View returns the world-to-camera matrix.
func (c *Camera) View() math3d.Mat4 {
	up := c.Up
	if up.LenSq() == 0 {
		up = math3d.V3(0, 1, 0)
	}
	// LookAt degenerates when looking straight along up.
	if c.Target.Sub(c.Position).Normalize().Cross(up.Normalize()).LenSq() < 1e-12 {
		up = math3d.V3(0, 0, -1)
	}
	return math3d.LookAt(c.Position, c.Target, up)
}

// Projection returns the perspective matrix.
func (c *Camera) Projection() math3d.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return math3d.Perspective(c.FOV*math.Pi/180, aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() math3d.Mat4 {
	return c.Projection().Mul(c.View())
}

// Forward returns the unit view direction.
func (c *Camera) Forward() math3d.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}
