package math3d

import "math"

// Vec2 is a texture coordinate or a pointer position in pixels.
type Vec2 struct {
	X, Y float64
}

func V2(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (a Vec2) Add(b Vec2) Vec2 { return V2(a.X+b.X, a.Y+b.Y) }

func (a Vec2) Sub(b Vec2) Vec2 { return V2(a.X-b.X, a.Y-b.Y) }

func (a Vec2) Scale(s float64) Vec2 { return V2(a.X*s, a.Y*s) }

func (a Vec2) Len() float64 { return math.Hypot(a.X, a.Y) }

// Lerp moves t of the way from a to b; t=0.5 is the midpoint of a pinch.
func (a Vec2) Lerp(b Vec2, t float64) Vec2 { return a.Add(b.Sub(a).Scale(t)) }

// Distance is the gap between two touch points.
func (a Vec2) Distance(b Vec2) float64 { return b.Sub(a).Len() }
