package math3d

import "math"

// Ray is a half-line with a normalized direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// ScreenToRay converts pixel coordinates to a world-space ray.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float64, invViewProj Mat4) Ray {
	ndcX := 2.0*screenX/viewportW - 1.0
	ndcY := 1.0 - 2.0*screenY/viewportH // screen Y grows downward

	near := invViewProj.MulVec4(V4(ndcX, ndcY, -1, 1)).PerspectiveDivide()
	far := invViewProj.MulVec4(V4(ndcX, ndcY, 1, 1)).PerspectiveDivide()

	return Ray{Origin: near, Direction: far.Sub(near).Normalize()}
}

// IntersectBox tests the ray against an axis-aligned box using the slab method.
// Returns the entry distance, which is 0 when the origin is inside.
func (r Ray) IntersectBox(b Box3) (float64, bool) {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)

	origin := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float64{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	for i := range 3 {
		if dir[i] == 0 {
			if origin[i] < lo[i] || origin[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t1 := (lo[i] - origin[i]) / dir[i]
		t2 := (hi[i] - origin[i]) / dir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	return max(tmin, 0), true
}

// IntersectTriangle runs the Möller–Trumbore test against triangle (a, b, c).
// Both windings hit; returns the distance along the ray.
func (r Ray) IntersectTriangle(a, b, c Vec3) (float64, bool) {
	const epsilon = 1e-12

	edge1 := b.Sub(a)
	edge2 := c.Sub(a)
	p := r.Direction.Cross(edge2)
	det := edge1.Dot(p)
	if math.Abs(det) < epsilon {
		return 0, false
	}
	inv := 1.0 / det

	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := edge2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}
