package render

import "github.com/taigrr/threedviewer/pkg/math3d"

func boxCorners(b math3d.Box3) [8]math3d.Vec3 {
	lo, hi := b.Min, b.Max
	return [8]math3d.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
	}
}

var boxEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// DrawBox outlines b.
func (r *Renderer) DrawBox(b math3d.Box3, c Color) {
	if b.IsEmpty() {
		return
	}
	p := boxCorners(b)
	for _, e := range boxEdges {
		r.DrawLine(p[e[0]], p[e[1]], c)
	}
}
