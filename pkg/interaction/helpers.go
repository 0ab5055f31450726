package interaction

import (
	"image/color"
	"math"

	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
)

// GridDivisions is the number of cells along each grid side.
const GridDivisions = 10

// Helper colours.
var (
	GridColor  = color.RGBA{R: 0x70, G: 0x70, B: 0x70, A: 0xff}
	AxisXColor = color.RGBA{R: 0xe0, G: 0x30, B: 0x30, A: 0xff}
	AxisYColor = color.RGBA{R: 0x30, G: 0xc0, B: 0x30, A: 0xff}
	AxisZColor = color.RGBA{R: 0x30, G: 0x60, B: 0xe0, A: 0xff}
)

// Helpers holds the grid and axes. Both are tagged as helpers: they are
// drawn but never picked or counted in bounds.
type Helpers struct {
	Root *models.Node
	Grid *models.Node
	Axes *models.Node
}

// NewHelpers returns hidden helpers sized for a unit box.
func NewHelpers() *Helpers {
	h := &Helpers{
		Root: models.NewNode("helpers", models.TagHelper),
		Grid: models.NewNode("grid", models.TagHelper),
		Axes: models.NewNode("axes", models.TagHelper),
	}
	h.Grid.Hidden, h.Axes.Hidden = true, true
	h.Root.Add(h.Grid, h.Axes)
	h.Fit(math3d.Box3{Min: math3d.V3(-0.5, -0.5, -0.5), Max: math3d.V3(0.5, 0.5, 0.5)})
	return h
}

// Fit rebuilds the grid under the floor of bounds and the axes at the
// origin, both sized from the box's longest side.
func (h *Helpers) Fit(bounds math3d.Box3) {
	size := bounds.LongestSide()
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		size = 1
	}
	floor := 0.0
	if !bounds.IsEmpty() {
		floor = bounds.Min.Y
	}
	h.Grid.Mesh = gridMesh(size*2, floor)
	h.Axes.Mesh = axesMesh(size)
}

// ShowGrid sets grid visibility and returns it.
func (h *Helpers) ShowGrid(on bool) bool {
	h.Grid.Hidden = !on
	return on
}

// ShowAxes sets axes visibility and returns it.
func (h *Helpers) ShowAxes(on bool) bool {
	h.Axes.Hidden = !on
	return on
}

func gridMesh(extent, y float64) *models.Mesh {
	m := models.NewMesh("grid")
	m.Materials = []models.Material{unlitMaterial(GridColor)}
	half := extent / 2
	step := extent / GridDivisions
	for i := 0; i <= GridDivisions; i++ {
		o := -half + float64(i)*step
		n := len(m.Vertices)
		m.Vertices = append(m.Vertices,
			models.MeshVertex{Position: math3d.V3(o, y, -half)},
			models.MeshVertex{Position: math3d.V3(o, y, half)},
			models.MeshVertex{Position: math3d.V3(-half, y, o)},
			models.MeshVertex{Position: math3d.V3(half, y, o)},
		)
		m.Lines = append(m.Lines, models.Line{A: n, B: n + 1}, models.Line{A: n + 2, B: n + 3})
	}
	m.CalculateBounds()
	return m
}

func axesMesh(length float64) *models.Mesh {
	m := models.NewMesh("axes")
	m.Materials = []models.Material{
		unlitMaterial(AxisXColor), unlitMaterial(AxisYColor), unlitMaterial(AxisZColor),
	}
	for i, dir := range []math3d.Vec3{math3d.V3(1, 0, 0), math3d.V3(0, 1, 0), math3d.V3(0, 0, 1)} {
		n := len(m.Vertices)
		m.Vertices = append(m.Vertices,
			models.MeshVertex{Position: math3d.Zero3()},
			models.MeshVertex{Position: dir.Scale(length)},
		)
		m.Lines = append(m.Lines, models.Line{A: n, B: n + 1, Material: i})
	}
	m.CalculateBounds()
	return m
}
