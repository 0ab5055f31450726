package interaction

import (
	"image/color"
	"testing"

	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
)

func TestOverlaySizing(t *testing.T) {
	tests := []struct {
		scale        float64
		marker, text float64
	}{
		{0.01, 0.01, 0.025},
		{0.1, 0.1, 0.25},
		{1, 1, 2},
		{5, 2, 2},
	}
	for _, tt := range tests {
		o := NewOverlay(OverlayConfig{})
		o.SetScale(tt.scale)
		if got := o.MarkerSize(); !approx(got, tt.marker) {
			t.Errorf("scale %v: MarkerSize = %v, want %v", tt.scale, got, tt.marker)
		}
		if got := o.LabelHeight(); !approx(got, tt.text) {
			t.Errorf("scale %v: LabelHeight = %v, want %v", tt.scale, got, tt.text)
		}
	}
}

func TestOverlayObjectsAreTagged(t *testing.T) {
	o := NewOverlay(DefaultOverlayConfig())
	o.SetScale(0.5)
	m := o.AddMarker(math3d.V3(1, 2, 3), color.White)
	l := o.AddLine(math3d.Zero3(), math3d.V3(1, 0, 0), color.White)
	lbl := o.AddLabel("12.000 mm", math3d.V3(0, 1, 0), color.White, color.Black)

	for _, n := range []*models.Node{o.Root, m, l, lbl} {
		if n.Tag != models.TagOverlay {
			t.Errorf("%s tagged %v, want overlay", n.Name, n.Tag)
		}
	}
	if got := m.Mesh.Bounds().Size(); !approxVec(got, math3d.V3(1, 1, 1)) {
		t.Errorf("marker size = %v, want diameter 1", got)
	}
	if lbl.Mesh.Materials[0].BaseMap == nil || !lbl.Billboard {
		t.Error("label should be a textured billboard")
	}
	if o.Len() != 3 {
		t.Fatalf("Len = %d, want 3", o.Len())
	}

	o.Remove(l)
	if o.Len() != 2 {
		t.Errorf("Len after Remove = %d, want 2", o.Len())
	}
	o.Clear()
	if o.Len() != 0 || len(o.labels) != 0 {
		t.Errorf("Clear left %d objects, %d labels", o.Len(), len(o.labels))
	}
}

func TestOverlayBillboardFacesCamera(t *testing.T) {
	o := NewOverlay(DefaultOverlayConfig())
	anchor := math3d.V3(1, 0, 0)
	lbl := o.AddLabel("A", anchor, color.White, color.Black)

	for _, eye := range []math3d.Vec3{
		math3d.V3(10, 0, 0), math3d.V3(1, 0, 10), math3d.V3(-5, 3, 4),
	} {
		o.Billboard(eye, math3d.V3(0, 1, 0))
		normal := lbl.Transform.MulVec3Dir(math3d.V3(0, 0, 1)).Normalize()
		want := eye.Sub(anchor).Normalize()
		if !approxVec(normal, want) {
			t.Errorf("eye %v: label normal = %v, want %v", eye, normal, want)
		}
		if got := lbl.Transform.MulVec3(math3d.Zero3()); !approxVec(got, anchor) {
			t.Errorf("eye %v: label moved to %v", eye, got)
		}
	}
}

func TestRenderLabel(t *testing.T) {
	img := RenderLabel("42", color.White, color.Black)
	b := img.Bounds()
	// Two 7px glyphs plus padding; 13px line plus padding.
	if b.Dx() != 2*7+2*labelPadding || b.Dy() != 13+2*labelPadding {
		t.Errorf("label is %dx%d", b.Dx(), b.Dy())
	}
	var lit int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r > 0x8000 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("no glyph pixels drawn")
	}
}
