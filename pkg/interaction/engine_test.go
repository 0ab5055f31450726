package interaction

import (
	"testing"

	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
	"github.com/taigrr/threedviewer/pkg/render"
	"github.com/taigrr/threedviewer/pkg/scene"
)

func normalizedQuad(t *testing.T, name string, z float64) *scene.Normalized {
	t.Helper()
	s := models.NewScene(name)
	s.Root.Add(quadNode(name, models.TagModel, z))
	n, err := scene.NewNormalizer(scene.DefaultConfig(), nil).Normalize(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestEngineAttach(t *testing.T) {
	e := NewEngine(EngineOptions{FPS: 60})
	e.SetViewport(Viewport{Width: 100, Height: 100})

	first := normalizedQuad(t, "first", 0)
	if prev := e.Attach(first); prev != nil {
		t.Errorf("first Attach replaced %v", prev)
	}
	if e.Orbit.Distance != first.CameraDistance || e.Orbit.Target != first.CameraTarget {
		t.Errorf("orbit not fitted: %v %v", e.Orbit.Distance, e.Orbit.Target)
	}
	if !approx(e.Overlay.MarkerSize(), first.ComputedScale) {
		t.Errorf("overlay scale = %v, want %v", e.Overlay.MarkerSize(), first.ComputedScale)
	}

	e.Tools.Toggle(ToolAnnotate)
	// Off center: recentering puts the quad's diagonal through the origin.
	if _, ok := e.Pick(55, 45); !ok {
		t.Fatal("expected a hit on the attached model")
	}
	if len(e.Tools.Annotations()) != 1 || e.Overlay.Len() == 0 {
		t.Fatal("pick did not reach the annotate tool")
	}
	if hit, ok := e.PickOverlay(55, 45); !ok || hit.Node.Name != "marker" {
		t.Errorf("overlay pick right after annotating = %v, %v; want the new marker", hit.Node, ok)
	}

	second := normalizedQuad(t, "second", 0)
	if prev := e.Attach(second); prev != first {
		t.Error("Attach should return the replaced scene")
	}
	if e.Overlay.Len() != 0 || len(e.Tools.Annotations()) != 0 {
		t.Error("overlays and annotations must not survive a new scene")
	}
	var count int
	for _, c := range e.World.Children {
		if c == first.Root {
			t.Error("old model still in world")
		}
		if c == second.Root {
			count++
		}
	}
	if count != 1 {
		t.Errorf("new model attached %d times", count)
	}

	e.Attach(nil)
	if _, ok := e.Pick(55, 45); ok {
		t.Error("pick with no scene should miss")
	}
}

func TestEngineRender(t *testing.T) {
	e := NewEngine(EngineOptions{})
	e.Attach(normalizedQuad(t, "q", 0))
	e.Helpers.ShowGrid(true)
	fb := render.NewFramebuffer(40, 30)
	e.Render(fb)

	if c := fb.GetPixel(22, 13); c == render.ColorBlack {
		t.Error("model not drawn")
	}
	if vp := e.Viewport(); vp.Width != 40 || vp.Height != 30 {
		t.Errorf("viewport = %v", vp)
	}
}

func TestEngineFrameBillboards(t *testing.T) {
	e := NewEngine(EngineOptions{})
	e.Attach(normalizedQuad(t, "q", 0))
	lbl := e.Overlay.AddLabel("x", math3d.Zero3(), LabelForeground, LabelBackground)
	e.Orbit.Damping = false
	e.Orbit.Rotate(300, 0)
	e.Frame()

	eye, _, _ := e.Orbit.Pose()
	normal := lbl.Transform.MulVec3Dir(math3d.V3(0, 0, 1)).Normalize()
	if !approxVec(normal, eye.Normalize()) {
		t.Errorf("label normal %v does not face eye %v", normal, eye)
	}
}

func TestHelpersFit(t *testing.T) {
	h := NewHelpers()
	if !h.Grid.Hidden || !h.Axes.Hidden {
		t.Error("helpers should start hidden")
	}
	h.Fit(math3d.Box3{Min: math3d.V3(-2, -1, -2), Max: math3d.V3(2, 1, 2)})
	b := h.Grid.Mesh.Bounds()
	if b.Min.Y != -1 || b.Max.Y != -1 {
		t.Errorf("grid at y=%v..%v, want floor -1", b.Min.Y, b.Max.Y)
	}
	if b.Size().X != 8 {
		t.Errorf("grid extent = %v, want 8", b.Size().X)
	}
	if got := len(h.Axes.Mesh.Lines); got != 3 {
		t.Errorf("axes lines = %d, want 3", got)
	}
	if h.Grid.Tag != models.TagHelper || h.Axes.Tag != models.TagHelper {
		t.Error("helpers must be tagged helper")
	}
}
