package interaction

import (
	"testing"

	"github.com/taigrr/threedviewer/pkg/math3d"
)

func newTestTools() *Tools {
	ov := NewOverlay(DefaultOverlayConfig())
	ov.SetScale(0.1)
	return NewTools(ov)
}

func TestToolsAnnotate(t *testing.T) {
	tools := newTestTools()
	if tools.HandlePick(math3d.V3(1, 1, 1)) {
		t.Fatal("pick with no tool should be ignored")
	}

	tools.Toggle(ToolAnnotate)
	if tools.Active() != ToolAnnotate || tools.Phase() != PhaseAnnotating {
		t.Fatalf("state = %v/%v", tools.Active(), tools.Phase())
	}
	tools.NextText = "hinge"
	if !tools.HandlePick(math3d.V3(1, 2, 3)) {
		t.Fatal("annotation pick not used")
	}
	if tools.Active() != ToolNone {
		t.Errorf("annotate should return to none, got %v", tools.Active())
	}

	anns := tools.Annotations()
	if len(anns) != 1 || anns[0].Text != "hinge" || anns[0].Position != math3d.V3(1, 2, 3) {
		t.Fatalf("annotations = %+v", anns)
	}
	if tools.overlay.Len() != 2 {
		t.Errorf("overlay objects = %d, want marker and label", tools.overlay.Len())
	}

	tools.Toggle(ToolAnnotate)
	tools.HandlePick(math3d.Zero3())
	if got := tools.Annotations()[1].Text; got != "Note 2" {
		t.Errorf("default text = %q, want Note 2", got)
	}
}

func TestToolsMeasure(t *testing.T) {
	tools := newTestTools()
	tools.Units = "mm"
	tools.Toggle(ToolMeasure)
	if tools.Phase() != PhaseAwaitingFirst {
		t.Fatalf("phase = %v, want awaiting-first", tools.Phase())
	}

	tools.HandlePick(math3d.V3(0, 0, 0))
	if tools.Phase() != PhaseAwaitingSecond || len(tools.Measurements()) != 0 {
		t.Fatalf("after first pick: phase %v, %d measurements", tools.Phase(), len(tools.Measurements()))
	}
	tools.HandlePick(math3d.V3(3, 4, 0))
	if tools.Active() != ToolNone || tools.Phase() != PhaseIdle {
		t.Errorf("after second pick: %v/%v, want none/idle", tools.Active(), tools.Phase())
	}

	ms := tools.Measurements()
	if len(ms) != 1 {
		t.Fatalf("measurements = %d, want 1", len(ms))
	}
	if ms[0].Distance != 5 || ms[0].Label != "5.000 mm" {
		t.Errorf("measurement = %v %q", ms[0].Distance, ms[0].Label)
	}
	// two markers, a line and a label
	if got := tools.overlay.Len(); got != 4 {
		t.Errorf("overlay objects = %d, want 4", got)
	}

	if !tools.RemoveMeasurement(ms[0].ID) || tools.overlay.Len() != 0 {
		t.Errorf("RemoveMeasurement left %d objects", tools.overlay.Len())
	}
	if tools.RemoveMeasurement(ms[0].ID) {
		t.Error("second remove should report false")
	}
}

func TestToolsToggleOffDiscardsPartial(t *testing.T) {
	tests := []struct {
		name string
		next Tool
		want Tool
	}{
		{"same tool", ToolMeasure, ToolNone},
		{"none", ToolNone, ToolNone},
		{"other tool", ToolAnnotate, ToolAnnotate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools := newTestTools()
			tools.Toggle(ToolAnnotate)
			tools.HandlePick(math3d.V3(9, 9, 9))
			committed := tools.overlay.Len()

			tools.Toggle(ToolMeasure)
			tools.HandlePick(math3d.V3(1, 0, 0))
			if tools.overlay.Len() != committed+1 {
				t.Fatalf("pending marker not added")
			}

			if got := tools.Toggle(tt.next); got != tt.want {
				t.Errorf("Toggle = %v, want %v", got, tt.want)
			}
			if tools.overlay.Len() != committed {
				t.Errorf("overlay objects = %d, want %d", tools.overlay.Len(), committed)
			}
			if len(tools.Measurements()) != 0 || len(tools.Annotations()) != 1 {
				t.Errorf("partial measurement committed or annotation lost")
			}
		})
	}
}

func TestToolsReset(t *testing.T) {
	tools := newTestTools()
	tools.Toggle(ToolAnnotate)
	tools.HandlePick(math3d.Zero3())
	tools.Toggle(ToolMeasure)
	tools.HandlePick(math3d.Zero3())

	tools.Reset()
	if tools.Active() != ToolNone || tools.overlay.Len() != 0 || len(tools.Annotations()) != 0 {
		t.Errorf("Reset left state: %v, %d objects, %d annotations",
			tools.Active(), tools.overlay.Len(), len(tools.Annotations()))
	}
}

func TestParseTool(t *testing.T) {
	for _, tool := range []Tool{ToolNone, ToolAnnotate, ToolMeasure} {
		got, err := ParseTool(tool.String())
		if err != nil || got != tool {
			t.Errorf("ParseTool(%q) = %v, %v", tool.String(), got, err)
		}
	}
	if _, err := ParseTool("lasso"); err == nil {
		t.Error("expected error for unknown tool")
	}
}
