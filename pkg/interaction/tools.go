package interaction

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
)

// Tool is a pick-driven editing mode.
type Tool int

const (
	ToolNone Tool = iota
	ToolAnnotate
	ToolMeasure
)

func (t Tool) String() string {
	switch t {
	case ToolAnnotate:
		return "annotate"
	case ToolMeasure:
		return "measure"
	default:
		return "none"
	}
}

// ParseTool converts a tool name back to a Tool.
func ParseTool(s string) (Tool, error) {
	switch s {
	case "", "none":
		return ToolNone, nil
	case "annotate", "annotation":
		return ToolAnnotate, nil
	case "measure", "measurement":
		return ToolMeasure, nil
	}
	return ToolNone, fmt.Errorf("unknown tool %q", s)
}

// Phase is the sub-state of the active tool.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnnotating
	PhaseAwaitingFirst
	PhaseAwaitingSecond
)

func (p Phase) String() string {
	switch p {
	case PhaseAnnotating:
		return "annotating"
	case PhaseAwaitingFirst:
		return "awaiting-first"
	case PhaseAwaitingSecond:
		return "awaiting-second"
	default:
		return "idle"
	}
}

// Annotation is a committed note at a world position.
type Annotation struct {
	ID       int
	Text     string
	Position math3d.Vec3
	nodes    []*models.Node
}

// Measurement is a committed distance between two points.
type Measurement struct {
	ID       int
	A, B     math3d.Vec3
	Distance float64
	Label    string
	nodes    []*models.Node
}

// Overlay colours.
var (
	AnnotationColor  = color.RGBA{R: 0xff, G: 0xb0, B: 0x20, A: 0xff}
	MeasureColor     = color.RGBA{R: 0x20, G: 0xc0, B: 0xff, A: 0xff}
	LabelForeground  = color.White
	LabelBackground  = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xd0}
	pendingNodeColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Tools runs the annotation and measurement state machines. Committed
// work survives toggling; partial work is discarded with its overlays.
type Tools struct {
	overlay *Overlay
	// Units is appended to measurement labels.
	Units string
	// NextText, when set, is used as the next annotation's text.
	NextText string

	active  Tool
	phase   Phase
	first   math3d.Vec3
	pending []*models.Node
	nextID  int

	annotations  []Annotation
	measurements []Measurement
}

// NewTools returns tools drawing into overlay.
func NewTools(overlay *Overlay) *Tools {
	return &Tools{overlay: overlay}
}

// Active returns the active tool.
func (t *Tools) Active() Tool { return t.active }

// Phase returns the active tool's sub-state.
func (t *Tools) Phase() Phase { return t.phase }

// Toggle activates tool, or turns it off when it is already active.
// Switching tools discards any partial state.
func (t *Tools) Toggle(tool Tool) Tool {
	t.discardPartial()
	if tool == t.active || tool == ToolNone {
		t.active, t.phase = ToolNone, PhaseIdle
		return t.active
	}
	t.active = tool
	switch tool {
	case ToolAnnotate:
		t.phase = PhaseAnnotating
	case ToolMeasure:
		t.phase = PhaseAwaitingFirst
	}
	return t.active
}

func (t *Tools) discardPartial() {
	if len(t.pending) > 0 {
		t.overlay.Remove(t.pending...)
		t.pending = nil
	}
}

// HandlePick feeds a picked world point to the active tool. It reports
// whether the point was used.
func (t *Tools) HandlePick(p math3d.Vec3) bool {
	switch t.phase {
	case PhaseAnnotating:
		t.nextID++
		text := t.NextText
		if text == "" {
			text = "Note " + strconv.Itoa(len(t.annotations)+1)
		}
		t.NextText = ""
		marker := t.overlay.AddMarker(p, AnnotationColor)
		lbl := t.overlay.AddLabel(text, p.Add(math3d.V3(0, t.overlay.MarkerSize()+t.overlay.LabelHeight()/2, 0)), LabelForeground, LabelBackground)
		t.annotations = append(t.annotations, Annotation{
			ID: t.nextID, Text: text, Position: p, nodes: []*models.Node{marker, lbl},
		})
		t.active, t.phase = ToolNone, PhaseIdle
		return true

	case PhaseAwaitingFirst:
		t.first = p
		t.pending = append(t.pending, t.overlay.AddMarker(p, pendingNodeColor))
		t.phase = PhaseAwaitingSecond
		return true

	case PhaseAwaitingSecond:
		t.nextID++
		d := t.first.Distance(p)
		text := FormatDistance(d, t.Units)
		nodes := append(t.pending,
			t.overlay.AddMarker(p, MeasureColor),
			t.overlay.AddLine(t.first, p, MeasureColor),
		)
		mid := t.first.Lerp(p, 0.5)
		nodes = append(nodes, t.overlay.AddLabel(text, mid.Add(math3d.V3(0, t.overlay.LabelHeight(), 0)), LabelForeground, LabelBackground))
		t.measurements = append(t.measurements, Measurement{
			ID: t.nextID, A: t.first, B: p, Distance: d, Label: text, nodes: nodes,
		})
		t.pending = nil
		t.active, t.phase = ToolNone, PhaseIdle
		return true
	}
	return false
}

// FormatDistance prints d with three decimals and optional units.
func FormatDistance(d float64, units string) string {
	s := strconv.FormatFloat(d, 'f', 3, 64)
	if units != "" {
		s += " " + units
	}
	return s
}

// Annotations returns the committed annotations.
func (t *Tools) Annotations() []Annotation {
	return append([]Annotation(nil), t.annotations...)
}

// Measurements returns the committed measurements.
func (t *Tools) Measurements() []Measurement {
	return append([]Measurement(nil), t.measurements...)
}

// RemoveAnnotation deletes an annotation and its overlays.
func (t *Tools) RemoveAnnotation(id int) bool {
	for i, a := range t.annotations {
		if a.ID == id {
			t.overlay.Remove(a.nodes...)
			t.annotations = append(t.annotations[:i], t.annotations[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveMeasurement deletes a measurement and its overlays.
func (t *Tools) RemoveMeasurement(id int) bool {
	for i, m := range t.measurements {
		if m.ID == id {
			t.overlay.Remove(m.nodes...)
			t.measurements = append(t.measurements[:i], t.measurements[i+1:]...)
			return true
		}
	}
	return false
}

// Reset drops all tool state, committed or not, and clears the overlay.
func (t *Tools) Reset() {
	t.pending = nil
	t.annotations = nil
	t.measurements = nil
	t.active, t.phase = ToolNone, PhaseIdle
	t.overlay.Clear()
}
