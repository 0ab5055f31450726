package pipeline

import (
	"time"

	"github.com/taigrr/threedviewer/pkg/errkind"
	"github.com/taigrr/threedviewer/pkg/formats"
	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
	"github.com/taigrr/threedviewer/pkg/scene"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventLoadStart EventType = "load-start"
	EventProgress  EventType = "load-progress"
	EventLoaded    EventType = "model-loaded"
	EventError     EventType = "model-error"
	EventAborted   EventType = "model-aborted"
)

// Terminal reports whether t ends a session.
func (t EventType) Terminal() bool {
	return t == EventLoaded || t == EventError || t == EventAborted
}

// Event is delivered to observers in the order it was queued.
type Event struct {
	Type      EventType `json:"type"`
	SessionID uint64    `json:"sessionId"`
	Time      time.Time `json:"time"`

	// load-progress
	BytesLoaded   int64 `json:"bytesLoaded,omitempty"`
	BytesTotal    int64 `json:"bytesTotal,omitempty"`
	Indeterminate bool  `json:"indeterminate,omitempty"`

	// model-loaded
	Summary *Summary `json:"summary,omitempty"`

	// model-error
	ErrorKind errkind.Kind `json:"errorKind,omitempty"`
	Detail    string       `json:"detail,omitempty"`
}

// Summary describes a loaded model without exposing the scene graph.
type Summary struct {
	Name           string       `json:"name"`
	Format         formats.ID   `json:"format"`
	Stats          models.Stats `json:"stats"`
	Size           math3d.Vec3  `json:"size"`
	ComputedScale  float64      `json:"computedScale"`
	CameraDistance float64      `json:"cameraDistance"`
	SceneVersion   uint64       `json:"sceneVersion"`
	Fallback       bool         `json:"fallback,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
}

func summarize(format formats.ID, n *scene.Normalized, warnings []string) *Summary {
	return &Summary{
		Name:           n.Name,
		Format:         format,
		Stats:          n.Stats,
		Size:           n.Bounds.Size(),
		ComputedScale:  n.ComputedScale,
		CameraDistance: n.CameraDistance,
		SceneVersion:   n.Version,
		Fallback:       n.Fallback,
		Warnings:       append([]string(nil), warnings...),
	}
}
