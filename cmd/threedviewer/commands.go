package main

import (
	"errors"
	"fmt"

	"github.com/taigrr/threedviewer/internal/wsbridge"
	"github.com/taigrr/threedviewer/pkg/interaction"
	"github.com/taigrr/threedviewer/pkg/viewer"
)

var errNoHit = errors.New("nothing under the pointer")

// commandHandler maps websocket commands onto viewer operations.
func commandHandler(v *viewer.Viewer) wsbridge.CommandFunc {
	return func(c wsbridge.Command) (any, error) {
		switch c.Op {
		case "cancel":
			v.CancelLoad()
		case "reset":
			v.ResetView()
		case "fit":
			v.FitToView()
		case "grid":
			return v.ToggleGrid(), nil
		case "axes":
			return v.ToggleAxes(), nil
		case "wireframe":
			return v.ToggleWireframe(), nil
		case "controls":
			v.SetControlsEnabled(c.Arg != "off")
		case "background":
			return nil, v.SetBackground(c.Arg)
		case "tool":
			tool, err := interaction.ParseTool(c.Arg)
			if err != nil {
				return nil, err
			}
			return v.ToggleTool(tool).String(), nil
		case "text":
			v.SetAnnotationText(c.Arg)
		case "pick":
			p, ok := v.Pick(c.X, c.Y)
			if !ok {
				return nil, errNoHit
			}
			return p, nil
		case "pose":
			return v.CameraPose(), nil
		case "toggles":
			return v.Toggles(), nil
		case "annotations":
			return v.Annotations(), nil
		case "measurements":
			return v.Measurements(), nil
		case "resize":
			return nil, v.Resize(int(c.X), int(c.Y))
		default:
			return nil, fmt.Errorf("unknown op %q", c.Op)
		}
		return nil, nil
	}
}
