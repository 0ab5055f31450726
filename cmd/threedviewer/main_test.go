package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/taigrr/threedviewer/internal/wsbridge"
	"github.com/taigrr/threedviewer/pkg/formats"
	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
	"github.com/taigrr/threedviewer/pkg/pipeline"
	"github.com/taigrr/threedviewer/pkg/scene"
	"github.com/taigrr/threedviewer/pkg/viewer"
)

const triangleSTL = "solid t\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 4 0 0\nvertex 1 4 0\nendloop\nendfacet\nendsolid t\n"

func newTestViewer(t *testing.T) *viewer.Viewer {
	t.Helper()
	v, err := viewer.New(viewer.Options{Width: 64, Height: 48})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(v.Close)
	return v
}

func TestCommandHandler(t *testing.T) {
	v := newTestViewer(t)
	handle := commandHandler(v)

	tests := []struct {
		cmd     wsbridge.Command
		want    any
		wantErr bool
	}{
		{wsbridge.Command{Op: "grid"}, true, false},
		{wsbridge.Command{Op: "grid"}, false, false},
		{wsbridge.Command{Op: "wireframe"}, true, false},
		{wsbridge.Command{Op: "tool", Arg: "measure"}, "measure", false},
		{wsbridge.Command{Op: "tool", Arg: "measure"}, "none", false},
		{wsbridge.Command{Op: "tool", Arg: "sculpt"}, nil, true},
		{wsbridge.Command{Op: "background", Arg: "light"}, nil, false},
		{wsbridge.Command{Op: "background", Arg: "not-a-colour"}, nil, true},
		{wsbridge.Command{Op: "reset"}, nil, false},
		{wsbridge.Command{Op: "explode"}, nil, true},
	}
	for _, tt := range tests {
		got, err := handle(tt.cmd)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s %q: err = %v, wantErr %v", tt.cmd.Op, tt.cmd.Arg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s %q = %v, want %v", tt.cmd.Op, tt.cmd.Arg, got, tt.want)
		}
	}

	if _, err := handle(wsbridge.Command{Op: "pick", X: 32, Y: 24}); !errors.Is(err, errNoHit) {
		t.Errorf("pick on empty scene: err = %v", err)
	}
	if got := v.Toggles(); !got.Wireframe || got.Grid {
		t.Errorf("toggles = %+v", got)
	}
}

func TestServeLoad(t *testing.T) {
	v := newTestViewer(t)
	events := make(chan pipeline.Event, 16)
	v.Subscribe(func(ev pipeline.Event) {
		if ev.Type.Terminal() {
			events <- ev
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fsys := fstest.MapFS{"models/tri.stl": {Data: []byte(triangleSTL)}}
	srv := httptest.NewServer(newMux(ctx, v, fsys, wsbridge.NewHub(nil)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/load?name=models/tri.stl")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		SessionID uint64 `json:"sessionId"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil || body.SessionID == 0 {
		t.Fatalf("load reply: %+v, %v", body, err)
	}

	select {
	case ev := <-events:
		if ev.Type != pipeline.EventLoaded || ev.SessionID != body.SessionID {
			t.Fatalf("terminal event = %s for %d (%s)", ev.Type, ev.SessionID, ev.Detail)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for load")
	}

	resp, err = http.Get(srv.URL + "/screenshot.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("screenshot: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	for _, name := range []string{"", "../etc/passwd", "/abs.stl"} {
		resp, err := http.Get(srv.URL + "/load?name=" + name)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("name %q: status %d", name, resp.StatusCode)
		}
	}
}

func TestRenderInfo(t *testing.T) {
	snap := pipeline.Snapshot{
		State:         pipeline.Ready,
		Format:        formats.STL,
		ProgressBytes: 134,
		Warnings:      []string{"texture wood.png not found"},
		Result: &scene.Normalized{
			Name:           "tri.stl",
			Bounds:         math3d.Box3{Min: math3d.V3(-2, -2, 0), Max: math3d.V3(2, 2, 0)},
			ComputedScale:  1,
			CameraDistance: 6.5,
			Stats:          models.Stats{Nodes: 2, Meshes: 1, Vertices: 3, Triangles: 1},
		},
	}
	out := renderInfo(snap)
	for _, want := range []string{"tri.stl", "stl", "134 bytes", "4 x 4 x 0", "6.5", "warning: texture wood.png not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestNum(t *testing.T) {
	tests := map[float64]string{
		0:       "0",
		1:       "1",
		6.5:     "6.5",
		100:     "100",
		0.12345: "0.1235",
	}
	for in, want := range tests {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
