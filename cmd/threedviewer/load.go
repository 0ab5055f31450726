package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taigrr/threedviewer/internal/logger"
	"github.com/taigrr/threedviewer/pkg/pipeline"
	"github.com/taigrr/threedviewer/pkg/source"
	"github.com/taigrr/threedviewer/pkg/viewer"
)

// sourceFor opens a local path or an http(s) URL.
func sourceFor(arg string) (source.Source, string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return source.NewHTTP(arg), "", nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, "", fmt.Errorf("cannot access file: %w", err)
	}
	return source.NewFS(os.DirFS(filepath.Dir(abs)), filepath.Base(abs)), filepath.Base(abs), nil
}

// newViewer builds a viewer from the loaded config.
func newViewer() (*viewer.Viewer, error) {
	return viewer.New(cfg.ViewerOptions(logger.Log))
}

// loadAndWait loads arg into v and blocks until the session ends. A
// failed or aborted load is returned as an error.
func loadAndWait(ctx context.Context, v *viewer.Viewer, arg string) (pipeline.Snapshot, error) {
	src, name, err := sourceFor(arg)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	s := v.LoadSession(pipeline.LoadRequest{Source: src, Filename: name, Context: ctx})
	if _, err := s.Wait(ctx); err != nil {
		v.CancelLoad()
		return s.Snapshot(), err
	}
	snap := s.Snapshot()
	switch {
	case snap.State == pipeline.Ready:
		return snap, nil
	case snap.Err != nil:
		return snap, fmt.Errorf("load %s: %w", arg, snap.Err)
	default:
		return snap, fmt.Errorf("load %s: %s", arg, snap.State)
	}
}
