package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/threedviewer/internal/logger"
	"github.com/taigrr/threedviewer/internal/wsbridge"
	"github.com/taigrr/threedviewer/pkg/pipeline"
	"github.com/taigrr/threedviewer/pkg/source"
	"github.com/taigrr/threedviewer/pkg/viewer"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve load events and viewer commands over websockets",
		Long: `Serve models from a directory.

  GET /load?name=<file>   start loading <file> from the directory
  GET /screenshot.png     render the current view
  WS  /events             lifecycle events; accepts {"op": ...} commands`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cfg.Server.Root
			if len(args) == 1 {
				root = args[0]
			}
			if st, err := os.Stat(root); err != nil {
				return err
			} else if !st.IsDir() {
				return errors.New(root + " is not a directory")
			}

			v, err := newViewer()
			if err != nil {
				return err
			}
			defer v.Close()
			return serve(cmd.Context(), v, os.DirFS(root), cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "Listen address")
	return cmd
}

func newMux(ctx context.Context, v *viewer.Viewer, fsys fs.FS, hub *wsbridge.Hub) *http.ServeMux {
	log := logger.Named("serve")
	mux := http.NewServeMux()
	mux.Handle("/events", hub)

	mux.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(r.URL.Query().Get("name"))
		if name == "." || !fs.ValidPath(name) {
			http.Error(w, "invalid name", http.StatusBadRequest)
			return
		}
		// The load outlives the request.
		id := v.Load(pipeline.LoadRequest{
			Source:   source.NewFS(fsys, name),
			Filename: path.Base(name),
			Context:  ctx,
		})
		log.Info("load requested", zap.String("name", name), zap.Uint64("session", id))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]uint64{"sessionId": id})
	})

	mux.HandleFunc("/screenshot.png", func(w http.ResponseWriter, r *http.Request) {
		png, err := v.TakeScreenshot()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})
	return mux
}

func serve(ctx context.Context, v *viewer.Viewer, fsys fs.FS, addr string) error {
	log := logger.Named("serve")
	hub := wsbridge.NewHub(logger.Named("wsbridge"))
	hub.OnCommand = commandHandler(v)
	unsubscribe := v.Subscribe(hub.Publish)
	defer unsubscribe()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(ctx, v, fsys, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go tick(ctx, v, cfg.Render.FPS)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

// tick advances camera inertia and label billboards.
func tick(ctx context.Context, v *viewer.Viewer, fps int) {
	if fps <= 0 {
		fps = 60
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			v.Frame()
		}
	}
}
