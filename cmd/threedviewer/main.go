// threedviewer loads 3D models (glTF/GLB, OBJ+MTL, STL, PLY) through the
// viewer pipeline. It can print model information, render screenshots and
// serve load events to a browser over websockets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/threedviewer/internal/config"
	"github.com/taigrr/threedviewer/internal/logger"
)

var (
	configPath string
	overrides  config.Overrides
	cfg        *config.Config
)

func main() {
	cmd := &cobra.Command{
		Use:   "threedviewer",
		Short: "3D model loading and viewing pipeline",
		Long: `threedviewer - 3D model viewer

Loads glTF/GLB, OBJ (with MTL materials and textures), STL and PLY models,
centers and frames them, and renders or streams the result.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath, overrides)
			if err != nil {
				return err
			}
			return logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file")
	pf.StringVar(&overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&overrides.LogFile, "log-file", "", "Also write JSON logs to this file")
	pf.Int64Var(&overrides.MaxBytes, "max-bytes", 0, "Reject models larger than this many bytes")

	cmd.AddCommand(newInfoCmd(), newScreenshotCmd(), newServeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, cmd); err != nil {
		stop()
		os.Exit(1)
	}
}
