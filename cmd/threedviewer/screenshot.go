package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/threedviewer/internal/logger"
)

func newScreenshotCmd() *cobra.Command {
	var (
		output                string
		grid, axes, wireframe bool
	)
	cmd := &cobra.Command{
		Use:   "screenshot <model>",
		Short: "Render a model to a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("grid") {
				cfg.Render.Grid = grid
			}
			if flags.Changed("axes") {
				cfg.Render.Axes = axes
			}
			if flags.Changed("wireframe") {
				cfg.Render.Wireframe = wireframe
			}

			v, err := newViewer()
			if err != nil {
				return err
			}
			defer v.Close()

			if _, err := loadAndWait(cmd.Context(), v, args[0]); err != nil {
				return err
			}
			png, err := v.TakeScreenshot()
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return err
			}
			logger.Log.Info("screenshot written",
				zap.String("path", output),
				zap.Int("width", cfg.Render.Width),
				zap.Int("height", cfg.Render.Height))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "screenshot.png", "Output PNG path")
	f.IntVar(&overrides.Width, "width", 0, "Image width in pixels")
	f.IntVar(&overrides.Height, "height", 0, "Image height in pixels")
	f.StringVar(&overrides.Background, "bg", "", "Background: light, dark, transparent or a hex colour")
	f.BoolVar(&grid, "grid", false, "Draw the floor grid")
	f.BoolVar(&axes, "axes", false, "Draw the axes helper")
	f.BoolVar(&wireframe, "wireframe", false, "Render in wireframe")
	return cmd
}
