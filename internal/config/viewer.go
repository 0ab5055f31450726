package config

import (
	"os"

	"go.uber.org/zap"

	"github.com/taigrr/threedviewer/pkg/decoders"
	"github.com/taigrr/threedviewer/pkg/models"
	"github.com/taigrr/threedviewer/pkg/viewer"
)

// DecoderLoader builds a loader from the loading section.
func (c *Config) DecoderLoader(logger *zap.Logger) *decoders.Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []decoders.Option{
		decoders.WithLogger(logger.Named("decoders")),
		decoders.WithModelOptions(models.Options{
			SmoothNormals:  c.Loading.SmoothNormals,
			Clean:          c.Loading.Clean,
			MergeTolerance: c.Loading.MergeTolerance,
		}),
	}
	if c.Loading.DecoderDir != "" {
		opts = append(opts, decoders.WithAssets(c.Loading.DecoderBase, os.DirFS(c.Loading.DecoderDir)))
	} else if c.Loading.DecoderBase != "" {
		opts = append(opts, decoders.WithAssets(c.Loading.DecoderBase, nil))
	}
	return decoders.NewLoader(opts...)
}

// ViewerOptions maps the config to viewer options.
func (c *Config) ViewerOptions(logger *zap.Logger) viewer.Options {
	if logger == nil {
		logger = zap.NewNop()
	}
	return viewer.Options{
		Logger:           logger,
		Loader:           c.DecoderLoader(logger),
		Normalize:        c.Normalize,
		Overlay:          c.Overlay,
		MaxBytes:         c.Loading.MaxBytes,
		ProgressInterval: c.Loading.ProgressInterval,
		PickTTL:          c.Picking.CacheTTL,
		MaxPickDistance:  c.Picking.MaxDistance,
		FPS:              c.Render.FPS,
		Units:            c.Render.Units,
		Width:            c.Render.Width,
		Height:           c.Render.Height,
		Background:       c.Render.Background,
		Grid:             c.Render.Grid,
		Axes:             c.Render.Axes,
		Wireframe:        c.Render.Wireframe,
	}
}
