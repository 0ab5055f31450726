// Package config handles viewer configuration loading and management.
package config

import (
	"time"

	"github.com/taigrr/threedviewer/pkg/interaction"
	"github.com/taigrr/threedviewer/pkg/scene"
)

// Config holds all viewer settings.
type Config struct {
	Normalize scene.Config              `yaml:"normalize"`
	Picking   PickingConfig             `yaml:"picking"`
	Loading   LoadingConfig             `yaml:"loading"`
	Overlay   interaction.OverlayConfig `yaml:"overlay"`
	Render    RenderConfig              `yaml:"render"`
	Logging   LoggingConfig             `yaml:"logging"`
	Server    ServerConfig              `yaml:"server"`
}

// PickingConfig holds raycast settings.
type PickingConfig struct {
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	MaxDistance float64       `yaml:"max_distance"`
}

// LoadingConfig holds pipeline and decoder settings.
type LoadingConfig struct {
	// MaxBytes rejects larger payloads. Zero disables the limit.
	MaxBytes         int64         `yaml:"max_bytes"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	// DecoderBase is the base path handed to optional sub-decoders.
	DecoderBase string `yaml:"decoder_base"`
	// DecoderDir, when set, is served to sub-decoders as their assets.
	DecoderDir     string  `yaml:"decoder_dir"`
	SmoothNormals  bool    `yaml:"smooth_normals"`
	Clean          bool    `yaml:"clean"`
	MergeTolerance float64 `yaml:"merge_tolerance"`
}

// RenderConfig holds view settings.
type RenderConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"`
	Grid       bool   `yaml:"grid"`
	Axes       bool   `yaml:"axes"`
	Wireframe  bool   `yaml:"wireframe"`
	FPS        int    `yaml:"fps"`
	Units      string `yaml:"units"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ServerConfig holds settings for the serve command.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Root string `yaml:"root"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Normalize: scene.DefaultConfig(),
		Picking: PickingConfig{
			CacheTTL: interaction.DefaultPickTTL,
		},
		Loading: LoadingConfig{
			MaxBytes:         512 << 20,
			ProgressInterval: 100 * time.Millisecond,
			DecoderBase:      "/static/decoders",
		},
		Overlay: interaction.DefaultOverlayConfig(),
		Render: RenderConfig{
			Width:      1280,
			Height:     720,
			Background: "dark",
			FPS:        60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
			Root: ".",
		},
	}
}
