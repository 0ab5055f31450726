package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/taigrr/threedviewer/pkg/interaction"
	"github.com/taigrr/threedviewer/pkg/scene"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Normalize != scene.DefaultConfig() {
		t.Errorf("normalize = %+v", cfg.Normalize)
	}
	if cfg.Picking.CacheTTL != interaction.DefaultPickTTL {
		t.Errorf("pick ttl = %v", cfg.Picking.CacheTTL)
	}
	if cfg.Render.Width != 1280 || cfg.Render.Height != 720 || cfg.Render.Background != "dark" {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.LogFile != "" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Loading.MaxBytes != 512<<20 {
		t.Errorf("max bytes = %d", cfg.Loading.MaxBytes)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
normalize:
  fov: 60
  margin_factor: 2
picking:
  cache_ttl: 250ms
  max_distance: 100
loading:
  max_bytes: 1048576
  decoder_base: /apps/viewer/decoders
overlay:
  max_size: 0.5
render:
  width: 320
  height: 200
  background: "#ffffff"
  grid: true
  units: mm
logging:
  level: debug
  log_file: viewer.log
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Normalize.FOV != 60 || cfg.Normalize.MarginFactor != 2 {
		t.Errorf("normalize = %+v", cfg.Normalize)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Normalize.MaxScale != scene.DefaultMaxScale {
		t.Errorf("max scale = %v, want default", cfg.Normalize.MaxScale)
	}
	if cfg.Picking.CacheTTL != 250*time.Millisecond || cfg.Picking.MaxDistance != 100 {
		t.Errorf("picking = %+v", cfg.Picking)
	}
	if cfg.Loading.MaxBytes != 1<<20 || cfg.Loading.DecoderBase != "/apps/viewer/decoders" {
		t.Errorf("loading = %+v", cfg.Loading)
	}
	if cfg.Overlay.MaxSize != 0.5 || cfg.Overlay.LabelFactor != 2.5 {
		t.Errorf("overlay = %+v", cfg.Overlay)
	}
	if cfg.Render.Width != 320 || !cfg.Render.Grid || cfg.Render.Units != "mm" {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("render:\n  width: 320\n  height: 200\nlogging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, Overrides{Width: 640, LogLevel: "debug", Addr: ":9000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Render.Width != 640 || cfg.Render.Height != 200 {
		t.Errorf("size = %dx%d, want 640x200", cfg.Render.Width, cfg.Render.Height)
	}
	if cfg.Logging.Level != "debug" || cfg.Server.Addr != ":9000" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Logging, cfg.Server)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("render: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid, Overrides{}); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml"), Overrides{}); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestFindConfigFileXDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG_CONFIG_HOME is only consulted on unix")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(t.TempDir())
	if got := findConfigFile(); got != "" {
		t.Fatalf("found %q in an empty config dir", got)
	}

	cfg := Default()
	cfg.Render.Units = "in"
	want := filepath.Join(ConfigDir(), "config.yaml")
	if err := cfg.SaveTo(want); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFile(); got != want {
		t.Errorf("findConfigFile = %q, want %q", got, want)
	}
	loaded, err := Load("", Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Render.Units != "in" || loaded.Picking.CacheTTL != cfg.Picking.CacheTTL {
		t.Errorf("saved config not found: %+v", loaded.Render)
	}
}

func TestViewerOptions(t *testing.T) {
	cfg := Default()
	cfg.Render.Wireframe = true
	cfg.Picking.MaxDistance = 42
	opts := cfg.ViewerOptions(nil)
	if opts.Loader == nil || opts.Logger == nil {
		t.Fatal("loader and logger must be set")
	}
	if !opts.Wireframe || opts.MaxPickDistance != 42 || opts.Width != 1280 || opts.Background != "dark" {
		t.Errorf("options = %+v", opts)
	}
	if opts.Loader.AssetBase != "/static/decoders" {
		t.Errorf("asset base = %q", opts.Loader.AssetBase)
	}
}
