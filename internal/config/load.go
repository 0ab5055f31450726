package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Overrides are values set on the command line. Zero values leave the
// config untouched.
type Overrides struct {
	LogLevel   string
	LogFile    string
	Width      int
	Height     int
	Background string
	MaxBytes   int64
	Addr       string
}

// Load loads configuration with priority: defaults < file < flags. An
// empty path searches the standard locations.
func Load(path string, o Overrides) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	cfg.Apply(o)
	return cfg, nil
}

// Apply copies the non-zero overrides into c.
func (c *Config) Apply(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFile != "" {
		c.Logging.LogFile = o.LogFile
	}
	if o.Width > 0 {
		c.Render.Width = o.Width
	}
	if o.Height > 0 {
		c.Render.Height = o.Height
	}
	if o.Background != "" {
		c.Render.Background = o.Background
	}
	if o.MaxBytes > 0 {
		c.Loading.MaxBytes = o.MaxBytes
	}
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./threedviewer.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "threedviewer")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "threedviewer")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "threedviewer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "threedviewer")
	}
}

// loadFromFile merges a YAML file into cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// SaveTo writes the config to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
