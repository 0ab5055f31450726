// Package scene centers a decoded model at the origin and works out how to
// frame it.
package scene

import (
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/taigrr/threedviewer/pkg/errkind"
	"github.com/taigrr/threedviewer/pkg/math3d"
	"github.com/taigrr/threedviewer/pkg/models"
)

// Framing defaults.
const (
	DefaultFOV          = 45.0 // degrees, vertical
	DefaultMarginFactor = 1.5
	DefaultScalePercent = 0.02
	DefaultMinScale     = 0.01
	DefaultMaxScale     = 5.0
)

// Config holds the framing constants.
type Config struct {
	FOV          float64 `yaml:"fov"`
	MarginFactor float64 `yaml:"margin_factor"`
	ScalePercent float64 `yaml:"scale_percent"`
	MinScale     float64 `yaml:"min_scale"`
	MaxScale     float64 `yaml:"max_scale"`
}

// DefaultConfig returns the default framing constants.
func DefaultConfig() Config {
	return Config{
		FOV:          DefaultFOV,
		MarginFactor: DefaultMarginFactor,
		ScalePercent: DefaultScalePercent,
		MinScale:     DefaultMinScale,
		MaxScale:     DefaultMaxScale,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FOV <= 0 || c.FOV >= 180 {
		c.FOV = d.FOV
	}
	if c.MarginFactor <= 0 {
		c.MarginFactor = d.MarginFactor
	}
	if c.ScalePercent <= 0 {
		c.ScalePercent = d.ScalePercent
	}
	if c.MinScale <= 0 {
		c.MinScale = d.MinScale
	}
	if c.MaxScale < c.MinScale {
		c.MaxScale = math.Max(d.MaxScale, c.MinScale)
	}
	return c
}

// Normalized is a scene ready to be attached to a viewer. Root has been
// translated so the model's bounding box is centered on the origin.
type Normalized struct {
	Name string
	Root *models.Node
	// Bounds is the centered world-space box.
	Bounds         math3d.Box3
	Longest        float64
	ComputedScale  float64
	CameraTarget   math3d.Vec3
	CameraDistance float64
	FOV            float64
	// Version identifies this scene. Every Normalize call gets a new one.
	Version uint64
	// Fallback is set when the geometry was empty or collapsed to a point
	// and a unit framing was used instead.
	Fallback bool
	Warnings []string
	Stats    models.Stats
}

// Near and Far return clip planes that keep the model in view at any
// zoom the orbit controls allow.
func (n *Normalized) Near() float64 { return n.CameraDistance / 1000 }
func (n *Normalized) Far() float64  { return n.CameraDistance * 100 }

var version atomic.Uint64

// Normalizer computes framing for freshly decoded scenes.
type Normalizer struct {
	Config Config
	Logger *zap.Logger
}

// NewNormalizer returns a normalizer using cfg; zero fields take defaults.
func NewNormalizer(cfg Config, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{Config: cfg.withDefaults(), Logger: logger}
}

// Normalize re-centers s in place and computes camera framing and overlay
// scale. Degenerate geometry falls back to unit framing with a warning.
func (n *Normalizer) Normalize(s *models.Scene) (*Normalized, error) {
	if s == nil || s.Root == nil {
		return nil, errkind.New(errkind.Normalization, "no scene graph")
	}
	cfg := n.Config.withDefaults()
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := &Normalized{
		Name:     s.Name,
		Root:     s.Root,
		FOV:      cfg.FOV,
		Warnings: append([]string(nil), s.Warnings...),
		Stats:    s.Stats(),
	}

	box := s.WorldBounds(models.IsModel)
	longest := box.LongestSide()
	switch {
	case box.IsEmpty():
		out.Fallback = true
		out.Warnings = append(out.Warnings, "scene has no renderable geometry; using default framing")
		box = math3d.Box3{Min: math3d.V3(-0.5, -0.5, -0.5), Max: math3d.V3(0.5, 0.5, 0.5)}
		longest = 1
	case longest == 0 || math.IsNaN(longest) || math.IsInf(longest, 0):
		out.Fallback = true
		out.Warnings = append(out.Warnings, "scene bounds have zero size; using default framing")
		c := box.Center()
		box = math3d.Box3{Min: c.Sub(math3d.V3(0.5, 0.5, 0.5)), Max: c.Add(math3d.V3(0.5, 0.5, 0.5))}
		longest = 1
	}
	if out.Fallback {
		logger.Warn("degenerate scene", zap.String("scene", s.Name), zap.String("reason", out.Warnings[len(out.Warnings)-1]))
	}

	center := box.Center()
	s.Root.Transform = math3d.Translate(center.Negate()).Mul(s.Root.Transform)
	out.Bounds = box.Translate(center.Negate())
	out.Longest = longest
	out.CameraTarget = math3d.Zero3()
	out.CameraDistance = FramingDistance(longest, cfg.FOV, cfg.MarginFactor)
	out.ComputedScale = clamp(longest*cfg.ScalePercent, cfg.MinScale, cfg.MaxScale)
	out.Version = version.Add(1)

	logger.Debug("normalized scene",
		zap.String("scene", s.Name),
		zap.Uint64("version", out.Version),
		zap.Float64("longest", longest),
		zap.Float64("scale", out.ComputedScale),
		zap.Float64("distance", out.CameraDistance),
		zap.Bool("fallback", out.Fallback))
	return out, nil
}

// FramingDistance is how far a camera with vertical fov (degrees) must be
// from the center for an object of size longest to fit with margin.
func FramingDistance(longest, fov, margin float64) float64 {
	half := fov * math.Pi / 360
	return (longest / 2) / math.Tan(half) * margin
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
