package decoders

import (
	"context"

	"github.com/taigrr/threedviewer/pkg/models"
)

// Input is everything a decoder needs for one payload.
type Input struct {
	Name     string
	Data     []byte
	Siblings models.SiblingResolver
}

// Decoder turns a payload into a scene graph.
type Decoder interface {
	Decode(ctx context.Context, in Input, caps models.Capabilities) (*models.Scene, error)
}

// StrategyFactory initializes a primary decoder.
type StrategyFactory func(ctx context.Context, opts models.Options) (Decoder, error)

type loaderFunc func(opts models.Options, data []byte, name string) (*models.Scene, error)

type strategy struct {
	opts models.Options
	load loaderFunc
}

func (s strategy) Decode(ctx context.Context, in Input, caps models.Capabilities) (*models.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := s.opts
	opts.Siblings = in.Siblings
	opts.Capabilities = caps
	return s.load(opts, in.Data, in.Name)
}

func factory(load loaderFunc) StrategyFactory {
	return func(_ context.Context, opts models.Options) (Decoder, error) {
		return strategy{opts: opts, load: load}, nil
	}
}

// strategies is keyed by Descriptor.Primary.
var strategies = map[string]StrategyFactory{
	"gltf": factory(func(o models.Options, d []byte, n string) (*models.Scene, error) {
		return models.NewGLTFLoader(o).Load(d, n)
	}),
	"obj": factory(func(o models.Options, d []byte, n string) (*models.Scene, error) {
		return models.NewOBJLoader(o).Load(d, n)
	}),
	"stl": factory(func(o models.Options, d []byte, n string) (*models.Scene, error) {
		return models.NewSTLLoader(o).Load(d, n)
	}),
	"ply": factory(func(o models.Options, d []byte, n string) (*models.Scene, error) {
		return models.NewPLYLoader(o).Load(d, n)
	}),
}
