package decoders

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/taigrr/threedviewer/pkg/errkind"
	"github.com/taigrr/threedviewer/pkg/formats"
	"github.com/taigrr/threedviewer/pkg/models"
)

// Loaded is an initialized decoder together with the sub-decoder
// capabilities that came up.
type Loaded struct {
	Descriptor   Descriptor
	Decoder      Decoder
	Capabilities models.Capabilities
	// Warnings lists optional sub-decoders that failed to initialize.
	Warnings []string

	logger *zap.Logger
}

// Decode runs the decoder. Failures, including panics inside the parser,
// come back as *errkind.Error.
func (l *Loaded) Decode(ctx context.Context, in Input) (scene *models.Scene, err error) {
	id := string(l.Descriptor.FormatID)
	if len(in.Data) == 0 {
		return nil, errkind.NewParse(id, "empty payload", nil)
	}
	defer func() {
		if r := recover(); r != nil {
			scene = nil
			err = errkind.NewParse(id, fmt.Sprintf("decoder panic: %v", r), nil)
			log := l.logger
			if log == nil {
				log = zap.NewNop()
			}
			log.Warn("decoder panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	scene, err = l.Decoder.Decode(ctx, in, l.Capabilities)
	if err != nil {
		if k := errkind.KindOf(err); k != errkind.Unknown {
			return nil, errkind.As(err, k)
		}
		return nil, errkind.NewParse(id, "malformed "+id+" payload", err)
	}
	if scene == nil {
		return nil, errkind.NewParse(id, "decoder returned no scene", nil)
	}
	return scene, nil
}

// Loader acquires decoders. The zero value is not usable; use NewLoader.
type Loader struct {
	// AssetBase is the fixed base path for sub-decoder runtime assets.
	AssetBase string
	// Assets is where sub-decoders read their runtime files from.
	Assets fs.FS
	// ModelOptions seed every strategy.
	ModelOptions models.Options
	// OnWarning is called for each optional sub-decoder that fails.
	OnWarning func(format formats.ID, msg string)

	logger     *zap.Logger
	strategies map[string]StrategyFactory
	group      singleflight.Group

	mu    sync.Mutex
	cache map[formats.ID]*Loaded
	inits map[formats.ID]int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithStrategy overrides the primary decoder factory for a module name.
func WithStrategy(primary string, f StrategyFactory) Option {
	return func(ld *Loader) { ld.strategies[primary] = f }
}

// WithAssets sets AssetBase and Assets.
func WithAssets(base string, assets fs.FS) Option {
	return func(ld *Loader) { ld.AssetBase, ld.Assets = base, assets }
}

// WithModelOptions sets the options every strategy starts from.
func WithModelOptions(o models.Options) Option {
	return func(ld *Loader) { ld.ModelOptions = o }
}

// NewLoader returns a loader with an empty cache.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		logger:     zap.NewNop(),
		strategies: make(map[string]StrategyFactory, len(strategies)),
		cache:      make(map[formats.ID]*Loaded),
		inits:      make(map[formats.ID]int),
	}
	for k, v := range strategies {
		l.strategies[k] = v
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

var (
	sharedOnce sync.Once
	shared     *Loader
)

// Shared returns the process-wide loader. Entries are added on first use
// per format and never evicted.
func Shared() *Loader {
	sharedOnce.Do(func() {
		shared = NewLoader(WithLogger(zap.L()))
	})
	return shared
}

// Cached reports whether id has a cached decoder.
func (l *Loader) Cached(id formats.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cache[id]
	return ok
}

// Initializations returns how many times id was initialized. Coalesced
// and cached acquisitions do not count.
func (l *Loader) Initializations(id formats.ID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inits[id]
}

// Acquire returns the initialized decoder for d, initializing it on first
// use. Concurrent callers for the same format share one initialization.
// ctx only bounds the wait; the shared initialization runs to completion.
func (l *Loader) Acquire(ctx context.Context, d Descriptor) (*Loaded, error) {
	l.mu.Lock()
	if ld, ok := l.cache[d.FormatID]; ok {
		l.mu.Unlock()
		return ld, nil
	}
	l.mu.Unlock()

	initCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(string(d.FormatID), func() (any, error) {
		return l.initialize(initCtx, d)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Loaded), nil
	}
}

func (l *Loader) initialize(ctx context.Context, d Descriptor) (*Loaded, error) {
	// A concurrent flight may have finished between our cache check and
	// joining the group.
	l.mu.Lock()
	if ld, ok := l.cache[d.FormatID]; ok {
		l.mu.Unlock()
		return ld, nil
	}
	l.inits[d.FormatID]++
	l.mu.Unlock()

	log := l.logger.With(zap.String("format", string(d.FormatID)), zap.String("primary", d.Primary))

	f, ok := l.strategies[d.Primary]
	if !ok {
		return nil, errkind.NewDecoderInit(string(d.FormatID), fmt.Errorf("no strategy %q", d.Primary))
	}
	dec, err := l.newDecoder(ctx, f)
	if err != nil {
		log.Warn("primary decoder init failed", zap.Error(err))
		return nil, errkind.NewDecoderInit(string(d.FormatID), err)
	}

	ld := &Loaded{Descriptor: d, Decoder: dec, logger: log}
	for _, ref := range d.SubDecoders {
		if err := l.initSub(ctx, ref, &ld.Capabilities); err != nil {
			if ref.Required {
				log.Warn("required sub-decoder init failed", zap.String("sub", ref.Name), zap.Error(err))
				return nil, errkind.NewDecoderInit(string(d.FormatID), fmt.Errorf("%s: %w", ref.Name, err))
			}
			msg := fmt.Sprintf("%s disabled: %v", ref.Name, err)
			ld.Warnings = append(ld.Warnings, msg)
			log.Warn("optional sub-decoder disabled", zap.String("sub", ref.Name), zap.Error(err))
			if l.OnWarning != nil {
				l.OnWarning(d.FormatID, msg)
			}
		}
	}

	l.mu.Lock()
	l.cache[d.FormatID] = ld
	l.mu.Unlock()
	log.Debug("decoder ready", zap.Int("warnings", len(ld.Warnings)))
	return ld, nil
}

// newDecoder runs a strategy factory. A panic becomes an error so it
// cannot escape the singleflight goroutine.
func (l *Loader) newDecoder(ctx context.Context, f StrategyFactory) (dec Decoder, err error) {
	defer func() {
		if r := recover(); r != nil {
			dec, err = nil, fmt.Errorf("init panic: %v", r)
		}
	}()
	return f(ctx, l.ModelOptions)
}

func (l *Loader) initSub(ctx context.Context, ref SubDecoderRef, caps *models.Capabilities) (err error) {
	f, ok := lookupSubDecoder(ref.Name)
	if !ok {
		return ErrNoRuntime
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panic: %v", r)
		}
	}()
	v, err := f(ctx, SubDecoderConfig{
		Name:     ref.Name,
		BasePath: path.Join(l.AssetBase, ref.PathHint),
		Assets:   l.Assets,
	})
	if err != nil {
		return err
	}
	return attach(caps, ref.Name, v)
}
