package decoders

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taigrr/threedviewer/pkg/errkind"
	"github.com/taigrr/threedviewer/pkg/formats"
	"github.com/taigrr/threedviewer/pkg/models"
)

// withSubDecoder registers f for the duration of the test.
func withSubDecoder(t *testing.T, name string, f SubDecoderFactory) {
	t.Helper()
	prev, had := lookupSubDecoder(name)
	RegisterSubDecoder(name, f)
	t.Cleanup(func() {
		subMu.Lock()
		defer subMu.Unlock()
		if had {
			subRegistry[name] = prev
		} else {
			delete(subRegistry, name)
		}
	})
}

type fakeDraco struct{}

func (fakeDraco) Decompress(models.DracoPrimitive) (models.DecodedPrimitive, error) {
	return models.DecodedPrimitive{}, nil
}

type fakeKTX2 struct{}

func (fakeKTX2) Transcode([]byte) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

type decoderFunc func(ctx context.Context, in Input, caps models.Capabilities) (*models.Scene, error)

func (f decoderFunc) Decode(ctx context.Context, in Input, caps models.Capabilities) (*models.Scene, error) {
	return f(ctx, in, caps)
}

func TestAcquireCoalesces(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(WithStrategy("stl", func(ctx context.Context, opts models.Options) (Decoder, error) {
		calls.Add(1)
		<-release
		return factory(func(o models.Options, d []byte, n string) (*models.Scene, error) {
			return models.NewSTLLoader(o).Load(d, n)
		})(ctx, opts)
	}))

	d, _ := DescriptorFor(formats.STL)
	const n = 8
	var wg sync.WaitGroup
	results := make([]*Loaded, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ld, err := l.Acquire(context.Background(), d)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			results[i] = ld
		}()
	}
	// Give every goroutine a chance to join the flight.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("factory called %d times, want 1", got)
	}
	for i, ld := range results {
		if ld != results[0] {
			t.Errorf("result %d differs from result 0", i)
		}
	}
	if !l.Cached(formats.STL) {
		t.Error("STL decoder not cached")
	}

	// Cached acquisitions do not initialize again.
	if _, err := l.Acquire(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if got := l.Initializations(formats.STL); got != 1 {
		t.Errorf("Initializations = %d, want 1", got)
	}
}

func TestAcquireOptionalSubDecoders(t *testing.T) {
	tests := []struct {
		name      string
		draco     SubDecoderFactory
		ktx2      SubDecoderFactory
		wantDraco bool
		wantKTX2  bool
		warnings  int
	}{
		{name: "none registered", warnings: 2},
		{
			name: "both available",
			draco: func(context.Context, SubDecoderConfig) (any, error) {
				return fakeDraco{}, nil
			},
			ktx2: func(context.Context, SubDecoderConfig) (any, error) {
				return fakeKTX2{}, nil
			},
			wantDraco: true,
			wantKTX2:  true,
		},
		{
			name: "draco asset path wrong",
			draco: func(_ context.Context, cfg SubDecoderConfig) (any, error) {
				return nil, errors.New("missing " + cfg.BasePath + "/decoder.wasm")
			},
			ktx2: func(context.Context, SubDecoderConfig) (any, error) {
				return fakeKTX2{}, nil
			},
			wantKTX2: true,
			warnings: 1,
		},
		{
			name: "wrong capability type",
			draco: func(context.Context, SubDecoderConfig) (any, error) {
				return fakeKTX2{}, nil
			},
			warnings: 2,
		},
		{
			name: "init panics",
			ktx2: func(context.Context, SubDecoderConfig) (any, error) {
				panic("boom")
			},
			warnings: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.draco != nil {
				withSubDecoder(t, Draco, tt.draco)
			}
			if tt.ktx2 != nil {
				withSubDecoder(t, KTX2, tt.ktx2)
			}
			var hooked []string
			l := NewLoader(WithAssets("/apps/threedviewer/js", nil))
			l.OnWarning = func(id formats.ID, msg string) {
				if id != formats.GLB {
					t.Errorf("warning for %s, want glb", id)
				}
				hooked = append(hooked, msg)
			}

			d, _ := DescriptorFor(formats.GLB)
			ld, err := l.Acquire(context.Background(), d)
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			if got := ld.Capabilities.Draco != nil; got != tt.wantDraco {
				t.Errorf("draco enabled = %v, want %v", got, tt.wantDraco)
			}
			if got := ld.Capabilities.KTX2 != nil; got != tt.wantKTX2 {
				t.Errorf("ktx2 enabled = %v, want %v", got, tt.wantKTX2)
			}
			if len(ld.Warnings) != tt.warnings {
				t.Errorf("warnings = %q, want %d", ld.Warnings, tt.warnings)
			}
			if len(hooked) != tt.warnings {
				t.Errorf("OnWarning called %d times, want %d", len(hooked), tt.warnings)
			}
		})
	}
}

func TestSubDecoderBasePath(t *testing.T) {
	var got string
	withSubDecoder(t, Draco, func(_ context.Context, cfg SubDecoderConfig) (any, error) {
		got = cfg.BasePath
		return fakeDraco{}, nil
	})
	l := NewLoader(WithAssets("/static", nil))
	d, _ := DescriptorFor(formats.GLTF)
	if _, err := l.Acquire(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if got != "/static/draco" {
		t.Errorf("BasePath = %q, want /static/draco", got)
	}
}

func TestAcquireRequiredSubDecoderFails(t *testing.T) {
	l := NewLoader()
	d := Descriptor{
		FormatID:    formats.GLB,
		Primary:     "gltf",
		SubDecoders: []SubDecoderRef{{Name: Draco, PathHint: "draco/", Required: true}},
	}
	_, err := l.Acquire(context.Background(), d)
	if !errors.Is(err, ErrNoRuntime) {
		t.Errorf("err = %v, want ErrNoRuntime in chain", err)
	}
	if k := errkind.KindOf(err); k != errkind.DecoderInit {
		t.Errorf("kind = %v, want decoder-init", k)
	}
	if l.Cached(formats.GLB) {
		t.Error("failed acquisition was cached")
	}
}

func TestAcquirePrimaryFailureIsRetried(t *testing.T) {
	var calls int
	l := NewLoader(WithStrategy("obj", func(ctx context.Context, opts models.Options) (Decoder, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("module failed to load")
		}
		return factory(func(o models.Options, d []byte, n string) (*models.Scene, error) {
			return models.NewOBJLoader(o).Load(d, n)
		})(ctx, opts)
	}))
	d, _ := DescriptorFor(formats.OBJ)

	_, err := l.Acquire(context.Background(), d)
	var kerr *errkind.Error
	if !errors.As(err, &kerr) || kerr.Kind != errkind.DecoderInit {
		t.Fatalf("first err = %v, want decoder-init", err)
	}
	if kerr.FormatID != "obj" {
		t.Errorf("FormatID = %q, want obj", kerr.FormatID)
	}

	if _, err := l.Acquire(context.Background(), d); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("factory calls = %d, want 2", calls)
	}
}

func TestAcquirePrimaryPanic(t *testing.T) {
	var calls int
	l := NewLoader(WithStrategy("ply", func(ctx context.Context, opts models.Options) (Decoder, error) {
		calls++
		if calls == 1 {
			panic("bad module")
		}
		return decoderFunc(func(context.Context, Input, models.Capabilities) (*models.Scene, error) {
			return models.NewScene("p"), nil
		}), nil
	}))
	d, _ := DescriptorFor(formats.PLY)

	_, err := l.Acquire(context.Background(), d)
	if errkind.KindOf(err) != errkind.DecoderInit || !strings.Contains(err.Error(), "bad module") {
		t.Fatalf("err = %v, want decoder-init naming the panic", err)
	}
	if l.Cached(formats.PLY) {
		t.Error("a panicking init must not be cached")
	}
	if _, err := l.Acquire(context.Background(), d); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestDecodePanicUsesLoaderLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLoader(WithLogger(zap.New(core)), WithStrategy("stl", func(context.Context, models.Options) (Decoder, error) {
		return decoderFunc(func(context.Context, Input, models.Capabilities) (*models.Scene, error) {
			panic("index out of range")
		}), nil
	}))
	d, _ := DescriptorFor(formats.STL)
	ld, err := l.Acquire(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ld.Decode(context.Background(), Input{Name: "x.stl", Data: []byte{1}}); errkind.KindOf(err) != errkind.Parse {
		t.Fatalf("err = %v, want parse", err)
	}
	entries := logs.FilterMessage("decoder panic").All()
	if len(entries) != 1 {
		t.Fatalf("got %d decoder panic entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["format"]; got != "stl" {
		t.Errorf("format field = %v, want stl", got)
	}
}

func TestAcquireUnknownPrimary(t *testing.T) {
	l := NewLoader()
	_, err := l.Acquire(context.Background(), Descriptor{FormatID: "fbx", Primary: "fbx"})
	if errkind.KindOf(err) != errkind.DecoderInit {
		t.Errorf("err = %v, want decoder-init", err)
	}
}

func TestAcquireWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	l := NewLoader(WithStrategy("ply", func(context.Context, models.Options) (Decoder, error) {
		<-release
		return nil, errors.New("never")
	}))
	d, _ := DescriptorFor(formats.PLY)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, d); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLoadedDecode(t *testing.T) {
	triangle := "solid t\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nvertex 0 1 0\nendloop\nendfacet\nendsolid t\n"

	l := NewLoader()
	d, _ := DescriptorFor(formats.STL)
	ld, err := l.Acquire(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("triangle", func(t *testing.T) {
		s, err := ld.Decode(context.Background(), Input{Name: "t.stl", Data: []byte(triangle)})
		if err != nil {
			t.Fatal(err)
		}
		if got := s.Stats().Triangles; got != 1 {
			t.Errorf("triangles = %d, want 1", got)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := ld.Decode(context.Background(), Input{Name: "t.stl"})
		if errkind.KindOf(err) != errkind.Parse {
			t.Errorf("err = %v, want parse", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ld.Decode(context.Background(), Input{Name: "t.stl", Data: []byte("not a mesh")})
		if errkind.KindOf(err) != errkind.Parse {
			t.Errorf("err = %v, want parse", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ld.Decode(ctx, Input{Name: "t.stl", Data: []byte(triangle)})
		if errkind.KindOf(err) != errkind.Cancelled {
			t.Errorf("err = %v, want cancelled", err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		p := &Loaded{
			Descriptor: d,
			Decoder: decoderFunc(func(context.Context, Input, models.Capabilities) (*models.Scene, error) {
				var m map[string]int
				m["x"] = 1
				return nil, nil
			}),
		}
		_, err := p.Decode(context.Background(), Input{Data: []byte{1}})
		if errkind.KindOf(err) != errkind.Parse || !strings.Contains(err.Error(), "panic") {
			t.Errorf("err = %v, want parse error mentioning panic", err)
		}
	})
}

func TestDescriptorFor(t *testing.T) {
	d, ok := DescriptorFor(formats.GLB)
	if !ok || d.Primary != "gltf" || len(d.SubDecoders) != 2 {
		t.Fatalf("DescriptorFor(glb) = %+v, %v", d, ok)
	}
	d.SubDecoders[0].Required = true
	again, _ := DescriptorFor(formats.GLB)
	if again.SubDecoders[0].Required {
		t.Error("DescriptorFor returned shared slice")
	}
	if _, ok := DescriptorFor(formats.MTL); ok {
		t.Error("dependency format has a descriptor")
	}
}
