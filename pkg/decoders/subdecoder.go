package decoders

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/taigrr/threedviewer/pkg/models"
)

// SubDecoderConfig is passed to a sub-decoder factory.
type SubDecoderConfig struct {
	Name string
	// BasePath is the loader's AssetBase joined with the descriptor's PathHint.
	BasePath string
	// Assets is the file system the runtime assets are read from.
	Assets fs.FS
}

// SubDecoderFactory initializes a sub-decoder. The returned value must
// implement models.MeshDecompressor for draco and
// models.TextureTranscoder for ktx2.
type SubDecoderFactory func(ctx context.Context, cfg SubDecoderConfig) (any, error)

var (
	subMu       sync.RWMutex
	subRegistry = map[string]SubDecoderFactory{}
)

// RegisterSubDecoder makes a sub-decoder runtime available process-wide.
// It replaces any earlier registration under the same name.
func RegisterSubDecoder(name string, f SubDecoderFactory) {
	subMu.Lock()
	defer subMu.Unlock()
	subRegistry[name] = f
}

func lookupSubDecoder(name string) (SubDecoderFactory, bool) {
	subMu.RLock()
	defer subMu.RUnlock()
	f, ok := subRegistry[name]
	return f, ok
}

// ErrNoRuntime is the init error for a sub-decoder nobody registered.
var ErrNoRuntime = errors.New("no runtime registered")

// attach installs an initialized sub-decoder into caps.
func attach(caps *models.Capabilities, name string, v any) error {
	switch name {
	case Draco:
		d, ok := v.(models.MeshDecompressor)
		if !ok {
			return fmt.Errorf("%s runtime %T does not decompress meshes", name, v)
		}
		caps.Draco = d
	case KTX2:
		t, ok := v.(models.TextureTranscoder)
		if !ok {
			return fmt.Errorf("%s runtime %T does not transcode textures", name, v)
		}
		caps.KTX2 = t
	default:
		return fmt.Errorf("unknown sub-decoder %q", name)
	}
	return nil
}
