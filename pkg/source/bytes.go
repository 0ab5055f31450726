package source

import (
	"bytes"
	"context"
	"io"
	"path"
)

// Bytes is an in-memory payload. Siblings maps relative names to contents.
type Bytes struct {
	Name        string
	Data        []byte
	ContentType string
	Siblings    map[string][]byte
}

func (b *Bytes) Open(ctx context.Context) (io.ReadCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}
	return io.NopCloser(bytes.NewReader(b.Data)), Info{
		Name:        path.Base(b.Name),
		Size:        int64(len(b.Data)),
		ContentType: b.ContentType,
	}, nil
}

func (b *Bytes) Sibling(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := b.Siblings[name]
	if !ok {
		data, ok = b.Siblings[path.Clean(name)]
	}
	if !ok {
		return nil, notFound(name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
