package source

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/taigrr/threedviewer/pkg/errkind"
)

const (
	chunkSize = 64 * 1024
	// maxPrealloc bounds how much a declared size may reserve up front.
	maxPrealloc = 64 << 20
)

// ReadOptions controls ReadAll.
type ReadOptions struct {
	// Total is the expected size, or -1 when unknown.
	Total int64
	// MaxBytes rejects payloads larger than this. Zero means no limit.
	MaxBytes int64
	// Progress is called after every chunk with the bytes read so far.
	Progress func(read int64)
}

// ReadAll buffers r, checking ctx between chunks.
func ReadAll(ctx context.Context, r io.Reader, opts ReadOptions) ([]byte, error) {
	if opts.MaxBytes > 0 && opts.Total > opts.MaxBytes {
		return nil, errkind.NewResourceLimit(fmt.Sprintf("payload is %d bytes, limit %d", opts.Total, opts.MaxBytes))
	}
	var buf bytes.Buffer
	if opts.Total > 0 {
		buf.Grow(int(min(opts.Total, maxPrealloc)))
	}
	chunk := make([]byte, chunkSize)
	var read int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			read += int64(n)
			if opts.MaxBytes > 0 && read > opts.MaxBytes {
				return nil, errkind.NewResourceLimit(fmt.Sprintf("payload exceeds limit of %d bytes", opts.MaxBytes))
			}
			buf.Write(chunk[:n])
			if opts.Progress != nil {
				opts.Progress(read)
			}
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errkind.NewFetch("read payload", err)
		}
	}
}
