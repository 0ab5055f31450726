package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/taigrr/threedviewer/pkg/errkind"
)

// FS reads the model at Path inside FS. Siblings are looked up relative to
// the model's directory and may not escape FS.
type FS struct {
	FS   fs.FS
	Path string
}

// NewFS returns a source for name within fsys.
func NewFS(fsys fs.FS, name string) *FS {
	return &FS{FS: fsys, Path: name}
}

func (s *FS) Open(ctx context.Context) (io.ReadCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}
	f, err := s.FS.Open(s.Path)
	if err != nil {
		return nil, Info{}, errkind.NewFetch("open "+s.Path, err)
	}
	info := Info{Name: path.Base(s.Path), Size: -1, ContentType: mime.TypeByExtension(path.Ext(s.Path))}
	if st, err := f.Stat(); err == nil {
		if st.IsDir() {
			f.Close()
			return nil, Info{}, errkind.NewFetch(s.Path+" is a directory", nil)
		}
		info.Size = st.Size()
	}
	return f, info, nil
}

func (s *FS) Sibling(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := path.Join(path.Dir(s.Path), name)
	if !fs.ValidPath(p) || strings.HasPrefix(p, "../") {
		return nil, notFound(name)
	}
	f, err := s.FS.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("open sibling %s: %w", name, err)
	}
	return f, nil
}
