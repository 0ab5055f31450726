package models

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"
)

// SiblingResolver opens files that a model references by relative name.
// Implementations return an error wrapping fs.ErrNotExist for missing files.
type SiblingResolver interface {
	Sibling(name string) (io.ReadCloser, error)
}

// SiblingFunc adapts a function to SiblingResolver.
type SiblingFunc func(name string) (io.ReadCloser, error)

func (f SiblingFunc) Sibling(name string) (io.ReadCloser, error) { return f(name) }

// NoSiblings reports every sibling as missing.
var NoSiblings SiblingResolver = SiblingFunc(func(name string) (io.ReadCloser, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
})

// ReadSibling reads a whole sibling into memory.
func ReadSibling(r SiblingResolver, name string) ([]byte, error) {
	if r == nil {
		r = NoSiblings
	}
	rc, err := r.Sibling(cleanRef(name))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read sibling %s: %w", name, err)
	}
	return data, nil
}

// IsNotFound reports whether err means the sibling does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// cleanRef turns a URI reference from a model file into a slash path.
func cleanRef(ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	return strings.TrimPrefix(path.Clean("/"+ref), "/")
}

// siblingFS exposes a SiblingResolver as a read-only fs.FS so that
// libraries which resolve references through fs.FS can use it.
type siblingFS struct {
	r SiblingResolver
}

// SiblingFS adapts r to fs.FS.
func SiblingFS(r SiblingResolver) fs.FS {
	if r == nil {
		r = NoSiblings
	}
	return siblingFS{r: r}
}

func (s siblingFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := ReadSibling(s.r, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return nil, err
	}
	return &memFile{name: path.Base(name), Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *memFile) Close() error               { return nil }
func (f *memFile) Name() string               { return f.name }
func (f *memFile) Size() int64                { return f.size }
func (f *memFile) Mode() fs.FileMode          { return 0o444 }
func (f *memFile) ModTime() time.Time         { return time.Time{} }
func (f *memFile) IsDir() bool                { return false }
func (f *memFile) Sys() any                   { return nil }
