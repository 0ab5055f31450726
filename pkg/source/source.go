// Package source provides the byte streams a model is loaded from, plus
// access to the files it references.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/taigrr/threedviewer/pkg/models"
)

// ErrNotFound is returned by Sibling for a file the collaborator does not
// have. It matches fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("sibling not found: %w", fs.ErrNotExist)

// Info describes an opened payload. Size is -1 when unknown.
type Info struct {
	Name        string
	Size        int64
	ContentType string
}

// Source is one model payload and the files next to it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, Info, error)
	Sibling(ctx context.Context, name string) (io.ReadCloser, error)
}

// Resolver binds src to ctx so parsers can open siblings.
func Resolver(ctx context.Context, src Source) models.SiblingResolver {
	return models.SiblingFunc(func(name string) (io.ReadCloser, error) {
		return src.Sibling(ctx, name)
	})
}

// IsNotFound reports whether err is a missing-sibling error.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func notFound(name string) error {
	return fmt.Errorf("%s: %w", name, ErrNotFound)
}
