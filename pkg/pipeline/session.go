package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/taigrr/threedviewer/pkg/errkind"
	"github.com/taigrr/threedviewer/pkg/formats"
	"github.com/taigrr/threedviewer/pkg/scene"
	"github.com/taigrr/threedviewer/pkg/source"
)

// LoadRequest is one load attempt. Context, when set, aborts the load
// when it is cancelled.
type LoadRequest struct {
	Source              source.Source
	Filename            string
	DeclaredExtension   string
	DeclaredContentType string
	// SizeHint is the expected payload size, or 0 when unknown.
	SizeHint int64
	Context  context.Context
}

// Session is one load attempt. Its fields are owned by the pipeline; read
// them through State and Snapshot.
type Session struct {
	ID        uint64
	StartedAt time.Time

	req    LoadRequest
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// guarded by the pipeline's mutex
	p        *Pipeline
	state    State
	format   formats.ID
	progress int64
	total    int64
	err      *errkind.Error
	result   *scene.Normalized
	warnings []string
}

// Snapshot is a copy of a session's fields.
type Snapshot struct {
	ID            uint64
	State         State
	Format        formats.ID
	ProgressBytes int64
	TotalBytes    int64
	StartedAt     time.Time
	Err           *errkind.Error
	Result        *scene.Normalized
	Warnings      []string
}

// State returns the current state.
func (s *Session) State() State {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.state
}

// Snapshot returns a consistent copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return Snapshot{
		ID:            s.ID,
		State:         s.state,
		Format:        s.format,
		ProgressBytes: s.progress,
		TotalBytes:    s.total,
		StartedAt:     s.StartedAt,
		Err:           s.err,
		Result:        s.result,
		Warnings:      append([]string(nil), s.warnings...),
	}
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is terminal or ctx is done.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

func (s *Session) finish() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
	})
}
