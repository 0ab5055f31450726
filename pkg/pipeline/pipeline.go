// Package pipeline runs model loads: fetch the payload, decode it,
// normalize the scene and hand it to the viewer. At most one session is
// active; starting a new load cancels the previous one first.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/threedviewer/pkg/decoders"
	"github.com/taigrr/threedviewer/pkg/errkind"
	"github.com/taigrr/threedviewer/pkg/formats"
	"github.com/taigrr/threedviewer/pkg/models"
	"github.com/taigrr/threedviewer/pkg/scene"
	"github.com/taigrr/threedviewer/pkg/source"
)

// DefaultProgressInterval bounds how often load-progress is emitted.
const DefaultProgressInterval = 100 * time.Millisecond

// AttachFunc publishes a finished scene. It runs with the pipeline lock
// held and must not call back into the pipeline.
type AttachFunc func(s *Session, n *scene.Normalized)

// Options configures a Pipeline.
type Options struct {
	Loader     *decoders.Loader
	Normalizer *scene.Normalizer
	Logger     *zap.Logger
	// MaxBytes rejects larger payloads with a resource-limit error. Zero
	// disables the check.
	MaxBytes         int64
	ProgressInterval time.Duration
	Attach           AttachFunc
	// Now is the clock; tests replace it.
	Now func() time.Time
}

type observer struct {
	id int
	fn func(Event)
}

// Pipeline owns load sessions and their events.
type Pipeline struct {
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	active    *Session
	lastID    uint64
	observers []observer
	nextObs   int
	queue     []Event
	draining  bool
}

// New returns an idle pipeline.
func New(opts Options) *Pipeline {
	if opts.Loader == nil {
		opts.Loader = decoders.Shared()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = scene.NewNormalizer(scene.DefaultConfig(), opts.Logger)
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{opts: opts, logger: opts.Logger}
}

// Subscribe registers fn for every event. Observers may call back into
// the pipeline; events queued meanwhile are delivered after fn returns.
func (p *Pipeline) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextObs++
	id := p.nextObs
	p.observers = append(p.observers, observer{id: id, fn: fn})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.observers = slices.DeleteFunc(p.observers, func(o observer) bool { return o.id == id })
	}
}

// Active returns the session currently loading, or nil.
func (p *Pipeline) Active() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// StartLoad cancels any active session and starts a new one. load-start
// has been delivered by the time StartLoad returns, unless it is called
// from an observer.
func (p *Pipeline) StartLoad(req LoadRequest) *Session {
	parent := req.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	p.mu.Lock()
	if p.active != nil {
		p.abortLocked(p.active, "superseded")
	}
	p.lastID++
	s := &Session{
		ID:        p.lastID,
		StartedAt: p.opts.Now(),
		req:       req,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		p:         p,
		state:     Fetching,
		total:     -1,
	}
	if req.SizeHint > 0 {
		s.total = req.SizeHint
	}
	p.active = s
	p.enqueueLocked(Event{Type: EventLoadStart, SessionID: s.ID})
	p.mu.Unlock()
	p.flush()

	p.logger.Info("load started", zap.Uint64("session", s.ID), zap.String("file", req.Filename))
	go p.run(s)
	return s
}

// Cancel aborts the session with id if it is active. Otherwise it does
// nothing.
func (p *Pipeline) Cancel(id uint64) {
	p.mu.Lock()
	s := p.active
	if s == nil || s.ID != id {
		p.mu.Unlock()
		return
	}
	p.abortLocked(s, "cancelled")
	p.mu.Unlock()
	p.flush()
}

// CancelActive aborts whatever is loading.
func (p *Pipeline) CancelActive() {
	p.mu.Lock()
	if p.active != nil {
		p.abortLocked(p.active, "cancelled")
	}
	p.mu.Unlock()
	p.flush()
}

func (p *Pipeline) enqueueLocked(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = p.opts.Now()
	}
	p.queue = append(p.queue, ev)
}

// flush delivers queued events. Only one goroutine drains at a time; a
// nested or concurrent call leaves its events to the running drain.
func (p *Pipeline) flush() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	for len(p.queue) > 0 {
		ev := p.queue[0]
		p.queue = p.queue[1:]
		obs := slices.Clone(p.observers)
		p.mu.Unlock()
		for _, o := range obs {
			o.fn(ev)
		}
		p.mu.Lock()
	}
	p.draining = false
	p.mu.Unlock()
}

// abortLocked moves s to Cancelled and queues model-aborted.
func (p *Pipeline) abortLocked(s *Session, reason string) {
	if s.state.Terminal() {
		return
	}
	s.state = Cancelled
	s.err = errkind.New(errkind.Cancelled, reason)
	if p.active == s {
		p.active = nil
	}
	p.enqueueLocked(Event{Type: EventAborted, SessionID: s.ID})
	s.finish()
	p.logger.Info("load aborted", zap.Uint64("session", s.ID), zap.String("reason", reason))
}

// fail ends s with err unless it already finished. Cancellation errors
// become aborts.
func (p *Pipeline) fail(s *Session, err error) {
	p.mu.Lock()
	if s.state.Terminal() {
		p.mu.Unlock()
		return
	}
	if err == nil {
		err = errkind.New(errkind.Unknown, "load stopped")
	}
	kerr := errkind.As(err, errkind.Unknown)
	if kerr.Kind == errkind.Cancelled || s.ctx.Err() != nil {
		p.abortLocked(s, "context cancelled")
		p.mu.Unlock()
		p.flush()
		return
	}
	s.state = Failed
	s.err = kerr
	if p.active == s {
		p.active = nil
	}
	p.enqueueLocked(Event{Type: EventError, SessionID: s.ID, ErrorKind: kerr.Kind, Detail: kerr.Error()})
	s.finish()
	p.mu.Unlock()
	p.flush()

	p.logger.Warn("load failed",
		zap.Uint64("session", s.ID),
		zap.Stringer("kind", kerr.Kind),
		zap.Error(err))
}

// advance moves s to state if it is still the active session.
func (p *Pipeline) advance(s *Session, to State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != s || !canMove(s.state, to) || s.ctx.Err() != nil {
		return false
	}
	s.state = to
	return true
}

func (p *Pipeline) warn(s *Session, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	p.mu.Lock()
	s.warnings = append(s.warnings, msgs...)
	p.mu.Unlock()
	for _, m := range msgs {
		p.logger.Warn("load warning", zap.Uint64("session", s.ID), zap.String("warning", m))
	}
}

func (p *Pipeline) run(s *Session) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(s, errkind.New(errkind.Parse, fmt.Sprintf("internal error: %v", r)))
		}
	}()

	format, err := p.resolveEarly(s)
	if err != nil {
		p.fail(s, err)
		return
	}

	data, info, err := p.fetch(s)
	if err != nil {
		p.fail(s, err)
		return
	}
	if format == "" {
		name := s.req.Filename
		if name == "" {
			name = info.Name
		}
		f, err := formats.Resolve(name, firstNonEmpty(info.ContentType, s.req.DeclaredContentType))
		if err != nil {
			p.fail(s, err)
			return
		}
		format = f.ID
	}

	p.mu.Lock()
	s.format = format
	p.mu.Unlock()
	if !p.advance(s, Parsing) {
		p.fail(s, s.ctx.Err())
		return
	}

	raw, err := p.parse(s, format, data, firstNonEmpty(s.req.Filename, info.Name))
	if err != nil {
		p.fail(s, err)
		return
	}
	if !p.advance(s, Normalizing) {
		p.fail(s, s.ctx.Err())
		return
	}

	norm, err := p.opts.Normalizer.Normalize(raw)
	if err != nil {
		p.fail(s, err)
		return
	}
	p.handOff(s, format, norm)
}

// resolveEarly resolves the format before any I/O when the name or
// declared extension carries one. An empty ID means the content type
// from the response decides.
func (p *Pipeline) resolveEarly(s *Session) (formats.ID, error) {
	name := s.req.Filename
	if ext := strings.TrimPrefix(s.req.DeclaredExtension, "."); ext != "" {
		name = "model." + ext
	}
	if formats.ExtOf(name) == "" && s.req.DeclaredContentType == "" {
		return "", nil
	}
	f, err := formats.Resolve(name, s.req.DeclaredContentType)
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

func (p *Pipeline) fetch(s *Session) ([]byte, source.Info, error) {
	if s.req.Source == nil {
		return nil, source.Info{}, errkind.NewFetch("no source", nil)
	}
	if limit := p.opts.MaxBytes; limit > 0 && s.req.SizeHint > limit {
		return nil, source.Info{}, errkind.NewResourceLimit(fmt.Sprintf("size hint %d exceeds limit %d", s.req.SizeHint, limit))
	}
	rc, info, err := s.req.Source.Open(s.ctx)
	if err != nil {
		return nil, info, err
	}
	defer rc.Close()

	total := info.Size
	if total <= 0 && s.req.SizeHint > 0 {
		total = s.req.SizeHint
	}
	if total <= 0 {
		total = -1
	}
	p.mu.Lock()
	s.total = total
	p.mu.Unlock()

	var last time.Time
	data, err := source.ReadAll(s.ctx, rc, source.ReadOptions{
		Total:    total,
		MaxBytes: p.opts.MaxBytes,
		Progress: func(n int64) {
			now := p.opts.Now()
			if !last.IsZero() && now.Sub(last) < p.opts.ProgressInterval {
				p.setProgress(s, n, false)
				return
			}
			last = now
			p.setProgress(s, n, true)
		},
	})
	if err != nil {
		return nil, info, err
	}
	p.setProgress(s, int64(len(data)), true)
	return data, info, nil
}

// setProgress records n and, when emit is set, queues load-progress.
func (p *Pipeline) setProgress(s *Session, n int64, emit bool) {
	p.mu.Lock()
	if p.active != s || s.state != Fetching {
		p.mu.Unlock()
		return
	}
	s.progress = n
	if emit {
		ev := Event{Type: EventProgress, SessionID: s.ID, BytesLoaded: n, BytesTotal: s.total}
		if s.total < 0 {
			ev.Indeterminate = true
		}
		p.enqueueLocked(ev)
	}
	p.mu.Unlock()
	if emit {
		p.flush()
	}
}

func (p *Pipeline) parse(s *Session, format formats.ID, data []byte, name string) (*models.Scene, error) {
	desc, ok := decoders.DescriptorFor(format)
	if !ok {
		return nil, errkind.NewUnsupportedFormat(string(format))
	}
	ld, err := p.opts.Loader.Acquire(s.ctx, desc)
	if err != nil {
		return nil, err
	}
	p.warn(s, ld.Warnings...)

	raw, err := ld.Decode(s.ctx, decoders.Input{
		Name:     path.Base(name),
		Data:     data,
		Siblings: source.Resolver(s.ctx, s.req.Source),
	})
	if err != nil {
		return nil, err
	}
	p.warn(s, raw.Warnings...)
	return raw, nil
}

// handOff publishes n if s is still the active session. Results of
// superseded or cancelled sessions are dropped here.
func (p *Pipeline) handOff(s *Session, format formats.ID, n *scene.Normalized) {
	p.mu.Lock()
	if p.active != s || s.ctx.Err() != nil || !canMove(s.state, Ready) {
		if !s.state.Terminal() {
			p.abortLocked(s, "context cancelled")
		}
		p.mu.Unlock()
		p.flush()
		p.logger.Debug("discarded late result", zap.Uint64("session", s.ID))
		return
	}
	for _, w := range n.Warnings {
		if !slices.Contains(s.warnings, w) {
			s.warnings = append(s.warnings, w)
		}
	}
	s.state = Ready
	s.result = n
	p.active = nil
	if p.opts.Attach != nil {
		p.opts.Attach(s, n)
	}
	summary := summarize(format, n, s.warnings)
	p.enqueueLocked(Event{Type: EventLoaded, SessionID: s.ID, Summary: summary})
	s.finish()
	p.mu.Unlock()
	p.flush()

	p.logger.Info("model loaded",
		zap.Uint64("session", s.ID),
		zap.String("format", string(format)),
		zap.Int("triangles", summary.Stats.Triangles),
		zap.Uint64("version", n.Version),
		zap.Int("warnings", len(summary.Warnings)),
		zap.Duration("elapsed", p.opts.Now().Sub(s.StartedAt)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
