package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/novvoo/go-docview/internal/logging"
)

// Status is the host-visible state of a session or target
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	}
	return "idle"
}

// RenderResult is the outcome of one render request
type RenderResult struct {
	Index   int // page (PDF) or section (EPUB)
	Page    int // page within the section (EPUB)
	Version uint64
	// Superseded is set when a newer request or End won; nothing was drawn.
	Superseded bool
	// Unchanged is set when navigation did not move and nothing was rendered.
	Unchanged bool
	Duration  time.Duration
}

// Request is a pending render started by navigation
type Request struct {
	Index   int
	Version uint64

	done   chan struct{}
	result RenderResult
	err    error
}

func newRequest(index int, version uint64) *Request {
	return &Request{Index: index, Version: version, done: make(chan struct{})}
}

func completedRequest(res RenderResult) *Request {
	r := newRequest(res.Index, res.Version)
	r.finish(res, nil)
	return r
}

func (r *Request) finish(res RenderResult, err error) {
	r.result, r.err = res, err
	close(r.done)
}

// Done is closed when the request has committed, failed or been superseded
func (r *Request) Done() <-chan struct{} { return r.done }

// Wait blocks until the request completes or ctx is done. A superseded
// request returns a result with Superseded set and a nil error. Cancelling
// ctx only stops waiting.
func (r *Request) Wait(ctx context.Context) (RenderResult, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return RenderResult{Index: r.Index, Version: r.Version}, ctx.Err()
	}
}

// SessionOption customises StartSession
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	scale  float64
	theme  string
	themes map[string]Theme
}

// WithScale overrides the PDF rasterization scale for one session
func WithScale(scale float64) SessionOption {
	return func(o *sessionOptions) {
		if scale > 0 {
			o.scale = scale
		}
	}
}

// WithTheme selects an EPUB theme before the first display
func WithTheme(name string) SessionOption {
	return func(o *sessionOptions) { o.theme = name }
}

// WithThemes registers extra EPUB themes before the first display
func WithThemes(themes map[string]Theme) SessionOption {
	return func(o *sessionOptions) {
		if o.themes == nil {
			o.themes = make(map[string]Theme, len(themes))
		}
		for name, t := range themes {
			o.themes[name] = t
		}
	}
}

// Session is one document shown in one target. It owns the Handle and, for
// EPUB, the Rendition; End releases both.
type Session struct {
	id       string
	identity string
	format   Format
	meta     Metadata
	scale    float64
	manager  *Manager
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	version  atomic.Uint64

	mu     sync.Mutex
	target Target
	handle Handle
	pages  PageHandle
	canvas Canvas
	flow   *Rendition
	nav    Navigator
	loc    Location
	status Status
	err    error
	ended  bool
}

// ID returns the session's unique id
func (s *Session) ID() string { return s.id }

// Format returns the document format
func (s *Session) Format() Format { return s.format }

// Identity returns the source fingerprint the session was started with
func (s *Session) Identity() string { return s.identity }

// Metadata returns the document metadata read at open
func (s *Session) Metadata() Metadata { return s.meta }

// State returns the navigation state. For EPUB, Current is the section.
func (s *Session) State() NavState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.State()
}

// Location returns the requested EPUB location
func (s *Session) Location() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Status returns the session status and, in StatusError, the terminal error
func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.err
}

// Handle returns the live document handle, nil after End
func (s *Session) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Rendition returns the live EPUB rendition, nil for PDF and after End
func (s *Session) Rendition() *Rendition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow
}

// usable returns why the session cannot accept work. s.mu must be held.
func (s *Session) usable() error {
	if s.ended {
		return ErrSessionEnded
	}
	if s.status == StatusError {
		return s.err
	}
	return nil
}

// Next moves forward one page (PDF) or one reflowed page (EPUB)
func (s *Session) Next() (*Request, error) {
	return s.step(1)
}

// Prev moves back one page
func (s *Session) Prev() (*Request, error) {
	return s.step(-1)
}

func (s *Session) step(delta int) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}

	if s.flow == nil {
		cur := s.nav.State().Current
		return s.goToPageLocked(cur + delta)
	}

	loc, moved, err := s.flow.Step(s.loc, delta)
	if err != nil {
		s.failLocked(err)
		return nil, err
	}
	if !moved {
		return completedRequest(RenderResult{Index: s.loc.Section, Page: s.loc.Page, Unchanged: true}), nil
	}
	return s.displayLocked(loc)
}

// GoTo moves to index clamped into [1, Total]. For EPUB the index is a
// section and the first page of it is shown.
func (s *Session) GoTo(index int) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}

	if s.flow == nil {
		return s.goToPageLocked(index)
	}
	total := s.nav.State().Total
	loc := Location{Section: min(max(index, 1), total), Page: 1}
	if loc == s.loc {
		return completedRequest(RenderResult{Index: loc.Section, Page: loc.Page, Unchanged: true}), nil
	}
	return s.displayLocked(loc)
}

func (s *Session) goToPageLocked(index int) (*Request, error) {
	changed, err := s.nav.GoTo(index)
	if err != nil {
		return nil, err
	}
	cur := s.nav.State().Current
	if !changed {
		return completedRequest(RenderResult{Index: cur, Unchanged: true}), nil
	}
	return s.rasterizeLocked(cur), nil
}

// rasterizeLocked starts rendering a PDF page. s.mu must be held.
func (s *Session) rasterizeLocked(index int) *Request {
	req := newRequest(index, s.version.Add(1))
	s.status = StatusLoading
	pages, canvas, scale := s.pages, s.canvas, s.scale

	go func() {
		start := time.Now()
		img, err := pages.Rasterize(s.ctx, index, scale)
		s.commit(req, start, err, func(res *RenderResult) error {
			if !canvas.Mounted() {
				return &RenderError{Kind: TargetUnavailable, Index: index}
			}
			b := img.Bounds()
			canvas.Resize(b.Dx(), b.Dy())
			if err := canvas.Draw(img); err != nil {
				return &RenderError{Kind: TargetUnavailable, Index: index, Err: err}
			}
			return nil
		})
	}()
	return req
}

// displayLocked starts showing an EPUB location. s.mu must be held.
func (s *Session) displayLocked(loc Location) (*Request, error) {
	if _, err := s.nav.GoTo(loc.Section); err != nil {
		return nil, err
	}
	s.loc = loc
	req := newRequest(loc.Section, s.version.Add(1))
	s.status = StatusLoading
	flow := s.flow

	go func() {
		start := time.Now()
		v, err := flow.Locate(loc)
		s.commit(req, start, err, func(res *RenderResult) error {
			res.Page = v.Page
			return flow.Commit(v)
		})
	}()
	return req, nil
}

// commit applies a finished render if its version is still current. The
// version check and the write into the target happen under s.mu, so End and
// newer requests can never be overwritten by a stale result.
func (s *Session) commit(req *Request, start time.Time, err error, apply func(*RenderResult) error) {
	res := RenderResult{Index: req.Index, Version: req.Version}

	s.mu.Lock()
	switch {
	case s.ended || s.version.Load() != req.Version:
		res.Superseded = true
		err = nil
	case err != nil:
		s.failLocked(err)
	default:
		if err = apply(&res); err != nil {
			s.failLocked(err)
		} else {
			s.status = StatusReady
		}
	}
	s.mu.Unlock()

	res.Duration = time.Since(start)
	outcome := "committed"
	switch {
	case res.Superseded:
		outcome = "superseded"
	case err != nil:
		outcome = "failed"
	}
	logging.RenderEvent(s.logger, s.id, req.Index, req.Version, outcome, res.Duration, err)
	req.finish(res, err)
}

// failLocked moves the session into its terminal error state
func (s *Session) failLocked(err error) {
	s.status = StatusError
	s.err = err
}

// Resize re-paginates an EPUB session after the container changed size and
// shows the page holding the paragraph that was at the top.
func (s *Session) Resize() (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if s.flow == nil {
		return nil, ErrNoRendition
	}
	loc, err := s.flow.Reflow()
	if err != nil {
		s.failLocked(err)
		return nil, err
	}
	return s.displayLocked(loc)
}

// RegisterTheme adds a theme to the EPUB rendition
func (s *Session) RegisterTheme(name string, t Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if s.flow == nil {
		return ErrNoRendition
	}
	s.flow.RegisterTheme(name, t)
	return nil
}

// SelectTheme restyles the EPUB rendition. Unknown names are reported as a
// ThemeError and leave the current theme applied.
func (s *Session) SelectTheme(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.flow == nil {
		return ErrNoRendition
	}
	err := s.flow.SelectTheme(name)
	var te *ThemeError
	var re *RenderError
	switch {
	case errors.As(err, &te):
		s.logger.Warn("theme selection ignored", "theme", name, "error", err)
	case errors.As(err, &re):
		s.failLocked(err)
	}
	return err
}

// Theme returns the theme on screen, "" for PDF
func (s *Session) Theme() string {
	s.mu.Lock()
	flow := s.flow
	s.mu.Unlock()
	if flow == nil {
		return ""
	}
	return flow.Theme()
}

// End destroys the rendition, then disposes the handle and forgets the
// target. In-flight renders are superseded. End is idempotent.
func (s *Session) End() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.version.Add(1)
	s.cancel()

	if s.flow != nil {
		s.flow.Destroy()
	}
	var err error
	if s.handle != nil {
		err = s.handle.Dispose()
	}
	target := s.target
	s.flow, s.handle, s.pages, s.canvas, s.target = nil, nil, nil, nil, nil
	s.status, s.err = StatusIdle, nil
	s.mu.Unlock()

	if s.manager != nil {
		s.manager.release(target, s)
	}
	logging.SessionEvent(s.logger, "end", s.id, s.format.String())
	if err != nil {
		return fmt.Errorf("dispose %s handle: %w", s.format, err)
	}
	return nil
}

// Manager owns the sessions of a host, at most one per target. Every start
// and unmount bumps the target's generation; a start that finds its
// generation stale ends its own session instead of binding it.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[Target]*Session
	pending  map[Target]*Session
	gens     map[Target]uint64
	loading  map[Target]int
	failures map[Target]error
}

// NewManager creates a session manager
func NewManager(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[Target]*Session),
		pending:  make(map[Target]*Session),
		gens:     make(map[Target]uint64),
		loading:  make(map[Target]int),
		failures: make(map[Target]error),
	}
}

// detach forgets every session of target and returns them for ending.
// m.mu must be held.
func (m *Manager) detach(target Target) []*Session {
	var out []*Session
	if s := m.sessions[target]; s != nil {
		out = append(out, s)
	}
	if s := m.pending[target]; s != nil {
		out = append(out, s)
	}
	delete(m.sessions, target)
	delete(m.pending, target)
	delete(m.failures, target)
	m.gens[target]++
	return out
}

func (m *Manager) endAll(sessions []*Session, reason string) {
	for _, s := range sessions {
		if err := s.End(); err != nil {
			m.logger.Warn(reason, "session_id", s.id, "error", err)
		}
	}
}

// StartSession ends any session already showing in target, or still being
// started for it, then detects and opens src, binds it to target and
// renders the first page. It returns once the first page is on screen. On
// failure no handle is retained and the target reports StatusError. A start
// overtaken by a newer StartSession or an Unmount of the same target ends
// its session and returns ErrSessionEnded.
func (m *Manager) StartSession(ctx context.Context, src Source, target Target, opts ...SessionOption) (*Session, error) {
	if target == nil {
		return nil, &RenderError{Kind: TargetUnavailable, Index: 1}
	}

	m.mu.Lock()
	replaced := m.detach(target)
	gen := m.gens[target]
	m.loading[target]++
	m.mu.Unlock()

	m.endAll(replaced, "ending replaced session")

	s, err := m.start(ctx, src, target, gen, opts)

	m.mu.Lock()
	if m.loading[target]--; m.loading[target] <= 0 {
		delete(m.loading, target)
	}
	current := m.gens[target] == gen
	if m.pending[target] == s && s != nil {
		delete(m.pending, target)
	}
	switch {
	case !current:
		m.mu.Unlock()
		if s != nil {
			s.End()
		}
		if err == nil {
			err = ErrSessionEnded
		}
		return nil, err
	case err != nil:
		m.failures[target] = err
		m.mu.Unlock()
		return nil, err
	}
	m.sessions[target] = s
	m.mu.Unlock()
	return s, nil
}

// reserve records s as the session being started for target, unless a newer
// start or an unmount has already claimed the target.
func (m *Manager) reserve(target Target, gen uint64, s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[target] != gen {
		return false
	}
	m.pending[target] = s
	return true
}

func (m *Manager) start(ctx context.Context, src Source, target Target, gen uint64, opts []SessionOption) (*Session, error) {
	o := sessionOptions{scale: m.cfg.Scale}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	logger := m.logger.With("session_id", id)

	h, err := m.cfg.Opener.Open(src)
	if err != nil {
		logger.Error("open failed", "content_type", src.ContentType, "size", len(src.Data), "error", err)
		return nil, err
	}

	sctx, cancel := context.WithCancel(logging.WithSessionID(context.WithoutCancel(ctx), id))
	s := &Session{
		id:       id,
		identity: src.Identity(),
		format:   h.Format(),
		meta:     h.Metadata(),
		scale:    o.scale,
		manager:  m,
		logger:   logger,
		ctx:      sctx,
		cancel:   cancel,
		target:   target,
		handle:   h,
		status:   StatusLoading,
	}

	switch h := h.(type) {
	case PageHandle:
		canvas, ok := target.(Canvas)
		if !ok {
			s.End()
			return nil, &RenderError{Kind: TargetUnavailable, Index: 1, Err: fmt.Errorf("%s session needs a Canvas, got %T", h.Format(), target)}
		}
		s.pages, s.canvas = h, canvas
	case FlowHandle:
		container, ok := target.(Container)
		if !ok {
			s.End()
			return nil, &RenderError{Kind: TargetUnavailable, Index: 1, Err: fmt.Errorf("%s session needs a Container, got %T", h.Format(), target)}
		}
		s.flow = NewRendition(h, container, m.cfg.DefaultTheme)
		for name, t := range o.themes {
			s.flow.RegisterTheme(name, t)
		}
		if o.theme != "" {
			if err := s.flow.SelectTheme(o.theme); err != nil {
				logger.Warn("theme selection ignored", "theme", o.theme, "error", err)
			}
		}
	default:
		s.End()
		return nil, &ParseError{Kind: Unsupported, Format: h.Format()}
	}

	if err := s.nav.Reset(h.PageCount()); err != nil {
		s.End()
		return nil, &ParseError{Kind: Malformed, Format: h.Format(), Err: err}
	}
	logging.SessionEvent(logger, "start", id, s.format.String(),
		"pages", h.PageCount(), "identity", s.identity[:16])

	if !m.reserve(target, gen, s) {
		s.End()
		return nil, ErrSessionEnded
	}

	s.mu.Lock()
	var req *Request
	switch {
	case s.ended:
		err = ErrSessionEnded
	case s.flow != nil:
		s.loc = Location{Section: 1, Page: 1}
		req, err = s.displayLocked(s.loc)
	default:
		req = s.rasterizeLocked(1)
	}
	s.mu.Unlock()
	if err == nil {
		var res RenderResult
		res, err = req.Wait(ctx)
		if err == nil && res.Superseded {
			err = ErrSessionEnded
		}
	}
	if err != nil {
		s.End()
		return nil, err
	}
	return s, nil
}

// EndSession ends s. It is equivalent to s.End.
func (m *Manager) EndSession(s *Session) error {
	if s == nil {
		return nil
	}
	return s.End()
}

// Unmount ends the session showing in target, if any, and any session still
// being started for it. Hosts call it when the target goes away even if no
// new session follows.
func (m *Manager) Unmount(target Target) error {
	m.mu.Lock()
	sessions := m.detach(target)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.End())
	}
	return errors.Join(errs...)
}

// Session returns the session showing in target
func (m *Manager) Session(target Target) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[target]
	return s, ok
}

// Status reports the state of a target: its session's status, loading while
// a session is being started, or the error of the last failed start.
func (m *Manager) Status(target Target) (Status, error) {
	m.mu.Lock()
	s := m.sessions[target]
	loading := m.loading[target] > 0
	failure := m.failures[target]
	m.mu.Unlock()

	switch {
	case s != nil:
		return s.Status()
	case loading:
		return StatusLoading, nil
	case failure != nil:
		return StatusError, failure
	}
	return StatusIdle, nil
}

// Active returns the number of live sessions
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) release(target Target, s *Session) {
	if target == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[target] == s {
		delete(m.sessions, target)
	}
	if m.pending[target] == s {
		delete(m.pending, target)
	}
}
