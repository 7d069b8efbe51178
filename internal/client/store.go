// Package client holds the client-side packet store and filtering engine:
// it places history and live packets exactly once and decides which of
// them the active site and collector filters leave visible.
package client

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/model"
)

var (
	ErrNotInitialized     = errors.New("store not initialized")
	ErrAlreadyInitialized = errors.New("store already initialized")
)

// Placement says where a packet is rendered.
type Placement int

const (
	History Placement = iota
	Current
)

func (p Placement) String() string {
	if p == Current {
		return "current"
	}
	return "history"
}

// Renderer draws placed packets. Render errors are logged and ignored.
type Renderer interface {
	Render(p model.Packet, placement Placement, visible bool) error
	RenderStats(s Stats)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRenderer sets the renderer. A nil renderer renders nothing.
func WithRenderer(r Renderer) StoreOption {
	return func(s *Store) { s.renderer = r }
}

// WithFilter shares an existing filter engine.
func WithFilter(f *Filter) StoreOption {
	return func(s *Store) { s.filter = f }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// Store accepts one history batch and then live packets for a session.
type Store struct {
	renderer Renderer
	filter   *Filter
	log      *slog.Logger

	mu          sync.Mutex
	initialized bool
	demarcation uint64
	hasDemarc   bool
	accepted    map[uint64]struct{}
}

// NewStore returns an uninitialized store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{accepted: make(map[uint64]struct{})}
	for _, o := range opts {
		o(s)
	}
	if s.filter == nil {
		s.filter = NewFilter()
	}
	s.log = logging.OrDefault(s.log)
	return s
}

// Filter returns the store's filtering engine.
func (s *Store) Filter() *Filter { return s.filter }

// Initialize places the history packets, in order, and fixes the
// demarcation at the last history sequence. It may be called once.
func (s *Store) Initialize(history []model.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.initialized = true
	if n := len(history); n > 0 {
		s.demarcation = history[n-1].Sequence
		s.hasDemarc = true
	}
	for _, p := range history {
		s.place(p, History)
	}
	s.log.Debug("store initialized", "history", len(history), "demarcation", s.demarcation)
	return nil
}

// OnLivePacket places p if it is newer than the demarcation and was not
// already placed. It reports whether p was accepted.
func (s *Store) OnLivePacket(p model.Packet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return false, ErrNotInitialized
	}
	if s.hasDemarc && p.Sequence <= s.demarcation {
		s.log.Debug("dropped packet at or before demarcation", "seq", p.Sequence, "demarcation", s.demarcation)
		return false, nil
	}
	if _, dup := s.accepted[p.Sequence]; dup {
		s.log.Debug("dropped duplicate packet", "seq", p.Sequence)
		return false, nil
	}
	s.accepted[p.Sequence] = struct{}{}
	s.place(p, Current)
	return true, nil
}

// Demarcation returns the last history sequence, if history was non-empty.
func (s *Store) Demarcation() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demarcation, s.hasDemarc
}

func (s *Store) place(p model.Packet, placement Placement) {
	s.filter.Index(p)
	if s.renderer == nil {
		return
	}
	if err := s.renderer.Render(p, placement, s.filter.Visible(p.Sequence)); err != nil {
		s.log.Debug("render failed", "seq", p.Sequence, "error", err)
	}
	s.renderer.RenderStats(s.filter.Stats())
}
