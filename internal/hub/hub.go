// Package hub is the distribution boundary: it keeps a bounded history of
// finalized packets and fans every new packet out to subscribed clients.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/metric"
	"github.com/crimson-sun/fluidity/internal/model"
)

const (
	DefaultHistorySize = 1000
	subscriberBuffer   = 1024
)

// Session is one subscribed client. History holds the packets delivered
// before the session subscribed; C receives every packet after that.
type Session struct {
	ID      string
	History []model.Packet
	C       <-chan model.Packet

	ch chan model.Packet
}

// Option configures a Hub.
type Option func(*Hub)

// WithHistorySize bounds the history ring. Default: 1000.
func WithHistorySize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.historySize = n
		}
	}
}

// WithBuffer sets the per-session channel buffer. Default: 1024.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithMetrics records drops and the subscriber gauge.
func WithMetrics(m *metric.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// Hub stores history and broadcasts packets to sessions.
type Hub struct {
	historySize int
	buffer      int
	log         *slog.Logger
	metrics     *metric.Metrics

	mu       sync.RWMutex
	history  *ring
	sessions map[string]*Session
	dropped  int64
	closed   bool
}

// New creates an empty Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		historySize: DefaultHistorySize,
		buffer:      subscriberBuffer,
		sessions:    make(map[string]*Session),
	}
	for _, o := range opts {
		o(h)
	}
	h.log = logging.OrDefault(h.log)
	h.history = newRing(h.historySize)
	return h
}

// Deliver appends p to history and sends it to every session. A session
// whose buffer is full misses the packet; the drop is counted.
func (h *Hub) Deliver(p model.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.history.push(p)
	for id, s := range h.sessions {
		select {
		case s.ch <- p:
		default:
			h.dropped++
			h.metrics.HubDrop()
			h.log.Warn("dropped packet for slow consumer", "session", id, "seq", p.Sequence, "dropped", h.dropped)
		}
	}
}

// Subscribe registers a new session. Its history snapshot and live channel
// are taken under one lock, so no packet is both in History and on C, and
// none is missing between them.
func (h *Hub) Subscribe() *Session {
	ch := make(chan model.Packet, h.buffer)
	s := &Session{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	s.History = h.history.snapshot()
	if h.closed {
		close(ch)
		return s
	}
	h.sessions[s.ID] = s
	h.metrics.SetSubscribers(len(h.sessions))
	h.log.Debug("session subscribed", "session", s.ID, "history", len(s.History))
	return s
}

// HistoryFor returns the history snapshot taken when the session subscribed.
func (h *Hub) HistoryFor(id string) ([]model.Packet, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, false
	}
	return s.History, true
}

// History returns the current history, oldest first.
func (h *Hub) History() []model.Packet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.history.snapshot()
}

// Unsubscribe removes the session and closes its channel. Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return
	}
	delete(h.sessions, id)
	close(s.ch)
	h.metrics.SetSubscribers(len(h.sessions))
	h.log.Debug("session unsubscribed", "session", id)
}

// Subscribers returns the number of live sessions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Dropped returns the total number of packets dropped for slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close closes every session channel. Later deliveries are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.sessions {
		close(s.ch)
		delete(h.sessions, id)
	}
	h.metrics.SetSubscribers(0)
}
