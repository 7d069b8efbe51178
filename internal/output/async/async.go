package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async output closed")

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the packet) when the
// buffer is full, instead of blocking. Publish targets use this so a slow
// subscriber never stalls sequence assignment.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithDrainTimeout bounds how long Close waits for buffered packets. Default: 5s.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// Async decouples packet production from delivery via a buffered channel.
// The publisher writes into the channel; a background goroutine drains it
// to the wrapped output. Errors from the inner output are passed to errFunc
// rather than propagated to the caller.
type Async struct {
	inner        output.Output
	ch           chan model.Packet
	done         chan struct{}
	errFunc      func(error)
	bufSize      int
	dropOnFull   bool
	drainTimeout time.Duration

	mu     sync.RWMutex // guards closed against sends on a closed channel
	closed bool
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		errFunc:      func(err error) { slog.Warn("async output write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.Packet, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the packet into the channel. By default, blocks if the channel
// is full (backpressure). With WithDropOnFull, returns nil immediately and
// the packet is lost for this output only.
func (a *Async) Write(_ context.Context, p model.Packet) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	if a.dropOnFull {
		select {
		case a.ch <- p:
		default:
			slog.Warn("async output buffer full, dropping packet",
				"seq", p.Sequence, "site", p.Site, "collector", p.CollectorID)
		}
		return nil
	}
	a.ch <- p
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(a.drainTimeout):
		slog.Warn("async output drain timed out")
	}
	return a.inner.Close()
}

// drain reads packets from the channel and writes them to the inner output.
func (a *Async) drain() {
	defer close(a.done)
	for p := range a.ch {
		if err := a.inner.Write(context.Background(), p); err != nil {
			a.errFunc(err)
		}
	}
}
