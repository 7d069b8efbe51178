package publish

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/metric"
	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/output"
	"github.com/crimson-sun/fluidity/internal/output/async"
	"github.com/crimson-sun/fluidity/internal/output/webhook"
)

// ErrClosed is reported by Publish after Close for targets that would need a new output.
var ErrClosed = errors.New("publisher closed")

// Distributor receives every finalized packet for client delivery.
type Distributor interface {
	Deliver(p model.Packet)
}

// Draft is a packet that has not been sequenced, plus the policy that scopes
// what targets may see of it.
type Draft struct {
	Packet  model.Packet
	KeepRaw bool
}

// OutputFactory builds the output used to reach one target.
type OutputFactory func(t Target, keepRaw bool) output.Output

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.log = l }
}

// WithMetrics records publish counters.
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithOutputFactory replaces how target outputs are built.
func WithOutputFactory(f OutputFactory) Option {
	return func(p *Publisher) { p.factory = f }
}

// WithMirror adds an output that receives every finalized packet regardless
// of targets (broker mirrors, archive files).
func WithMirror(o output.Output) Option {
	return func(p *Publisher) { p.mirrors = append(p.mirrors, o) }
}

// Publisher assigns sequence numbers and fans packets out to targets and the
// distribution hub. It is shared by every collector feeding the same hub.
type Publisher struct {
	dist    Distributor
	log     *slog.Logger
	metrics *metric.Metrics
	factory OutputFactory
	mirrors []output.Output

	seq atomic.Uint64
	// order serializes sequence assignment with hub delivery so the hub sees
	// packets in sequence order.
	order sync.Mutex

	mu      sync.Mutex
	targets map[string]output.Output
	closed  bool
}

// New creates a Publisher delivering to dist (which may be nil).
func New(dist Distributor, opts ...Option) *Publisher {
	p := &Publisher{
		dist:    dist,
		targets: make(map[string]output.Output),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrDefault(p.log)
	if p.factory == nil {
		p.factory = p.defaultFactory
	}
	return p
}

// defaultFactory sends to a target over HTTPS without blocking the publisher:
// the webhook is wrapped in a drop-on-full async writer whose errors are logged.
func (p *Publisher) defaultFactory(t Target, keepRaw bool) output.Output {
	hook := webhook.New(t.Location, webhook.WithKey(t.Key), webhook.WithKeepRaw(keepRaw))
	return async.New(hook,
		async.WithDropOnFull(),
		async.WithOnError(func(err error) {
			p.metrics.TargetError()
			p.log.Warn("target delivery failed", "target", t.Location, "error", err)
		}),
	)
}

// Sequence returns the last sequence number assigned.
func (p *Publisher) Sequence() uint64 {
	return p.seq.Load()
}

// Publish finalizes the draft and dispatches it.
//
// The sequence is assigned and the packet handed to the hub before any
// target is contacted. Each target is then handled independently: a target
// that fails validation is logged and skipped without affecting the others.
// Target sends are fire-and-forget. The returned error joins the validation
// failures of this pass; the packet is published regardless.
func (p *Publisher) Publish(ctx context.Context, d Draft, targets []Target) (model.Packet, error) {
	p.order.Lock()
	pkt := d.Packet.Clone()
	pkt.Sequence = p.seq.Add(1)
	if p.dist != nil {
		p.dist.Deliver(pkt.Clone())
	}
	p.order.Unlock()

	p.metrics.PacketPublished(pkt.Site, pkt.CollectorID)
	p.log.Debug("packet published", "seq", pkt.Sequence, "site", pkt.Site, "collector", pkt.CollectorID,
		"emitted", time.Now().UTC())

	var errs []error
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			p.metrics.TargetRejectedFor(t.Location)
			p.log.Error("target rejected", "target", t.Location, "seq", pkt.Sequence, "error", err)
			errs = append(errs, err)
			continue
		}
		out, err := p.outputFor(t, d.KeepRaw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := out.Write(ctx, pkt); err != nil {
			p.metrics.TargetError()
			p.log.Warn("target delivery failed", "target", t.Location, "seq", pkt.Sequence, "error", err)
		}
	}

	for _, m := range p.mirrors {
		if err := m.Write(ctx, pkt); err != nil {
			p.log.Warn("mirror write failed", "seq", pkt.Sequence, "error", err)
		}
	}
	return pkt, errors.Join(errs...)
}

func (p *Publisher) outputFor(t Target, keepRaw bool) (output.Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := t.id()
	if keepRaw {
		key += "\x00raw"
	}
	if out, ok := p.targets[key]; ok {
		return out, nil
	}
	if p.closed {
		return nil, ErrClosed
	}
	out := p.factory(t, keepRaw)
	p.targets[key] = out
	return out, nil
}

// Close flushes and closes every target output and mirror.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	outs := make([]output.Output, 0, len(p.targets))
	for _, o := range p.targets {
		outs = append(outs, o)
	}
	p.targets = make(map[string]output.Output)
	p.mu.Unlock()

	var errs []error
	for _, o := range append(outs, p.mirrors...) {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
