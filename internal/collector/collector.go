// Package collector turns lines read from one input device into draft
// packets and hands them to the publisher.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/crimson-sun/fluidity/internal/collector/format"
	"github.com/crimson-sun/fluidity/internal/device"
	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/metric"
	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/publish"
)

// Publisher sequences drafts and dispatches them to targets.
type Publisher interface {
	Publish(ctx context.Context, d publish.Draft, targets []publish.Target) (model.Packet, error)
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

// WithMetrics records line counters.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithClock replaces time.Now for packet timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithStrategy overrides the strategy selected by collector type.
func WithStrategy(s format.Strategy) Option {
	return func(c *Collector) { c.strategy = s }
}

// WithBinding overrides the binding selected by device address.
func WithBinding(b device.Binding) Option {
	return func(c *Collector) { c.binding = b }
}

// Collector reads one device and publishes a packet per line.
type Collector struct {
	cfg      Config
	keepRaw  bool
	pub      Publisher
	strategy format.Strategy
	binding  device.Binding
	limiter  *rate.Limiter
	log      *slog.Logger
	metrics  *metric.Metrics
	now      func() time.Time
}

// New validates cfg and builds a collector. It never returns a partially
// configured collector.
func New(cfg Config, pub Publisher, opts ...Option) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Collector{
		cfg:     cfg,
		keepRaw: *cfg.KeepRaw,
		pub:     pub,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logging.OrDefault(c.log).With("site", cfg.Site, "collector", cfg.Label)

	if c.strategy == nil {
		s, err := format.Get(cfg.Type, cfg.Extended)
		if err != nil {
			return nil, fmt.Errorf("collector %s: %w", cfg.Name(), err)
		}
		c.strategy = s
	}
	if c.binding == nil {
		b, err := device.New(device.Settings{
			Address:   cfg.DeviceAddress,
			Speed:     cfg.DeviceSpeed,
			Delimiter: cfg.Delimiter,
			Extended:  cfg.Extended,
		})
		if err != nil {
			return nil, fmt.Errorf("collector %s: %w", cfg.Name(), err)
		}
		c.binding = b
	}
	if cfg.MaxLinesPerSecond > 0 {
		burst := int(cfg.MaxLinesPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxLinesPerSecond), burst)
	}
	return c, nil
}

// Config returns the collector's configuration.
func (c *Collector) Config() Config { return c.cfg }

// OnLine formats one raw line and publishes it. The strategy sees the
// normalized text; the raw payload keeps the line as read. Lines the
// strategy rejects are logged and skipped; the returned packet is then the
// zero value.
func (c *Collector) OnLine(ctx context.Context, raw string) (model.Packet, error) {
	c.metrics.LineRead(c.cfg.Site, c.cfg.Label)

	fields, err := c.strategy.Format(normalize(raw))
	if err != nil {
		c.metrics.LineRejected(c.cfg.Site, c.cfg.Label)
		c.log.Warn("line rejected", "error", err)
		return model.Packet{}, nil
	}

	draft := model.Packet{
		Site:            c.cfg.Site,
		CollectorID:     c.cfg.Label,
		Description:     c.cfg.Description,
		FormattedFields: fields,
	}
	if !c.cfg.OmitTimestamp {
		ts := c.now()
		draft.Timestamp = &ts
	}
	if c.keepRaw {
		r := raw
		draft.RawPayload = &r
	}

	p, err := c.pub.Publish(ctx, publish.Draft{Packet: draft, KeepRaw: c.keepRaw}, c.cfg.Targets)
	if err != nil {
		return p, fmt.Errorf("publish: %w", err)
	}
	return p, nil
}

// Run opens the device and calls OnLine for each line, one at a time, until
// the device ends, a read fails, or ctx is cancelled. A cancelled context is
// not an error.
func (c *Collector) Run(ctx context.Context) error {
	rc, err := c.binding.Open(ctx)
	if err != nil {
		return fmt.Errorf("collector %s: open device: %w", c.cfg.Name(), err)
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		rc.Close()
	}()

	lines := make(chan model.RawLine)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		readErr <- device.Lines(ctx, rc, c.binding.Delimiter(), c.cfg.DeviceAddress, lines)
	}()

	c.log.Info("collector started", "device", c.cfg.DeviceAddress)
	for line := range lines {
		if normalize(line.Text) == "" {
			continue
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				break
			}
		}
		if _, err := c.OnLine(ctx, line.Text); err != nil {
			c.log.Error("publish failed", "error", err)
		}
	}
	cancel()
	for range lines {
	}

	err = <-readErr
	if err == nil || errors.Is(err, io.EOF) || parent.Err() != nil {
		c.log.Info("collector stopped")
		return nil
	}
	c.log.Error("device read failed", "error", err)
	return fmt.Errorf("collector %s: read device: %w", c.cfg.Name(), err)
}

// normalize strips line terminators and applies NFC.
func normalize(s string) string {
	s = strings.TrimRight(s, "\r\n")
	return norm.NFC.String(s)
}
