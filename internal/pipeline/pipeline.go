// Package pipeline supervises the configured collectors: each runs in its
// own goroutine, and a failing collector never stops the others.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/fluidity/internal/collector"
	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/metric"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics is passed on to every collector.
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCollectorOptions adds options applied to every collector.
func WithCollectorOptions(opts ...collector.Option) Option {
	return func(p *Pipeline) { p.copts = append(p.copts, opts...) }
}

// Pipeline connects configured collectors to one publisher.
type Pipeline struct {
	pub     collector.Publisher
	configs []collector.Config
	log     *slog.Logger
	metrics *metric.Metrics
	copts   []collector.Option

	mu     sync.Mutex
	failed map[string]error
}

// New creates a Pipeline for the given collector configs.
func New(pub collector.Publisher, configs []collector.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		pub:     pub,
		configs: configs,
		failed:  make(map[string]error),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = logging.OrDefault(p.log)
	return p
}

// Build constructs every collector. Configuration errors are logged and
// recorded; the failed collector is left out.
func (p *Pipeline) Build() []*collector.Collector {
	opts := append([]collector.Option{
		collector.WithLogger(p.log),
		collector.WithMetrics(p.metrics),
	}, p.copts...)

	var built []*collector.Collector
	for _, cfg := range p.configs {
		c, err := collector.New(cfg, p.pub, opts...)
		if err != nil {
			p.log.Error("collector config rejected", "site", cfg.Site, "collector", cfg.Label, "error", err)
			p.fail(cfg, err)
			continue
		}
		built = append(built, c)
	}
	return built
}

// Run builds and runs every collector until all have stopped or ctx is
// cancelled. Collector failures are logged and isolated.
func (p *Pipeline) Run(ctx context.Context) error {
	collectors := p.Build()
	p.log.Info("pipeline started", "collectors", len(collectors), "rejected", len(p.Failed()))

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range collectors {
		g.Go(func() error {
			if err := c.Run(ctx); err != nil {
				cfg := c.Config()
				p.log.Error("collector failed", "site", cfg.Site, "collector", cfg.Label, "error", err)
				p.fail(cfg, err)
			}
			return nil
		})
	}
	err := g.Wait()
	p.log.Info("pipeline stopped")
	return err
}

// Failed returns the error of each collector that was rejected or stopped
// with an error, keyed by site/label.
func (p *Pipeline) Failed() map[string]error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]error, len(p.failed))
	for k, v := range p.failed {
		out[k] = v
	}
	return out
}

func (p *Pipeline) fail(cfg collector.Config, err error) {
	p.mu.Lock()
	p.failed[cfg.Name()] = err
	p.mu.Unlock()
}
