// Package webhook delivers finalized packets to subscriber targets over HTTPS.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/crimson-sun/fluidity/internal/httpclient"
	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/output"
)

const (
	defaultBatchSize     = 1
	defaultFlushInterval = time.Second
	defaultTimeout       = 10 * time.Second
)

// Option configures a webhook Output.
type Option func(*Output)

// WithKey sets the target key, sent as a Bearer token with every POST.
func WithKey(key string) Option {
	return func(o *Output) { o.key = key }
}

// WithBatchSize sets how many packets are posted together. Default: 1,
// which posts each packet as a single JSON object. Larger batches are
// posted as a JSON array.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval bounds how long a partial batch waits. Default: 1s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the per-request timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.timeout = d }
}

// WithHTTPClient replaces the HTTP client, e.g. one trusting a private CA.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Output) { o.httpClient = c }
}

// WithKeepRaw controls whether raw payloads are forwarded. Default: false.
func WithKeepRaw(keep bool) Option {
	return func(o *Output) { o.keepRaw = keep }
}

// WithBackoff sets the first retry delay. Default: 1s, doubled per attempt.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithOnError sets the callback for failed timer flushes.
// Default: a warning on the default logger.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output posts packets to one target. A 429 or 5xx response is retried
// with backoff; other failures are returned.
type Output struct {
	url           string
	key           string
	keepRaw       bool
	batchSize     int
	flushInterval time.Duration
	timeout       time.Duration
	backoff       time.Duration
	httpClient    *http.Client
	errFunc       func(error)
	client        *httpclient.Client

	mu      sync.Mutex
	pending []model.Packet
	timer   *time.Timer
}

var _ output.Output = (*Output)(nil)

// New creates a webhook output posting to url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		timeout:       defaultTimeout,
		backoff:       time.Second,
		errFunc:       func(err error) { slog.Warn("webhook flush failed", "target", url, "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}

	copts := []httpclient.Option{httpclient.WithBackoff(o.backoff)}
	if o.httpClient != nil {
		copts = append(copts, httpclient.WithHTTPClient(o.httpClient))
	} else {
		copts = append(copts, httpclient.WithTimeout(o.timeout))
	}
	o.client = httpclient.New(url, o.key, copts...)
	return o
}

// Write queues p, posting the batch once it is full. The first packet of a
// batch arms a timer so a partial batch is still delivered.
func (o *Output) Write(ctx context.Context, p model.Packet) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, output.FormatPacket(p, o.keepRaw))
	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}
	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close posts any partial batch.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushLocked(context.Background())
}

// flushLocked posts the pending batch. Caller holds o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if len(o.pending) == 0 {
		return nil
	}
	batch := o.pending
	o.pending = nil

	var body any = batch
	if o.batchSize <= 1 && len(batch) == 1 {
		body = batch[0]
	}
	if err := o.client.PostJSON(ctx, "", body, nil); err != nil {
		return fmt.Errorf("webhook %s: seq %d-%d: %w", o.url, batch[0].Sequence, batch[len(batch)-1].Sequence, err)
	}
	return nil
}
