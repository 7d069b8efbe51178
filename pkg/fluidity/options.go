package fluidity

import (
	"log/slog"

	"github.com/gorilla/websocket"
)

type options struct {
	sites      []string
	collectors []string
	renderer   Renderer
	logger     *slog.Logger
	key        string
	dialer     *websocket.Dialer
}

// Option configures Watch.
type Option func(*options)

// WithSites activates site filters.
func WithSites(sites ...string) Option {
	return func(o *options) { o.sites = append(o.sites, sites...) }
}

// WithCollectors activates collector filters.
func WithCollectors(collectors ...string) Option {
	return func(o *options) { o.collectors = append(o.collectors, collectors...) }
}

// WithRenderer sets where placed packets are drawn. Default: nothing is drawn.
func WithRenderer(r Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithKey sends "Authorization: Bearer <key>" when connecting.
func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}
