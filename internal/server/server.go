// Package server exposes the hub over HTTP: history, server-sent events,
// a websocket stream, packet ingestion and operational endpoints.
package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/fluidity/internal/hub"
	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/metric"
	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/publish"
)

//go:embed all:web
var webFS embed.FS

// Ingester sequences packets posted by remote publishers.
type Ingester interface {
	Publish(ctx context.Context, d publish.Draft, targets []publish.Target) (model.Packet, error)
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Default: ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithIngester enables POST /FIFO.
func WithIngester(in Ingester) Option {
	return func(s *Server) { s.ingest = in }
}

// WithIngestKey requires "Authorization: Bearer <key>" on POST /FIFO.
func WithIngestKey(key string) Option {
	return func(s *Server) { s.ingestKey = key }
}

// WithMetrics serves /metrics from m.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithPingInterval sets the websocket keepalive interval. Default: 30s.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.ping = d }
}

// Server holds the gin engine and its dependencies.
type Server struct {
	engine    *gin.Engine
	hub       *hub.Hub
	ingest    Ingester
	ingestKey string
	metrics   *metric.Metrics
	log       *slog.Logger
	addr      string
	ping      time.Duration
	started   time.Time
}

// New creates the HTTP server for h.
func New(h *hub.Hub, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:  engine,
		hub:     h,
		addr:    ":8080",
		ping:    30 * time.Second,
		started: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = logging.OrDefault(s.log)
	s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	web, _ := fs.Sub(webFS, "web")
	s.engine.GET("/", serveEmbedded(web, "index.html", "text/html; charset=utf-8"))

	s.engine.GET("/FIFO", s.handleHistory)
	s.engine.POST("/FIFO", s.handleIngest)
	s.engine.GET("/SSE", s.handleSSE)
	s.engine.GET("/ws", s.handleWebSocket)

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"uptime":      time.Since(s.started).Round(time.Second).String(),
			"subscribers": s.hub.Subscribers(),
			"history":     len(s.hub.History()),
			"dropped":     s.hub.Dropped(),
		})
	})
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

func serveEmbedded(web fs.FS, name, contentType string) gin.HandlerFunc {
	data, err := fs.ReadFile(web, name)
	return func(c *gin.Context) {
		if err != nil {
			c.String(http.StatusNotFound, "file not found: %s", name)
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams watch their request context, so they end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}
