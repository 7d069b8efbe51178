package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/fluidity/internal/config"
	"github.com/crimson-sun/fluidity/internal/hub"
	"github.com/crimson-sun/fluidity/internal/logging"
	"github.com/crimson-sun/fluidity/internal/metric"
	"github.com/crimson-sun/fluidity/internal/output"
	"github.com/crimson-sun/fluidity/internal/output/amqp"
	"github.com/crimson-sun/fluidity/internal/output/async"
	"github.com/crimson-sun/fluidity/internal/output/file"
	"github.com/crimson-sun/fluidity/internal/output/multi"
	"github.com/crimson-sun/fluidity/internal/output/nats"
	"github.com/crimson-sun/fluidity/internal/output/stdout"
	"github.com/crimson-sun/fluidity/internal/pipeline"
	"github.com/crimson-sun/fluidity/internal/publish"
	"github.com/crimson-sun/fluidity/internal/server"
)

func newServeCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the collectors, publisher and web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			log := logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// serve runs until ctx is cancelled or the web server fails.
func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metric.New()
	h := hub.New(
		hub.WithHistorySize(cfg.History.Size),
		hub.WithBuffer(cfg.History.Buffer),
		hub.WithLogger(log),
		hub.WithMetrics(m),
	)
	defer h.Close()

	pubOpts := []publish.Option{publish.WithLogger(log), publish.WithMetrics(m)}
	mirror, err := buildMirror(ctx, cfg, log)
	if err != nil {
		return err
	}
	if mirror != nil {
		pubOpts = append(pubOpts, publish.WithMirror(mirror))
	}
	pub := publish.New(h, pubOpts...)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("publisher close", "error", err)
		}
	}()

	srvOpts := []server.Option{
		server.WithAddr(cfg.Server.Listen),
		server.WithMetrics(m),
		server.WithLogger(log),
	}
	if cfg.Server.Ingest {
		srvOpts = append(srvOpts, server.WithIngester(pub), server.WithIngestKey(cfg.Server.IngestKey))
	}
	srv := server.New(h, srvOpts...)
	pl := pipeline.New(pub, cfg.Collectors, pipeline.WithLogger(log), pipeline.WithMetrics(m))

	log.Info("fluidity starting", "listen", cfg.Server.Listen, "collectors", len(cfg.Collectors))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return pl.Run(gctx) })
	err = g.Wait()
	log.Info("fluidity stopped", "published", pub.Sequence())
	return err
}

// buildMirror combines the archive and broker outputs behind one
// non-blocking queue. It returns nil when none is configured.
func buildMirror(ctx context.Context, cfg config.Config, log *slog.Logger) (output.Output, error) {
	mirrors := multi.New()
	if cfg.Archive.Path != "" {
		fo, err := file.New(cfg.Archive.Path, cfg.Archive.KeepRaw, file.WithMaxSize(cfg.Archive.MaxSize))
		if err != nil {
			return nil, err
		}
		mirrors.Add("archive", fo)
	}
	if cfg.Archive.Stdout {
		mirrors.Add("stdout", stdout.New(cfg.Archive.KeepRaw, cfg.Archive.Pretty))
	}

	switch cfg.Broker.Kind {
	case "amqp":
		b := amqp.New(cfg.Broker.AMQP)
		if err := b.Connect(ctx); err != nil {
			mirrors.Close()
			return nil, fmt.Errorf("broker: %w", err)
		}
		mirrors.Add("amqp", b)
	case "nats":
		b := nats.New(cfg.Broker.NATS)
		if err := b.Connect(ctx); err != nil {
			mirrors.Close()
			return nil, fmt.Errorf("broker: %w", err)
		}
		mirrors.Add("nats", b)
	}

	if mirrors.Len() == 0 {
		return nil, nil
	}
	log.Info("mirrors configured", "mirrors", mirrors.Names())
	return async.New(mirrors,
		async.WithDropOnFull(),
		async.WithOnError(func(err error) {
			log.Warn("mirror write failed", "error", err)
		}),
	), nil
}
