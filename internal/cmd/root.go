// Package cmd wires fluidity's command line.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/fluidity/internal/config"
	"github.com/crimson-sun/fluidity/internal/logging"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand builds the fluidity command tree.
func NewRootCommand() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "fluidity",
		Short: "Fluidity streams device readings to web clients and webhook targets",
		Long: `Fluidity reads line-oriented instruments (serial, TCP, capture files, SSH),
formats each line into a sequenced packet, and distributes packets to HTTPS
targets, broker mirrors, and live web clients with history replay.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "config file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&f.logFormat, "log-format", "", "log format: text, json (overrides config)")

	root.AddCommand(
		newServeCommand(f),
		newWatchCommand(f),
		newHistoryCommand(f),
		newConfigCommand(f),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}

// load reads the config and applies flag overrides.
func (f *rootFlags) load() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	return cfg, nil
}

// logger builds the process logger from flags alone, for commands that do
// not need the config file.
func (f *rootFlags) logger() *slog.Logger {
	level, format := f.logLevel, f.logFormat
	if level == "" {
		level = "warn"
	}
	return logging.Init(format, logging.ParseLevel(level))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
