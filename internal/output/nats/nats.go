// Package nats mirrors published packets onto NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/output"
)

var ErrNotConnected = errors.New("nats output: not connected")

// Config holds the connection settings.
type Config struct {
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subjectPrefix" yaml:"subjectPrefix"`
	KeepRaw       bool   `mapstructure:"keepRaw" yaml:"keepRaw"`
}

// Output publishes each packet to <prefix>.<site>.<collector>.
type Output struct {
	cfg Config
	mu  sync.Mutex
	nc  *nats.Conn
}

var _ output.Output = (*Output)(nil)

// New creates an unconnected output. Call Connect before Write.
func New(cfg Config) *Output {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "fluidity.packets"
	}
	return &Output{cfg: cfg}
}

// Connect opens the NATS connection with unlimited reconnects.
func (o *Output) Connect(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.nc != nil {
		return nil
	}
	nc, err := nats.Connect(o.cfg.URL,
		nats.Name("fluidity"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("nats output: connect %s: %w", o.cfg.URL, err)
	}
	o.nc = nc
	return nil
}

// Subject returns the subject a packet is published on.
func (o *Output) Subject(p model.Packet) string {
	return o.cfg.SubjectPrefix + "." + token(p.Site) + "." + token(p.CollectorID)
}

func (o *Output) Write(_ context.Context, p model.Packet) error {
	o.mu.Lock()
	nc := o.nc
	o.mu.Unlock()
	if nc == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(output.FormatPacket(p, o.cfg.KeepRaw))
	if err != nil {
		return fmt.Errorf("nats output: marshal: %w", err)
	}
	if err := nc.Publish(o.Subject(p), data); err != nil {
		return fmt.Errorf("nats output: publish: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.nc == nil {
		return nil
	}
	err := o.nc.Drain()
	o.nc = nil
	return err
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
