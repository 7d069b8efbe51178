package collector

import (
	"errors"
	"fmt"

	"github.com/crimson-sun/fluidity/internal/publish"
)

// ErrMissingConfig reports a required collector setting that is absent.
var ErrMissingConfig = errors.New("missing collector config")

// Config describes one collector: its identity, parse strategy, device and
// publish targets.
type Config struct {
	Site              string           `mapstructure:"site" yaml:"site"`
	Label             string           `mapstructure:"label" yaml:"label"`
	Type              string           `mapstructure:"collectorType" yaml:"collectorType"`
	Targets           []publish.Target `mapstructure:"targets" yaml:"targets"`
	KeepRaw           *bool            `mapstructure:"keepRaw" yaml:"keepRaw"`
	OmitTimestamp     bool             `mapstructure:"omitTimestamp" yaml:"omitTimestamp"`
	DeviceAddress     string           `mapstructure:"deviceAddress" yaml:"deviceAddress"`
	DeviceSpeed       int              `mapstructure:"deviceSpeed" yaml:"deviceSpeed,omitempty"`
	Delimiter         string           `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
	Description       string           `mapstructure:"description" yaml:"description,omitempty"`
	Extended          map[string]any   `mapstructure:"extendedOptions" yaml:"extendedOptions,omitempty"`
	MaxLinesPerSecond float64          `mapstructure:"maxLinesPerSecond" yaml:"maxLinesPerSecond,omitempty"`
}

// Validate checks the required settings and that every target is https.
func (c Config) Validate() error {
	switch {
	case len(c.Targets) == 0:
		return fmt.Errorf("%w: targets", ErrMissingConfig)
	case c.Site == "":
		return fmt.Errorf("%w: site", ErrMissingConfig)
	case c.Label == "":
		return fmt.Errorf("%w: label", ErrMissingConfig)
	case c.Type == "":
		return fmt.Errorf("%w: collectorType", ErrMissingConfig)
	case c.KeepRaw == nil:
		return fmt.Errorf("%w: keepRaw", ErrMissingConfig)
	}
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Name identifies the collector in logs.
func (c Config) Name() string {
	return c.Site + "/" + c.Label
}

// Bool returns a pointer to b, for building configs in code.
func Bool(b bool) *bool { return &b }
