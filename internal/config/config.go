// Package config loads fluidity's settings from a YAML file and FLUIDITY_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/fluidity/internal/collector"
	"github.com/crimson-sun/fluidity/internal/output/amqp"
	"github.com/crimson-sun/fluidity/internal/output/nats"
)

// DefaultPath is read when no config file is given.
const DefaultPath = "./fluidity.yaml"

const redacted = "***"

// Config holds all fluidity configuration.
type Config struct {
	Log        LogConfig          `mapstructure:"log" yaml:"log"`
	Server     ServerConfig       `mapstructure:"server" yaml:"server"`
	History    HistoryConfig      `mapstructure:"history" yaml:"history"`
	Archive    ArchiveConfig      `mapstructure:"archive" yaml:"archive"`
	Broker     BrokerConfig       `mapstructure:"broker" yaml:"broker"`
	Collectors []collector.Config `mapstructure:"collectors" yaml:"collectors"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Listen    string `mapstructure:"listen" yaml:"listen"`
	IngestKey string `mapstructure:"ingestKey" yaml:"ingestKey,omitempty"`
	Ingest    bool   `mapstructure:"ingest" yaml:"ingest"`
}

// HistoryConfig sizes the hub.
type HistoryConfig struct {
	Size   int `mapstructure:"size" yaml:"size"`
	Buffer int `mapstructure:"buffer" yaml:"buffer"`
}

// ArchiveConfig mirrors every packet to an NDJSON file and/or stdout.
type ArchiveConfig struct {
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
	MaxSize int64  `mapstructure:"maxSize" yaml:"maxSize,omitempty"`
	Stdout  bool   `mapstructure:"stdout" yaml:"stdout"`
	Pretty  bool   `mapstructure:"pretty" yaml:"pretty"`
	KeepRaw bool   `mapstructure:"keepRaw" yaml:"keepRaw"`
}

// BrokerConfig mirrors every packet to a message broker.
type BrokerConfig struct {
	Kind string      `mapstructure:"kind" yaml:"kind,omitempty"` // "", amqp, nats
	AMQP amqp.Config `mapstructure:"amqp" yaml:"amqp"`
	NATS nats.Config `mapstructure:"nats" yaml:"nats"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.ingestKey", "")
	v.SetDefault("server.ingest", true)
	v.SetDefault("history.size", 1000)
	v.SetDefault("history.buffer", 1024)
	v.SetDefault("archive.path", "")
	v.SetDefault("archive.maxSize", 0)
	v.SetDefault("archive.stdout", false)
	v.SetDefault("archive.pretty", false)
	v.SetDefault("archive.keepRaw", false)
	v.SetDefault("broker.kind", "")
	v.SetDefault("broker.amqp.url", "")
	v.SetDefault("broker.nats.url", "")
}

// Load reads path (or DefaultPath when empty) and applies FLUIDITY_*
// environment overrides, e.g. FLUIDITY_SERVER_LISTEN. A missing default
// file is not an error; a missing explicit file is.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FLUIDITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks server-level settings. Collector settings are checked by
// each collector so one bad collector does not stop the rest.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if c.History.Size <= 0 {
		errs = append(errs, fmt.Errorf("history.size must be positive, got %d", c.History.Size))
	}
	switch c.Broker.Kind {
	case "", "amqp", "nats":
	default:
		errs = append(errs, fmt.Errorf("broker.kind: unknown broker %q", c.Broker.Kind))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with target keys and secrets masked.
func (c Config) Redacted() Config {
	out := c
	if out.Server.IngestKey != "" {
		out.Server.IngestKey = redacted
	}
	out.Collectors = make([]collector.Config, len(c.Collectors))
	for i, cc := range c.Collectors {
		targets := append(cc.Targets[:0:0], cc.Targets...)
		for j := range targets {
			if targets[j].Key != "" {
				targets[j].Key = redacted
			}
		}
		cc.Targets = targets
		if pw, ok := cc.Extended["password"]; ok && pw != "" {
			ext := make(map[string]any, len(cc.Extended))
			for k, v := range cc.Extended {
				ext[k] = v
			}
			ext["password"] = redacted
			cc.Extended = ext
		}
		out.Collectors[i] = cc
	}
	return out
}

// YAML renders the redacted config.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}
