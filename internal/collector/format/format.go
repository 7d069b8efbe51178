// Package format holds the parse strategies that turn one raw device line
// into formatted fields. Strategies are selected by collector type.
package format

import (
	"errors"
	"fmt"
	"sort"

	"github.com/crimson-sun/fluidity/internal/model"
)

// ErrUnparseable marks a line the strategy could not format.
var ErrUnparseable = errors.New("unparseable line")

// Strategy converts a raw line into formatted fields.
type Strategy interface {
	Format(raw string) ([]model.FormattedField, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(raw string) ([]model.FormattedField, error)

func (f StrategyFunc) Format(raw string) ([]model.FormattedField, error) { return f(raw) }

// Constructor builds a strategy from the collector's extended options.
type Constructor func(opts map[string]any) (Strategy, error)

var registry = map[string]Constructor{}

// Register adds a strategy constructor under the given collector type.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get builds the strategy registered for the collector type.
func Get(name string, opts map[string]any) (Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown collector type: %s", name)
	}
	return ctor(opts)
}

// Types returns the names of all registered collector types, sorted.
func Types() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
