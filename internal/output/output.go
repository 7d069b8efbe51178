package output

import (
	"context"

	"github.com/crimson-sun/fluidity/internal/model"
)

// Output defines the interface for packet destinations: publish targets,
// broker mirrors and local sinks.
type Output interface {
	Write(ctx context.Context, p model.Packet) error
	Close() error
}
