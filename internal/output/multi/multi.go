// Package multi fans packets out to the configured mirrors.
package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/output"
)

type member struct {
	name string
	out  output.Output
}

// Multi writes every packet to each member in turn. A failing member does
// not stop the others; its error is reported under the member's name.
type Multi struct {
	members []member
}

// New returns a Multi over outs, named by position.
func New(outs ...output.Output) *Multi {
	m := &Multi{}
	for i, o := range outs {
		m.Add(fmt.Sprintf("output[%d]", i), o)
	}
	return m
}

// Add appends a named member and returns m.
func (m *Multi) Add(name string, o output.Output) *Multi {
	m.members = append(m.members, member{name: name, out: o})
	return m
}

// Names lists the members in write order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.members))
	for i, mb := range m.members {
		names[i] = mb.name
	}
	return names
}

// Len returns the number of members.
func (m *Multi) Len() int { return len(m.members) }

func (m *Multi) Write(ctx context.Context, p model.Packet) error {
	var errs []error
	for _, mb := range m.members {
		if err := mb.out.Write(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("%s: seq %d: %w", mb.name, p.Sequence, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every member, even after a failure.
func (m *Multi) Close() error {
	var errs []error
	for _, mb := range m.members {
		if err := mb.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mb.name, err))
		}
	}
	return errors.Join(errs...)
}
