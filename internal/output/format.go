package output

import "github.com/crimson-sun/fluidity/internal/model"

// FormatPacket returns a copy of the packet scoped to a destination.
// When keepRaw is false the raw payload is dropped (omitted from JSON via omitempty).
func FormatPacket(p model.Packet, keepRaw bool) model.Packet {
	c := p.Clone()
	if !keepRaw {
		c.RawPayload = nil
	}
	return c
}
