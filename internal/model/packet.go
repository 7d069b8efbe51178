package model

import "time"

// Packet is the unit of distribution: one normalized device event.
// A packet with Sequence 0 is a draft that has not been accepted by a publisher.
type Packet struct {
	Sequence        uint64           `json:"sequence"`
	Site            string           `json:"site"`
	CollectorID     string           `json:"collectorId"`
	Description     string           `json:"description"`
	FormattedFields []FormattedField `json:"formattedFields"`
	RawPayload      *string          `json:"rawPayload,omitempty"`
	Timestamp       *time.Time       `json:"timestamp,omitempty"`
}

// IsDraft reports whether the packet still lacks a sequence number.
func (p Packet) IsDraft() bool {
	return p.Sequence == 0
}

// Clone returns a deep copy so that outputs and client stores never share
// mutable state with the publisher.
func (p Packet) Clone() Packet {
	c := p
	if p.FormattedFields != nil {
		c.FormattedFields = make([]FormattedField, len(p.FormattedFields))
		copy(c.FormattedFields, p.FormattedFields)
	}
	if p.RawPayload != nil {
		raw := *p.RawPayload
		c.RawPayload = &raw
	}
	if p.Timestamp != nil {
		ts := *p.Timestamp
		c.Timestamp = &ts
	}
	return c
}
