package fluidity

import (
	"github.com/crimson-sun/fluidity/internal/client"
	"github.com/crimson-sun/fluidity/internal/model"
)

type (
	// Packet is one sequenced device event.
	Packet = model.Packet
	// Field is one formatted field of a packet.
	Field = model.FormattedField
	// Renderer draws placed packets.
	Renderer = client.Renderer
	// Placement says whether a packet came from history or the live stream.
	Placement = client.Placement
	// Stats are the visible packet and active filter counts.
	Stats = client.Stats
)

// Placements passed to a Renderer.
const (
	HistoryPlacement Placement = client.History
	CurrentPlacement Placement = client.Current
)
