package model

import "encoding/json"

// Frame types sent on the websocket stream.
const (
	FrameHistory = "history"
	FramePacket  = "packet"
)

// Frame is one websocket message: the history batch first, then one frame
// per live packet.
type Frame struct {
	Type    string   `json:"type"`
	Packets []Packet `json:"packets,omitempty"`
	Packet  *Packet  `json:"packet,omitempty"`
}

// MarshalJSON always writes "packets" on a history frame, as [] when the
// history is empty. Packet frames carry only "packet".
func (f Frame) MarshalJSON() ([]byte, error) {
	if f.Type == FrameHistory {
		packets := f.Packets
		if packets == nil {
			packets = []Packet{}
		}
		return json.Marshal(struct {
			Type    string   `json:"type"`
			Packets []Packet `json:"packets"`
		}{f.Type, packets})
	}
	type plain Frame
	return json.Marshal(plain(f))
}

// HistoryFrame wraps a history batch.
func HistoryFrame(history []Packet) Frame {
	if history == nil {
		history = []Packet{}
	}
	return Frame{Type: FrameHistory, Packets: history}
}

// PacketFrame wraps one live packet.
func PacketFrame(p Packet) Frame {
	return Frame{Type: FramePacket, Packet: &p}
}
