package model

import (
	"encoding/json"
	"testing"
)

func TestFrameEncoding(t *testing.T) {
	tests := []struct {
		name     string
		frame    Frame
		wantKeys []string
		noKeys   []string
		packets  string
	}{
		{"empty history", HistoryFrame(nil), []string{"type", "packets"}, []string{"packet"}, "[]"},
		{"zero history frame", Frame{Type: FrameHistory}, []string{"type", "packets"}, []string{"packet"}, "[]"},
		{"history", HistoryFrame([]Packet{{Sequence: 4}}), []string{"type", "packets"}, []string{"packet"}, ""},
		{"packet", PacketFrame(Packet{Sequence: 5}), []string{"type", "packet"}, []string{"packets"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.frame)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got map[string]json.RawMessage
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			for _, k := range tt.wantKeys {
				if _, ok := got[k]; !ok {
					t.Errorf("%s: missing key %q", data, k)
				}
			}
			for _, k := range tt.noKeys {
				if _, ok := got[k]; ok {
					t.Errorf("%s: unexpected key %q", data, k)
				}
			}
			if tt.packets != "" && string(got["packets"]) != tt.packets {
				t.Errorf("packets = %s, want %s", got["packets"], tt.packets)
			}
		})
	}
}

func TestFrameRoundTripKeepsEmptyHistory(t *testing.T) {
	data, _ := json.Marshal(HistoryFrame(nil))
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if f.Type != FrameHistory || f.Packets == nil || len(f.Packets) != 0 {
		t.Errorf("decoded %+v, want empty non-nil history", f)
	}
}
