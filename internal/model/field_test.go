package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPacketWireShape(t *testing.T) {
	ts := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	p := Packet{
		Sequence:    3,
		Site:        "north",
		CollectorID: "gauge1",
		Description: "pressure",
		FormattedFields: []FormattedField{
			StringField("12.5", 0),
			LinkField("docs", "https://example.org/gauge1", 1),
		},
		Timestamp: &ts,
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"sequence":3`,
		`"collectorId":"gauge1"`,
		`{"value":"12.5","kind":"STRING","styleHint":0}`,
		`{"value":{"name":"docs","location":"https://example.org/gauge1"},"kind":"LINK","styleHint":1}`,
		`"timestamp":"2026-10-18T09:30:00Z"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("wire form missing %s\ngot: %s", want, s)
		}
	}
	if strings.Contains(s, "rawPayload") {
		t.Errorf("rawPayload should be omitted when absent: %s", s)
	}
}

func TestFieldUnmarshalDispatchesOnKind(t *testing.T) {
	var fields []FormattedField
	in := `[{"value":{"name":"a","location":"https://b"},"kind":"LINK","styleHint":2},
		{"value":"2026-10-18T09:30:00Z","kind":"DATE","styleHint":0}]`
	if err := json.Unmarshal([]byte(in), &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields[0].Link.Location != "https://b" || fields[0].StyleHint != 2 {
		t.Errorf("link field = %+v", fields[0])
	}
	if fields[1].Kind != KindDate || fields[1].Text != "2026-10-18T09:30:00Z" {
		t.Errorf("date field = %+v", fields[1])
	}

	var bad FormattedField
	if err := json.Unmarshal([]byte(`{"value":"x","kind":"BLOB"}`), &bad); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCloneDoesNotShare(t *testing.T) {
	raw := "12.5"
	p := Packet{FormattedFields: []FormattedField{StringField("12.5", 0)}, RawPayload: &raw}
	c := p.Clone()
	c.FormattedFields[0].Text = "changed"
	*c.RawPayload = "changed"

	if p.FormattedFields[0].Text != "12.5" || *p.RawPayload != "12.5" {
		t.Error("clone shares state with original")
	}
}
