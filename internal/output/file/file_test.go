package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/crimson-sun/fluidity/internal/model"
)

func testPacket(seq uint64) model.Packet {
	raw := "T=21.4;H=40"
	return model.Packet{
		Sequence:        seq,
		Site:            "north",
		CollectorID:     "weather",
		Description:     "station feed",
		FormattedFields: []model.FormattedField{model.StringField("21.4", 0)},
		RawPayload:      &raw,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestWriteProducesValidNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.jsonl")
	out, err := New(path, true)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := uint64(1); i <= 5; i++ {
		if err := out.Write(context.Background(), testPacket(i)); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	lines := readLines(t, path)
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for i, line := range lines {
		var p model.Packet
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			t.Fatalf("line %d: invalid JSON: %v", i, err)
		}
		if p.Sequence != uint64(i+1) {
			t.Errorf("line %d: seq = %d, want %d", i, p.Sequence, i+1)
		}
		if p.RawPayload == nil {
			t.Errorf("line %d: raw payload missing with keepRaw", i)
		}
	}
}

func TestRawStrippedWithoutKeepRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.jsonl")
	out, err := New(path, false)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	out.Write(context.Background(), testPacket(1))
	out.Close()

	if strings.Contains(readLines(t, path)[0], "rawPayload") {
		t.Error("rawPayload should be stripped")
	}
}

func TestRotationNamesBySequenceRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.ndjson")

	// Each line is over 100 bytes, so every third write rotates.
	out, err := New(path, true, WithMaxSize(2*packetLineLen(t)))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := uint64(1); i <= 5; i++ {
		if err := out.Write(context.Background(), testPacket(i)); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	for _, name := range []string{RotatedName(path, 1, 2), RotatedName(path, 3, 4)} {
		if got := len(readLines(t, name)); got != 2 {
			t.Errorf("%s: got %d lines, want 2", filepath.Base(name), got)
		}
	}
	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("current file: got %d lines, want 1", len(lines))
	}
	if !strings.Contains(lines[0], `"sequence":5`) {
		t.Errorf("current file holds %s, want sequence 5", lines[0])
	}
}

func packetLineLen(t *testing.T) int64 {
	t.Helper()
	data, err := json.Marshal(testPacket(1))
	if err != nil {
		t.Fatal(err)
	}
	return int64(len(data) + 1)
}

func TestWriteAfterClose(t *testing.T) {
	out, err := New(filepath.Join(t.TempDir(), "packets.ndjson"), false)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if err := out.Write(context.Background(), testPacket(1)); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestAppendsToExistingArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.ndjson")
	for seq := uint64(1); seq <= 2; seq++ {
		out, err := New(path, false)
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		out.Write(context.Background(), testPacket(seq))
		out.Close()
	}
	if got := len(readLines(t, path)); got != 2 {
		t.Errorf("got %d lines, want 2", got)
	}
}

func TestConcurrentWritesSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.jsonl")
	out, err := New(path, false)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			out.Write(context.Background(), testPacket(seq))
		}(uint64(i + 1))
	}
	wg.Wait()
	out.Close()

	if lines := readLines(t, path); len(lines) != 50 {
		t.Errorf("got %d lines, want 50", len(lines))
	}
}
