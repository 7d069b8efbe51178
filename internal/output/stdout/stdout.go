package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/output"
)

// Output writes JSON-encoded packets to a stream, stdout by default.
type Output struct {
	mu      sync.Mutex
	enc     *json.Encoder
	keepRaw bool
}

// New creates a stdout Output with raw-payload scoping and optional
// pretty-printed JSON.
func New(keepRaw, pretty bool) *Output {
	return NewWriter(os.Stdout, keepRaw, pretty)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, keepRaw, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{enc: enc, keepRaw: keepRaw}
}

func (o *Output) Write(_ context.Context, p model.Packet) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(output.FormatPacket(p, o.keepRaw)); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
