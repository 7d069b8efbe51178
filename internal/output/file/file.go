// Package file archives finalized packets as NDJSON.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/output"
)

const defaultBufSize = 64 * 1024

// Option configures an archive.
type Option func(*Output)

// WithMaxSize sets the size in bytes at which the archive is rotated.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithBufSize sets the write buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output appends one JSON packet per line to path. A rotated archive is
// renamed after the sequence range it holds, e.g. packets.ndjson.1-420, so
// a replay tool can pick files by sequence without opening them.
type Output struct {
	mu      sync.Mutex
	path    string
	keepRaw bool
	maxSize int64
	bufSize int

	f       *os.File
	w       *bufio.Writer
	written int64

	// sequence range of the packets written to the current file
	first, last uint64
}

// New opens (or creates) the archive at path for appending.
func New(path string, keepRaw bool, opts ...Option) (*Output, error) {
	o := &Output{path: path, keepRaw: keepRaw, bufSize: defaultBufSize}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.open(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write appends p. Raw payloads are kept only when the archive was opened
// with keepRaw.
func (o *Output) Write(_ context.Context, p model.Packet) error {
	line, err := json.Marshal(output.FormatPacket(p, o.keepRaw))
	if err != nil {
		return fmt.Errorf("archive: encode seq %d: %w", p.Sequence, err)
	}
	line = append(line, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return fmt.Errorf("archive %s: closed", o.path)
	}
	if o.maxSize > 0 && o.written > 0 && o.written+int64(len(line)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("archive %s: rotate: %w", o.path, err)
		}
	}
	n, err := o.w.Write(line)
	o.written += int64(n)
	if err != nil {
		return fmt.Errorf("archive %s: %w", o.path, err)
	}
	if o.first == 0 {
		o.first = p.Sequence
	}
	o.last = p.Sequence
	return nil
}

// Close flushes buffered packets and closes the file. Further writes fail.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return nil
	}
	flushErr := o.w.Flush()
	closeErr := o.f.Close()
	o.f, o.w = nil, nil
	if flushErr != nil {
		return fmt.Errorf("archive %s: flush: %w", o.path, flushErr)
	}
	return closeErr
}

// RotatedName is the name a rotated archive receives.
func RotatedName(path string, first, last uint64) string {
	return fmt.Sprintf("%s.%d-%d", path, first, last)
}

func (o *Output) open() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("archive: %w", err)
	}
	o.f = f
	o.w = bufio.NewWriterSize(f, o.bufSize)
	o.written = info.Size()
	o.first, o.last = 0, 0
	return nil
}

func (o *Output) rotate() error {
	if err := o.w.Flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(o.path, RotatedName(o.path, o.first, o.last)); err != nil {
		return err
	}
	return o.open()
}
