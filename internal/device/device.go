// Package device binds a collector to its line source: a serial port, a
// networked instrument, a capture file or a remote command over SSH.
package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/crimson-sun/fluidity/internal/model"
)

var (
	ErrInvalidAddress = errors.New("invalid device address")
	ErrInvalidSpeed   = errors.New("invalid device speed")
)

// DefaultDelimiter terminates lines unless the collector configures another.
const DefaultDelimiter = "\n"

// maxLine bounds a single device line.
const maxLine = 1 << 20

// Binding opens the byte stream of one input device.
type Binding interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Delimiter returns the line terminator of the device.
	Delimiter() string
}

// Settings describe how to reach a device.
type Settings struct {
	Address   string
	Speed     int
	Delimiter string
	Extended  map[string]any
}

// New selects a binding from the address scheme. An address without a
// scheme names a serial port.
func New(s Settings) (Binding, error) {
	delim := s.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}
	addr := strings.TrimSpace(s.Address)
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if !strings.Contains(addr, "://") {
		return newSerial(addr, s.Speed, delim)
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	switch u.Scheme {
	case "serial":
		port := u.Path
		if u.Host != "" {
			port = u.Host + u.Path
		}
		return newSerial(port, s.Speed, delim)
	case "tcp":
		if u.Host == "" || u.Port() == "" {
			return nil, fmt.Errorf("%w: tcp address needs host:port: %s", ErrInvalidAddress, addr)
		}
		return &TCP{Addr: u.Host, Timeout: 10 * time.Second, delim: delim}, nil
	case "file":
		if u.Path == "" {
			return nil, fmt.Errorf("%w: file address needs a path: %s", ErrInvalidAddress, addr)
		}
		return newFile(u.Path, delim, s.Extended)
	case "ssh":
		return newSSH(u, delim, s.Extended)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
	}
}

// SplitOn returns a split function that cuts at delim and drops it.
// A trailing partial line is emitted at EOF.
func SplitOn(delim string) bufio.SplitFunc {
	sep := []byte(delim)
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.Index(data, sep); i >= 0 {
			return i + len(sep), data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// Lines reads r line by line and sends each line to out in order.
// It returns nil at EOF, the read error otherwise, or ctx.Err() when
// cancelled.
func Lines(ctx context.Context, r io.Reader, delim, source string, out chan<- model.RawLine) error {
	if delim == "" {
		delim = DefaultDelimiter
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	sc.Split(SplitOn(delim))

	for sc.Scan() {
		line := model.RawLine{Text: sc.Text(), Source: source, Received: time.Now()}
		select {
		case out <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
