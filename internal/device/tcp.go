package device

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// TCP reads a networked instrument that streams lines over a socket.
type TCP struct {
	Addr    string
	Timeout time.Duration

	delim string
}

func (t *TCP) Open(ctx context.Context) (io.ReadCloser, error) {
	d := net.Dialer{Timeout: t.Timeout}
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.Addr, err)
	}
	return conn, nil
}

func (t *TCP) Delimiter() string { return t.delim }

func (t *TCP) String() string { return "tcp://" + t.Addr }
