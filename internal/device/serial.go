package device

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Serial reads a local serial port.
type Serial struct {
	Port  string
	Speed int

	delim string
}

func newSerial(port string, speed int, delim string) (*Serial, error) {
	if port == "" {
		return nil, fmt.Errorf("%w: empty serial port", ErrInvalidAddress)
	}
	if speed <= 0 {
		return nil, fmt.Errorf("%w: %d baud", ErrInvalidSpeed, speed)
	}
	return &Serial{Port: port, Speed: speed, delim: delim}, nil
}

func (s *Serial) Open(_ context.Context) (io.ReadCloser, error) {
	p, err := serial.Open(s.Port, &serial.Mode{BaudRate: s.Speed})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", s.Port, err)
	}
	return p, nil
}

func (s *Serial) Delimiter() string { return s.delim }

func (s *Serial) String() string { return fmt.Sprintf("serial://%s@%d", s.Port, s.Speed) }
