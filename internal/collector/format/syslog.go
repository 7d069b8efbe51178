package format

import (
	"fmt"
	"time"

	"github.com/leodido/go-syslog/v4/rfc5424"

	"github.com/crimson-sun/fluidity/internal/model"
)

func init() {
	Register("syslog", func(map[string]any) (Strategy, error) { return NewSyslog(), nil })
}

// Syslog formats RFC 5424 lines emitted by instrument gateways.
type Syslog struct{}

// NewSyslog returns a best-effort RFC 5424 strategy.
func NewSyslog() *Syslog {
	return &Syslog{}
}

func (s *Syslog) Format(raw string) ([]model.FormattedField, error) {
	// Machines are not safe for concurrent use, so one is built per line.
	msg, err := rfc5424.NewParser(rfc5424.WithBestEffort()).Parse([]byte(raw))
	if msg == nil {
		return nil, fmt.Errorf("%w: syslog: %v", ErrUnparseable, err)
	}
	m, ok := msg.(*rfc5424.SyslogMessage)
	if !ok || !m.Valid() {
		return nil, fmt.Errorf("%w: not an RFC 5424 message", ErrUnparseable)
	}

	var out []model.FormattedField
	if m.Timestamp != nil {
		out = append(out, model.DateField(m.Timestamp.UTC().Format(time.RFC3339Nano), 0))
	}
	host, app := "-", "-"
	if m.Hostname != nil {
		host = *m.Hostname
	}
	if m.Appname != nil {
		app = *m.Appname
	}
	style := 0
	if m.Severity != nil {
		style = int(*m.Severity)
	}
	out = append(out, model.StringField(host+"/"+app, style))
	if m.Message != nil {
		out = append(out, model.StringField(*m.Message, style))
	}
	return out, nil
}
