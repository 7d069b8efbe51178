// Package render draws client packets on a terminal or as JSON lines.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/crimson-sun/fluidity/internal/client"
	"github.com/crimson-sun/fluidity/internal/model"
)

// New returns the renderer for format "text" or "json".
func New(format string, w io.Writer) (client.Renderer, error) {
	switch format {
	case "", "text":
		return NewText(w), nil
	case "json":
		return NewJSON(w), nil
	default:
		return nil, fmt.Errorf("unknown render format: %s", format)
	}
}

// ---------------------------------------------------------------------------
// Text renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleSeq     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleOrigin  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true)
	styleHistory = lipgloss.NewStyle().Faint(true)
	styleLink    = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Underline(true)
	styleStats   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	// Style hints index this palette; unknown hints use the first entry.
	palette = []lipgloss.Style{
		lipgloss.NewStyle(),
		lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
	}
)

// Text prints visible packets one per line. Hidden packets are skipped.
type Text struct {
	w         io.Writer
	showStats bool
}

// NewText returns a Text renderer writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// WithStats makes the renderer print a summary line after every packet.
func (r *Text) WithStats() *Text {
	r.showStats = true
	return r
}

func (r *Text) Render(p model.Packet, placement client.Placement, visible bool) error {
	if !visible {
		return nil
	}
	parts := []string{
		styleSeq.Render(fmt.Sprintf("#%-5d", p.Sequence)),
		styleOrigin.Render(p.Site + "/" + p.CollectorID),
	}
	for _, f := range p.FormattedFields {
		parts = append(parts, field(f))
	}
	line := strings.Join(parts, " ")
	if placement == client.History {
		line = styleHistory.Render(line)
	}
	_, err := fmt.Fprintln(r.w, line)
	return err
}

func (r *Text) RenderStats(s client.Stats) {
	if !r.showStats {
		return
	}
	fmt.Fprintln(r.w, styleStats.Render(fmt.Sprintf("visible %d, filters %d", s.Visible, s.Filters)))
}

func field(f model.FormattedField) string {
	style := palette[0]
	if f.StyleHint > 0 && f.StyleHint < len(palette) {
		style = palette[f.StyleHint]
	}
	switch f.Kind {
	case model.KindLink:
		return styleLink.Render(f.Link.Name) + " <" + f.Link.Location + ">"
	case model.KindDate:
		if t, err := time.Parse(time.RFC3339Nano, f.Text); err == nil {
			return style.Render(t.Local().Format("15:04:05"))
		}
		return style.Render(f.Text)
	default:
		return style.Render(f.Text)
	}
}

// ---------------------------------------------------------------------------
// JSON renderer (structured output for piping)
// ---------------------------------------------------------------------------

// Line is one JSON renderer record.
type Line struct {
	Placement string        `json:"placement,omitempty"`
	Visible   bool          `json:"visible"`
	Packet    *model.Packet `json:"packet,omitempty"`
	Stats     *client.Stats `json:"stats,omitempty"`
}

// JSON writes one object per visible packet.
type JSON struct {
	enc       *json.Encoder
	all       bool
	showStats bool
}

// NewJSON returns a JSON renderer writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{enc: json.NewEncoder(w)}
}

// IncludeHidden makes the renderer also emit packets the filters hide.
func (r *JSON) IncludeHidden() *JSON {
	r.all = true
	return r
}

// WithStats makes the renderer emit stats records.
func (r *JSON) WithStats() *JSON {
	r.showStats = true
	return r
}

func (r *JSON) Render(p model.Packet, placement client.Placement, visible bool) error {
	if !visible && !r.all {
		return nil
	}
	return r.enc.Encode(Line{Placement: placement.String(), Visible: visible, Packet: &p})
}

func (r *JSON) RenderStats(s client.Stats) {
	if r.showStats {
		r.enc.Encode(Line{Visible: true, Stats: &s})
	}
}
