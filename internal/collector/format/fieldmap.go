package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/crimson-sun/fluidity/internal/extopt"
	"github.com/crimson-sun/fluidity/internal/model"
)

func init() {
	Register("fieldmap", NewFieldMap)
}

// FieldSpec declares one column of a separated telemetry line.
type FieldSpec struct {
	Name  string `opt:"name"`
	Kind  string `opt:"kind"`
	Style int    `opt:"style"`
	Index int    `opt:"index"`
}

type fieldMapOptions struct {
	Separator string      `opt:"separator"`
	Trim      bool        `opt:"trim"`
	Fields    []FieldSpec `opt:"fieldMap"`
}

// FieldMap parses separated lines (e.g. "21.4,40,2026-10-18T09:00:00Z")
// through a declared field map.
type FieldMap struct {
	sep    string
	trim   bool
	fields []mappedField
	needed int
}

type mappedField struct {
	FieldSpec
	kind model.FieldKind
}

// NewFieldMap builds a FieldMap from extended options:
//
//	separator: ","        # default ","
//	fieldMap:
//	  - {name: temp, kind: STRING, style: 1, index: 0}
//	  - {name: taken, kind: DATE, index: 2}
func NewFieldMap(opts map[string]any) (Strategy, error) {
	o := fieldMapOptions{Separator: ",", Trim: true}
	if err := extopt.Decode(opts, &o); err != nil {
		return nil, fmt.Errorf("fieldmap: options: %w", err)
	}
	if len(o.Fields) == 0 {
		return nil, fmt.Errorf("fieldmap: fieldMap must declare at least one field")
	}
	if o.Separator == "" {
		return nil, fmt.Errorf("fieldmap: empty separator")
	}

	fm := &FieldMap{sep: o.Separator, trim: o.Trim}
	for _, f := range o.Fields {
		if f.Index < 0 {
			return nil, fmt.Errorf("fieldmap: field %q: negative index", f.Name)
		}
		kindTag := f.Kind
		if kindTag == "" {
			kindTag = string(model.KindString)
		}
		kind, err := model.ParseFieldKind(strings.ToUpper(kindTag))
		if err != nil {
			return nil, fmt.Errorf("fieldmap: field %q: %w", f.Name, err)
		}
		fm.fields = append(fm.fields, mappedField{FieldSpec: f, kind: kind})
		if f.Index+1 > fm.needed {
			fm.needed = f.Index + 1
		}
	}
	return fm, nil
}

func (fm *FieldMap) Format(raw string) ([]model.FormattedField, error) {
	cols := strings.Split(raw, fm.sep)
	if len(cols) < fm.needed {
		return nil, fmt.Errorf("%w: %d columns, field map needs %d", ErrUnparseable, len(cols), fm.needed)
	}

	out := make([]model.FormattedField, 0, len(fm.fields))
	for _, f := range fm.fields {
		v := cols[f.Index]
		if fm.trim {
			v = strings.TrimSpace(v)
		}
		switch f.kind {
		case model.KindLink:
			out = append(out, model.LinkField(f.Name, v, f.Style))
		case model.KindDate:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				out = append(out, model.StringField(v, f.Style))
				continue
			}
			out = append(out, model.DateField(v, f.Style))
		default:
			out = append(out, model.StringField(v, f.Style))
		}
	}
	return out, nil
}
