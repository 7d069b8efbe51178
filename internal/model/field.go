package model

import (
	"encoding/json"
	"fmt"
)

// FieldKind selects how a FormattedField value is interpreted.
type FieldKind string

const (
	KindString FieldKind = "STRING"
	KindLink   FieldKind = "LINK"
	KindDate   FieldKind = "DATE"
)

// Valid reports whether k is one of the known kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case KindString, KindLink, KindDate:
		return true
	}
	return false
}

// ParseFieldKind converts a case-sensitive tag into a FieldKind.
func ParseFieldKind(s string) (FieldKind, error) {
	k := FieldKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown field kind %q", s)
	}
	return k, nil
}

// LinkRecord is the value of a LINK field.
type LinkRecord struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// FormattedField is one presentation unit of a packet. Text holds the value
// of STRING and DATE fields, Link holds the value of LINK fields.
type FormattedField struct {
	Kind      FieldKind
	Text      string
	Link      LinkRecord
	StyleHint int
}

// StringField returns a STRING field.
func StringField(s string, style int) FormattedField {
	return FormattedField{Kind: KindString, Text: s, StyleHint: style}
}

// DateField returns a DATE field. The value is kept as the date-like string.
func DateField(s string, style int) FormattedField {
	return FormattedField{Kind: KindDate, Text: s, StyleHint: style}
}

// LinkField returns a LINK field.
func LinkField(name, location string, style int) FormattedField {
	return FormattedField{Kind: KindLink, Link: LinkRecord{Name: name, Location: location}, StyleHint: style}
}

// Value returns the field value in its wire form: a string or a LinkRecord.
func (f FormattedField) Value() any {
	if f.Kind == KindLink {
		return f.Link
	}
	return f.Text
}

type wireField struct {
	Value     json.RawMessage `json:"value"`
	Kind      FieldKind       `json:"kind"`
	StyleHint int             `json:"styleHint"`
}

func (f FormattedField) MarshalJSON() ([]byte, error) {
	v, err := json.Marshal(f.Value())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireField{Value: v, Kind: f.Kind, StyleHint: f.StyleHint})
}

func (f *FormattedField) UnmarshalJSON(data []byte) error {
	var w wireField
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("formatted field: unknown kind %q", w.Kind)
	}
	*f = FormattedField{Kind: w.Kind, StyleHint: w.StyleHint}
	if len(w.Value) == 0 {
		return nil
	}
	if w.Kind == KindLink {
		if err := json.Unmarshal(w.Value, &f.Link); err != nil {
			return fmt.Errorf("formatted field: link value: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(w.Value, &f.Text); err != nil {
		// Unknown shapes are kept verbatim so the renderer can still show them.
		f.Text = string(w.Value)
	}
	return nil
}
