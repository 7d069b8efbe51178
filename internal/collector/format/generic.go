package format

import "github.com/crimson-sun/fluidity/internal/model"

// GenericStyle is the style hint of fields produced by the generic strategy.
const GenericStyle = 0

func init() {
	Register("generic", func(map[string]any) (Strategy, error) { return Generic{}, nil })
}

// Generic wraps the whole line as a single STRING field.
type Generic struct{}

func (Generic) Format(raw string) ([]model.FormattedField, error) {
	return []model.FormattedField{model.StringField(raw, GenericStyle)}, nil
}
