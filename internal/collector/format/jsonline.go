package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crimson-sun/fluidity/internal/extopt"
	"github.com/crimson-sun/fluidity/internal/model"
)

func init() {
	Register("json", NewJSON)
}

type jsonOptions struct {
	Fields []string `opt:"fields"`
	Style  int      `opt:"style"`
}

// JSON formats JSON object lines. Each selected key becomes one field:
// RFC3339 strings become DATE fields, objects with name and location become
// LINK fields, everything else a "key=value" STRING field.
// Lines that are not JSON objects fall back to the generic strategy.
type JSON struct {
	fields []string
	style  int
}

// NewJSON builds a JSON strategy. Option "fields" selects and orders keys;
// by default every key is emitted in sorted order.
func NewJSON(opts map[string]any) (Strategy, error) {
	var o jsonOptions
	if err := extopt.Decode(opts, &o); err != nil {
		return nil, fmt.Errorf("json: options: %w", err)
	}
	return &JSON{fields: o.Fields, style: o.Style}, nil
}

func (j *JSON) Format(raw string) ([]model.FormattedField, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Generic{}.Format(raw)
	}

	keys := j.fields
	if len(keys) == 0 {
		keys = make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	out := make([]model.FormattedField, 0, len(keys))
	for _, k := range keys {
		v, ok := data[k]
		if !ok {
			continue
		}
		out = append(out, j.field(k, v))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no selected keys present", ErrUnparseable)
	}
	return out, nil
}

func (j *JSON) field(key string, v any) model.FormattedField {
	switch val := v.(type) {
	case string:
		if _, err := time.Parse(time.RFC3339, val); err == nil {
			return model.DateField(val, j.style)
		}
		return model.StringField(key+"="+val, j.style)
	case map[string]any:
		name, nok := val["name"].(string)
		loc, lok := val["location"].(string)
		if nok && lok {
			return model.LinkField(name, loc, j.style)
		}
	}
	b, _ := json.Marshal(v)
	return model.StringField(key+"="+strings.TrimSpace(string(b)), j.style)
}
