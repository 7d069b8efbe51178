// Package extopt decodes the free-form extended options carried in device
// and collector configuration onto typed option structs.
package extopt

import "github.com/go-viper/mapstructure/v2"

// TagName is the struct tag read by Decode.
const TagName = "opt"

// Decode maps loosely typed options onto out, which must be a pointer.
// Strings are coerced to numbers and bools where the target field asks for
// them. Empty opts leave out untouched.
func Decode(opts map[string]any, out any) error {
	if len(opts) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          TagName,
	})
	if err != nil {
		return err
	}
	return dec.Decode(opts)
}
