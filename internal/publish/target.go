package publish

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInsecureTarget is returned for a target whose location is not https.
var ErrInsecureTarget = errors.New("target location must use https")

// Target is a remote subscriber endpoint.
type Target struct {
	Location string `mapstructure:"location" yaml:"location" json:"location"`
	Key      string `mapstructure:"key" yaml:"key" json:"key"`
}

// Validate checks that the location parses and uses the secure-transport scheme.
func (t Target) Validate() error {
	u, err := url.Parse(t.Location)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInsecureTarget, t.Location, err)
	}
	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInsecureTarget, t.Location)
	}
	return nil
}

// String returns the location, never the key.
func (t Target) String() string {
	return t.Location
}

// id identifies a target output; the same location with a different key is a
// different subscriber.
func (t Target) id() string {
	return t.Location + "\x00" + t.Key
}
