package model

import "time"

// RawLine is the intermediate type produced by device bindings and consumed by collectors.
type RawLine struct {
	Text     string    // line without its delimiter
	Source   string    // device address the line was read from
	Received time.Time
}
