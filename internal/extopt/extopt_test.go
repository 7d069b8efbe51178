package extopt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type column struct {
	Name  string `opt:"name"`
	Index int    `opt:"index"`
}

type sample struct {
	Port    int      `opt:"port"`
	Follow  bool     `opt:"follow"`
	User    string   `opt:"user"`
	Columns []column `opt:"columns"`
}

func TestDecodeWeaklyTyped(t *testing.T) {
	var s sample
	err := Decode(map[string]any{
		"port":   "2222",
		"follow": "true",
		"user":   "ops",
		"columns": []any{
			map[string]any{"name": "temp", "index": "1"},
			map[string]any{"name": "rh", "index": 2},
		},
	}, &s)
	require.NoError(t, err)
	assert.Equal(t, 2222, s.Port)
	assert.True(t, s.Follow)
	assert.Equal(t, "ops", s.User)
	assert.Equal(t, []column{{"temp", 1}, {"rh", 2}}, s.Columns)
}

func TestDecodeEmptyLeavesDefaults(t *testing.T) {
	s := sample{Port: 22}
	require.NoError(t, Decode(nil, &s))
	assert.Equal(t, 22, s.Port)
}

func TestDecodeRejectsBadValue(t *testing.T) {
	var s sample
	err := Decode(map[string]any{"port": "not-a-port"}, &s)
	assert.Error(t, err)
}
