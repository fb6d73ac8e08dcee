package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvVariable(t *testing.T) {
	tests := []struct {
		input     string
		wantKey   string
		wantValue string
		wantOK    bool
	}{
		{"KEY=VALUE", "KEY", "VALUE", true},
		{"KEY=", "KEY", "", true},
		{"KEY=a=b", "KEY", "a=b", true},
		{"=VALUE", "", "", false},
		{"KEY", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			key, value, ok := ParseEnvVariable(tt.input)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestEnvironMap(t *testing.T) {
	got := EnvironMap([]string{"A=1", "B=", "malformed", "=x", "A=2", "FN=() { :; }"})
	assert.Equal(t, map[string]string{"A": "1", "B": "", "FN": "() { :; }"}, got)

	assert.Empty(t, EnvironMap(nil))
}

func TestEnvironMap_FirstDuplicateWins(t *testing.T) {
	got := EnvironMap([]string{"PATH=/usr/bin", "PATH=/tmp/evil", "LD_PRELOAD=x", "LD_PRELOAD="})
	assert.Equal(t, "/usr/bin", got["PATH"])
	assert.Equal(t, "x", got["LD_PRELOAD"])
}

func TestEnvironSlice(t *testing.T) {
	env := map[string]string{"PATH": "/bin", "A": "1", "TERM": "xterm"}
	assert.Equal(t, []string{"A", "PATH", "TERM"}, SortedKeys(env))
	assert.Equal(t, []string{"A=1", "PATH=/bin", "TERM=xterm"}, EnvironSlice(env))
	assert.Empty(t, EnvironSlice(nil))
}
