package hotkey

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/keysym"
)

func TestJSONRoundTrip(t *testing.T) {
	p := NewProfile("default", WithIgnoredMask(keysym.LockMask))
	require.NoError(t, p.Add(keysym.Space, control, "toggle"))
	require.NoError(t, p.Add(keysym.ShiftL, shift|release, "peek"))

	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, p))
	assert.Contains(t, buf.String(), `"chord": "Control+space"`)

	got, err := DecodeJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, "default", got.Name())
	assert.Equal(t, keysym.LockMask, got.IgnoredMask())
	assert.Equal(t, p.Entries(), got.Entries())
}

func TestDecodeJSONRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not json", `{`, "decode profile"},
		{"missing name", `{"hotkeys": []}`, "validate profile"},
		{"unknown field", `{"name": "x", "hotkeys": [], "extra": 1}`, "validate profile"},
		{"event with spaces", `{"name": "x", "hotkeys": [{"event": "a b", "chord": "F1"}]}`, "validate profile"},
		{"mask out of range", `{"name": "x", "ignored_mask": 4096, "hotkeys": []}`, "validate profile"},
		{"bad chord", `{"name": "x", "hotkeys": [{"event": "a", "chord": "Banana+F1"}]}`, "hotkeys[0]"},
		{"duplicate", `{"name": "x", "hotkeys": [{"event": "a", "chord": "F1"}, {"event": "b", "chord": "F1"}]}`, "hotkeys[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeJSON(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEncodeJSONEmptyProfile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, NewProfile("empty")))

	got, err := DecodeJSON(&buf)
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}
