package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"imbridge/internal/keysym"
	"imbridge/internal/session"
)

func TestSimpleForwardKey(t *testing.T) {
	tests := []struct {
		name string
		ev   session.KeyEvent
		want string
	}{
		{"letter", session.KeyEvent{Keyval: 'a'}, "a"},
		{"shifted", session.KeyEvent{Keyval: 'A', State: keysym.ShiftMask}, "A"},
		{"latin1", session.KeyEvent{Keyval: 0xe9}, "é"},
		{"unicode keysym", session.KeyEvent{Keyval: 0x01000000 + 0x4f60}, "你"},
		{"space", session.KeyEvent{Keyval: keysym.Space}, " "},
		{"control held", session.KeyEvent{Keyval: 'c', State: keysym.ControlMask}, ""},
		{"alt held", session.KeyEvent{Keyval: 'f', State: keysym.Mod1Mask}, ""},
		{"release", session.KeyEvent{Keyval: 'a', State: keysym.ReleaseMask}, ""},
		{"return", session.KeyEvent{Keyval: keysym.Return}, ""},
		{"modifier", session.KeyEvent{Keyval: keysym.ShiftL, State: keysym.ShiftMask}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			c := NewSimple(func(s string) { got = append(got, s) })
			c.FocusIn()
			consumed := c.ForwardKey(tt.ev)
			if tt.want == "" {
				assert.False(t, consumed)
				assert.Empty(t, got)
				return
			}
			assert.True(t, consumed)
			assert.Equal(t, []string{tt.want}, got)
		})
	}
}

func TestSimpleUnfocused(t *testing.T) {
	var got []string
	c := NewSimple(func(s string) { got = append(got, s) })
	assert.False(t, c.ForwardKey(session.KeyEvent{Keyval: 'a'}))

	c.FocusIn()
	assert.True(t, c.Focused())
	assert.True(t, c.ForwardKey(session.KeyEvent{Keyval: 'a'}))
	c.FocusOut()
	assert.False(t, c.ForwardKey(session.KeyEvent{Keyval: 'b'}))
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 1, c.Committed())
}

func TestSimpleClientArea(t *testing.T) {
	c := NewSimple(func(string) {})
	c.SetClientArea(session.Rect{W: 640, H: 480})
	c.Reset()
	assert.Equal(t, session.Rect{W: 640, H: 480}, c.ClientArea())
}
