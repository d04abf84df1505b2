package modifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/keysym"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		keyval keysym.Keyval
		want   Class
		ok     bool
	}{
		{keysym.ShiftL, Shift, true},
		{keysym.ShiftR, Shift, true},
		{keysym.CapsLock, Lock, true},
		{keysym.ControlR, Control, true},
		{keysym.MetaL, Mod1, true},
		{keysym.AltR, Mod1, true},
		{keysym.NumLock, Mod2, true},
		{keysym.SuperL, Mod4, true},
		{keysym.ISOLevel3Shift, Mod5, true},
		{keysym.HyperR, Mod5, true},
		{'a', 0, false},
		{keysym.Return, 0, false},
	}

	for _, tt := range tests {
		t.Run(keysym.Name(tt.keyval), func(t *testing.T) {
			c, ok := ClassOf(tt.keyval)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, IsModifier(tt.keyval))
			if tt.ok {
				assert.Equal(t, tt.want, c)
			}
		})
	}
}

func TestTrackerTogglesOnEitherEdge(t *testing.T) {
	tr := NewTracker()

	tr.Observe(keysym.ShiftL, true)
	assert.True(t, tr.Active(Shift))
	assert.Equal(t, keysym.ShiftMask, tr.Mask())

	// A second press flips the latch back, as does a release.
	tr.Observe(keysym.ShiftR, true)
	assert.False(t, tr.Active(Shift))

	tr.Observe(keysym.ControlL, false)
	assert.True(t, tr.Active(Control))
	assert.Equal(t, keysym.ControlMask, tr.Mask())
}

func TestTrackerToggleInvolution(t *testing.T) {
	for k := range classByKeyval {
		t.Run(keysym.Name(k), func(t *testing.T) {
			tr := NewTracker()
			tr.Observe(keysym.AltL, true)
			before := tr.Latches()

			tr.Observe(k, true)
			tr.Observe(k, false)

			assert.Equal(t, before, tr.Latches())
		})
	}
}

func TestTrackerIgnoresNonModifiers(t *testing.T) {
	tr := NewTracker()
	tr.Observe(keysym.SuperL, true)

	for _, k := range []keysym.Keyval{'a', keysym.Return, keysym.F1, 0, keysym.VoidSymbol} {
		tr.Observe(k, true)
		tr.Observe(k, false)
	}
	assert.Equal(t, keysym.Mod4Mask, tr.Mask())
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	tr.Observe(keysym.ShiftL, true)
	tr.Observe(keysym.AltL, true)
	require.NotZero(t, tr.Mask())

	tr.Reset()
	assert.Zero(t, tr.Mask())
}

func TestMaskFromLatches(t *testing.T) {
	var l Latches
	l[Shift] = true
	l[Mod4] = true
	assert.Equal(t, keysym.ShiftMask|keysym.Mod4Mask, MaskFromLatches(l, IBusBits))

	// A different platform assignment changes only the bit values.
	var alt BitTable
	for c := range alt {
		alt[c] = 1 << (8 + c)
	}
	assert.Equal(t, keysym.State(1<<8|1<<14), MaskFromLatches(l, alt))

	tr := NewTrackerWithBits(alt)
	tr.Observe(keysym.ControlL, true)
	assert.Equal(t, keysym.State(1<<10), tr.Mask())
}

func TestMaskFromName(t *testing.T) {
	tests := map[string]keysym.State{
		"Control": keysym.ControlMask,
		"ctrl":    keysym.ControlMask,
		"SHIFT":   keysym.ShiftMask,
		"Alt":     keysym.Mod1Mask,
		"Super":   keysym.Mod4Mask,
		"Hyper":   keysym.Mod5Mask,
		"Release": keysym.ReleaseMask,
	}
	for name, want := range tests {
		got, ok := MaskFromName(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := MaskFromName("Banana")
	assert.False(t, ok)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"Control", "Shift"}, Names(keysym.ShiftMask|keysym.ControlMask))
	assert.Equal(t, []string{"Alt", "Release"}, Names(keysym.Mod1Mask|keysym.ReleaseMask))
	assert.Empty(t, Names(0))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "Control", Control.String())
	assert.Equal(t, "Mod5", Mod5.String())
	assert.Equal(t, "Unknown", Class(42).String())
}
