// Package modifier tracks latched modifier-key state.
//
// A Tracker flips the latch of a modifier class every time it observes a
// press OR a release of one of that class's keyvals, so injected streams
// that only report "this modifier flipped" stay consistent. The chord
// matcher in package hotkey relies on this toggle behavior; it is not
// level-triggered.
package modifier

import (
	"strings"

	"imbridge/internal/keysym"
)

// Class is a modifier class. Each class owns one bit of a modifier mask.
type Class uint8

// Modifier classes in IBus bit order.
const (
	Shift Class = iota
	Lock
	Control
	Mod1 // Alt/Meta
	Mod2 // NumLock
	Mod3
	Mod4 // Super
	Mod5 // Level3/Hyper

	NumClasses
)

var classNames = [NumClasses]string{
	"Shift", "Lock", "Control", "Mod1", "Mod2", "Mod3", "Mod4", "Mod5",
}

func (c Class) String() string {
	if c < NumClasses {
		return classNames[c]
	}
	return "Unknown"
}

// classByKeyval is the fixed alias table from modifier keyvals to their class.
// Mod3 has no canonical keyval.
var classByKeyval = map[keysym.Keyval]Class{
	keysym.ShiftL:         Shift,
	keysym.ShiftR:         Shift,
	keysym.CapsLock:       Lock,
	keysym.ShiftLock:      Lock,
	keysym.ControlL:       Control,
	keysym.ControlR:       Control,
	keysym.AltL:           Mod1,
	keysym.AltR:           Mod1,
	keysym.MetaL:          Mod1,
	keysym.MetaR:          Mod1,
	keysym.NumLock:        Mod2,
	keysym.SuperL:         Mod4,
	keysym.SuperR:         Mod4,
	keysym.HyperL:         Mod5,
	keysym.HyperR:         Mod5,
	keysym.ISOLevel3Shift: Mod5,
	keysym.ModeSwitch:     Mod5,
}

// ClassOf returns the modifier class k belongs to.
func ClassOf(k keysym.Keyval) (Class, bool) {
	c, ok := classByKeyval[k]
	return c, ok
}

// IsModifier reports whether k is a modifier keyval.
func IsModifier(k keysym.Keyval) bool {
	_, ok := classByKeyval[k]
	return ok
}

// BitTable assigns a mask bit to every modifier class.
type BitTable [NumClasses]keysym.State

// IBusBits is the IBus/X11 bit assignment.
var IBusBits = BitTable{
	keysym.ShiftMask,
	keysym.LockMask,
	keysym.ControlMask,
	keysym.Mod1Mask,
	keysym.Mod2Mask,
	keysym.Mod3Mask,
	keysym.Mod4Mask,
	keysym.Mod5Mask,
}

// Bit returns the IBus mask bit for c.
func (c Class) Bit() keysym.State {
	if c < NumClasses {
		return IBusBits[c]
	}
	return 0
}

// Latches records which modifier classes are currently latched.
type Latches [NumClasses]bool

// MaskFromLatches ORs together the bit of every latched class.
func MaskFromLatches(l Latches, bits BitTable) keysym.State {
	var mask keysym.State
	for c, on := range l {
		if on {
			mask |= bits[c]
		}
	}
	return mask
}

// Tracker holds modifier latches for one session. It is not safe for
// concurrent use.
type Tracker struct {
	latches Latches
	bits    BitTable
}

// NewTracker returns a tracker using the IBus bit assignment.
func NewTracker() *Tracker {
	return &Tracker{bits: IBusBits}
}

// NewTrackerWithBits returns a tracker for a platform with a different bit
// assignment.
func NewTrackerWithBits(bits BitTable) *Tracker {
	return &Tracker{bits: bits}
}

// Observe flips the latch of k's class. The edge is ignored. Keyvals that
// are not modifiers leave the tracker unchanged.
func (t *Tracker) Observe(k keysym.Keyval, _ bool) {
	if c, ok := classByKeyval[k]; ok {
		t.latches[c] = !t.latches[c]
	}
}

// Mask returns the modifier mask of the currently latched classes.
func (t *Tracker) Mask() keysym.State {
	return MaskFromLatches(t.latches, t.bits)
}

// Active reports whether class c is latched.
func (t *Tracker) Active(c Class) bool {
	return c < NumClasses && t.latches[c]
}

// Latches returns a copy of the latch record.
func (t *Tracker) Latches() Latches {
	return t.latches
}

// Reset clears every latch.
func (t *Tracker) Reset() {
	t.latches = Latches{}
}

// maskByName maps modifier names accepted in chords to their bit.
var maskByName = map[string]keysym.State{
	"shift":   keysym.ShiftMask,
	"lock":    keysym.LockMask,
	"control": keysym.ControlMask,
	"ctrl":    keysym.ControlMask,
	"mod1":    keysym.Mod1Mask,
	"alt":     keysym.Mod1Mask,
	"meta":    keysym.Mod1Mask,
	"mod2":    keysym.Mod2Mask,
	"numlock": keysym.Mod2Mask,
	"mod3":    keysym.Mod3Mask,
	"mod4":    keysym.Mod4Mask,
	"super":   keysym.Mod4Mask,
	"mod5":    keysym.Mod5Mask,
	"hyper":   keysym.Mod5Mask,
	"level3":  keysym.Mod5Mask,
	"release": keysym.ReleaseMask,
}

// MaskFromName resolves a modifier name such as "Control" or "Alt"
// (case-insensitive) to its state bit, including "Release".
func MaskFromName(name string) (keysym.State, bool) {
	m, ok := maskByName[strings.ToLower(name)]
	return m, ok
}

// canonicalOrder is the order Names renders bits in.
var canonicalOrder = []struct {
	bit  keysym.State
	name string
}{
	{keysym.ControlMask, "Control"},
	{keysym.ShiftMask, "Shift"},
	{keysym.Mod1Mask, "Alt"},
	{keysym.Mod4Mask, "Super"},
	{keysym.Mod5Mask, "Hyper"},
	{keysym.LockMask, "Lock"},
	{keysym.Mod2Mask, "Mod2"},
	{keysym.Mod3Mask, "Mod3"},
	{keysym.ReleaseMask, "Release"},
}

// Names returns the canonical names of the bits set in mask.
func Names(mask keysym.State) []string {
	var out []string
	for _, e := range canonicalOrder {
		if mask&e.bit != 0 {
			out = append(out, e.name)
		}
	}
	return out
}
