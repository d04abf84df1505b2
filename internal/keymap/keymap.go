// Package keymap maps hardware keycodes to keyvals through a loaded keymap
// table. It is used when a host reports only a keycode, as legacy X input
// method clients do.
package keymap

import (
	"imbridge/internal/keysym"
)

// Level selects one keyval of a key among its shift levels.
type Level int

// Levels, in the order a keymap line's prefixes select them.
const (
	LevelPlain Level = iota
	LevelShift
	LevelAltGr
	LevelShiftAltGr
	LevelNumLock
	LevelNumLockShift

	numLevels
)

var levelNames = [numLevels]string{
	"plain", "shift", "altgr", "shift+altgr", "numlock", "numlock+shift",
}

func (l Level) String() string {
	if l >= 0 && l < numLevels {
		return levelNames[l]
	}
	return "invalid"
}

type levels [numLevels]keysym.Keyval

// Keymap is a keycode table with one or more layout groups. The zero value
// is an empty keymap. A Keymap is not modified after loading and may be
// shared between sessions.
type Keymap struct {
	Name   string
	groups []map[uint32]*levels
}

// New returns an empty keymap.
func New(name string) *Keymap {
	return &Keymap{Name: name}
}

// Set assigns a keyval to keycode at level in group.
func (m *Keymap) Set(group int, keycode uint32, level Level, k keysym.Keyval) {
	if group < 0 || level < 0 || level >= numLevels {
		return
	}
	for len(m.groups) <= group {
		m.groups = append(m.groups, make(map[uint32]*levels))
	}
	e := m.groups[group][keycode]
	if e == nil {
		e = new(levels)
		m.groups[group][keycode] = e
	}
	e[level] = k
}

// Groups returns the number of layout groups.
func (m *Keymap) Groups() int {
	return len(m.groups)
}

// Len returns the number of keycodes mapped in group.
func (m *Keymap) Len(group int) int {
	if group < 0 || group >= len(m.groups) {
		return 0
	}
	return len(m.groups[group])
}

// Lookup returns the keyval stored at an exact position, without fallback.
func (m *Keymap) Lookup(keycode uint32, group int, level Level) (keysym.Keyval, bool) {
	e := m.entry(keycode, group)
	if e == nil || level < 0 || level >= numLevels {
		return 0, false
	}
	k := e[level]
	return k, k != 0 && k != keysym.VoidSymbol
}

func (m *Keymap) entry(keycode uint32, group int) *levels {
	if group < 0 || group >= len(m.groups) {
		return nil
	}
	return m.groups[group][keycode]
}

// Classify maps a keycode, layout group and level-selector modifiers
// (Shift, Lock, Mod2 for NumLock, Mod5 for AltGr) to a keyval. Groups
// without an entry for the keycode fall back to group 0, and missing levels
// fall back towards the plain level. Unmapped keys report false.
func (m *Keymap) Classify(keycode uint32, group int, mods keysym.State) (keysym.Keyval, bool) {
	e := m.entry(keycode, group)
	if e == nil {
		e = m.entry(keycode, 0)
	}
	if e == nil {
		return 0, false
	}

	shift := mods&keysym.ShiftMask != 0
	altgr := mods&keysym.Mod5Mask != 0
	numlock := mods&keysym.Mod2Mask != 0
	lock := mods&keysym.LockMask != 0

	if numlock {
		want := LevelNumLock
		if shift {
			want = LevelNumLockShift
		}
		if k := e[want]; valid(k) {
			return k, true
		}
		if k := e[LevelNumLock]; valid(k) {
			return k, true
		}
	}

	var chain []Level
	switch {
	case shift && altgr:
		chain = []Level{LevelShiftAltGr, LevelAltGr, LevelShift, LevelPlain}
	case altgr:
		chain = []Level{LevelAltGr, LevelPlain}
	case shift:
		chain = []Level{LevelShift, LevelPlain}
	default:
		chain = []Level{LevelPlain}
	}

	for i, lvl := range chain {
		k := e[lvl]
		if !valid(k) {
			continue
		}
		// A letter mapped only at the plain level still honors Shift.
		if i > 0 && lvl == LevelPlain && shift && keysym.IsLetter(k) {
			k = keysym.ToUpper(k)
		}
		if lock && keysym.IsLetter(k) {
			k = toggleCase(k)
		}
		return k, true
	}
	return 0, false
}

func valid(k keysym.Keyval) bool {
	return k != 0 && k != keysym.VoidSymbol
}

func toggleCase(k keysym.Keyval) keysym.Keyval {
	if k >= 'a' && k <= 'z' {
		return keysym.ToUpper(k)
	}
	return keysym.ToLower(k)
}
