// Package keysym defines X11 keysym values, IBus key event state bits, and
// the symbolic name table used by hotkey and keymap files.
package keysym

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Keyval is a platform-independent symbolic key identifier (an X11 keysym).
type Keyval uint32

// VoidSymbol marks an unmapped key.
const VoidSymbol Keyval = 0xffffff

// Special and function keys.
const (
	BackSpace Keyval = 0xff08
	Tab       Keyval = 0xff09
	Return    Keyval = 0xff0d
	Pause     Keyval = 0xff13
	Escape    Keyval = 0xff1b
	Delete    Keyval = 0xffff
	Home      Keyval = 0xff50
	Left      Keyval = 0xff51
	Up        Keyval = 0xff52
	Right     Keyval = 0xff53
	Down      Keyval = 0xff54
	PageUp    Keyval = 0xff55
	PageDown  Keyval = 0xff56
	End       Keyval = 0xff57
	Insert    Keyval = 0xff63
	Menu      Keyval = 0xff67
	F1        Keyval = 0xffbe
	F12       Keyval = 0xffc9
	KPEnter   Keyval = 0xff8d
	KP0       Keyval = 0xffb0
	KP9       Keyval = 0xffb9
	Space     Keyval = 0x0020
)

// Modifier keys.
const (
	ShiftL         Keyval = 0xffe1
	ShiftR         Keyval = 0xffe2
	ControlL       Keyval = 0xffe3
	ControlR       Keyval = 0xffe4
	CapsLock       Keyval = 0xffe5
	ShiftLock      Keyval = 0xffe6
	MetaL          Keyval = 0xffe7
	MetaR          Keyval = 0xffe8
	AltL           Keyval = 0xffe9
	AltR           Keyval = 0xffea
	SuperL         Keyval = 0xffeb
	SuperR         Keyval = 0xffec
	HyperL         Keyval = 0xffed
	HyperR         Keyval = 0xffee
	ISOLevel3Shift Keyval = 0xfe03
	ModeSwitch     Keyval = 0xff7e
	NumLock        Keyval = 0xff7f
)

// unicodeBase offsets Unicode code points encoded directly as keysyms.
const unicodeBase Keyval = 0x01000000

// State is an IBus key event state word: modifier bits plus the release bit.
type State uint32

// IBus key event state bits.
const (
	ShiftMask   State = 1 << 0
	LockMask    State = 1 << 1
	ControlMask State = 1 << 2
	Mod1Mask    State = 1 << 3 // Alt
	Mod2Mask    State = 1 << 4 // NumLock
	Mod3Mask    State = 1 << 5
	Mod4Mask    State = 1 << 6 // Super
	Mod5Mask    State = 1 << 7 // Level3/Hyper
	ReleaseMask State = 1 << 30

	// ModifierMask covers the eight modifier class bits.
	ModifierMask State = 0xff
)

// IsRelease reports whether the release bit is set.
func (s State) IsRelease() bool { return s&ReleaseMask != 0 }

// WithoutRelease clears the release bit.
func (s State) WithoutRelease() State { return s &^ ReleaseMask }

// ToRune converts a keyval to the character it produces, or 0.
func ToRune(k Keyval) rune {
	switch {
	case k >= 0x20 && k <= 0x7e:
		return rune(k)
	case k >= 0xa0 && k <= 0xff:
		return rune(k)
	case k > unicodeBase && k <= unicodeBase+utf8.MaxRune:
		return rune(k - unicodeBase)
	}
	return 0
}

// FromRune returns the keyval for a character.
func FromRune(r rune) Keyval {
	if (r >= 0x20 && r <= 0x7e) || (r >= 0xa0 && r <= 0xff) {
		return Keyval(r)
	}
	return unicodeBase + Keyval(r)
}

// IsLetter reports whether k is an ASCII letter keyval.
func IsLetter(k Keyval) bool {
	return (k >= 'a' && k <= 'z') || (k >= 'A' && k <= 'Z')
}

// ToUpper maps an ASCII lowercase letter keyval to uppercase.
func ToUpper(k Keyval) Keyval {
	if k >= 'a' && k <= 'z' {
		return k - 'a' + 'A'
	}
	return k
}

// ToLower maps an ASCII uppercase letter keyval to lowercase.
func ToLower(k Keyval) Keyval {
	if k >= 'A' && k <= 'Z' {
		return k - 'A' + 'a'
	}
	return k
}

// Name returns the symbolic name of k. Keyvals without a registered name
// are rendered as their character or as a 0x hex literal.
func Name(k Keyval) string {
	if name, ok := nameByKeyval[k]; ok {
		return name
	}
	if r := ToRune(k); r != 0 && r != ' ' {
		return string(r)
	}
	return fmt.Sprintf("0x%x", uint32(k))
}

// FromName resolves a symbolic key name. It accepts registered names
// (case-sensitive first, then case-insensitive), single characters,
// U+XXXX code points and 0x hex literals.
func FromName(name string) (Keyval, bool) {
	if name == "" {
		return 0, false
	}
	if k, ok := keyvalByName[name]; ok {
		return k, true
	}
	if k, ok := keyvalByFoldedName[strings.ToLower(name)]; ok {
		return k, true
	}
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		return FromRune(r), true
	}
	if strings.HasPrefix(name, "U+") || strings.HasPrefix(name, "u+") {
		v, err := strconv.ParseUint(name[2:], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, false
		}
		return FromRune(rune(v)), true
	}
	if strings.HasPrefix(name, "0x") || strings.HasPrefix(name, "0X") {
		v, err := strconv.ParseUint(name[2:], 16, 32)
		if err != nil {
			return 0, false
		}
		return Keyval(v), true
	}
	return 0, false
}
