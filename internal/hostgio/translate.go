// Package hostgio adapts Gio windows to input-context sessions: key and
// focus events are translated into session calls, and session
// notifications are queued for the next frame.
package hostgio

import (
	"unicode"
	"unicode/utf8"

	"gioui.org/io/key"

	"imbridge/internal/keysym"
	"imbridge/internal/session"
)

var keyvalByName = map[key.Name]keysym.Keyval{
	key.NameLeftArrow:      keysym.Left,
	key.NameRightArrow:     keysym.Right,
	key.NameUpArrow:        keysym.Up,
	key.NameDownArrow:      keysym.Down,
	key.NameReturn:         keysym.Return,
	key.NameEnter:          keysym.KPEnter,
	key.NameEscape:         keysym.Escape,
	key.NameHome:           keysym.Home,
	key.NameEnd:            keysym.End,
	key.NameDeleteBackward: keysym.BackSpace,
	key.NameDeleteForward:  keysym.Delete,
	key.NamePageUp:         keysym.PageUp,
	key.NamePageDown:       keysym.PageDown,
	key.NameTab:            keysym.Tab,
	key.NameSpace:          keysym.Space,
	key.NameCtrl:           keysym.ControlL,
	key.NameShift:          keysym.ShiftL,
	key.NameAlt:            keysym.AltL,
	key.NameSuper:          keysym.SuperL,
	key.NameCommand:        keysym.SuperL,
	key.NameF1:             keysym.F1,
	key.NameF2:             keysym.F1 + 1,
	key.NameF3:             keysym.F1 + 2,
	key.NameF4:             keysym.F1 + 3,
	key.NameF5:             keysym.F1 + 4,
	key.NameF6:             keysym.F1 + 5,
	key.NameF7:             keysym.F1 + 6,
	key.NameF8:             keysym.F1 + 7,
	key.NameF9:             keysym.F1 + 8,
	key.NameF10:            keysym.F1 + 9,
	key.NameF11:            keysym.F1 + 10,
	key.NameF12:            keysym.F12,
}

var nameByKeyval = func() map[keysym.Keyval]key.Name {
	m := make(map[keysym.Keyval]key.Name, len(keyvalByName))
	for n, k := range keyvalByName {
		if n == key.NameCommand {
			// SuperL renders as NameSuper.
			continue
		}
		m[k] = n
	}
	return m
}()

var stateByModifier = []struct {
	mod   key.Modifiers
	state keysym.State
}{
	{key.ModShift, keysym.ShiftMask},
	{key.ModCtrl, keysym.ControlMask},
	{key.ModAlt, keysym.Mod1Mask},
	{key.ModSuper, keysym.Mod4Mask},
	{key.ModCommand, keysym.Mod4Mask},
}

// Translate converts a Gio key event. Gio reports letters in upper case,
// so the keyval is lowered unless Shift is held. Keys with no keyval
// report false.
func Translate(e key.Event) (session.KeyEvent, bool) {
	var ev session.KeyEvent
	for _, m := range stateByModifier {
		if e.Modifiers.Contain(m.mod) {
			ev.State |= m.state
		}
	}
	if e.State == key.Release {
		ev.State |= keysym.ReleaseMask
	}

	if k, ok := keyvalByName[e.Name]; ok {
		ev.Keyval = k
		return ev, true
	}
	r, size := utf8.DecodeRuneInString(string(e.Name))
	if r == utf8.RuneError || size != len(e.Name) {
		return ev, false
	}
	if e.Modifiers.Contain(key.ModShift) {
		r = unicode.ToUpper(r)
	} else {
		r = unicode.ToLower(r)
	}
	ev.Keyval = keysym.FromRune(r)
	return ev, true
}

// ToEvent converts a session key event back into a Gio key event.
func ToEvent(ev session.KeyEvent) (key.Event, bool) {
	var e key.Event
	if ev.IsRelease() {
		e.State = key.Release
	}
	for _, m := range stateByModifier[:4] {
		if ev.State&m.state != 0 {
			e.Modifiers |= m.mod
		}
	}

	if n, ok := nameByKeyval[ev.Keyval]; ok {
		e.Name = n
		return e, true
	}
	r := keysym.ToRune(ev.Keyval)
	if r == 0 {
		return e, false
	}
	e.Name = key.Name(string(unicode.ToUpper(r)))
	return e, true
}

// CaretRect converts a Gio caret at the given window offset into the
// cursor rectangle reported to the input-method service.
func CaretRect(c key.Caret, offsetX, offsetY int) session.Rect {
	return session.Rect{
		X: int32(c.Pos.X) + int32(offsetX),
		Y: int32(c.Pos.Y-c.Ascent) + int32(offsetY),
		W: 0,
		H: int32(c.Ascent + c.Descent),
	}
}
