// Package compose holds the local fallback composer used when the
// input-method service is absent or declines a key.
package compose

import (
	"unicode"

	"imbridge/internal/keysym"
	"imbridge/internal/session"
)

// Simple commits the character of each printable key press. Presses with
// Control, Alt or Super held, releases, and keys without a character are
// left to the host.
type Simple struct {
	commit func(string)

	focused    bool
	clientArea session.Rect
	committed  int
}

var _ session.Composer = (*Simple)(nil)

// NewSimple returns a composer that delivers text to commit.
func NewSimple(commit func(text string)) *Simple {
	return &Simple{commit: commit}
}

const shortcutMask = keysym.ControlMask | keysym.Mod1Mask | keysym.Mod4Mask

// ForwardKey implements session.Composer.
func (c *Simple) ForwardKey(ev session.KeyEvent) bool {
	if !c.focused || ev.IsRelease() || ev.State&shortcutMask != 0 {
		return false
	}
	r := keysym.ToRune(ev.Keyval)
	if r == 0 || !unicode.IsPrint(r) {
		return false
	}
	c.commit(string(r))
	c.committed++
	return true
}

func (c *Simple) FocusIn()  { c.focused = true }
func (c *Simple) FocusOut() { c.focused = false }

// Reset has nothing to discard; Simple never holds pending input.
func (c *Simple) Reset() {}

func (c *Simple) SetClientArea(r session.Rect) { c.clientArea = r }

// Focused reports whether the composer currently has focus.
func (c *Simple) Focused() bool { return c.focused }

// ClientArea returns the last client area set.
func (c *Simple) ClientArea() session.Rect { return c.clientArea }

// Committed returns how many characters were committed.
func (c *Simple) Committed() int { return c.committed }
