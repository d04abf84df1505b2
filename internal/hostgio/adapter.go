package hostgio

import (
	"strings"

	"gioui.org/io/event"
	"gioui.org/io/key"

	"imbridge/internal/hotkey"
	"imbridge/internal/session"
)

// Target is the session surface the adapter drives.
type Target interface {
	ProcessKey(ev session.KeyEvent) bool
	FocusIn()
	FocusOut()
	SetCursorRect(r session.Rect)
}

// Adapter feeds Gio events of one focused widget into a session.
type Adapter struct {
	target Target
}

// NewAdapter creates an adapter for t.
func NewAdapter(t Target) *Adapter {
	return &Adapter{target: t}
}

// Event handles one Gio event and reports whether the session consumed
// it. Events other than key and focus events are ignored.
func (a *Adapter) Event(e event.Event) bool {
	switch e := e.(type) {
	case key.Event:
		ev, ok := Translate(e)
		if !ok {
			return false
		}
		return a.target.ProcessKey(ev)
	case key.FocusEvent:
		if e.Focus {
			a.target.FocusIn()
		} else {
			a.target.FocusOut()
		}
	}
	return false
}

// Caret reports the widget caret position.
func (a *Adapter) Caret(c key.Caret, offsetX, offsetY int) {
	a.target.SetCursorRect(CaretRect(c, offsetX, offsetY))
}

// Host queues session notifications until the widget's next frame.
type Host struct {
	commits   strings.Builder
	preedit   bool
	deletes   []key.Range
	forwarded []key.Event
	hotkeys   []hotkey.EventID
	surround  bool
}

var _ session.Host = (*Host)(nil)

func (h *Host) Commit(text string) { h.commits.WriteString(text) }
func (h *Host) PreeditChanged()    { h.preedit = true }
func (h *Host) PreeditStart()      {}
func (h *Host) PreeditEnd()        {}

func (h *Host) RetrieveSurrounding() { h.surround = true }

// DeleteSurrounding queues deletion of nchars runes starting offset runes
// from the caret.
func (h *Host) DeleteSurrounding(offset, nchars int) {
	h.deletes = append(h.deletes, key.Range{Start: offset, End: offset + nchars})
}

func (h *Host) ForwardKey(ev session.KeyEvent) {
	if e, ok := ToEvent(ev); ok {
		h.forwarded = append(h.forwarded, e)
	}
}

func (h *Host) Hotkey(ev hotkey.EventID) { h.hotkeys = append(h.hotkeys, ev) }

// Frame is everything queued since the previous call to Drain.
type Frame struct {
	Commit         string
	PreeditChanged bool
	Deletes        []key.Range
	Keys           []key.Event
	Hotkeys        []hotkey.EventID
	WantSurround   bool
}

// Drain returns and clears the queued notifications.
func (h *Host) Drain() Frame {
	f := Frame{
		Commit:         h.commits.String(),
		PreeditChanged: h.preedit,
		Deletes:        h.deletes,
		Keys:           h.forwarded,
		Hotkeys:        h.hotkeys,
		WantSurround:   h.surround,
	}
	*h = Host{}
	return f
}
