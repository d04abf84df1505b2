// Package session implements the per-connection input-context engine: it
// tracks latched modifiers, matches hotkeys, and decides for every key
// whether the remote input-method service or the local fallback composer
// handles it.
//
// A Session is not safe for concurrent use. All calls, including replies
// from an asynchronous upstream, must arrive on one goroutine, normally the
// one running a loop.Loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imbridge/internal/hotkey"
	"imbridge/internal/keysym"
)

var (
	// ErrDestroyed is returned by operations on a destroyed session.
	ErrDestroyed = errors.New("session destroyed")

	// ErrExists is returned when a registry id is already taken.
	ErrExists = errors.New("session already exists")

	// ErrNotFound is returned for an unknown registry id.
	ErrNotFound = errors.New("session not found")
)

// KeyEvent is one raw key event from a host.
type KeyEvent struct {
	Keyval  keysym.Keyval
	Keycode uint32
	State   keysym.State
}

// IsRelease reports whether the event is a key release.
func (e KeyEvent) IsRelease() bool {
	return e.State.IsRelease()
}

func (e KeyEvent) String() string {
	dir := "press"
	if e.IsRelease() {
		dir = "release"
	}
	return fmt.Sprintf("%s %s code=%d state=%#x", dir, keysym.Name(e.Keyval), e.Keycode, uint32(e.State))
}

// Rect is a rectangle in client window coordinates.
type Rect struct {
	X, Y, W, H int32
}

// Capabilities advertise what a client can render.
type Capabilities uint32

const (
	CapPreeditText Capabilities = 1 << iota
	CapAuxiliaryText
	CapLookupTable
	CapFocus
	CapProperty
	CapSurroundingText
)

// DefaultCapabilities is what a toolkit host typically supports.
const DefaultCapabilities = CapPreeditText | CapFocus

// Attribute is a styling run over preedit text, in character offsets.
type Attribute struct {
	Type  uint32
	Value uint32
	Start uint32
	End   uint32
}

// Attribute types.
const (
	AttrUnderline  uint32 = 1
	AttrForeground uint32 = 2
	AttrBackground uint32 = 3
)

// Preedit is the snapshot of uncommitted composition text.
type Preedit struct {
	Text    string
	Attrs   []Attribute
	Cursor  int
	Visible bool
}

// KeyEventProcessor asks an input-method service to handle a key.
type KeyEventProcessor interface {
	ProcessKeyEvent(ctx context.Context, ev KeyEvent) (bool, error)
}

// AsyncKeyEventProcessor is implemented by upstreams that can answer a key
// later. The callback may run on any goroutine.
type AsyncKeyEventProcessor interface {
	ProcessKeyEventAsync(ctx context.Context, ev KeyEvent, done func(consumed bool, err error))
}

// Upstream is an input context on the remote input-method service.
type Upstream interface {
	KeyEventProcessor
	FocusIn(ctx context.Context) error
	FocusOut(ctx context.Context) error
	Reset(ctx context.Context) error
	SetCursorLocation(ctx context.Context, r Rect) error
	SetCapabilities(ctx context.Context, caps Capabilities) error
	Destroy(ctx context.Context) error
}

// FocusAndPreeditSink receives focus and geometry changes.
type FocusAndPreeditSink interface {
	FocusIn()
	FocusOut()
	Reset()
	SetClientArea(r Rect)
}

// Composer is the always-live local fallback. ForwardKey reports whether
// the composer handled the key.
type Composer interface {
	FocusAndPreeditSink
	ForwardKey(ev KeyEvent) bool
}

// Host receives notifications destined for the text widget.
type Host interface {
	Commit(text string)
	PreeditChanged()
	PreeditStart()
	PreeditEnd()
	RetrieveSurrounding()
	DeleteSurrounding(offset, nchars int)
	// ForwardKey delivers a key the widget should handle itself.
	ForwardKey(ev KeyEvent)
	Hotkey(ev hotkey.EventID)
}

// Mode selects how ProcessKey talks to the upstream.
type Mode int

const (
	ModeSync Mode = iota
	ModeAsync
)

func (m Mode) String() string {
	if m == ModeAsync {
		return "async"
	}
	return "sync"
}

// ParseMode parses "sync" or "async".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "sync":
		return ModeSync, nil
	case "async":
		return ModeAsync, nil
	}
	return ModeSync, fmt.Errorf("unknown mode %q", s)
}

// DefaultKeyTimeout bounds one upstream key round trip.
const DefaultKeyTimeout = 500 * time.Millisecond
