package session

import (
	"context"
	"fmt"

	"imbridge/internal/hotkey"
)

type fakeHost struct {
	calls     []string
	commits   []string
	hotkeys   []hotkey.EventID
	forwarded []KeyEvent
}

func (h *fakeHost) Commit(text string) {
	h.calls = append(h.calls, "commit")
	h.commits = append(h.commits, text)
}
func (h *fakeHost) PreeditChanged()      { h.calls = append(h.calls, "changed") }
func (h *fakeHost) PreeditStart()        { h.calls = append(h.calls, "start") }
func (h *fakeHost) PreeditEnd()          { h.calls = append(h.calls, "end") }
func (h *fakeHost) RetrieveSurrounding() { h.calls = append(h.calls, "retrieve") }
func (h *fakeHost) DeleteSurrounding(offset, nchars int) {
	h.calls = append(h.calls, fmt.Sprintf("delete %d %d", offset, nchars))
}
func (h *fakeHost) ForwardKey(ev KeyEvent) {
	h.calls = append(h.calls, "forward")
	h.forwarded = append(h.forwarded, ev)
}
func (h *fakeHost) Hotkey(ev hotkey.EventID) {
	h.calls = append(h.calls, "hotkey")
	h.hotkeys = append(h.hotkeys, ev)
}

func (h *fakeHost) count(call string) int {
	n := 0
	for _, c := range h.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeComposer struct {
	verdict bool
	keys    []KeyEvent
	calls   []string
	area    Rect
}

func (c *fakeComposer) FocusIn()  { c.calls = append(c.calls, "focus-in") }
func (c *fakeComposer) FocusOut() { c.calls = append(c.calls, "focus-out") }
func (c *fakeComposer) Reset()    { c.calls = append(c.calls, "reset") }
func (c *fakeComposer) SetClientArea(r Rect) {
	c.calls = append(c.calls, "area")
	c.area = r
}
func (c *fakeComposer) ForwardKey(ev KeyEvent) bool {
	c.keys = append(c.keys, ev)
	return c.verdict
}

// fakeUpstream answers keys synchronously. block makes ProcessKeyEvent
// wait for the context to expire.
type fakeUpstream struct {
	consume bool
	err     error
	block   bool

	keys    []KeyEvent
	calls   []string
	cursors []Rect
	caps    Capabilities
}

func (u *fakeUpstream) ProcessKeyEvent(ctx context.Context, ev KeyEvent) (bool, error) {
	u.keys = append(u.keys, ev)
	if u.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return u.consume, u.err
}

func (u *fakeUpstream) FocusIn(context.Context) error {
	u.calls = append(u.calls, "focus-in")
	return nil
}
func (u *fakeUpstream) FocusOut(context.Context) error {
	u.calls = append(u.calls, "focus-out")
	return nil
}
func (u *fakeUpstream) Reset(context.Context) error {
	u.calls = append(u.calls, "reset")
	return nil
}
func (u *fakeUpstream) SetCursorLocation(_ context.Context, r Rect) error {
	u.calls = append(u.calls, "cursor")
	u.cursors = append(u.cursors, r)
	return nil
}
func (u *fakeUpstream) SetCapabilities(_ context.Context, caps Capabilities) error {
	u.calls = append(u.calls, "caps")
	u.caps = caps
	return nil
}
func (u *fakeUpstream) Destroy(context.Context) error {
	u.calls = append(u.calls, "destroy")
	return u.err
}

// asyncUpstream holds replies until the test answers them.
type asyncUpstream struct {
	fakeUpstream
	replies []func(bool, error)
}

func (u *asyncUpstream) ProcessKeyEventAsync(_ context.Context, ev KeyEvent, done func(bool, error)) {
	u.keys = append(u.keys, ev)
	u.replies = append(u.replies, done)
}
