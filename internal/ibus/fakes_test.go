package ibus

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/session"
)

type recordedCall struct {
	method string
	args   []any
}

type fakeCaller struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string][]any
	errs    map[string]error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{replies: map[string][]any{}, errs: map[string]error{}}
}

func (f *fakeCaller) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...any) *dbus.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{method: method, args: args})
	return &dbus.Call{Method: method, Args: args, Body: f.replies[method], Err: f.errs[method]}
}

func (f *fakeCaller) GoWithContext(ctx context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	call := f.CallWithContext(ctx, method, flags, args...)
	call.Done = ch
	go func() { ch <- call }()
	return call
}

func (f *fakeCaller) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

type fakeConn struct {
	mu      sync.Mutex
	matches int
	signals chan<- *dbus.Signal
	closed  bool
}

func (c *fakeConn) AddMatchSignal(...dbus.MatchOption) error {
	c.mu.Lock()
	c.matches++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) RemoveMatchSignal(...dbus.MatchOption) error {
	c.mu.Lock()
	c.matches--
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Signal(ch chan<- *dbus.Signal) { c.signals = ch }
func (c *fakeConn) RemoveSignal(chan<- *dbus.Signal) {}
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	calls   []string
	commits []string
	preedit session.Preedit
	keys    []session.KeyEvent
	deleted [2]int
}

func (s *fakeSink) record(c string) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *fakeSink) OnCommitText(text string) {
	s.record("commit")
	s.mu.Lock()
	s.commits = append(s.commits, text)
	s.mu.Unlock()
}
func (s *fakeSink) OnPreeditUpdate(p session.Preedit) {
	s.record("preedit")
	s.mu.Lock()
	s.preedit = p
	s.mu.Unlock()
}
func (s *fakeSink) OnShowPreedit() { s.record("show") }
func (s *fakeSink) OnHidePreedit() { s.record("hide") }
func (s *fakeSink) OnForwardKey(ev session.KeyEvent) {
	s.record("forward")
	s.mu.Lock()
	s.keys = append(s.keys, ev)
	s.mu.Unlock()
}
func (s *fakeSink) OnDeleteSurrounding(offset, nchars int) {
	s.record("delete")
	s.mu.Lock()
	s.deleted = [2]int{offset, nchars}
	s.mu.Unlock()
}
func (s *fakeSink) OnRequireSurrounding() { s.record("require") }
func (s *fakeSink) OnEnabled()            { s.record("enabled") }
func (s *fakeSink) OnDisabled()           { s.record("disabled") }
func (s *fakeSink) OnDisconnect()         { s.record("disconnect") }

func (s *fakeSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func inline(f func()) bool { f(); return true }

func makeText(text string, attrs ...session.Attribute) dbus.Variant {
	items := make([]dbus.Variant, 0, len(attrs))
	for _, a := range attrs {
		items = append(items, dbus.MakeVariant([]any{
			"IBusAttribute", map[string]dbus.Variant{}, a.Type, a.Value, a.Start, a.End,
		}))
	}
	list := []any{"IBusAttrList", map[string]dbus.Variant{}, items}
	return dbus.MakeVariant([]any{"IBusText", map[string]dbus.Variant{}, text, dbus.MakeVariant(list)})
}
