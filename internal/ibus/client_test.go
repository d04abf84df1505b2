package ibus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/keysym"
	"imbridge/internal/session"
)

const icPath = dbus.ObjectPath("/org/freedesktop/IBus/InputContext_7")

func newTestClient(t *testing.T) (*Client, *fakeConn, *fakeCaller, *fakeCaller) {
	t.Helper()
	conn := &fakeConn{}
	bus := newFakeCaller()
	bus.replies[busInterface+".CreateInputContext"] = []any{icPath}
	ic := newFakeCaller()
	c := newClient(conn, bus, func(dbus.ObjectPath) caller { return ic }, nil)
	return c, conn, bus, ic
}

func TestCreateInputContext(t *testing.T) {
	c, _, bus, _ := newTestClient(t)
	ic, err := c.CreateInputContext(context.Background(), "imbridge")
	require.NoError(t, err)
	assert.Equal(t, icPath, ic.Path())
	require.Len(t, bus.calls, 1)
	assert.Equal(t, []any{"imbridge"}, bus.calls[0].args)
}

func TestCreateInputContextError(t *testing.T) {
	c, _, bus, _ := newTestClient(t)
	bus.errs[busInterface+".CreateInputContext"] = errors.New("no engine")
	_, err := c.CreateInputContext(context.Background(), "imbridge")
	assert.ErrorContains(t, err, "no engine")
}

func TestInputContextCalls(t *testing.T) {
	c, conn, _, obj := newTestClient(t)
	ic, err := c.CreateInputContext(context.Background(), "imbridge")
	require.NoError(t, err)
	require.NoError(t, c.Bind(ic, &fakeSink{}, inline))
	assert.Equal(t, 1, conn.matches)

	ctx := context.Background()
	require.NoError(t, ic.FocusIn(ctx))
	require.NoError(t, ic.SetCursorLocation(ctx, session.Rect{X: 1, Y: 2, W: 3, H: 4}))
	require.NoError(t, ic.SetCapabilities(ctx, session.CapPreeditText|session.CapFocus))
	require.NoError(t, ic.Reset(ctx))
	require.NoError(t, ic.FocusOut(ctx))
	require.NoError(t, ic.Destroy(ctx))

	assert.Equal(t, []string{
		contextInterface + ".FocusIn",
		contextInterface + ".SetCursorLocation",
		contextInterface + ".SetCapabilities",
		contextInterface + ".Reset",
		contextInterface + ".FocusOut",
		contextInterface + ".Destroy",
	}, obj.methods())
	assert.Equal(t, []any{int32(1), int32(2), int32(3), int32(4)}, obj.calls[1].args)
	assert.Equal(t, []any{uint32(9)}, obj.calls[2].args)
	assert.Zero(t, conn.matches, "destroy removes the signal match")
}

func TestProcessKeyEvent(t *testing.T) {
	c, _, _, obj := newTestClient(t)
	ic, err := c.CreateInputContext(context.Background(), "imbridge")
	require.NoError(t, err)
	obj.replies[contextInterface+".ProcessKeyEvent"] = []any{true}

	ev := session.KeyEvent{Keyval: 'a', Keycode: 30, State: keysym.ShiftMask}
	consumed, err := ic.ProcessKeyEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, []any{uint32('a'), uint32(30), uint32(keysym.ShiftMask)}, obj.calls[0].args)

	obj.errs[contextInterface+".ProcessKeyEvent"] = context.DeadlineExceeded
	consumed, err = ic.ProcessKeyEvent(context.Background(), ev)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, consumed)
}

func TestProcessKeyEventAsync(t *testing.T) {
	c, _, _, obj := newTestClient(t)
	ic, err := c.CreateInputContext(context.Background(), "imbridge")
	require.NoError(t, err)

	type reply struct {
		consumed bool
		err      error
	}
	got := make(chan reply, 1)
	done := func(consumed bool, err error) { got <- reply{consumed, err} }

	obj.replies[contextInterface+".ProcessKeyEvent"] = []any{true}
	ic.ProcessKeyEventAsync(context.Background(), session.KeyEvent{Keyval: 'a'}, done)
	select {
	case r := <-got:
		require.NoError(t, r.err)
		assert.True(t, r.consumed)
	case <-time.After(5 * time.Second):
		t.Fatal("no async reply")
	}

	obj.errs[contextInterface+".ProcessKeyEvent"] = dbus.ErrClosed
	ic.ProcessKeyEventAsync(context.Background(), session.KeyEvent{Keyval: 'a'}, done)
	select {
	case r := <-got:
		assert.ErrorIs(t, r.err, dbus.ErrClosed)
		assert.False(t, r.consumed)
	case <-time.After(5 * time.Second):
		t.Fatal("no async reply")
	}
}

func signal(name string, body ...any) *dbus.Signal {
	return &dbus.Signal{Path: icPath, Name: contextInterface + "." + name, Body: body}
}

func TestDispatchSignals(t *testing.T) {
	c, _, _, _ := newTestClient(t)
	ic, err := c.CreateInputContext(context.Background(), "imbridge")
	require.NoError(t, err)
	sink := &fakeSink{}
	require.NoError(t, c.Bind(ic, sink, inline))

	underline := session.Attribute{Type: session.AttrUnderline, Value: 1, Start: 0, End: 2}
	c.dispatch(signal("CommitText", makeText("你好")))
	c.dispatch(signal("UpdatePreeditText", makeText("ni", underline), uint32(2), true))
	c.dispatch(signal("ShowPreeditText"))
	c.dispatch(signal("HidePreeditText"))
	c.dispatch(signal("ForwardKeyEvent", uint32(keysym.Return), uint32(28), uint32(keysym.ReleaseMask)))
	c.dispatch(signal("DeleteSurroundingText", int32(-1), uint32(1)))
	c.dispatch(signal("RequireSurroundingText"))
	c.dispatch(signal("Enabled"))
	c.dispatch(signal("Disabled"))
	c.dispatch(signal("RegisterProperties", "ignored"))

	assert.Equal(t, []string{
		"commit", "preedit", "show", "hide", "forward", "delete", "require", "enabled", "disabled",
	}, sink.snapshot())
	assert.Equal(t, []string{"你好"}, sink.commits)
	assert.Equal(t, session.Preedit{
		Text: "ni", Attrs: []session.Attribute{underline}, Cursor: 2, Visible: true,
	}, sink.preedit)
	assert.Equal(t, []session.KeyEvent{{Keyval: keysym.Return, Keycode: 28, State: keysym.ReleaseMask}}, sink.keys)
	assert.Equal(t, [2]int{-1, 1}, sink.deleted)
}

func TestDispatchIgnoresBadSignals(t *testing.T) {
	c, _, _, _ := newTestClient(t)
	ic, err := c.CreateInputContext(context.Background(), "imbridge")
	require.NoError(t, err)
	sink := &fakeSink{}
	require.NoError(t, c.Bind(ic, sink, inline))

	c.dispatch(signal("CommitText", "not a variant"))
	c.dispatch(signal("UpdatePreeditText", makeText("x"), uint32(0)))
	c.dispatch(signal("ForwardKeyEvent", uint32(1)))
	c.dispatch(signal("DeleteSurroundingText", uint32(1), uint32(1)))
	other := signal("CommitText", makeText("x"))
	other.Path = "/org/freedesktop/IBus/InputContext_99"
	c.dispatch(other)

	assert.Empty(t, sink.snapshot())
}

func TestConnectionLossDisconnectsSinks(t *testing.T) {
	c, conn, _, _ := newTestClient(t)
	ic, err := c.CreateInputContext(context.Background(), "imbridge")
	require.NoError(t, err)
	sink := &fakeSink{}
	require.NoError(t, c.Bind(ic, sink, inline))

	c.Start(context.Background())
	conn.signals <- signal("CommitText", makeText("a"))
	close(c.signals)

	require.Eventually(t, func() bool {
		calls := sink.snapshot()
		return len(calls) == 2 && calls[1] == "disconnect"
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, conn.closed)
}

func TestCloseStopsRouting(t *testing.T) {
	c, conn, _, _ := newTestClient(t)
	c.Start(context.Background())
	require.NoError(t, c.Close())
	assert.True(t, conn.closed)
}
