package ibus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/session"
)

// InputContext is one input context on the daemon.
type InputContext struct {
	path   dbus.ObjectPath
	obj    caller
	client *Client
}

var (
	_ session.Upstream               = (*InputContext)(nil)
	_ session.AsyncKeyEventProcessor = (*InputContext)(nil)
	_ Sink                           = (*session.Session)(nil)
)

// Path returns the D-Bus object path of the context.
func (ic *InputContext) Path() dbus.ObjectPath {
	return ic.path
}

func (ic *InputContext) call(ctx context.Context, method string, args ...any) error {
	if err := ic.obj.CallWithContext(ctx, contextInterface+"."+method, 0, args...).Err; err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func keyArgs(ev session.KeyEvent) []any {
	return []any{uint32(ev.Keyval), ev.Keycode, uint32(ev.State)}
}

// ProcessKeyEvent sends a key and waits for the verdict.
func (ic *InputContext) ProcessKeyEvent(ctx context.Context, ev session.KeyEvent) (bool, error) {
	var consumed bool
	err := ic.obj.CallWithContext(ctx, contextInterface+".ProcessKeyEvent", 0, keyArgs(ev)...).Store(&consumed)
	if err != nil {
		return false, fmt.Errorf("ProcessKeyEvent: %w", err)
	}
	return consumed, nil
}

// ProcessKeyEventAsync sends a key and calls done from another goroutine
// once the daemon answers or ctx expires.
func (ic *InputContext) ProcessKeyEventAsync(ctx context.Context, ev session.KeyEvent, done func(bool, error)) {
	ch := make(chan *dbus.Call, 1)
	ic.obj.GoWithContext(ctx, contextInterface+".ProcessKeyEvent", 0, ch, keyArgs(ev)...)
	go func() {
		reply := <-ch
		var consumed bool
		if err := reply.Store(&consumed); err != nil {
			done(false, fmt.Errorf("ProcessKeyEvent: %w", err))
			return
		}
		done(consumed, nil)
	}()
}

func (ic *InputContext) FocusIn(ctx context.Context) error  { return ic.call(ctx, "FocusIn") }
func (ic *InputContext) FocusOut(ctx context.Context) error { return ic.call(ctx, "FocusOut") }
func (ic *InputContext) Reset(ctx context.Context) error    { return ic.call(ctx, "Reset") }

// SetCursorLocation reports the cursor rectangle in root window
// coordinates.
func (ic *InputContext) SetCursorLocation(ctx context.Context, r session.Rect) error {
	return ic.call(ctx, "SetCursorLocation", r.X, r.Y, r.W, r.H)
}

// SetCapabilities advertises what the client can render.
func (ic *InputContext) SetCapabilities(ctx context.Context, caps session.Capabilities) error {
	return ic.call(ctx, "SetCapabilities", uint32(caps))
}

// Destroy releases the context on the daemon and stops its signal
// routing.
func (ic *InputContext) Destroy(ctx context.Context) error {
	if ic.client != nil {
		if err := ic.client.Unbind(ic); err != nil {
			ic.client.logger.Warn("remove signal match", "path", ic.path, "error", err)
		}
	}
	return ic.call(ctx, "Destroy")
}
