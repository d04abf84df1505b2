// Package ibus connects sessions to the IBus input-method daemon over its
// private D-Bus bus. An InputContext is the session.Upstream for one
// client; the Client routes the daemon's signals back to the bound
// sessions through their event loop.
package ibus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/keysym"
	"imbridge/internal/session"
)

const (
	busName          = "org.freedesktop.IBus"
	busPath          = "/org/freedesktop/IBus"
	busInterface     = "org.freedesktop.IBus"
	contextInterface = "org.freedesktop.IBus.InputContext"
)

// caller is the part of dbus.BusObject the package uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
	GoWithContext(ctx context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call
}

// signalConn is the part of *dbus.Conn used for signal delivery.
type signalConn interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Close() error
}

// Sink receives the signals of one input context. *session.Session
// implements it.
type Sink interface {
	OnCommitText(text string)
	OnPreeditUpdate(p session.Preedit)
	OnShowPreedit()
	OnHidePreedit()
	OnForwardKey(ev session.KeyEvent)
	OnDeleteSurrounding(offset, nchars int)
	OnRequireSurrounding()
	OnEnabled()
	OnDisabled()
	OnDisconnect()
}

type binding struct {
	sink Sink
	post func(func()) bool
}

// Client is a connection to the IBus daemon.
type Client struct {
	conn    signalConn
	bus     caller
	objects func(path dbus.ObjectPath) caller
	logger  *slog.Logger

	signals chan *dbus.Signal
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	bindings map[dbus.ObjectPath]binding
}

// Dial connects to the daemon at addr, as returned by Address.
func Dial(addr string, logger *slog.Logger) (*Client, error) {
	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("connect to ibus at %s: %w", addr, err)
	}
	c := newClient(conn, conn.Object(busName, busPath), func(path dbus.ObjectPath) caller {
		return conn.Object(busName, path)
	}, logger)
	return c, nil
}

func newClient(conn signalConn, bus caller, objects func(dbus.ObjectPath) caller, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:     conn,
		bus:      bus,
		objects:  objects,
		logger:   logger.With("component", "ibus"),
		bindings: make(map[dbus.ObjectPath]binding),
	}
}

// Start begins routing signals to bound sinks until ctx is done or the
// connection closes. A closed connection disconnects every bound sink.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.signals = make(chan *dbus.Signal, 64)
	c.done = make(chan struct{})
	c.conn.Signal(c.signals)
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-c.signals:
			if !ok {
				c.disconnectAll()
				return
			}
			c.dispatch(sig)
		}
	}
}

// Close stops signal routing and closes the connection.
func (c *Client) Close() error {
	if c.signals != nil {
		c.cancel()
		c.conn.RemoveSignal(c.signals)
		<-c.done
	}
	return c.conn.Close()
}

// CreateInputContext asks the daemon for a new input context.
func (c *Client) CreateInputContext(ctx context.Context, clientName string) (*InputContext, error) {
	var path dbus.ObjectPath
	if err := c.bus.CallWithContext(ctx, busInterface+".CreateInputContext", 0, clientName).Store(&path); err != nil {
		return nil, fmt.Errorf("create input context: %w", err)
	}
	c.logger.Debug("input context created", "path", path, "client", clientName)
	return &InputContext{path: path, obj: c.objects(path), client: c}, nil
}

func matchOptions(path dbus.ObjectPath) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(contextInterface),
	}
}

// Bind routes the signals of ic to sink. Each call to the sink is made
// inside a function handed to post, normally loop.Loop.Post.
func (c *Client) Bind(ic *InputContext, sink Sink, post func(func()) bool) error {
	if err := c.conn.AddMatchSignal(matchOptions(ic.path)...); err != nil {
		return fmt.Errorf("match signals of %s: %w", ic.path, err)
	}
	c.mu.Lock()
	c.bindings[ic.path] = binding{sink: sink, post: post}
	c.mu.Unlock()
	return nil
}

// Unbind stops routing signals of ic.
func (c *Client) Unbind(ic *InputContext) error {
	c.mu.Lock()
	_, ok := c.bindings[ic.path]
	delete(c.bindings, ic.path)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.conn.RemoveMatchSignal(matchOptions(ic.path)...)
}

func (c *Client) disconnectAll() {
	c.mu.Lock()
	bs := make([]binding, 0, len(c.bindings))
	for path, b := range c.bindings {
		bs = append(bs, b)
		delete(c.bindings, path)
	}
	c.mu.Unlock()

	c.logger.Warn("ibus connection closed", "contexts", len(bs))
	for _, b := range bs {
		b.post(b.sink.OnDisconnect)
	}
}

func (c *Client) dispatch(sig *dbus.Signal) {
	c.mu.Lock()
	b, ok := c.bindings[sig.Path]
	c.mu.Unlock()
	if !ok {
		return
	}

	f, err := decodeSignal(sig, b.sink)
	if err != nil {
		c.logger.Warn("bad ibus signal", "signal", sig.Name, "path", sig.Path, "error", err)
		return
	}
	if f != nil {
		b.post(f)
	}
}

// decodeSignal turns an input-context signal into a call on sink.
// Unknown signals yield nil.
func decodeSignal(sig *dbus.Signal, sink Sink) (func(), error) {
	var err error
	arg := func(i int) any {
		if i >= len(sig.Body) {
			if err == nil {
				err = fmt.Errorf("%d arguments, want more than %d", len(sig.Body), i)
			}
			return nil
		}
		return sig.Body[i]
	}
	u32 := func(i int) uint32 {
		v := arg(i)
		n, ok := v.(uint32)
		if !ok && err == nil {
			err = fmt.Errorf("argument %d is %T, want uint32", i, v)
		}
		return n
	}

	var f func()
	switch sig.Name {
	case contextInterface + ".CommitText":
		text, _, terr := decodeText(arg(0))
		if err == nil {
			err = terr
		}
		f = func() { sink.OnCommitText(text) }

	case contextInterface + ".UpdatePreeditText", contextInterface + ".UpdatePreeditTextWithMode":
		text, attrs, terr := decodeText(arg(0))
		if err == nil {
			err = terr
		}
		cursor := u32(1)
		visible, ok := arg(2).(bool)
		if !ok && err == nil {
			err = fmt.Errorf("argument 2 is %T, want bool", arg(2))
		}
		p := session.Preedit{Text: text, Attrs: attrs, Cursor: int(cursor), Visible: visible}
		f = func() { sink.OnPreeditUpdate(p) }

	case contextInterface + ".ShowPreeditText":
		f = sink.OnShowPreedit
	case contextInterface + ".HidePreeditText":
		f = sink.OnHidePreedit

	case contextInterface + ".ForwardKeyEvent":
		ev := session.KeyEvent{
			Keyval:  keysym.Keyval(u32(0)),
			Keycode: u32(1),
			State:   keysym.State(u32(2)),
		}
		f = func() { sink.OnForwardKey(ev) }

	case contextInterface + ".DeleteSurroundingText":
		offset, ok := arg(0).(int32)
		if !ok && err == nil {
			err = fmt.Errorf("argument 0 is %T, want int32", arg(0))
		}
		n := u32(1)
		f = func() { sink.OnDeleteSurrounding(int(offset), int(n)) }

	case contextInterface + ".RequireSurroundingText":
		f = sink.OnRequireSurrounding
	case contextInterface + ".Enabled":
		f = sink.OnEnabled
	case contextInterface + ".Disabled":
		f = sink.OnDisabled
	}

	if err != nil {
		return nil, err
	}
	return f, nil
}
