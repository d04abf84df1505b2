package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"imbridge/internal/hotkey"
	"imbridge/internal/keymap"
	"imbridge/internal/keysym"
	"imbridge/internal/metrics"
	"imbridge/internal/modifier"
)

// Options configures a Session.
type Options struct {
	Mode       Mode
	KeyTimeout time.Duration

	// LatchModifiers ORs the tracker's latched mask into the event state
	// before hotkey matching.
	LatchModifiers bool

	// Profile is shared across sessions; nil disables hotkeys.
	Profile *hotkey.Profile

	// Keymap classifies events that arrive with a keycode but no keyval.
	Keymap *keymap.Keymap
	Group  int

	ClientName   string
	Capabilities Capabilities

	// Dispatch runs f on the session's goroutine. Asynchronous replies are
	// routed through it. Nil runs f inline.
	Dispatch func(f func()) bool

	Logger  *slog.Logger
	Metrics *metrics.Engine
}

type pendingKey struct {
	ev         KeyEvent
	generation uint64
	started    time.Time
}

// Session is the input-context state machine for one client connection.
type Session struct {
	id       string
	opts     Options
	host     Host
	composer Composer
	upstream Upstream
	tracker  *modifier.Tracker
	logger   *slog.Logger

	connected bool
	enabled   bool
	focused   bool
	destroyed bool

	preedit    Preedit
	cursor     Rect
	haveCursor bool
	clientArea Rect

	prevKeyval keysym.Keyval
	prevMask   keysym.State

	generation uint64
	serial     uint64
	pending    map[uint64]pendingKey
}

// New creates an unconnected, unfocused session.
func New(id string, host Host, composer Composer, opts Options) *Session {
	if opts.KeyTimeout <= 0 {
		opts.KeyTimeout = DefaultKeyTimeout
	}
	if opts.Capabilities == 0 {
		opts.Capabilities = DefaultCapabilities
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) bool { f(); return true }
	}
	s := &Session{
		id:       id,
		opts:     opts,
		host:     host,
		composer: composer,
		tracker:  modifier.NewTracker(),
		logger:   opts.Logger.With("session", id),
		pending:  make(map[uint64]pendingKey),
	}
	opts.Metrics.SessionOpened()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) Connected() bool { return s.connected }
func (s *Session) Enabled() bool   { return s.enabled }
func (s *Session) Focused() bool   { return s.focused }
func (s *Session) Destroyed() bool { return s.destroyed }

// Preedit returns the current preedit snapshot.
func (s *Session) Preedit() Preedit { return s.preedit }

// Modifiers returns the latched modifier mask.
func (s *Session) Modifiers() keysym.State { return s.tracker.Mask() }

// Pending returns the number of keys awaiting an asynchronous reply.
func (s *Session) Pending() int { return len(s.pending) }

func (s *Session) call(name string, f func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.KeyTimeout)
	defer cancel()
	if err := f(ctx); err != nil {
		s.logger.Warn("upstream call failed", "method", name, "error", err)
	}
}

// OnConnect attaches the upstream context. The client capabilities are
// pushed and, if the session already has focus, the focus and cursor are
// re-applied.
func (s *Session) OnConnect(up Upstream) error {
	if s.destroyed {
		return ErrDestroyed
	}
	s.upstream = up
	s.connected = true
	s.logger.Debug("connected")

	s.call("SetCapabilities", func(ctx context.Context) error {
		return up.SetCapabilities(ctx, s.opts.Capabilities)
	})
	if s.focused {
		s.upstreamFocusIn()
	}
	return nil
}

// OnDisconnect detaches the upstream after the service went away.
func (s *Session) OnDisconnect() {
	if !s.connected {
		return
	}
	s.connected = false
	s.enabled = false
	s.upstream = nil
	s.clearPreedit()
	s.logger.Debug("disconnected")
}

// OnEnabled records that the service switched the context on.
func (s *Session) OnEnabled() {
	if s.destroyed {
		return
	}
	s.enabled = true
	s.logger.Debug("enabled")
}

// OnDisabled records that the service switched the context off.
func (s *Session) OnDisabled() {
	if s.destroyed {
		return
	}
	s.enabled = false
	s.clearPreedit()
	s.logger.Debug("disabled")
}

// FocusIn gives the session keyboard focus.
func (s *Session) FocusIn() {
	if s.destroyed {
		return
	}
	s.focused = true
	s.cancelPending()
	if s.connected {
		s.upstreamFocusIn()
	}
	s.composer.FocusIn()
	s.logger.Debug("focus in")
}

func (s *Session) upstreamFocusIn() {
	s.call("FocusIn", s.upstream.FocusIn)
	if s.haveCursor {
		r := s.cursor
		s.call("SetCursorLocation", func(ctx context.Context) error {
			return s.upstream.SetCursorLocation(ctx, r)
		})
	}
}

// FocusOut removes keyboard focus.
func (s *Session) FocusOut() {
	if s.destroyed {
		return
	}
	s.focused = false
	s.cancelPending()
	if s.connected {
		s.call("FocusOut", s.upstream.FocusOut)
	}
	s.composer.FocusOut()
	s.logger.Debug("focus out")
}

// Reset abandons any composition in progress.
func (s *Session) Reset() {
	if s.destroyed {
		return
	}
	if s.connected {
		s.call("Reset", s.upstream.Reset)
	}
	s.composer.Reset()
}

// SetCursorRect records the text cursor position and forwards it when
// connected.
func (s *Session) SetCursorRect(r Rect) {
	if s.destroyed {
		return
	}
	s.cursor = r
	s.haveCursor = true
	if s.connected {
		s.call("SetCursorLocation", func(ctx context.Context) error {
			return s.upstream.SetCursorLocation(ctx, r)
		})
	}
}

// SetClientArea records the client window geometry.
func (s *Session) SetClientArea(r Rect) {
	if s.destroyed {
		return
	}
	s.clientArea = r
	s.composer.SetClientArea(r)
}

// ProcessKey decides who handles ev and reports whether it was consumed.
//
// A keyval of zero is classified from the keycode through the keymap. A
// hotkey match consumes the key when the session is focused. Otherwise a connected and focused session
// asks the upstream; anything the upstream declines, or fails to answer,
// goes to the composer. In ModeAsync the key is reported consumed at once
// and replayed to the composer when the reply declines it.
func (s *Session) ProcessKey(ev KeyEvent) bool {
	if s.destroyed {
		return false
	}
	if ev.Keyval == 0 && s.opts.Keymap != nil {
		if k, ok := s.opts.Keymap.Classify(ev.Keycode, s.opts.Group, ev.State); ok {
			ev.Keyval = k
		}
	}
	s.tracker.Observe(ev.Keyval, !ev.IsRelease())

	if s.matchHotkey(ev) {
		return true
	}

	if s.connected && s.focused {
		if s.opts.Mode == ModeAsync {
			if ap, ok := s.upstream.(AsyncKeyEventProcessor); ok {
				s.processAsync(ap, ev)
				return true
			}
		}
		if s.processSync(ev) {
			return true
		}
	}
	return s.forward(ev)
}

func (s *Session) matchHotkey(ev KeyEvent) bool {
	mask := ev.State
	if s.opts.LatchModifiers {
		mask |= s.tracker.Mask()
	}
	prevK, prevMask := s.prevKeyval, s.prevMask
	s.prevKeyval, s.prevMask = ev.Keyval, mask

	if s.opts.Profile == nil || !s.focused {
		return false
	}
	id, ok := s.opts.Profile.Filter(ev.Keyval, mask, prevK, prevMask)
	if !ok {
		return false
	}
	s.logger.Debug("hotkey", "event", id, "key", ev)
	s.opts.Metrics.KeyHotkey()
	s.host.Hotkey(id)
	return true
}

func (s *Session) processSync(ev KeyEvent) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.KeyTimeout)
	defer cancel()

	start := time.Now()
	consumed, err := s.upstream.ProcessKeyEvent(ctx, ev)
	s.opts.Metrics.UpstreamCall(time.Since(start), err)
	if err != nil {
		s.logger.Warn("upstream key failed, using composer", "key", ev, "error", err)
		return false
	}
	if consumed {
		s.opts.Metrics.KeyUpstream()
	}
	return consumed
}

func (s *Session) processAsync(ap AsyncKeyEventProcessor, ev KeyEvent) {
	s.serial++
	serial := s.serial
	s.pending[serial] = pendingKey{ev: ev, generation: s.generation, started: time.Now()}
	s.opts.Metrics.Pending(1)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.KeyTimeout)
	ap.ProcessKeyEventAsync(ctx, ev, func(consumed bool, err error) {
		cancel()
		s.opts.Dispatch(func() { s.finishAsync(serial, consumed, err) })
	})
}

func (s *Session) finishAsync(serial uint64, consumed bool, err error) {
	p, ok := s.pending[serial]
	if !ok {
		return
	}
	delete(s.pending, serial)
	s.opts.Metrics.Pending(-1)
	s.opts.Metrics.UpstreamCall(time.Since(p.started), err)

	if s.destroyed || p.generation != s.generation {
		s.opts.Metrics.Discarded(1)
		return
	}
	if err != nil {
		s.logger.Warn("upstream key failed, using composer", "key", p.ev, "error", err)
	} else if consumed {
		s.opts.Metrics.KeyUpstream()
		return
	}
	if !s.forward(p.ev) {
		s.host.ForwardKey(p.ev)
	}
}

// cancelPending drops buffered keys so that late replies are not replayed.
func (s *Session) cancelPending() {
	s.generation++
	if n := len(s.pending); n > 0 {
		s.logger.Debug("discarding pending keys", "count", n)
		s.opts.Metrics.Discarded(n)
		s.opts.Metrics.Pending(-n)
		clear(s.pending)
	}
}

func (s *Session) forward(ev KeyEvent) bool {
	s.opts.Metrics.KeyComposer()
	return s.composer.ForwardKey(ev)
}

// OnPreeditUpdate replaces the preedit snapshot. Host notifications fire
// only when visibility changes.
func (s *Session) OnPreeditUpdate(p Preedit) {
	if s.destroyed {
		return
	}
	was := s.preedit.Visible
	s.preedit = p
	switch {
	case p.Visible && !was:
		s.host.PreeditStart()
		s.host.PreeditChanged()
	case !p.Visible && was:
		s.host.PreeditChanged()
		s.host.PreeditEnd()
	}
}

// OnShowPreedit makes the current preedit visible.
func (s *Session) OnShowPreedit() {
	p := s.preedit
	p.Visible = true
	s.OnPreeditUpdate(p)
}

// OnHidePreedit hides the current preedit.
func (s *Session) OnHidePreedit() {
	p := s.preedit
	p.Visible = false
	s.OnPreeditUpdate(p)
}

func (s *Session) clearPreedit() {
	was := s.preedit.Visible
	s.preedit = Preedit{}
	if was {
		s.host.PreeditChanged()
		s.host.PreeditEnd()
	}
}

// OnCommitText delivers committed text to the host.
func (s *Session) OnCommitText(text string) {
	if s.destroyed || text == "" {
		return
	}
	s.host.Commit(text)
}

// OnForwardKey delivers a key the service handed back.
func (s *Session) OnForwardKey(ev KeyEvent) {
	if s.destroyed {
		return
	}
	s.host.ForwardKey(ev)
}

// OnDeleteSurrounding asks the host to delete nchars characters starting
// offset characters from the cursor.
func (s *Session) OnDeleteSurrounding(offset, nchars int) {
	if s.destroyed {
		return
	}
	s.host.DeleteSurrounding(offset, nchars)
}

// OnRequireSurrounding asks the host for the text around the cursor.
func (s *Session) OnRequireSurrounding() {
	if s.destroyed {
		return
	}
	s.host.RetrieveSurrounding()
}

// Destroy releases the upstream context and drops pending keys. Later calls
// return ErrDestroyed and change nothing.
func (s *Session) Destroy() error {
	if s.destroyed {
		return ErrDestroyed
	}
	s.cancelPending()
	s.destroyed = true
	s.focused = false
	s.opts.Metrics.SessionClosed()

	up := s.upstream
	s.upstream = nil
	s.connected = false
	s.logger.Debug("destroyed")
	if up == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.KeyTimeout)
	defer cancel()
	if err := up.Destroy(ctx); err != nil {
		return fmt.Errorf("destroy upstream context: %w", err)
	}
	return nil
}
