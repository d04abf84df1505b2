// Package engine assembles a configured bridge: the hotkey profile and its
// watcher, the keymap, the IBus client and the session registry, all
// driven by one event loop. Sessions and the registry are only touched
// from functions running on that loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"imbridge/internal/config"
	"imbridge/internal/hotkey"
	"imbridge/internal/ibus"
	"imbridge/internal/keymap"
	"imbridge/internal/loop"
	"imbridge/internal/metrics"
	"imbridge/internal/session"
)

// connector attaches an upstream context to a new session.
type connector func(ctx context.Context, s *session.Session) (session.Upstream, error)

// Engine is a running bridge.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	loop    *loop.Loop
	metrics *metrics.Engine
	profile *hotkey.Profile
	keymap  *keymap.Keymap
	opts    session.Options

	registry *session.Registry
	watcher  *hotkey.Watcher
	client   *ibus.Client
	connect  connector
	running  atomic.Bool
}

// New validates cfg and loads the hotkey profile and keymap it names. A
// missing profile file yields an empty profile.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	caps, err := cfg.Capabilities()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger.With("component", "engine"),
		loop:     loop.New(),
		metrics:  metrics.NewEngine(nil),
		registry: session.NewRegistry(),
	}

	if e.profile, err = e.loadProfile(); err != nil {
		return nil, err
	}
	if e.keymap, err = e.loadKeymap(); err != nil {
		return nil, err
	}

	e.opts = session.Options{
		Mode:           mode,
		KeyTimeout:     cfg.KeyTimeout(),
		LatchModifiers: cfg.Engine.LatchModifiers,
		Profile:        e.profile,
		Keymap:         e.keymap,
		Group:          cfg.Keymap.Group,
		ClientName:     cfg.Engine.ClientName,
		Capabilities:   caps,
		Dispatch:       e.loop.Post,
		Logger:         logger,
		Metrics:        e.metrics,
	}
	return e, nil
}

func (e *Engine) loadProfile() (*hotkey.Profile, error) {
	path := e.cfg.Hotkeys.ProfilePath
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if path == "" {
		return hotkey.NewProfile("default", hotkey.WithIgnoredMask(e.cfg.IgnoredMask())), nil
	}

	p, errs, err := hotkey.LoadFile(path, hotkey.LoadOptions{
		Strict:      e.cfg.Hotkeys.Strict,
		IgnoredMask: e.cfg.IgnoredMask(),
	})
	if errors.Is(err, fs.ErrNotExist) {
		e.logger.Info("no hotkey profile", "path", path)
		return hotkey.NewProfile(name, hotkey.WithIgnoredMask(e.cfg.IgnoredMask())), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load hotkeys: %w", err)
	}
	for _, le := range errs {
		e.logger.Warn("hotkey line skipped", "path", path, "line", le.Line, "error", le.Msg)
	}
	return p, nil
}

func (e *Engine) loadKeymap() (*keymap.Keymap, error) {
	path := e.cfg.Keymap.Path
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keymap: %w", err)
	}
	defer f.Close()

	dir := e.cfg.Keymap.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	km, errs, err := keymap.Parse(f, filepath.Base(path), keymap.DirResolver(dir))
	if err != nil {
		return nil, fmt.Errorf("load keymap: %w", err)
	}
	for _, le := range errs {
		e.logger.Warn("keymap line skipped", "path", path, "line", le.Line, "error", le.Msg)
	}
	return km, nil
}

// Connect dials the IBus daemon. Sessions opened afterwards get an input
// context; without Connect they run on the fallback composer alone.
func (e *Engine) Connect(ctx context.Context) error {
	addr := e.cfg.IBus.Address
	if addr == "" {
		var err error
		if addr, err = ibus.Address(); err != nil {
			return err
		}
	}
	client, err := ibus.Dial(addr, e.logger)
	if err != nil {
		return err
	}
	client.Start(ctx)
	e.client = client
	e.connect = func(ctx context.Context, s *session.Session) (session.Upstream, error) {
		ic, err := client.CreateInputContext(ctx, e.cfg.Engine.ClientName)
		if err != nil {
			return nil, err
		}
		if err := client.Bind(ic, s, e.loop.Post); err != nil {
			e.discard(ctx, ic, s.ID())
			return nil, err
		}
		return ic, nil
	}
	e.logger.Info("connected to ibus", "address", addr)
	return nil
}

// discard destroys an input context that never got bound to its session.
func (e *Engine) discard(ctx context.Context, up session.Upstream, id string) {
	if err := up.Destroy(ctx); err != nil {
		e.logger.Warn("destroy unbound input context", "session", id, "error", err)
	}
}

// Run starts the profile watcher when configured and runs the event loop
// until ctx is done or Close is called.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.Hotkeys.Watch && e.cfg.Hotkeys.ProfilePath != "" {
		w := hotkey.NewWatcher(e.profile, e.cfg.Hotkeys.ProfilePath, hotkey.WatcherOptions{
			Strict:   e.cfg.Hotkeys.Strict,
			Debounce: time.Duration(e.cfg.Hotkeys.DebounceMs) * time.Millisecond,
			Logger:   e.logger,
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch hotkeys: %w", err)
		}
		e.watcher = w
	}
	e.running.Store(true)
	defer e.running.Store(false)
	return e.loop.Run(ctx)
}

// Loop returns the loop sessions run on.
func (e *Engine) Loop() *loop.Loop { return e.loop }

// Profile returns the live hotkey profile.
func (e *Engine) Profile() *hotkey.Profile { return e.profile }

// Metrics returns the engine counters.
func (e *Engine) Metrics() *metrics.Engine { return e.metrics }

// Sessions returns the session registry. Use it from the loop only.
func (e *Engine) Sessions() *session.Registry { return e.registry }

// OpenSession creates and registers a session and, when connected,
// attaches a fresh input context. It must run on the loop.
func (e *Engine) OpenSession(ctx context.Context, id string, host session.Host, composer session.Composer) (*session.Session, error) {
	s, err := e.registry.Create(id, host, composer, e.opts)
	if err != nil {
		return nil, err
	}
	if e.connect == nil {
		return s, nil
	}

	up, err := e.connect(ctx, s)
	if err != nil {
		// The session still works without an upstream.
		e.logger.Warn("no input context", "session", id, "error", err)
		return s, nil
	}
	if err := s.OnConnect(up); err != nil {
		return nil, err
	}
	return s, nil
}

// CloseSession destroys the session for id. It must run on the loop.
func (e *Engine) CloseSession(id string) error {
	return e.registry.Destroy(id)
}

// Close destroys every session, stops the watcher and the loop, and
// closes the IBus connection.
func (e *Engine) Close() error {
	var errs []error
	if e.running.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.KeyTimeout+time.Second)
		if !e.loop.Call(ctx, func() { errs = append(errs, e.registry.CloseAll()) }) {
			errs = append(errs, errors.New("close sessions: loop did not respond"))
		}
		cancel()
	} else {
		errs = append(errs, e.registry.CloseAll())
	}
	e.loop.Stop()

	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	if e.client != nil {
		errs = append(errs, e.client.Close())
	}
	return errors.Join(errs...)
}
