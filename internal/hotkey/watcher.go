package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a profile file must be quiet before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a profile when its file changes on disk.
type Watcher struct {
	path     string
	profile  *Profile
	strict   bool
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	onReload []func([]*LineError, error)
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Strict   bool
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewWatcher creates a watcher that reloads path into p.
func NewWatcher(p *Profile, path string, opts WatcherOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		profile:  p,
		strict:   opts.Strict,
		debounce: opts.Debounce,
		logger:   opts.Logger.With("profile", p.Name(), "path", path),
	}
}

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(cb func(errs []*LineError, err error)) {
	w.mu.Lock()
	w.onReload = append(w.onReload, cb)
	w.mu.Unlock()
}

// Start begins watching. The directory containing the file is watched so
// that editors replacing the file by rename are noticed.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	w.watcher = fw

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("profile watcher error", "error", err)
		}
	}
}

// reload runs on a timer goroutine. Profile.Replace is safe against
// concurrent lookups.
func (w *Watcher) reload() {
	errs, err := ReloadFile(w.profile, w.path, w.strict)
	switch {
	case err != nil:
		w.logger.Warn("profile reload rejected", "error", err)
	case len(errs) > 0:
		for _, le := range errs {
			w.logger.Warn("profile line skipped", "line", le.Line, "error", le.Msg)
		}
		w.logger.Info("profile reloaded", "entries", w.profile.Len(), "skipped", len(errs))
	default:
		w.logger.Info("profile reloaded", "entries", w.profile.Len())
	}

	w.mu.Lock()
	cbs := append(([]func([]*LineError, error))(nil), w.onReload...)
	w.mu.Unlock()
	for _, cb := range cbs {
		cb(errs, err)
	}
}
