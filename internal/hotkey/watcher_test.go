package hotkey

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/keysym"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.hotkeys")
	require.NoError(t, os.WriteFile(path, []byte("toggle = Control+space\n"), 0o644))

	p, _, err := LoadFile(path, LoadOptions{})
	require.NoError(t, err)

	w := NewWatcher(p, path, WatcherOptions{Strict: true, Debounce: 10 * time.Millisecond})
	reloaded := make(chan error, 4)
	w.OnReload(func(_ []*LineError, err error) { reloaded <- err })
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	replaceFile(t, path, "toggle = Control+a\n")
	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	ev, ok := p.Lookup('a', control)
	assert.True(t, ok)
	assert.Equal(t, EventID("toggle"), ev)
	_, ok = p.Lookup(keysym.Space, control)
	assert.False(t, ok)
}

func TestWatcherStrictRejectKeepsTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.hotkeys")
	require.NoError(t, os.WriteFile(path, []byte("toggle = Control+space\n"), 0o644))

	p, _, err := LoadFile(path, LoadOptions{})
	require.NoError(t, err)

	w := NewWatcher(p, path, WatcherOptions{Strict: true, Debounce: 10 * time.Millisecond})
	reloaded := make(chan error, 4)
	w.OnReload(func(_ []*LineError, err error) { reloaded <- err })
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	replaceFile(t, path, "toggle = Control+NoSuchKey\n")
	select {
	case err := <-reloaded:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	_, ok := p.Lookup(keysym.Space, control)
	assert.True(t, ok)
}

func TestWatcherStartMissingDir(t *testing.T) {
	p := NewProfile("x")
	w := NewWatcher(p, filepath.Join(t.TempDir(), "no", "such", "file"), WatcherOptions{})
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Close())
}

// replaceFile swaps content into path by rename so the watcher never sees a
// half-written file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "next")
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}
