package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/hotkey"
	"imbridge/internal/keysym"
)

func openTest(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func sampleProfile(t *testing.T, name string) *hotkey.Profile {
	t.Helper()
	p := hotkey.NewProfile(name, hotkey.WithIgnoredMask(keysym.LockMask|keysym.Mod2Mask))
	require.NoError(t, p.Add(keysym.Space, keysym.ControlMask, "toggle"))
	require.NoError(t, p.Add(keysym.Space, keysym.ShiftMask, "toggle"))
	require.NoError(t, p.Add(keysym.ShiftL, keysym.ReleaseMask, "peek"))
	require.NoError(t, p.Add(keysym.F1, 0, "help"))
	return p
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "sub", "nested", "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	require.NoError(t, s.Close())
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestSaveAndLoadProfile(t *testing.T) {
	s, _ := openTest(t)
	p := sampleProfile(t, "default")
	require.NoError(t, s.SaveProfile(p))

	got, err := s.LoadProfile("default")
	require.NoError(t, err)
	assert.Equal(t, "default", got.Name())
	assert.Equal(t, p.IgnoredMask(), got.IgnoredMask())
	assert.Equal(t, p.Entries(), got.Entries())

	ev, ok := got.Lookup(keysym.Space, keysym.ControlMask|keysym.LockMask)
	assert.True(t, ok)
	assert.Equal(t, hotkey.EventID("toggle"), ev)
	ev, ok = got.Lookup(keysym.ShiftL, keysym.ShiftMask|keysym.ReleaseMask)
	assert.True(t, ok)
	assert.Equal(t, hotkey.EventID("peek"), ev)
}

func TestSaveProfileReplaces(t *testing.T) {
	s, _ := openTest(t)
	require.NoError(t, s.SaveProfile(sampleProfile(t, "default")))

	smaller := hotkey.NewProfile("default")
	require.NoError(t, smaller.Add('a', keysym.ControlMask, "toggle"))
	require.NoError(t, s.SaveProfile(smaller))

	got, err := s.LoadProfile("default")
	require.NoError(t, err)
	assert.Equal(t, smaller.Entries(), got.Entries())
	assert.Zero(t, got.IgnoredMask())
}

func TestSaveProfileEmptyName(t *testing.T) {
	s, _ := openTest(t)
	assert.Error(t, s.SaveProfile(hotkey.NewProfile("")))
}

func TestLoadProfileNotFound(t *testing.T) {
	s, _ := openTest(t)
	_, err := s.LoadProfile("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProfiles(t *testing.T) {
	s, _ := openTest(t)
	infos, err := s.ListProfiles()
	require.NoError(t, err)
	assert.Empty(t, infos)

	require.NoError(t, s.SaveProfile(sampleProfile(t, "work")))
	require.NoError(t, s.SaveProfile(hotkey.NewProfile("empty")))

	infos, err = s.ListProfiles()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "empty", infos[0].Name)
	assert.Equal(t, 0, infos[0].Hotkeys)
	assert.Equal(t, "work", infos[1].Name)
	assert.Equal(t, 4, infos[1].Hotkeys)
	assert.False(t, infos[1].UpdatedAt.IsZero())
}

func TestDeleteProfileCascades(t *testing.T) {
	s, _ := openTest(t)
	require.NoError(t, s.SaveProfile(sampleProfile(t, "default")))
	require.NoError(t, s.DeleteProfile("default"))

	_, err := s.LoadProfile("default")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM hotkeys").Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteProfile("default"), ErrNotFound)
}

func TestReopenKeepsProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(path)
	require.NoError(t, err)
	p := sampleProfile(t, "default")
	require.NoError(t, s.SaveProfile(p))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadProfile("default")
	require.NoError(t, err)
	assert.Equal(t, p.Entries(), got.Entries())
}

func TestMigrationStatusAndRollback(t *testing.T) {
	s, path := openTest(t)

	status, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
	assert.Equal(t, 2, status.LatestVersion)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.AppliedAt, 2)

	require.NoError(t, s.Rollback())
	status, err = s.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentVersion)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, 2, status.Pending[0].Version)
	require.NoError(t, s.Validate())

	require.NoError(t, s.Rollback())
	assert.Error(t, s.Validate())
	assert.Error(t, s.Rollback())
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Validate())
	status, err = s.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
}
