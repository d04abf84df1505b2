package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/keysym"
	"imbridge/internal/session"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// replaceFile swaps content into path by rename so a watcher never sees a
// truncated file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "next")
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, session.DefaultKeyTimeout, cfg.KeyTimeout())
	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, session.ModeSync, mode)
	caps, err := cfg.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, session.DefaultCapabilities, caps)
	assert.Equal(t, keysym.LockMask|keysym.Mod2Mask, cfg.IgnoredMask())
	assert.True(t, strings.HasSuffix(cfg.Store.Path, "profiles.db"))
}

func TestConfigDirOverride(t *testing.T) {
	t.Setenv("IMBRIDGE_CONFIG_DIR", "/opt/imbridge")
	assert.Equal(t, "/opt/imbridge", ConfigDir())
	assert.Equal(t, filepath.Join("/opt/imbridge", "config.toml"), ConfigPath())
	assert.Equal(t, filepath.Join("/opt/imbridge", "hotkeys.conf"), DefaultConfig().Hotkeys.ProfilePath)
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"config.toml", `
version = 1

[engine]
mode = "async"
key_timeout_ms = 250
capabilities = ["preedit", "focus", "surrounding"]

[hotkeys]
watch = true
`},
		{"config.json", `{
  "engine": {"mode": "async", "key_timeout_ms": 250, "capabilities": ["preedit", "focus", "surrounding"]},
  "hotkeys": {"watch": true}
}`},
		{"config.yaml", `
engine:
  mode: async
  key_timeout_ms: 250
  capabilities: [preedit, focus, surrounding]
hotkeys:
  watch: true
`},
		{"config.conf", `{"engine": {"mode": "async", "key_timeout_ms": 250, "capabilities": ["preedit", "focus", "surrounding"]}, "hotkeys": {"watch": true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.name, tt.content)
			cfg, err := Load(path)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			assert.Equal(t, "async", cfg.Engine.Mode)
			assert.Equal(t, 250*time.Millisecond, cfg.KeyTimeout())
			assert.True(t, cfg.Hotkeys.Watch)
			caps, err := cfg.Capabilities()
			require.NoError(t, err)
			assert.Equal(t, session.CapPreeditText|session.CapFocus|session.CapSurroundingText, caps)

			// Unset keys keep their defaults.
			assert.Equal(t, DefaultConfig().Store, cfg.Store)
			assert.Equal(t, "imbridge", cfg.Engine.ClientName)
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"config.toml", "[engine]\nbogus = 1\n", "engine.bogus"},
		{"config.json", `{"engine": {"bogus": 1}}`, "bogus"},
		{"config.yaml", "engine:\n  bogus: 1\n", "bogus"},
		{"config.conf", "not [ valid", "tried TOML, JSON, YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, t.TempDir(), tt.name, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IMBRIDGE_MODE", "async")
	t.Setenv("IMBRIDGE_KEY_TIMEOUT_MS", "42")
	t.Setenv("IMBRIDGE_IBUS_ADDRESS", "unix:path=/tmp/ibus")
	t.Setenv("IMBRIDGE_STORE_PATH", "/tmp/p.db")
	t.Setenv("IMBRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(writeFile(t, t.TempDir(), "config.toml", "[engine]\nmode = \"sync\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "async", cfg.Engine.Mode)
	assert.Equal(t, 42, cfg.Engine.KeyTimeoutMs)
	assert.Equal(t, "unix:path=/tmp/ibus", cfg.IBus.Address)
	assert.Equal(t, "/tmp/p.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrideBadTimeout(t *testing.T) {
	t.Setenv("IMBRIDGE_KEY_TIMEOUT_MS", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	assert.ErrorContains(t, err, "IMBRIDGE_KEY_TIMEOUT_MS")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Mode = "fast"
	cfg.Engine.KeyTimeoutMs = 0
	cfg.Engine.Capabilities = []string{"telepathy"}
	cfg.Store.Path = ""
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""

	err := cfg.Validate()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{
		"engine.mode",
		"engine.key_timeout_ms",
		"engine.capabilities",
		"store.path",
		"logging.file_path",
	}, verrs.Fields())
	assert.Contains(t, err.Error(), `unknown capability "telepathy"`)
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "version"},
		{"client name", func(c *Config) { c.Engine.ClientName = "" }, "engine.client_name"},
		{"watch without path", func(c *Config) { c.Hotkeys.Watch = true; c.Hotkeys.ProfilePath = "" }, "hotkeys.profile_path"},
		{"debounce", func(c *Config) { c.Hotkeys.DebounceMs = -1 }, "hotkeys.debounce_ms"},
		{"group", func(c *Config) { c.Keymap.Group = 4 }, "keymap.group"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			var verrs ValidationErrors
			require.ErrorAs(t, cfg.Validate(), &verrs)
			assert.Equal(t, []string{tt.field}, verrs.Fields())
		})
	}
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]string{"preedit", " Focus ", "lookup-table"})
	require.NoError(t, err)
	assert.Equal(t, session.CapPreeditText|session.CapFocus|session.CapLookupTable, caps)

	caps, err = ParseCapabilities(nil)
	require.NoError(t, err)
	assert.Zero(t, caps)

	_, err = ParseCapabilities([]string{"preedit", "nope"})
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Engine.Capabilities[0] = "property"
	clone.Engine.Mode = "async"
	assert.Equal(t, "preedit", cfg.Engine.Capabilities[0])
	assert.Equal(t, "sync", cfg.Engine.Mode)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Mode = "async"
	cfg.Engine.LatchModifiers = true
	cfg.Keymap.Path = "/etc/imbridge/us.keymap"
	cfg.Keymap.Group = 1
	cfg.IBus.Address = "unix:path=/tmp/ibus"

	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, SaveConfig(cfg, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "data", "profiles.db")
	cfg.Hotkeys.ProfilePath = filepath.Join(dir, "conf", "hotkeys.conf")
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "imbridge.log")
	require.NoError(t, cfg.EnsureDirectories())

	for _, sub := range []string{"data", "conf", "logs"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IMBRIDGE_CONFIG_DIR", dir)
	t.Chdir(t.TempDir())

	assert.Empty(t, FindConfigFile())
	path := writeFile(t, dir, "config.yaml", "engine:\n  mode: sync\n")
	assert.Equal(t, path, FindConfigFile())
}

func TestLoaderRejectsInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[engine]\nmode = \"fast\"\n")
	l := NewLoader(path, nil)
	defer l.Close()

	_, err := l.Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	assert.Nil(t, l.Config())
}

func TestLoaderWatchReloads(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[engine]\nmode = \"sync\"\n")
	l := NewLoader(path, nil)
	l.SetDebounce(10 * time.Millisecond)
	defer l.Close()

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "sync", cfg.Engine.Mode)

	changed := make(chan [2]*Config, 4)
	l.OnChange(func(old, new *Config) { changed <- [2]*Config{old, new} })
	require.NoError(t, l.Watch())

	replaceFile(t, path, "[engine]\nmode = \"async\"\n")
	select {
	case pair := <-changed:
		assert.Equal(t, "sync", pair[0].Engine.Mode)
		assert.Equal(t, "async", pair[1].Engine.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
	assert.Equal(t, "async", l.Config().Engine.Mode)

	replaceFile(t, path, "[engine]\nmode = \"fast\"\n")
	select {
	case err := <-l.Errors():
		assert.ErrorIs(t, err, ErrInvalidConfig)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload error")
	}
	assert.Equal(t, "async", l.Config().Engine.Mode)
}
