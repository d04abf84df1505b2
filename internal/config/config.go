// Package config handles configuration loading, validation, and hot reload
// for imbridge.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"imbridge/internal/keysym"
	"imbridge/internal/session"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete engine configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Engine configures each input context session.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// Hotkeys configures the hotkey profile file.
	Hotkeys HotkeysConfig `toml:"hotkeys" json:"hotkeys" yaml:"hotkeys"`

	// Keymap configures keycode classification.
	Keymap KeymapConfig `toml:"keymap" json:"keymap" yaml:"keymap"`

	// IBus configures the upstream connection.
	IBus IBusConfig `toml:"ibus" json:"ibus" yaml:"ibus"`

	// Store configures the profile database.
	Store StoreConfig `toml:"store" json:"store" yaml:"store"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// EngineConfig holds session behavior.
type EngineConfig struct {
	// Mode is "sync" or "async".
	Mode string `toml:"mode" json:"mode" yaml:"mode"`

	// KeyTimeoutMs bounds one upstream key round trip in sync mode.
	KeyTimeoutMs int `toml:"key_timeout_ms" json:"key_timeout_ms" yaml:"key_timeout_ms"`

	// LatchModifiers matches hotkeys against the latched modifier mask
	// in addition to the reported state.
	LatchModifiers bool `toml:"latch_modifiers" json:"latch_modifiers" yaml:"latch_modifiers"`

	// ClientName is sent to the daemon when creating input contexts.
	ClientName string `toml:"client_name" json:"client_name" yaml:"client_name"`

	// Capabilities lists the features the host reports: preedit,
	// auxiliary, lookup-table, focus, property, surrounding.
	Capabilities []string `toml:"capabilities" json:"capabilities" yaml:"capabilities"`
}

// HotkeysConfig holds hotkey profile settings.
type HotkeysConfig struct {
	// ProfilePath is the hotkey profile file.
	ProfilePath string `toml:"profile_path" json:"profile_path" yaml:"profile_path"`

	// Strict rejects the whole file on the first malformed line.
	Strict bool `toml:"strict" json:"strict" yaml:"strict"`

	// Watch reloads the profile when the file changes.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`

	// IgnoreLockMods drops Caps Lock and Num Lock from hotkey matching.
	IgnoreLockMods bool `toml:"ignore_lock_mods" json:"ignore_lock_mods" yaml:"ignore_lock_mods"`

	// DebounceMs is how long the file must be quiet before a reload.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// KeymapConfig holds keymap settings.
type KeymapConfig struct {
	// Path is the keymap file. Empty disables keycode classification.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Dir is searched for included keymaps.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`

	// Group is the active layout group.
	Group int `toml:"group" json:"group" yaml:"group"`
}

// IBusConfig holds upstream settings.
type IBusConfig struct {
	// Address overrides discovery through IBUS_ADDRESS and the bus file.
	Address string `toml:"address" json:"address" yaml:"address"`
}

// StoreConfig holds profile database settings.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	configDir := ConfigDir()
	return &Config{
		Version: Version,
		Engine: EngineConfig{
			Mode:         "sync",
			KeyTimeoutMs: int(session.DefaultKeyTimeout / time.Millisecond),
			ClientName:   "imbridge",
			Capabilities: []string{"preedit", "focus"},
		},
		Hotkeys: HotkeysConfig{
			ProfilePath:    filepath.Join(configDir, "hotkeys.conf"),
			IgnoreLockMods: true,
			DebounceMs:     100,
		},
		Keymap: KeymapConfig{
			Dir: filepath.Join(configDir, "keymaps"),
		},
		Store: StoreConfig{
			Path: filepath.Join(DataDir(), "profiles.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(LogDir(), "imbridge.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads configuration from path. A missing file yields the defaults.
// The format follows the extension: .toml, .json, .yaml or .yml; anything
// else is tried as each in turn. Environment overrides are applied last.
// Load does not validate.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch filepath.Ext(path) {
	case ".toml":
		err = decodeTOML(data, cfg)
	case ".json":
		err = decodeJSON(data, cfg)
	case ".yaml", ".yml":
		err = decodeYAML(data, cfg)
	default:
		err = autoDetectAndParse(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("decode TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("decode TOML: unknown keys %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeJSON(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode YAML: %w", err)
	}
	return nil
}

// autoDetectAndParse tries TOML, then JSON, then YAML, each on a fresh
// copy of the defaults.
func autoDetectAndParse(data []byte, cfg *Config) error {
	for _, decode := range []func([]byte, *Config) error{decodeTOML, decodeJSON, decodeYAML} {
		candidate := DefaultConfig()
		if err := decode(data, candidate); err == nil {
			*cfg = *candidate
			return nil
		}
	}
	return errors.New("unable to parse config file (tried TOML, JSON, YAML)")
}

// ApplyEnvOverrides applies IMBRIDGE_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("IMBRIDGE_MODE"); v != "" {
		c.Engine.Mode = v
	}
	if v := os.Getenv("IMBRIDGE_KEY_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMBRIDGE_KEY_TIMEOUT_MS: %w", err)
		}
		c.Engine.KeyTimeoutMs = n
	}
	if v := os.Getenv("IMBRIDGE_CLIENT_NAME"); v != "" {
		c.Engine.ClientName = v
	}
	if v := os.Getenv("IMBRIDGE_HOTKEYS_PATH"); v != "" {
		c.Hotkeys.ProfilePath = v
	}
	if v := os.Getenv("IMBRIDGE_KEYMAP_PATH"); v != "" {
		c.Keymap.Path = v
	}
	if v := os.Getenv("IMBRIDGE_IBUS_ADDRESS"); v != "" {
		c.IBus.Address = v
	}
	if v := os.Getenv("IMBRIDGE_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("IMBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMBRIDGE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Engine.Capabilities = append([]string(nil), c.Engine.Capabilities...)
	return &clone
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		filepath.Dir(c.Store.Path),
		filepath.Dir(c.Hotkeys.ProfilePath),
		filepath.Dir(c.Logging.FilePath),
	} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// KeyTimeout returns the engine key timeout.
func (c *Config) KeyTimeout() time.Duration {
	return time.Duration(c.Engine.KeyTimeoutMs) * time.Millisecond
}

// Mode returns the parsed engine mode.
func (c *Config) Mode() (session.Mode, error) {
	return session.ParseMode(c.Engine.Mode)
}

// IgnoredMask returns the modifier bits hotkey matching drops.
func (c *Config) IgnoredMask() keysym.State {
	if c.Hotkeys.IgnoreLockMods {
		return keysym.LockMask | keysym.Mod2Mask
	}
	return 0
}

var capabilityByName = map[string]session.Capabilities{
	"preedit":      session.CapPreeditText,
	"auxiliary":    session.CapAuxiliaryText,
	"lookup-table": session.CapLookupTable,
	"focus":        session.CapFocus,
	"property":     session.CapProperty,
	"surrounding":  session.CapSurroundingText,
}

// Capabilities returns the configured capability bits.
func (c *Config) Capabilities() (session.Capabilities, error) {
	return ParseCapabilities(c.Engine.Capabilities)
}

// ParseCapabilities ORs together named capabilities.
func ParseCapabilities(names []string) (session.Capabilities, error) {
	var caps session.Capabilities
	for _, name := range names {
		bit, ok := capabilityByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", name)
		}
		caps |= bit
	}
	return caps, nil
}
