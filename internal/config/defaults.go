package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "imbridge"

// ConfigDir returns the directory holding config.toml, hotkey profiles and
// keymaps. IMBRIDGE_CONFIG_DIR overrides it.
//
// Platform paths:
//   - Linux:   $XDG_CONFIG_HOME/imbridge or ~/.config/imbridge
//   - macOS:   ~/Library/Application Support/imbridge
//   - Windows: %APPDATA%\imbridge
func ConfigDir() string {
	if dir := os.Getenv("IMBRIDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "linux":
		return xdgDir("XDG_CONFIG_HOME", ".config")
	default:
		return platformDir()
	}
}

// DataDir returns the directory holding the profile database.
//
// Platform paths:
//   - Linux:   $XDG_DATA_HOME/imbridge or ~/.local/share/imbridge
//   - macOS:   ~/Library/Application Support/imbridge
//   - Windows: %APPDATA%\imbridge
func DataDir() string {
	if dir := os.Getenv("IMBRIDGE_DATA_DIR"); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "linux":
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	default:
		return platformDir()
	}
}

// LogDir returns the directory for log files.
func LogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", appName)
	default:
		return filepath.Join(DataDir(), "logs")
	}
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	return filepath.Join(homeDir(), fallback, appName)
}

func platformDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), "."+appName)
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

// SupportedConfigFormats returns the recognized config file extensions.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns the first config.<ext> in the current directory or
// ConfigDir, or "" when there is none.
func FindConfigFile() string {
	for _, dir := range []string{".", ConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
