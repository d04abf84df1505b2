package hotkey

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveFile writes p to path in profile-file syntax. Concurrent writers are
// serialized with an exclusive advisory lock on the file.
func SaveFile(path string, p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("lock profile: %w", err)
	}
	defer unlockFile(f)

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate profile: %w", err)
	}
	if err := Write(f, p); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return f.Sync()
}
