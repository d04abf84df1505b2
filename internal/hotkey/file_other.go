//go:build !unix

package hotkey

import "os"

func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
