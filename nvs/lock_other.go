//go:build !unix

package nvs

import "os"

func lockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) {}
