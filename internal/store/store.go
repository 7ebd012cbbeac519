// Package store persists the automation state as flat files under a
// state directory: mutable settings, the forwarded-message registry, the
// daily counter and the profile-ready marker. All types guard their
// read-modify-persist cycles with a mutex because the worker loop and the
// control surface share them.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// File names inside the state directory.
const (
	settingsFile = "settings.json"
	registryFile = "forwarded.json"
	counterFile  = "daily_counter.json"
	markerFile   = "profile_ready"

	// ProfileDirName is the browser user-data directory, managed by the
	// browser itself.
	ProfileDirName = "profile"
)

// ProfileDir returns the browser profile directory under dir.
func ProfileDir(dir string) string {
	return filepath.Join(dir, ProfileDirName)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}
