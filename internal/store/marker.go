package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Marker is the session-ready flag: a plain-text timestamp file written
// only after a human confirms the webmail loaded following a manual
// sign-in. It is never cleared automatically.
type Marker struct {
	path string
}

// NewMarker returns the marker for the state directory dir.
func NewMarker(dir string) *Marker {
	return &Marker{path: filepath.Join(dir, markerFile)}
}

// Exists reports whether the profile has been marked ready.
func (m *Marker) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Write records the confirmation time.
func (m *Marker) Write(t time.Time) error {
	if err := ensureDir(m.path); err != nil {
		return err
	}
	data := []byte(t.UTC().Format(time.RFC3339) + "\n")
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("write profile marker: %w", err)
	}
	return nil
}

// Clear removes the marker. Only an operator action calls this.
func (m *Marker) Clear() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove profile marker: %w", err)
	}
	return nil
}
