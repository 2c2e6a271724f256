package store

import (
	"fmt"
	"os"
	"time"
)

// Marker is the initial-backfill completion flag: a plain file written
// exactly once per host, only after a strictly successful run. Its absence
// is what makes check_and_backfill do work.
type Marker struct {
	path string
}

// NewMarker points at the configured marker path.
func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

// Exists reports whether the initial backfill has completed on this host.
func (m *Marker) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Write records completion with the run id and timestamp for forensics.
func (m *Marker) Write(runID string) error {
	content := fmt.Sprintf("run_id=%s\ncompleted_at=%s\n", runID, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(m.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write backfill marker %s: %w", m.path, err)
	}
	return nil
}

// Clear removes the marker so the next check_and_backfill runs again.
func (m *Marker) Clear() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear backfill marker %s: %w", m.path, err)
	}
	return nil
}
