package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
)

// SchemaVersion tags persisted snapshots. Bumping it invalidates every
// snapshot written by older builds; they are discarded and re-fetched.
const SchemaVersion = 3

var (
	// ErrNoSnapshot is returned when no persisted snapshot exists.
	ErrNoSnapshot = errors.New("no persisted snapshot")

	// ErrSnapshotStale is returned when a persisted snapshot fails the
	// version or age gate.
	ErrSnapshotStale = errors.New("persisted snapshot stale")
)

// Snapshot is the composed, published result of one successful resolution.
type Snapshot struct {
	Location  domain.ResolvedLocation `json:"location"`
	Forecast  domain.Forecast         `json:"forecast"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type persistedSnapshot struct {
	Version     int                     `json:"version"`
	Location    domain.ResolvedLocation `json:"location"`
	Coordinates domain.Coordinates      `json:"coordinates"`
	Forecast    domain.Forecast         `json:"forecast"`
	LastUpdated time.Time               `json:"last_updated"`
}

// FileSnapshots persists the latest snapshot as a JSON file, the server-side
// analogue of the website's client-local storage.
type FileSnapshots struct {
	path string
}

// NewFileSnapshots creates a snapshot store writing to path.
func NewFileSnapshots(path string) *FileSnapshots {
	return &FileSnapshots{path: path}
}

// Save writes the snapshot atomically (temp file + rename) so a crash never
// leaves a truncated snapshot behind.
func (f *FileSnapshots) Save(snap Snapshot) error {
	p := persistedSnapshot{
		Version:     SchemaVersion,
		Location:    snap.Location,
		Coordinates: snap.Location.Coordinates,
		Forecast:    snap.Forecast,
		LastUpdated: snap.UpdatedAt,
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot, applying the schema-version and age
// gates. A gated snapshot returns ErrSnapshotStale; a missing file returns
// ErrNoSnapshot.
func (f *FileSnapshots) Load(now time.Time, maxAge time.Duration) (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var p persistedSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		return Snapshot{}, fmt.Errorf("%w: undecodable", ErrSnapshotStale)
	}

	if p.Version != SchemaVersion {
		return Snapshot{}, fmt.Errorf("%w: schema version %d, want %d", ErrSnapshotStale, p.Version, SchemaVersion)
	}
	if maxAge > 0 && now.Sub(p.LastUpdated) > maxAge {
		return Snapshot{}, fmt.Errorf("%w: age %s exceeds %s", ErrSnapshotStale, now.Sub(p.LastUpdated).Round(time.Second), maxAge)
	}

	return Snapshot{
		Location:  p.Location,
		Forecast:  p.Forecast,
		UpdatedAt: p.LastUpdated,
	}, nil
}
