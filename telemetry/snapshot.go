package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/slosh/fluid"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the simulation state needed to resume a run. Restoring it
// into a Sim built from the same config and worker count continues the run
// bit for bit.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	Cols     int        `json:"cols"`
	Rows     int        `json:"rows"`
	CellSize fluid.Vec2 `json:"cell_size"`
	Radius   float32    `json:"radius"`

	Tick int64 `json:"tick"`

	Types []fluid.CellType `json:"types"`
	U     []float32        `json:"u"`
	V     []float32        `json:"v"`

	Pos []fluid.Vec2 `json:"pos"`
	Vel []fluid.Vec2 `json:"vel"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// Capture copies the committed state of s into a new snapshot.
func Capture(s *fluid.Sim, seed int64) *Snapshot {
	g, p := s.Grid, s.Particles
	committed := s.Velocities()
	return &Snapshot{
		Version:  SnapshotVersion,
		Seed:     seed,
		Cols:     g.Cols,
		Rows:     g.Rows,
		CellSize: g.CellSize,
		Radius:   p.Radius,
		Tick:     s.Tick,
		Types:    append([]fluid.CellType(nil), g.Types...),
		U:        append([]float32(nil), committed.U...),
		V:        append([]float32(nil), committed.V...),
		Pos:      append([]fluid.Vec2(nil), p.Pos...),
		Vel:      append([]fluid.Vec2(nil), p.Vel...),
	}
}

// Restore overwrites the state of s with the snapshot. The grid shape,
// cell size, particle count and radius must match.
func (snap *Snapshot) Restore(s *fluid.Sim) error {
	g, p := s.Grid, s.Particles
	n := g.TotalCells()

	switch {
	case snap.Version != SnapshotVersion:
		return fmt.Errorf("snapshot version %d, want %d", snap.Version, SnapshotVersion)
	case snap.Cols != g.Cols || snap.Rows != g.Rows:
		return fmt.Errorf("snapshot grid %dx%d, sim grid %dx%d", snap.Cols, snap.Rows, g.Cols, g.Rows)
	case snap.CellSize != g.CellSize:
		return fmt.Errorf("snapshot cell size %+v, sim cell size %+v", snap.CellSize, g.CellSize)
	case snap.Radius != p.Radius:
		return fmt.Errorf("snapshot radius %g, sim radius %g", snap.Radius, p.Radius)
	case len(snap.Types) != n || len(snap.U) != n || len(snap.V) != n:
		return fmt.Errorf("snapshot cell buffers do not hold %d cells", n)
	case len(snap.Pos) != p.Len() || len(snap.Vel) != p.Len():
		return fmt.Errorf("snapshot has %d/%d particles, sim has %d", len(snap.Pos), len(snap.Vel), p.Len())
	}

	copy(g.Types, snap.Types)
	g.In.CopyFrom(fluid.VelocityField{U: snap.U, V: snap.V})
	g.Out.CopyFrom(g.In)
	copy(p.Pos, snap.Pos)
	copy(p.PosOut, snap.Pos)
	copy(p.Vel, snap.Vel)
	s.Tick = snap.Tick
	return nil
}

// SaveSnapshot writes a snapshot to dir.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}
