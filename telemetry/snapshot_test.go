package telemetry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/slosh/fluid"
)

func TestSnapshotSaveLoad(t *testing.T) {
	cfg := testConfig(t, splashScene)
	sim, sc := newScenarioSim(t, cfg, nil)
	for i := 0; i < 3; i++ {
		sim.Step(sc.Interaction(sim.Tick))
	}

	snap := Capture(sim, cfg.Seed)
	snap.Bookmark = &Bookmark{Type: BookmarkSplash, Tick: sim.Tick, Description: "test"}

	path, err := SaveSnapshot(snap, t.TempDir())
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if base := filepath.Base(path); base != "snapshot_3_splash.json" {
		t.Errorf("file name = %s", base)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Tick != 3 || loaded.Seed != 11 || loaded.Cols != 24 || loaded.Rows != 16 {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkSplash {
		t.Errorf("bookmark = %+v", loaded.Bookmark)
	}
	for c := range snap.Types {
		if loaded.Types[c] != snap.Types[c] || loaded.U[c] != snap.U[c] || loaded.V[c] != snap.V[c] {
			t.Fatalf("cell %d differs after reload", c)
		}
	}
	for i := range snap.Pos {
		if loaded.Pos[i] != snap.Pos[i] || loaded.Vel[i] != snap.Vel[i] {
			t.Fatalf("particle %d differs after reload", i)
		}
	}
}

func TestSnapshotResumeIsBitIdentical(t *testing.T) {
	cfg := testConfig(t, splashScene)

	ref, sc := newScenarioSim(t, cfg, nil)
	for ref.Tick < 5 {
		ref.Step(sc.Interaction(ref.Tick))
	}
	path, err := SaveSnapshot(Capture(ref, cfg.Seed), t.TempDir())
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	// Continue through the probe window so terrain changes after the save.
	for ref.Tick < 12 {
		ref.Step(sc.Interaction(ref.Tick))
	}

	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	resumed, sc2 := newScenarioSim(t, cfg, nil)
	if err := snap.Restore(resumed); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for resumed.Tick < 12 {
		resumed.Step(sc2.Interaction(resumed.Tick))
	}

	g1, g2 := ref.Grid, resumed.Grid
	for c := range g1.Types {
		if g1.Types[c] != g2.Types[c] {
			t.Fatalf("cell %d type %v vs %v", c, g1.Types[c], g2.Types[c])
		}
		if g1.In.U[c] != g2.In.U[c] || g1.In.V[c] != g2.In.V[c] {
			t.Fatalf("cell %d velocity differs", c)
		}
	}
	for i := range ref.Particles.Pos {
		if ref.Particles.Pos[i] != resumed.Particles.Pos[i] || ref.Particles.Vel[i] != resumed.Particles.Vel[i] {
			t.Fatalf("particle %d differs: %+v vs %+v", i, ref.Particles.Pos[i], resumed.Particles.Pos[i])
		}
	}
}

func TestSnapshotRestoreRejectsMismatch(t *testing.T) {
	cfg := testConfig(t, splashScene)
	sim, _ := newScenarioSim(t, cfg, nil)
	good := Capture(sim, cfg.Seed)

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
		want   string
	}{
		{"version", func(s *Snapshot) { s.Version = 99 }, "version"},
		{"grid", func(s *Snapshot) { s.Cols = 8 }, "grid"},
		{"cell size", func(s *Snapshot) { s.CellSize = fluid.Vec2{X: 2, Y: 2} }, "cell size"},
		{"radius", func(s *Snapshot) { s.Radius = 1 }, "radius"},
		{"cells", func(s *Snapshot) { s.U = s.U[:3] }, "cell buffers"},
		{"particles", func(s *Snapshot) { s.Vel = s.Vel[:1] }, "particles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := *good
			tt.mutate(&snap)
			err := snap.Restore(sim)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
