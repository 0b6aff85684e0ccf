package telemetry

import (
	"testing"

	"github.com/pthm-cable/slosh/config"
	"github.com/pthm-cable/slosh/fluid"
	"github.com/pthm-cable/slosh/scene"
)

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return cfg
}

// newScenarioSim builds a sim with terrain applied and particles seeded.
func newScenarioSim(t *testing.T, cfg *config.Config, timer fluid.PhaseTimer) (*fluid.Sim, *scene.Scene) {
	t.Helper()
	sc, err := scene.FromConfig(cfg)
	if err != nil {
		t.Fatalf("scene.FromConfig: %v", err)
	}
	sim := fluid.NewFromConfig(cfg, timer)
	t.Cleanup(sim.Close)
	sc.ApplyTerrain(sim.Grid)
	if err := sc.SeedParticles(sim.Particles, sim.Grid); err != nil {
		t.Fatalf("SeedParticles: %v", err)
	}
	return sim, sc
}

const splashScene = `
seed: 11
grid: {cols: 24, rows: 16}
particles: {count: 400, radius: 0.2}
parallel: {workers: 3, group_size: 8, threshold: 1}
debug: {assert_preconditions: true}
scene:
  walls: true
  solids:
    - { x0: 10, y0: 1, x1: 13, y1: 6, type: terrain }
  emitters:
    - { x0: 1, y0: 4, x1: 8, y1: 15, vel_x: 2 }
  probes:
    - { type: destroy_terrain, x: 11, y: 3, radius: 2, from_tick: 6, to_tick: 8 }
`
