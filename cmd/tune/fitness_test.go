package main

import (
	"math"
	"testing"
)

const tuneScene = `
seed: 2
grid: {cols: 12, rows: 10}
particles: {count: 120, radius: 0.2}
parallel: {workers: 2, group_size: 8, threshold: 1}
tune: {iteration_cost: 0.01}
scene:
  solids: []
  emitters:
    - { x0: 1, y0: 1, x1: 6, y1: 8 }
`

func TestEvaluateAddsIterationCost(t *testing.T) {
	cfg := baseConfig(t, tuneScene)
	pv := NewParamVector(cfg)

	// No ticks means no residual, leaving only the work term.
	fe := NewFitnessEvaluator(pv, 0, []int64{1, 2}, cfg)
	got := fe.Evaluate([]float64{1.9, 20})
	if math.Abs(got-0.2) > 1e-12 {
		t.Errorf("fitness = %v, want 0.2", got)
	}
	if fe.LastMeanDiv() != 0 {
		t.Errorf("LastMeanDiv = %v, want 0", fe.LastMeanDiv())
	}
}

func TestEvaluateRunsScene(t *testing.T) {
	cfg := baseConfig(t, tuneScene)
	pv := NewParamVector(cfg)
	fe := NewFitnessEvaluator(pv, 10, []int64{1, 2}, cfg)

	got := fe.Evaluate([]float64{1.9, 30})
	div := fe.LastMeanDiv()
	if math.IsNaN(div) || div < 0 {
		t.Fatalf("LastMeanDiv = %v", div)
	}
	if math.Abs(got-(div+0.3)) > 1e-9 {
		t.Errorf("fitness = %v, want %v", got, div+0.3)
	}
	if got >= failedFitness {
		t.Error("run reported as failed")
	}
}

func TestEvaluateDoesNotMutateBase(t *testing.T) {
	cfg := baseConfig(t, tuneScene)
	before := cfg.Physics
	NewFitnessEvaluator(NewParamVector(cfg), 0, []int64{1}, cfg).Evaluate([]float64{1.1, 3})
	if cfg.Physics != before {
		t.Errorf("base physics changed: %+v -> %+v", before, cfg.Physics)
	}
}

func TestFirstPositive(t *testing.T) {
	if got := firstPositive(0, -1, 7, 9); got != 7 {
		t.Errorf("firstPositive = %d, want 7", got)
	}
	if got := firstPositive(0, 0); got != 0 {
		t.Errorf("firstPositive = %d, want 0", got)
	}
}
