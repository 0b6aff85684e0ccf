package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/pthm-cable/slosh/config"
	"github.com/pthm-cable/slosh/fluid"
	"github.com/pthm-cable/slosh/scene"
)

// failedFitness is returned for runs that cannot be scored.
const failedFitness = 1e9

// FitnessEvaluator runs headless simulations and scores how well the
// projection removes divergence for a given amount of work.
type FitnessEvaluator struct {
	params     *ParamVector
	ticks      int
	seeds      []int64
	baseConfig *config.Config

	mu      sync.Mutex
	lastDiv float64 // mean residual divergence from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, ticks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		ticks:      ticks,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastMeanDiv returns the mean residual divergence from the most recent
// evaluation.
func (fe *FitnessEvaluator) LastMeanDiv() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastDiv
}

// Evaluate computes fitness for raw parameter values (lower = better):
// mean residual |divergence| over all seeds and ticks plus
// tune.iteration_cost per projection iteration.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			div, err := runSimulation(cfg.Override(s, 0), fe.ticks)
			if err != nil {
				div = math.NaN()
			}
			results[idx] = div
		}(i, seed)
	}
	wg.Wait()

	var total float64
	for _, div := range results {
		total += div
	}
	meanDiv := total / float64(len(results))

	fe.mu.Lock()
	fe.lastDiv = meanDiv
	fe.mu.Unlock()

	if math.IsNaN(meanDiv) || math.IsInf(meanDiv, 0) {
		return failedFitness
	}
	return meanDiv + cfg.Tune.IterationCost*float64(cfg.Physics.PressureIterations)
}

// runSimulation steps a fresh scene for ticks frames and returns the mean
// over frames of the mean |divergence| left after projection.
func runSimulation(cfg *config.Config, ticks int) (float64, error) {
	sc, err := scene.FromConfig(cfg)
	if err != nil {
		return 0, fmt.Errorf("building scene: %w", err)
	}
	sim := fluid.NewFromConfig(cfg, nil)
	defer sim.Close()

	sc.ApplyTerrain(sim.Grid)
	if err := sc.SeedParticles(sim.Particles, sim.Grid); err != nil {
		return 0, fmt.Errorf("seeding particles: %w", err)
	}

	var sum float64
	var scratch []float32
	for i := 0; i < ticks; i++ {
		sim.Step(sc.Interaction(sim.Tick))
		var d fluid.Diagnostics
		d, scratch = sim.Diagnose(scratch)
		sum += float64(d.MeanAbsDiv)
	}
	if ticks == 0 {
		return 0, nil
	}
	return sum / float64(ticks), nil
}
