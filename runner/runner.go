// Package runner drives a headless simulation: it steps the solver, feeds
// the telemetry collectors and hands finished windows to a writer goroutine.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/slosh/config"
	"github.com/pthm-cable/slosh/fluid"
	"github.com/pthm-cable/slosh/scene"
	"github.com/pthm-cable/slosh/telemetry"
)

// bookmarkHistory is the number of windows the bookmark detector averages over.
const bookmarkHistory = 10

// Options configures a run. Zero values fall back to the config.
type Options struct {
	LogStats    bool
	SnapshotDir string
	OutputDir   string
	Resume      string // snapshot file to continue from
	MaxTicks    int64  // 0 = until cancelled
}

// Runner owns a simulation and its telemetry.
type Runner struct {
	cfg   *config.Config
	sim   *fluid.Sim
	scene *scene.Scene

	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager

	logStats    bool
	snapshotDir string
	maxTicks    int64

	lastDiag   fluid.Diagnostics
	divScratch []float32
	speeds     []float64
}

// New builds the scene, allocates the solver and opens output files. When
// opts.Resume is set the solver state is restored from that snapshot and
// existing CSV files are appended to.
func New(cfg *config.Config, opts Options) (*Runner, error) {
	sc, err := scene.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building scene: %w", err)
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	sim := fluid.NewFromConfig(cfg, perf)

	solids := sc.ApplyTerrain(sim.Grid)
	if err := sc.SeedParticles(sim.Particles, sim.Grid); err != nil {
		sim.Close()
		return nil, fmt.Errorf("seeding particles: %w", err)
	}

	if opts.Resume != "" {
		snap, err := telemetry.LoadSnapshot(opts.Resume)
		if err != nil {
			sim.Close()
			return nil, err
		}
		if err := snap.Restore(sim); err != nil {
			sim.Close()
			return nil, fmt.Errorf("restoring %s: %w", opts.Resume, err)
		}
		if snap.Seed != cfg.Seed {
			slog.Warn("snapshot seed differs from config", "snapshot_seed", snap.Seed, "config_seed", cfg.Seed)
		}
		slog.Info("resumed from snapshot", "path", opts.Resume, "tick", sim.Tick)
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir, opts.Resume != "")
	if err != nil {
		sim.Close()
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		sim.Close()
		output.Close()
		return nil, err
	}

	r := &Runner{
		cfg:         cfg,
		sim:         sim,
		scene:       sc,
		perf:        perf,
		collector:   telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.DT32),
		bookmarks:   telemetry.NewBookmarkDetector(bookmarkHistory),
		output:      output,
		logStats:    opts.LogStats,
		snapshotDir: opts.SnapshotDir,
		maxTicks:    opts.MaxTicks,
	}
	r.lastDiag, r.divScratch = sim.Diagnose(nil)
	r.collector.Begin(r.lastDiag)

	slog.Info("simulation ready",
		"seed", cfg.Seed,
		"cols", cfg.Grid.Cols,
		"rows", cfg.Grid.Rows,
		"particles", sim.Particles.Len(),
		"solid_cells", solids,
		"workers", cfg.Derived.Workers,
		"tick", sim.Tick,
	)
	return r, nil
}

// Sim returns the underlying solver.
func (r *Runner) Sim() *fluid.Sim {
	return r.sim
}

// Close stops the worker pool and closes output files.
func (r *Runner) Close() error {
	r.sim.Close()
	return r.output.Close()
}

// Run steps the simulation until MaxTicks is reached or ctx is cancelled.
// Window reports are written on a separate goroutine. If a snapshot
// directory is configured, a final snapshot is saved on exit.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	reports := make(chan windowReport, 4)

	g.Go(func() error {
		defer close(reports)
		return r.simulate(gctx, reports)
	})
	g.Go(func() error {
		return r.write(reports)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if r.snapshotDir != "" {
		path, err := telemetry.SaveSnapshot(telemetry.Capture(r.sim, r.cfg.Seed), r.snapshotDir)
		if err != nil {
			return err
		}
		slog.Info("final snapshot saved", "path", path, "tick", r.sim.Tick)
	}
	return nil
}

func (r *Runner) simulate(ctx context.Context, reports chan<- windowReport) error {
	for {
		if r.maxTicks > 0 && r.sim.Tick >= r.maxTicks {
			slog.Info("max ticks reached", "tick", r.sim.Tick)
			return nil
		}
		select {
		case <-ctx.Done():
			slog.Info("simulation stopped", "tick", r.sim.Tick, "reason", context.Cause(ctx))
			return nil
		default:
		}

		r.step()

		rep, ok := r.flushTelemetry()
		if !ok {
			continue
		}
		select {
		case reports <- rep:
		case <-ctx.Done():
			return nil
		}
	}
}

// step advances one frame and records its diagnostics.
func (r *Runner) step() {
	in := r.scene.Interaction(r.sim.Tick)

	r.perf.StartTick()
	r.sim.Step(in)

	r.perf.StartPhase(telemetry.PhaseTelemetry)
	r.lastDiag, r.divScratch = r.sim.Diagnose(r.divScratch)
	r.collector.RecordTick(r.lastDiag, in)
	r.perf.EndTick()
}
