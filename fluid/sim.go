package fluid

import (
	"fmt"

	"github.com/pthm-cable/slosh/config"
)

// Stage names reported to the PhaseTimer, in pipeline order.
const (
	StageIntegrate           = "integrate"
	StageInteract            = "interact"
	StageClearCells          = "clear_cells"
	StageTransferToGrid      = "transfer_to_grid"
	StageMarkFluid           = "mark_fluid"
	StageNormalize           = "normalize"
	StageProject             = "project"
	StageTransferToParticles = "transfer_to_particles"
	StageHash                = "hash"
	StagePushApart           = "push_apart"
)

// Stages lists every stage name in pipeline order.
var Stages = []string{
	StageIntegrate, StageInteract, StageClearCells, StageTransferToGrid,
	StageMarkFluid, StageNormalize, StageProject, StageTransferToParticles,
	StageHash, StagePushApart,
}

// PhaseTimer receives a call at the start of every stage.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Params holds the per-frame solver constants.
type Params struct {
	DT                 float32
	Gravity            float32
	OverRelaxation     float32
	PressureIterations int
	FlipRatio          float32
}

// Options configures execution. The zero value is valid.
type Options struct {
	Workers             int
	GroupSize           int
	Threshold           int
	AssertPreconditions bool
	Timer               PhaseTimer
}

// Sim owns the grid, particles and lookup and runs the frame pipeline.
type Sim struct {
	Grid      *Grid
	Particles *Particles
	Hash      *SpatialHash
	Params    Params
	Tick      int64

	pool    *Pool
	timer   PhaseTimer
	assert  bool
	saved   VelocityField  // Out before projection
	scratch []splatScratch // per-chunk transfer accumulators
}

// New creates a simulation over the given buffers.
func New(grid *Grid, particles *Particles, params Params, opts Options) *Sim {
	pool := NewPool(opts.Workers, opts.GroupSize, opts.Threshold)
	n := grid.TotalCells()

	scratch := make([]splatScratch, pool.NumChunks())
	for i := range scratch {
		scratch[i] = newSplatScratch(n)
	}

	return &Sim{
		Grid:      grid,
		Particles: particles,
		Hash:      NewSpatialHash(particles.Len(), n),
		Params:    params,
		pool:      pool,
		timer:     opts.Timer,
		assert:    opts.AssertPreconditions,
		saved:     newVelocityField(n),
		scratch:   scratch,
	}
}

// ParamsFromConfig extracts solver constants from a config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		DT:                 cfg.Derived.DT32,
		Gravity:            float32(cfg.Physics.Gravity),
		OverRelaxation:     float32(cfg.Physics.OverRelaxation),
		PressureIterations: cfg.Physics.PressureIterations,
		FlipRatio:          float32(cfg.Physics.FlipRatio),
	}
}

// NewFromConfig allocates an empty grid and particle set sized by cfg.
// Particles start at the origin; callers place them before stepping.
func NewFromConfig(cfg *config.Config, timer PhaseTimer) *Sim {
	grid := NewGrid(cfg.Grid.Cols, cfg.Grid.Rows, Vec2{
		X: float32(cfg.Grid.CellSize.X),
		Y: float32(cfg.Grid.CellSize.Y),
	})
	particles := NewParticles(cfg.Particles.Count, float32(cfg.Particles.Radius))
	return New(grid, particles, ParamsFromConfig(cfg), Options{
		Workers:             cfg.Derived.Workers,
		GroupSize:           cfg.Parallel.GroupSize,
		Threshold:           cfg.Parallel.Threshold,
		AssertPreconditions: cfg.Debug.AssertPreconditions,
		Timer:               timer,
	})
}

// InteractionFromConfig converts the static interaction section of cfg.
func InteractionFromConfig(ic config.InteractionConfig) (Interaction, error) {
	t, ok := ParseInteractionType(ic.Type)
	if !ok {
		return Interaction{}, fmt.Errorf("unknown interaction type %q", ic.Type)
	}
	return Interaction{
		Type:     t,
		Point:    Vec2{X: float32(ic.X), Y: float32(ic.Y)},
		Radius:   float32(ic.Radius),
		Strength: float32(ic.Strength),
	}, nil
}

func (s *Sim) phase(name string) {
	if s.timer != nil {
		s.timer.StartPhase(name)
	}
}

// Step advances the simulation by one frame.
func (s *Sim) Step(in Interaction) {
	if s.assert {
		s.checkCapacities()
	}

	s.phase(StageIntegrate)
	s.Integrate()

	s.phase(StageInteract)
	s.Interact(in)

	s.phase(StageClearCells)
	s.ClearCells()

	s.phase(StageTransferToGrid)
	s.TransferToGrid()

	s.phase(StageMarkFluid)
	s.MarkFluid()

	s.phase(StageNormalize)
	s.Normalize()

	s.phase(StageProject)
	s.Project()

	s.phase(StageTransferToParticles)
	s.TransferToParticles()

	s.phase(StageHash)
	s.ClearIndices()
	s.BuildLookup()
	s.SortLookup()
	s.BuildStartIndices()

	s.phase(StagePushApart)
	s.PushParticlesApart()

	s.CommitVelocities()
	s.Tick++
}

// CommitVelocities makes the projected field the stable generation for the
// next frame.
func (s *Sim) CommitVelocities() {
	s.Grid.SwapVelocities()
}

// Velocities returns the latest committed velocity field.
func (s *Sim) Velocities() VelocityField {
	return s.Grid.In
}

// Close stops the worker pool.
func (s *Sim) Close() {
	s.pool.Stop()
}

func (s *Sim) checkCapacities() {
	g, p, h := s.Grid, s.Particles, s.Hash
	n := g.TotalCells()
	np := p.Len()
	switch {
	case len(g.Types) != n, len(g.In.U) != n, len(g.In.V) != n,
		len(g.Out.U) != n, len(g.Out.V) != n,
		len(g.WeightU) != n, len(g.WeightV) != n, len(h.Start) != n:
		panic(fmt.Sprintf("fluid: cell buffer size mismatch, want %d", n))
	case len(p.PosOut) != np, len(p.Vel) != np, len(h.Keys) != np, len(h.Values) != np:
		panic(fmt.Sprintf("fluid: particle buffer size mismatch, want %d", np))
	}
}
