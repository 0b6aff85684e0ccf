package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/slosh/fluid"
)

// PhaseTelemetry covers stats collection and output after the fluid stages.
const PhaseTelemetry = "telemetry"

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window.
// It satisfies fluid.PhaseTimer.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

var _ fluid.PhaseTimer = (*PerfCollector)(nil)

// NewPerfCollector creates a new performance collector.
// windowSize: number of ticks to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 120
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, closing the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Average duration and share of tick time per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var totalTick time.Duration
	var minTick, maxTick time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		totalTick += s.TickDuration

		if i == 0 || s.TickDuration < minTick {
			minTick = s.TickDuration
		}
		if s.TickDuration > maxTick {
			maxTick = s.TickDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avgTick := totalTick / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avgTick > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avgTick) * 100
		}
	}

	var ticksPerSec float64
	if avgTick > 0 {
		ticksPerSec = float64(time.Second) / float64(avgTick)
	}

	return PerfStats{
		AvgTickDuration: avgTick,
		MinTickDuration: minTick,
		MaxTickDuration: maxTick,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		TicksPerSecond:  ticksPerSec,
	}
}

// LogStats logs performance statistics. Phases under 0.1% are omitted.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}

	phases := append(append([]string(nil), fluid.Stages...), PhaseTelemetry)
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for phase, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(phase+"_pct", pct))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd              int64   `csv:"window_end"`
	AvgTickUS              int64   `csv:"avg_tick_us"`
	MinTickUS              int64   `csv:"min_tick_us"`
	MaxTickUS              int64   `csv:"max_tick_us"`
	TicksPerSec            float64 `csv:"ticks_per_sec"`
	IntegratePct           float64 `csv:"integrate_pct"`
	InteractPct            float64 `csv:"interact_pct"`
	ClearCellsPct          float64 `csv:"clear_cells_pct"`
	TransferToGridPct      float64 `csv:"transfer_to_grid_pct"`
	MarkFluidPct           float64 `csv:"mark_fluid_pct"`
	NormalizePct           float64 `csv:"normalize_pct"`
	ProjectPct             float64 `csv:"project_pct"`
	TransferToParticlesPct float64 `csv:"transfer_to_particles_pct"`
	HashPct                float64 `csv:"hash_pct"`
	PushApartPct           float64 `csv:"push_apart_pct"`
	TelemetryPct           float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:              windowEnd,
		AvgTickUS:              s.AvgTickDuration.Microseconds(),
		MinTickUS:              s.MinTickDuration.Microseconds(),
		MaxTickUS:              s.MaxTickDuration.Microseconds(),
		TicksPerSec:            s.TicksPerSecond,
		IntegratePct:           s.PhasePct[fluid.StageIntegrate],
		InteractPct:            s.PhasePct[fluid.StageInteract],
		ClearCellsPct:          s.PhasePct[fluid.StageClearCells],
		TransferToGridPct:      s.PhasePct[fluid.StageTransferToGrid],
		MarkFluidPct:           s.PhasePct[fluid.StageMarkFluid],
		NormalizePct:           s.PhasePct[fluid.StageNormalize],
		ProjectPct:             s.PhasePct[fluid.StageProject],
		TransferToParticlesPct: s.PhasePct[fluid.StageTransferToParticles],
		HashPct:                s.PhasePct[fluid.StageHash],
		PushApartPct:           s.PhasePct[fluid.StagePushApart],
		TelemetryPct:           s.PhasePct[PhaseTelemetry],
	}
}
