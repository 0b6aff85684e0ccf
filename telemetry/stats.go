package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated fluid statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Cell classification at window end
	WaterCells int `csv:"water_cells"`
	AirCells   int `csv:"air_cells"`
	SolidCells int `csv:"solid_cells"`

	// Residual divergence after projection, over ticks in the window
	DivMean float64 `csv:"div_mean"`
	DivMax  float64 `csv:"div_max"`

	KineticEnergy float64 `csv:"kinetic_energy"`

	// Particle speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	InteractionTicks int `csv:"interaction_ticks"`
	TerrainDestroyed int `csv:"terrain_destroyed"` // solid cells lost during the window
}

// DistStats summarises a sample distribution.
type DistStats struct {
	Mean, Std     float64
	P10, P50, P90 float64
	Max           float64
}

// ComputeDistStats calculates mean, sample standard deviation, empirical
// quantiles and maximum. values is not modified. Returns zeros if empty.
func ComputeDistStats(values []float64) DistStats {
	n := len(values)
	if n == 0 {
		return DistStats{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var d DistStats
	if n > 1 {
		d.Mean, d.Std = stat.MeanStdDev(sorted, nil)
	} else {
		d.Mean = sorted[0]
	}
	d.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	d.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	d.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	d.Max = floats.Max(sorted)
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("water_cells", s.WaterCells),
		slog.Int("air_cells", s.AirCells),
		slog.Int("solid_cells", s.SolidCells),
		slog.Float64("div_mean", s.DivMean),
		slog.Float64("div_max", s.DivMax),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Int("interaction_ticks", s.InteractionTicks),
		slog.Int("terrain_destroyed", s.TerrainDestroyed),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"water_cells", s.WaterCells,
		"solid_cells", s.SolidCells,
		"div_mean", s.DivMean,
		"div_max", s.DivMax,
		"kinetic_energy", s.KineticEnergy,
		"speed_mean", s.SpeedMean,
		"speed_p90", s.SpeedP90,
		"speed_max", s.SpeedMax,
		"interaction_ticks", s.InteractionTicks,
		"terrain_destroyed", s.TerrainDestroyed,
	)
}
