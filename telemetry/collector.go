package telemetry

import (
	"math"

	"github.com/pthm-cable/slosh/fluid"
)

// Collector accumulates per-tick diagnostics within time windows and
// produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float32

	windowStartTick  int64
	startSolidCells  int
	ticks            int
	divSum           float64
	divMax           float64
	interactionTicks int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	ticksPerWindow := int64(math.Round(windowDurationSec / float64(dt)))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// Begin opens a window at the state described by d. Call it once before
// the first RecordTick, and after restoring a snapshot.
func (c *Collector) Begin(d fluid.Diagnostics) {
	c.windowStartTick = d.Tick
	c.startSolidCells = d.SolidCells
	c.reset()
}

func (c *Collector) reset() {
	c.ticks = 0
	c.divSum = 0
	c.divMax = 0
	c.interactionTicks = 0
}

// RecordTick adds the diagnostics of one completed frame.
func (c *Collector) RecordTick(d fluid.Diagnostics, in fluid.Interaction) {
	c.ticks++
	c.divSum += float64(d.MeanAbsDiv)
	c.divMax = max(c.divMax, float64(d.MaxAbsDiv))
	if in.Type != fluid.InteractionNone {
		c.interactionTicks++
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from the end-of-window diagnostics d and
// the particle speeds, then starts the next window at d.
func (c *Collector) Flush(d fluid.Diagnostics, speeds []float64) WindowStats {
	dist := ComputeDistStats(speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   d.Tick,
		SimTimeSec:      float64(d.Tick) * float64(c.dt),

		WaterCells: d.WaterCells,
		AirCells:   d.AirCells,
		SolidCells: d.SolidCells,

		DivMax:        c.divMax,
		KineticEnergy: d.KineticEnergy,

		SpeedMean: dist.Mean,
		SpeedStd:  dist.Std,
		SpeedP10:  dist.P10,
		SpeedP50:  dist.P50,
		SpeedP90:  dist.P90,
		SpeedMax:  dist.Max,

		InteractionTicks: c.interactionTicks,
		TerrainDestroyed: max(c.startSolidCells-d.SolidCells, 0),
	}
	if c.ticks > 0 {
		stats.DivMean = c.divSum / float64(c.ticks)
	}

	c.Begin(d)
	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
