package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/slosh/fluid"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(0.5, 0.1)
	if c.WindowDurationTicks() != 5 {
		t.Fatalf("WindowDurationTicks = %d, want 5", c.WindowDurationTicks())
	}

	c.Begin(fluid.Diagnostics{Tick: 0, SolidCells: 40})

	push := fluid.Interaction{Type: fluid.InteractionPush}
	divs := []float32{0.1, 0.3, 0.2, 0.4, 0.5}
	for i, d := range divs {
		in := fluid.Interaction{}
		if i%2 == 0 {
			in = push
		}
		c.RecordTick(fluid.Diagnostics{Tick: int64(i + 1), MeanAbsDiv: d, MaxAbsDiv: 2 * d}, in)
		if got := c.ShouldFlush(int64(i + 1)); got != (i == 4) {
			t.Errorf("ShouldFlush(%d) = %v", i+1, got)
		}
	}

	end := fluid.Diagnostics{Tick: 5, WaterCells: 10, AirCells: 50, SolidCells: 37, KineticEnergy: 3}
	s := c.Flush(end, []float64{1, 2, 3, 4})

	if s.WindowStartTick != 0 || s.WindowEndTick != 5 {
		t.Errorf("window = [%d,%d], want [0,5]", s.WindowStartTick, s.WindowEndTick)
	}
	if math.Abs(s.SimTimeSec-0.5) > 1e-6 {
		t.Errorf("SimTimeSec = %v, want 0.5", s.SimTimeSec)
	}
	if math.Abs(s.DivMean-0.3) > 1e-6 {
		t.Errorf("DivMean = %v, want 0.3", s.DivMean)
	}
	if math.Abs(s.DivMax-1.0) > 1e-6 {
		t.Errorf("DivMax = %v, want 1.0", s.DivMax)
	}
	if s.InteractionTicks != 3 {
		t.Errorf("InteractionTicks = %d, want 3", s.InteractionTicks)
	}
	if s.TerrainDestroyed != 3 {
		t.Errorf("TerrainDestroyed = %d, want 3", s.TerrainDestroyed)
	}
	if s.SpeedMax != 4 || s.SpeedMean != 2.5 {
		t.Errorf("speed mean/max = %v/%v, want 2.5/4", s.SpeedMean, s.SpeedMax)
	}

	// Next window starts at the flush point with fresh counters.
	if c.ShouldFlush(6) {
		t.Error("ShouldFlush(6) true right after flush")
	}
	next := c.Flush(fluid.Diagnostics{Tick: 10, SolidCells: 37}, nil)
	if next.WindowStartTick != 5 || next.DivMean != 0 || next.InteractionTicks != 0 || next.TerrainDestroyed != 0 {
		t.Errorf("second window not reset: %+v", next)
	}
}
