package fluid

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// Diagnostics summarises the state of a frame.
type Diagnostics struct {
	Tick          int64
	WaterCells    int
	AirCells      int
	SolidCells    int
	MeanAbsDiv    float32 // mean |divergence| over interior Water cells
	MaxAbsDiv     float32
	KineticEnergy float64 // 0.5 * sum |v|^2, unit particle mass
}

// Divergence writes |divergence| of f for every interior Water cell into dst
// and zero elsewhere. dst is grown to TotalCells if needed. It returns dst
// and the number of cells counted.
func (g *Grid) Divergence(f VelocityField, dst []float32) ([]float32, int) {
	n := g.TotalCells()
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]

	count := 0
	for c := range dst {
		dst[c] = 0
		if g.Types[c] != Water || g.IsBorder(c) {
			continue
		}
		dst[c] = float32(math.Abs(float64(g.CellDivergence(f, c))))
		count++
	}
	return dst, count
}

// Diagnose computes diagnostics on the committed velocity field.
// scratch is reused between calls when non-nil.
func (s *Sim) Diagnose(scratch []float32) (Diagnostics, []float32) {
	g := s.Grid
	counts := g.CountTypes()

	d := Diagnostics{
		Tick:       s.Tick,
		WaterCells: counts[Water],
		AirCells:   counts[Air],
		SolidCells: counts[Terrain] + counts[Stone],
	}

	div, n := g.Divergence(s.Velocities(), scratch)
	if n > 0 {
		v := blas32.Vector{N: len(div), Inc: 1, Data: div}
		d.MeanAbsDiv = blas32.Asum(v) / float32(n)
		d.MaxAbsDiv = div[blas32.Iamax(v)]
	}

	for _, vel := range s.Particles.Vel {
		d.KineticEnergy += 0.5 * float64(vel.X*vel.X+vel.Y*vel.Y)
	}
	return d, div
}

// Speeds appends the speed of every particle to dst.
func (p *Particles) Speeds(dst []float64) []float64 {
	for _, v := range p.Vel {
		dst = append(dst, math.Hypot(float64(v.X), float64(v.Y)))
	}
	return dst
}
