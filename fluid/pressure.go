package fluid

import "gonum.org/v1/gonum/blas/blas32"

// Project runs the configured number of pressure iterations on Out. The
// field as it stood before projection is kept for the FLIP update.
func (s *Sim) Project() {
	g := s.Grid
	n := g.TotalCells()
	blas32.Copy(blas32.Vector{N: n, Inc: 1, Data: g.Out.U}, blas32.Vector{N: n, Inc: 1, Data: s.saved.U})
	blas32.Copy(blas32.Vector{N: n, Inc: 1, Data: g.Out.V}, blas32.Vector{N: n, Inc: 1, Data: s.saved.V})

	for k := 0; k < s.Params.PressureIterations; k++ {
		s.ProjectIteration()
	}
}

// ProjectIteration flips the velocity generations, copies In to Out and
// relaxes every interior Water cell once. Cells are relaxed in two
// checkerboard passes; cells of one colour share no faces, so each pass is
// free of write conflicts.
func (s *Sim) ProjectIteration() {
	g := s.Grid
	g.SwapVelocities()
	g.Out.CopyFrom(g.In)

	s.relax(0)
	s.relax(1)
}

// relax applies one over-relaxed divergence correction to every cell of the
// given checkerboard parity.
func (s *Sim) relax(parity int) {
	g := s.Grid
	types := g.Types
	u, v := g.Out.U, g.Out.V
	cols, rows := g.Cols, g.Rows
	n := g.TotalCells()
	omega := s.Params.OverRelaxation

	s.pool.Dispatch(n, func(c int) {
		if c >= n {
			return
		}
		col, row := c%cols, c/cols
		if (col+row)&1 != parity {
			return
		}
		if types[c] != Water || col == 0 || row == 0 || col == cols-1 || row == rows-1 {
			return
		}

		sl := openness(types[c-1])
		sr := openness(types[c+1])
		sd := openness(types[c-cols])
		su := openness(types[c+cols])
		sum := sl + sr + sd + su
		if sum == 0 {
			return
		}

		div := (u[c+1] - u[c]) + (v[c+cols] - v[c])
		p := -div * omega / sum

		u[c] -= sl * p
		u[c+1] += sr * p
		v[c] -= sd * p
		v[c+cols] += su * p
	})
}

// openness is 1 for a neighbour fluid can flow into and 0 for a solid.
func openness(t CellType) float32 {
	if t.IsSolid() {
		return 0
	}
	return 1
}

// CellDivergence returns the net outflow of interior cell c in f.
func (g *Grid) CellDivergence(f VelocityField, c int) float32 {
	return (f.U[c+1] - f.U[c]) + (f.V[c+g.Cols] - f.V[c])
}
