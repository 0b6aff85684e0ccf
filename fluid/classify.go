package fluid

import "sync/atomic"

// ClearCells reverts Water to Air, resets splat weights and rotates the
// velocity generations: In takes the current Out and Out is zeroed to
// receive the particle transfer.
func (s *Sim) ClearCells() {
	g := s.Grid
	types := g.Types
	inU, inV := g.In.U, g.In.V
	outU, outV := g.Out.U, g.Out.V
	wu, wv := g.WeightU, g.WeightV
	n := g.TotalCells()

	s.pool.Dispatch(n, func(c int) {
		if c >= n {
			return
		}
		if types[c] == Water {
			types[c] = Air
		}
		wu[c] = 0
		wv[c] = 0
		inU[c] = outU[c]
		inV[c] = outV[c]
		outU[c] = 0
		outV[c] = 0
	})
}

// MarkFluid turns every Air cell that contains at least one particle into
// Water. Solid cells are never marked.
func (s *Sim) MarkFluid() {
	g := s.Grid
	occupied := g.occupied
	pos := s.Particles.Pos
	np := len(pos)

	s.pool.Dispatch(np, func(i int) {
		if i >= np {
			return
		}
		atomic.StoreUint32(&occupied[g.CellAt(pos[i])], 1)
	})

	types := g.Types
	nc := g.TotalCells()
	s.pool.Dispatch(nc, func(c int) {
		if c >= nc {
			return
		}
		if occupied[c] == 0 {
			return
		}
		occupied[c] = 0
		if types[c] == Air {
			types[c] = Water
		}
	})
}
