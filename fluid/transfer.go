package fluid

import "gonum.org/v1/gonum/blas/blas32"

// stencil holds the four staggered samples around a point and their
// bilinear weights. An index of -1 marks a sample outside the grid.
type stencil struct {
	idx [4]int
	w   [4]float32
}

// sampleStencil builds the bilinear stencil at (fx, fy), measured in cell
// units relative to the sample lattice.
func (g *Grid) sampleStencil(fx, fy float32) stencil {
	x0f, y0f := floor32(fx), floor32(fy)
	tx, ty := fx-x0f, fy-y0f
	x0, y0 := int(x0f), int(y0f)

	var st stencil
	st.w = [4]float32{
		(1 - tx) * (1 - ty),
		tx * (1 - ty),
		(1 - tx) * ty,
		tx * ty,
	}
	corners := [4][2]int{{x0, y0}, {x0 + 1, y0}, {x0, y0 + 1}, {x0 + 1, y0 + 1}}
	for k, cr := range corners {
		if cr[0] < 0 || cr[1] < 0 || cr[0] >= g.Cols || cr[1] >= g.Rows {
			st.idx[k] = -1
			continue
		}
		st.idx[k] = cr[1]*g.Cols + cr[0]
	}
	return st
}

// stencilU returns the stencil over U samples, which sit at (i, j+0.5).
func (g *Grid) stencilU(p Vec2) stencil {
	return g.sampleStencil(p.X/g.CellSize.X, p.Y/g.CellSize.Y-0.5)
}

// stencilV returns the stencil over V samples, which sit at (i+0.5, j).
func (g *Grid) stencilV(p Vec2) stencil {
	return g.sampleStencil(p.X/g.CellSize.X-0.5, p.Y/g.CellSize.Y)
}

// splatScratch is a private accumulation grid for one dispatch chunk.
type splatScratch struct {
	u, v   []float32
	wu, wv []float32
	used   bool
}

func newSplatScratch(n int) splatScratch {
	return splatScratch{
		u:  make([]float32, n),
		v:  make([]float32, n),
		wu: make([]float32, n),
		wv: make([]float32, n),
	}
}

func (sc *splatScratch) reset() {
	clear(sc.u)
	clear(sc.v)
	clear(sc.wu)
	clear(sc.wv)
	sc.used = false
}

func (sc *splatScratch) add(st stencil, val float32, dst, w []float32) {
	for k, c := range st.idx {
		if c < 0 {
			continue
		}
		w[c] += st.w[k]
		dst[c] += st.w[k] * val
	}
}

// TransferToGrid splats particle velocities onto the staggered samples of
// Out and accumulates the weights. Each chunk accumulates privately; the
// chunk grids are then summed in chunk order.
func (s *Sim) TransferToGrid() {
	g := s.Grid
	pos, vel := s.Particles.Pos, s.Particles.Vel
	n := len(pos)

	s.pool.DispatchChunks(n, func(i0, i1, chunk int) {
		sc := &s.scratch[chunk]
		sc.reset()
		sc.used = true
		for i := i0; i < i1; i++ {
			sc.add(g.stencilU(pos[i]), vel[i].X, sc.u, sc.wu)
			sc.add(g.stencilV(pos[i]), vel[i].Y, sc.v, sc.wv)
		}
	})

	nc := g.TotalCells()
	outU := blas32.Vector{N: nc, Inc: 1, Data: g.Out.U}
	outV := blas32.Vector{N: nc, Inc: 1, Data: g.Out.V}
	wU := blas32.Vector{N: nc, Inc: 1, Data: g.WeightU}
	wV := blas32.Vector{N: nc, Inc: 1, Data: g.WeightV}
	for k := range s.scratch {
		sc := &s.scratch[k]
		if !sc.used {
			continue
		}
		blas32.Axpy(1, blas32.Vector{N: nc, Inc: 1, Data: sc.u}, outU)
		blas32.Axpy(1, blas32.Vector{N: nc, Inc: 1, Data: sc.v}, outV)
		blas32.Axpy(1, blas32.Vector{N: nc, Inc: 1, Data: sc.wu}, wU)
		blas32.Axpy(1, blas32.Vector{N: nc, Inc: 1, Data: sc.wv}, wV)
		sc.used = false
	}
}

// Normalize divides accumulated velocity by weight, then restores In for
// every component that touches a solid cell.
func (s *Sim) Normalize() {
	g := s.Grid
	types := g.Types
	inU, inV := g.In.U, g.In.V
	outU, outV := g.Out.U, g.Out.V
	wu, wv := g.WeightU, g.WeightV
	cols := g.Cols
	n := g.TotalCells()

	s.pool.Dispatch(n, func(c int) {
		if c >= n {
			return
		}
		if w := wu[c]; w > 0 {
			outU[c] /= w
		}
		if w := wv[c]; w > 0 {
			outV[c] /= w
		}

		solid := types[c].IsSolid()
		col, row := c%cols, c/cols
		if solid || (col > 0 && types[c-1].IsSolid()) {
			outU[c] = inU[c]
		}
		if solid || (row > 0 && types[c-cols].IsSolid()) {
			outV[c] = inV[c]
		}
	})
}

// faceActiveU reports whether the U sample of cell c borders a non-Air cell.
func (g *Grid) faceActiveU(c int) bool {
	if g.Types[c] != Air {
		return true
	}
	return c%g.Cols == 0 || g.Types[c-1] != Air
}

// faceActiveV reports whether the V sample of cell c borders a non-Air cell.
func (g *Grid) faceActiveV(c int) bool {
	if g.Types[c] != Air {
		return true
	}
	return c < g.Cols || g.Types[c-g.Cols] != Air
}

// gather returns the weighted PIC value and FLIP delta over the active
// samples of st. ok is false when no sample was active.
func gather(st stencil, active func(int) bool, cur, prev []float32) (pic, delta float32, ok bool) {
	var wsum float32
	for k, c := range st.idx {
		if c < 0 || st.w[k] == 0 || !active(c) {
			continue
		}
		w := st.w[k]
		wsum += w
		pic += w * cur[c]
		delta += w * (cur[c] - prev[c])
	}
	if wsum == 0 {
		return 0, 0, false
	}
	return pic / wsum, delta / wsum, true
}

// TransferToParticles samples the projected field back onto particles,
// blending PIC and FLIP by the flip ratio.
func (s *Sim) TransferToParticles() {
	g := s.Grid
	pos, vel := s.Particles.Pos, s.Particles.Vel
	n := len(pos)
	flip := s.Params.FlipRatio
	cur, prev := g.Out, s.saved

	s.pool.Dispatch(n, func(i int) {
		if i >= n {
			return
		}
		v := vel[i]
		if pic, d, ok := gather(g.stencilU(pos[i]), g.faceActiveU, cur.U, prev.U); ok {
			v.X = flip*(v.X+d) + (1-flip)*pic
		}
		if pic, d, ok := gather(g.stencilV(pos[i]), g.faceActiveV, cur.V, prev.V); ok {
			v.Y = flip*(v.Y+d) + (1-flip)*pic
		}
		vel[i] = v
	})
}
