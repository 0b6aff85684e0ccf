package fluid

import "math"

// PushParticlesApart separates overlapping particles. Each particle looks
// at the 3x3 block of cells around its own, clamped to the interior, and
// moves away from every neighbour closer than two radii by half the overlap.
// Only the particle itself is moved; its partner applies the mirror
// correction on its own. Coincident pairs are skipped. Corrections are
// written to PosOut and the position generations are swapped afterwards.
func (s *Sim) PushParticlesApart() {
	g := s.Grid
	h := s.Hash
	p := s.Particles
	pos, out := p.Pos, p.PosOut
	keys, values, start := h.Keys, h.Values, h.Start
	cols, rows := g.Cols, g.Rows
	n := len(pos)
	minDist := 2 * p.Radius

	s.pool.Dispatch(n, func(i int) {
		if i >= n {
			return
		}
		pi := pos[i]
		col, row := g.Coords(g.CellAt(pi))
		x0 := clampInt(col-1, 1, cols-2)
		x1 := clampInt(col+1, 1, cols-2)
		y0 := clampInt(row-1, 1, rows-2)
		y1 := clampInt(row+1, 1, rows-2)

		var push Vec2
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				cell := int32(y*cols + x)
				first := start[cell]
				if first == NoParticles {
					continue
				}
				for j := int(first); j < len(keys) && keys[j] == cell; j++ {
					q := int(values[j])
					if q == i {
						continue
					}
					dx := pi.X - pos[q].X
					dy := pi.Y - pos[q].Y
					dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
					if dist == 0 || dist > minDist {
						continue
					}
					k := 0.5 * (minDist - dist) / dist
					push.X += dx * k
					push.Y += dy * k
				}
			}
		}
		out[i] = Vec2{X: pi.X + push.X, Y: pi.Y + push.Y}
	})

	p.SwapPositions()
}
