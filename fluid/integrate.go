package fluid

// Integrate applies gravity, advects every particle and clamps it inside the
// walls. The usable region is one cell plus the particle radius in from each
// edge of the domain. A particle that hits a wall loses the velocity
// component normal to it.
func (s *Sim) Integrate() {
	p := s.Particles
	pos, vel := p.Pos, p.Vel
	n := len(pos)

	dt := s.Params.DT
	gravity := s.Params.Gravity
	minX := s.Grid.CellSize.X + p.Radius
	minY := s.Grid.CellSize.Y + p.Radius
	maxX := s.Grid.Bounds.X - s.Grid.CellSize.X - p.Radius
	maxY := s.Grid.Bounds.Y - s.Grid.CellSize.Y - p.Radius

	s.pool.Dispatch(n, func(i int) {
		if i >= n {
			return
		}
		v := vel[i]
		v.Y += dt * gravity

		x := pos[i]
		x.X += v.X * dt
		x.Y += v.Y * dt

		if x.X < minX {
			x.X = minX
			v.X = 0
		} else if x.X > maxX {
			x.X = maxX
			v.X = 0
		}
		if x.Y < minY {
			x.Y = minY
			v.Y = 0
		} else if x.Y > maxY {
			x.Y = maxY
			v.Y = 0
		}

		pos[i] = x
		vel[i] = v
	})
}
