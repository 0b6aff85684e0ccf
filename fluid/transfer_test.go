package fluid

import "testing"

func TestTransferRecoversUniformVelocity(t *testing.T) {
	s := newTestSim(t, 8, 8, 12*12, 0.1, parallelOpts)

	i := 0
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			s.Particles.Pos[i] = Vec2{X: 1.25 + float32(x)*0.5, Y: 1.25 + float32(y)*0.5}
			s.Particles.Vel[i] = Vec2{X: 2, Y: -1}
			i++
		}
	}

	s.TransferToGrid()
	s.Normalize()

	g := s.Grid
	for c := 0; c < g.TotalCells(); c++ {
		if g.WeightU[c] > 0 && !approx(g.Out.U[c], 2, 1e-5) {
			t.Errorf("cell %d: U = %v, want 2", c, g.Out.U[c])
		}
		if g.WeightV[c] > 0 && !approx(g.Out.V[c], -1, 1e-5) {
			t.Errorf("cell %d: V = %v, want -1", c, g.Out.V[c])
		}
	}
	if g.WeightU[g.Index(3, 3)] == 0 || g.WeightV[g.Index(3, 3)] == 0 {
		t.Error("interior samples received no weight")
	}
}

func TestTransferWeightsSumToParticleCount(t *testing.T) {
	s := newTestSim(t, 6, 6, 3, 0.1, parallelOpts)
	s.Particles.Pos[0] = Vec2{X: 2.3, Y: 2.7}
	s.Particles.Pos[1] = Vec2{X: 3.9, Y: 1.6}
	s.Particles.Pos[2] = Vec2{X: 4.1, Y: 4.4}

	s.TransferToGrid()

	var wu, wv float32
	for c := range s.Grid.WeightU {
		wu += s.Grid.WeightU[c]
		wv += s.Grid.WeightV[c]
	}
	if !approx(wu, 3, 1e-5) || !approx(wv, 3, 1e-5) {
		t.Errorf("weight sums = %v, %v, want 3, 3", wu, wv)
	}
}

func TestNormalizeRestoresSolidFaces(t *testing.T) {
	s := newTestSim(t, 5, 5, 0, 0.1, Options{Workers: 1})
	g := s.Grid
	solid := g.Index(2, 2)
	g.Types[solid] = Terrain
	right := solid + 1
	above := solid + g.Cols
	open := g.Index(1, 1)

	for _, c := range []int{solid, right, above, open} {
		g.In.U[c], g.In.V[c] = 3, 4
		g.Out.U[c], g.Out.V[c] = 10, 12
		g.WeightU[c], g.WeightV[c] = 2, 2
	}

	s.Normalize()

	if g.Out.U[solid] != 3 || g.Out.V[solid] != 4 {
		t.Errorf("solid cell = (%v, %v), want In (3, 4)", g.Out.U[solid], g.Out.V[solid])
	}
	if g.Out.U[right] != 3 {
		t.Errorf("U right of solid = %v, want In 3", g.Out.U[right])
	}
	if g.Out.V[right] != 6 {
		t.Errorf("V right of solid = %v, want normalized 6", g.Out.V[right])
	}
	if g.Out.V[above] != 4 {
		t.Errorf("V above solid = %v, want In 4", g.Out.V[above])
	}
	if g.Out.U[open] != 5 || g.Out.V[open] != 6 {
		t.Errorf("open cell = (%v, %v), want (5, 6)", g.Out.U[open], g.Out.V[open])
	}
}

func TestTransferToParticlesUnchangedField(t *testing.T) {
	tests := []struct {
		name    string
		flip    float32
		initial Vec2
		want    Vec2
	}{
		{"pure pic", 0, Vec2{X: 7, Y: 7}, Vec2{X: 2, Y: -1}},
		{"pure flip", 1, Vec2{X: 7, Y: 7}, Vec2{X: 7, Y: 7}},
		{"blend", 0.5, Vec2{X: 4, Y: 1}, Vec2{X: 3, Y: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSim(t, 6, 6, 1, 0.1, Options{Workers: 1})
			s.Params.FlipRatio = tt.flip
			g := s.Grid
			for c := range g.Types {
				g.Types[c] = Water
				g.Out.U[c], g.Out.V[c] = 2, -1
				s.saved.U[c], s.saved.V[c] = 2, -1
			}
			s.Particles.Pos[0] = Vec2{X: 2.7, Y: 3.2}
			s.Particles.Vel[0] = tt.initial

			s.TransferToParticles()

			v := s.Particles.Vel[0]
			if !approx(v.X, tt.want.X, 1e-5) || !approx(v.Y, tt.want.Y, 1e-5) {
				t.Errorf("vel = %+v, want %+v", v, tt.want)
			}
		})
	}
}

func TestTransferToParticlesIgnoresAirFaces(t *testing.T) {
	s := newTestSim(t, 6, 6, 1, 0.1, Options{Workers: 1})
	s.Params.FlipRatio = 0
	g := s.Grid
	for c := range g.Types {
		g.Out.U[c], g.Out.V[c] = 50, 50
	}
	s.Particles.Pos[0] = Vec2{X: 3.5, Y: 3.5}
	s.Particles.Vel[0] = Vec2{X: 1, Y: 1}

	s.TransferToParticles()

	if v := s.Particles.Vel[0]; v != (Vec2{X: 1, Y: 1}) {
		t.Errorf("vel = %+v, want unchanged (1, 1) with no active faces", v)
	}
}

func TestTransferToParticlesFlipDelta(t *testing.T) {
	s := newTestSim(t, 6, 6, 1, 0.1, Options{Workers: 1})
	s.Params.FlipRatio = 1
	g := s.Grid
	for c := range g.Types {
		g.Types[c] = Water
		s.saved.U[c], s.saved.V[c] = 1, 1
		g.Out.U[c], g.Out.V[c] = 1.5, 0.25
	}
	s.Particles.Pos[0] = Vec2{X: 2.2, Y: 2.9}
	s.Particles.Vel[0] = Vec2{X: 3, Y: 3}

	s.TransferToParticles()

	v := s.Particles.Vel[0]
	if !approx(v.X, 3.5, 1e-5) || !approx(v.Y, 2.25, 1e-5) {
		t.Errorf("vel = %+v, want (3.5, 2.25)", v)
	}
}
