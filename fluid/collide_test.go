package fluid

import "testing"

func TestPushParticlesApart(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec2
		// expected positions after one pass
		wantA, wantB Vec2
	}{
		{"horizontal overlap", Vec2{2.5, 2.5}, Vec2{2.8, 2.5}, Vec2{2.4, 2.5}, Vec2{2.9, 2.5}},
		{"vertical overlap across cells", Vec2{3.5, 2.9}, Vec2{3.5, 3.1}, Vec2{3.5, 2.75}, Vec2{3.5, 3.25}},
		{"exactly touching", Vec2{2.5, 2.5}, Vec2{3.0, 2.5}, Vec2{2.5, 2.5}, Vec2{3.0, 2.5}},
		{"apart", Vec2{2.5, 2.5}, Vec2{4.5, 4.5}, Vec2{2.5, 2.5}, Vec2{4.5, 4.5}},
		{"coincident", Vec2{3.5, 3.5}, Vec2{3.5, 3.5}, Vec2{3.5, 3.5}, Vec2{3.5, 3.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSim(t, 8, 8, 2, 0.25, parallelOpts)
			s.Particles.Pos[0] = tt.a
			s.Particles.Pos[1] = tt.b
			buildHash(s)

			s.PushParticlesApart()

			a, b := s.Particles.Pos[0], s.Particles.Pos[1]
			if !approx(a.X, tt.wantA.X, 1e-5) || !approx(a.Y, tt.wantA.Y, 1e-5) {
				t.Errorf("a = %+v, want %+v", a, tt.wantA)
			}
			if !approx(b.X, tt.wantB.X, 1e-5) || !approx(b.Y, tt.wantB.Y, 1e-5) {
				t.Errorf("b = %+v, want %+v", b, tt.wantB)
			}
		})
	}
}

func TestPushParticlesApartNeverIncreasesOverlap(t *testing.T) {
	s := newTestSim(t, 10, 10, 60, 0.3, parallelOpts)
	for i := range s.Particles.Pos {
		s.Particles.Pos[i] = Vec2{X: 3 + float32(i%8)*0.35, Y: 3 + float32(i/8)*0.35}
	}
	buildHash(s)

	overlap := func(pos []Vec2) float32 {
		var total float32
		for i := range pos {
			for j := i + 1; j < len(pos); j++ {
				dx, dy := pos[i].X-pos[j].X, pos[i].Y-pos[j].Y
				d := dx*dx + dy*dy
				if d < 0.36 {
					total += 0.36 - d
				}
			}
		}
		return total
	}

	before := overlap(s.Particles.Pos)
	s.PushParticlesApart()
	after := overlap(s.Particles.Pos)

	if after >= before {
		t.Errorf("overlap %v -> %v, want a decrease", before, after)
	}
}
