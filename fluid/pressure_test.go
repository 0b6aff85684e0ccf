package fluid

import (
	"math"
	"testing"
)

func TestProjectReducesDivergence(t *testing.T) {
	s := newTestSim(t, 5, 5, 0, 0.1, parallelOpts)
	g := s.Grid
	c := g.Index(2, 2)
	g.Types[c] = Water
	g.Out.U[c+1] = 1
	g.Out.V[c] = -0.5

	prev := float32(math.Abs(float64(g.CellDivergence(g.Out, c))))
	for k := 0; k < 5; k++ {
		s.ProjectIteration()
		div := float32(math.Abs(float64(g.CellDivergence(g.Out, c))))
		if div >= prev {
			t.Fatalf("iteration %d: |div| = %v, want < %v", k, div, prev)
		}
		// An isolated cell with four open sides shrinks by |1 - omega|.
		if !approx(div, prev*0.9, 1e-5) {
			t.Errorf("iteration %d: |div| = %v, want %v", k, div, prev*0.9)
		}
		prev = div
	}
}

func TestProjectSolidFacesUnchanged(t *testing.T) {
	s := newTestSim(t, 5, 5, 0, 0.1, Options{Workers: 1})
	g := s.Grid
	c := g.Index(2, 2)
	g.Types[c] = Water
	g.Types[c-1] = Stone        // left
	g.Types[c-g.Cols] = Terrain // below

	g.Out.U[c] = 0.25
	g.Out.V[c] = -0.75
	g.Out.U[c+1] = 2

	s.ProjectIteration()

	if g.Out.U[c] != 0.25 {
		t.Errorf("U on solid left face = %v, want 0.25", g.Out.U[c])
	}
	if g.Out.V[c] != -0.75 {
		t.Errorf("V on solid bottom face = %v, want -0.75", g.Out.V[c])
	}
	if g.Out.U[c+1] == 2 {
		t.Error("open right face was not corrected")
	}
}

func TestProjectSkipsEnclosedAndBorderCells(t *testing.T) {
	s := newTestSim(t, 5, 5, 0, 0.1, Options{Workers: 1})
	g := s.Grid
	for i := range g.Types {
		g.Types[i] = Stone
	}
	enclosed := g.Index(2, 2)
	border := g.Index(0, 2)
	g.Types[enclosed] = Water
	g.Types[border] = Water
	g.Out.U[enclosed+1] = 1
	g.Out.U[border+1] = 1

	s.ProjectIteration()

	if g.Out.U[enclosed+1] != 1 || g.Out.U[enclosed] != 0 {
		t.Errorf("enclosed cell changed: U = %v, %v", g.Out.U[enclosed], g.Out.U[enclosed+1])
	}
	if g.Out.U[border+1] != 1 {
		t.Errorf("border cell changed: U = %v", g.Out.U[border+1])
	}
}

func TestProjectKeepsPreProjectionField(t *testing.T) {
	s := newTestSim(t, 5, 5, 0, 0.1, Options{Workers: 1})
	g := s.Grid
	c := g.Index(2, 2)
	g.Types[c] = Water
	g.Out.U[c+1] = 1

	s.Project()

	if s.saved.U[c+1] != 1 {
		t.Errorf("saved U = %v, want 1", s.saved.U[c+1])
	}
	if g.Out.U[c+1] == 1 {
		t.Error("projection left the field unchanged")
	}
}

func TestProjectionConvergesOnPool(t *testing.T) {
	s := newTestSim(t, 12, 12, 0, 0.1, parallelOpts)
	g := s.Grid
	g.SetBorder(Stone)
	for c := range g.Types {
		if g.Types[c] == Air {
			g.Types[c] = Water
		}
		g.Out.U[c] = float32(c%7) * 0.1
		g.Out.V[c] = float32(c%5) * -0.1
	}
	// Faces against the stone ring stay fixed; zero them so the field can
	// reach zero divergence.
	for c := range g.Types {
		col, row := g.Coords(c)
		if col <= 1 || col >= g.Cols-1 {
			g.Out.U[c] = 0
		}
		if row <= 1 || row >= g.Rows-1 {
			g.Out.V[c] = 0
		}
	}

	before, n := g.Divergence(g.Out, nil)
	var sumBefore float32
	for _, d := range before {
		sumBefore += d
	}

	s.Params.PressureIterations = 200
	s.Project()

	after, _ := g.Divergence(g.Out, nil)
	var sumAfter float32
	for _, d := range after {
		sumAfter += d
	}
	if n == 0 || sumAfter >= sumBefore*0.01 {
		t.Errorf("total |div| %v -> %v over %d cells, want a 100x reduction", sumBefore, sumAfter, n)
	}
}
