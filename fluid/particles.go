package fluid

// Particles holds per-particle state in structure-of-arrays form.
// Pos is the stable generation; PosOut receives collision corrections.
type Particles struct {
	Pos    []Vec2
	PosOut []Vec2
	Vel    []Vec2
	Radius float32
}

// NewParticles allocates n particles of the given radius.
func NewParticles(n int, radius float32) *Particles {
	return &Particles{
		Pos:    make([]Vec2, n),
		PosOut: make([]Vec2, n),
		Vel:    make([]Vec2, n),
		Radius: radius,
	}
}

// Len returns the particle count.
func (p *Particles) Len() int {
	return len(p.Pos)
}

// SwapPositions flips Pos and PosOut.
func (p *Particles) SwapPositions() {
	p.Pos, p.PosOut = p.PosOut, p.Pos
}
