package fluid

// InteractionType selects the effect of the per-frame interaction input.
type InteractionType int32

const (
	InteractionNone InteractionType = iota
	InteractionPush
	InteractionDestroyTerrain
)

// pushIncrement is added to both velocity components of Air cells under a push.
const pushIncrement = 0.1

// String returns the config name of the interaction type.
func (t InteractionType) String() string {
	switch t {
	case InteractionPush:
		return "push"
	case InteractionDestroyTerrain:
		return "destroy_terrain"
	}
	return "none"
}

// ParseInteractionType maps a config name to an interaction type.
// The empty string means none.
func ParseInteractionType(s string) (InteractionType, bool) {
	switch s {
	case "", "none":
		return InteractionNone, true
	case "push":
		return InteractionPush, true
	case "destroy_terrain":
		return InteractionDestroyTerrain, true
	}
	return InteractionNone, false
}

// Interaction is a user edit applied to the grid for one frame.
type Interaction struct {
	Type     InteractionType
	Point    Vec2
	Radius   float32
	Strength float32 // reserved; the push effect ignores it
}

// Interact copies In to Out and applies the interaction input to every
// non-border cell whose centre lies within the input radius.
func (s *Sim) Interact(in Interaction) {
	g := s.Grid
	types := g.Types
	inU, inV := g.In.U, g.In.V
	outU, outV := g.Out.U, g.Out.V
	n := g.TotalCells()
	r2 := in.Radius * in.Radius

	s.pool.Dispatch(n, func(c int) {
		if c >= n {
			return
		}
		outU[c] = inU[c]
		outV[c] = inV[c]

		if in.Type == InteractionNone || g.IsBorder(c) {
			return
		}
		p := g.CellCenter(c)
		dx, dy := p.X-in.Point.X, p.Y-in.Point.Y
		if dx*dx+dy*dy > r2 {
			return
		}

		switch in.Type {
		case InteractionDestroyTerrain:
			if types[c] == Terrain {
				types[c] = Air
			}
		case InteractionPush:
			if types[c] == Air {
				outU[c] += pushIncrement
				outV[c] += pushIncrement
			}
		}
	})
}
