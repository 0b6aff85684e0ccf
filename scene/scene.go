// Package scene holds the initial layout of a simulation: solid blocks,
// particle emitters and scripted interaction probes, stored as ECS entities.
package scene

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slosh/config"
	"github.com/pthm-cable/slosh/fluid"
)

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	X0, Y0, X1, Y1 float32
}

// Area returns the rectangle area, or 0 if it is degenerate.
func (r Rect) Area() float32 {
	if r.X1 <= r.X0 || r.Y1 <= r.Y0 {
		return 0
	}
	return (r.X1 - r.X0) * (r.Y1 - r.Y0)
}

// Clip returns the intersection of r with o.
func (r Rect) Clip(o Rect) Rect {
	return Rect{
		X0: max(r.X0, o.X0),
		Y0: max(r.Y0, o.Y0),
		X1: min(r.X1, o.X1),
		Y1: min(r.Y1, o.Y1),
	}
}

// Solid marks a rectangle as a block of solid cells.
type Solid struct {
	Type fluid.CellType
}

// Emitter marks a rectangle as a particle source.
type Emitter struct {
	Vel fluid.Vec2
}

// Probe is an interaction input active for ticks in [FromTick, ToTick).
// ToTick 0 means open ended.
type Probe struct {
	Input    fluid.Interaction
	FromTick int64
	ToTick   int64
}

// Active reports whether the probe applies at tick.
func (p *Probe) Active(tick int64) bool {
	return tick >= p.FromTick && (p.ToTick == 0 || tick < p.ToTick)
}

// ErrNoEmitters is returned when particles must be seeded but no emitter
// overlaps the usable domain.
var ErrNoEmitters = errors.New("scene has no usable emitters")

// Scene is the ECS world describing a simulation layout.
type Scene struct {
	world *ecs.World

	solidMap   *ecs.Map2[Rect, Solid]
	emitterMap *ecs.Map2[Rect, Emitter]
	probeMap   *ecs.Map1[Probe]
	groundMap  *ecs.Map1[Heightfield]

	solidFilter   *ecs.Filter2[Rect, Solid]
	emitterFilter *ecs.Filter2[Rect, Emitter]
	probeFilter   *ecs.Filter1[Probe]
	groundFilter  *ecs.Filter1[Heightfield]

	walls  bool
	static fluid.Interaction
	seed   int64
}

// New creates an empty scene. walls surrounds the grid with a ring of Stone.
// static is the interaction used when no probe is active.
func New(walls bool, static fluid.Interaction, seed int64) *Scene {
	world := ecs.NewWorld()
	return &Scene{
		world:         world,
		solidMap:      ecs.NewMap2[Rect, Solid](world),
		emitterMap:    ecs.NewMap2[Rect, Emitter](world),
		probeMap:      ecs.NewMap1[Probe](world),
		groundMap:     ecs.NewMap1[Heightfield](world),
		solidFilter:   ecs.NewFilter2[Rect, Solid](world),
		emitterFilter: ecs.NewFilter2[Rect, Emitter](world),
		probeFilter:   ecs.NewFilter1[Probe](world),
		groundFilter:  ecs.NewFilter1[Heightfield](world),
		walls:         walls,
		static:        static,
		seed:          seed,
	}
}

func rectFromConfig(rc config.RectConfig) (Rect, error) {
	r := Rect{X0: float32(rc.X0), Y0: float32(rc.Y0), X1: float32(rc.X1), Y1: float32(rc.Y1)}
	if r.Area() == 0 {
		return r, fmt.Errorf("degenerate rectangle (%g,%g)-(%g,%g)", rc.X0, rc.Y0, rc.X1, rc.Y1)
	}
	return r, nil
}

// FromConfig builds a scene from the scene and interaction sections of cfg.
func FromConfig(cfg *config.Config) (*Scene, error) {
	static, err := fluid.InteractionFromConfig(cfg.Interaction)
	if err != nil {
		return nil, fmt.Errorf("static interaction: %w", err)
	}

	s := New(cfg.Scene.Walls, static, cfg.Seed)

	if hf, ok := HeightfieldFromConfig(cfg.Scene.Heightfield, cfg.Seed); ok {
		s.AddHeightfield(hf)
	}

	for i, sc := range cfg.Scene.Solids {
		r, err := rectFromConfig(sc.Rect)
		if err != nil {
			return nil, fmt.Errorf("solid %d: %w", i, err)
		}
		t, ok := fluid.ParseCellType(sc.Type)
		if !ok || !t.IsSolid() {
			return nil, fmt.Errorf("solid %d: type %q is not solid", i, sc.Type)
		}
		s.AddSolid(r, t)
	}

	for i, ec := range cfg.Scene.Emitters {
		r, err := rectFromConfig(ec.Rect)
		if err != nil {
			return nil, fmt.Errorf("emitter %d: %w", i, err)
		}
		s.AddEmitter(r, fluid.Vec2{X: float32(ec.VelX), Y: float32(ec.VelY)})
	}

	for i, pc := range cfg.Scene.Probes {
		in, err := fluid.InteractionFromConfig(config.InteractionConfig{
			Type:     pc.Type,
			X:        pc.X,
			Y:        pc.Y,
			Radius:   pc.Radius,
			Strength: pc.Strength,
		})
		if err != nil {
			return nil, fmt.Errorf("probe %d: %w", i, err)
		}
		if pc.ToTick != 0 && pc.ToTick <= pc.FromTick {
			return nil, fmt.Errorf("probe %d: empty tick window [%d,%d)", i, pc.FromTick, pc.ToTick)
		}
		s.AddProbe(Probe{Input: in, FromTick: pc.FromTick, ToTick: pc.ToTick})
	}

	return s, nil
}

// AddSolid adds a solid block.
func (s *Scene) AddSolid(r Rect, t fluid.CellType) ecs.Entity {
	return s.solidMap.NewEntity(&r, &Solid{Type: t})
}

// AddHeightfield adds noise-shaped ground.
func (s *Scene) AddHeightfield(h Heightfield) ecs.Entity {
	return s.groundMap.NewEntity(&h)
}

// AddEmitter adds a particle emitter.
func (s *Scene) AddEmitter(r Rect, vel fluid.Vec2) ecs.Entity {
	return s.emitterMap.NewEntity(&r, &Emitter{Vel: vel})
}

// AddProbe adds a scripted interaction probe.
func (s *Scene) AddProbe(p Probe) ecs.Entity {
	return s.probeMap.NewEntity(&p)
}

// Counts returns the number of solids, emitters and probes.
func (s *Scene) Counts() (solids, emitters, probes int) {
	q := s.solidFilter.Query()
	solids = q.Count()
	q.Close()

	qe := s.emitterFilter.Query()
	emitters = qe.Count()
	qe.Close()

	qp := s.probeFilter.Query()
	probes = qp.Count()
	qp.Close()
	return
}

// ApplyTerrain rasterises heightfields, the wall ring and every solid block
// into the grid, in that order. Blocks are applied in creation order, so
// later blocks win on overlap. Returns the number of solid cells.
func (s *Scene) ApplyTerrain(g *fluid.Grid) int {
	qg := s.groundFilter.Query()
	for qg.Next() {
		qg.Get().Rasterise(g)
	}

	if s.walls {
		g.SetBorder(fluid.Stone)
	}

	q := s.solidFilter.Query()
	for q.Next() {
		r, solid := q.Get()
		g.SetRect(r.X0, r.Y0, r.X1, r.Y1, solid.Type)
	}

	counts := g.CountTypes()
	return counts[fluid.Terrain] + counts[fluid.Stone]
}

type emitterSpan struct {
	rect Rect
	vel  fluid.Vec2
	area float32
}

// SeedParticles places every particle inside an emitter, splitting the
// count across emitters in proportion to their area within the usable
// domain. Placement is uniform random from the scene seed. Particles that
// land in a solid cell are redrawn a bounded number of times.
func (s *Scene) SeedParticles(p *fluid.Particles, g *fluid.Grid) error {
	n := p.Len()
	if n == 0 {
		return nil
	}

	domain := Rect{
		X0: g.CellSize.X + p.Radius,
		Y0: g.CellSize.Y + p.Radius,
		X1: g.Bounds.X - g.CellSize.X - p.Radius,
		Y1: g.Bounds.Y - g.CellSize.Y - p.Radius,
	}

	var spans []emitterSpan
	var total float32
	q := s.emitterFilter.Query()
	for q.Next() {
		r, e := q.Get()
		clipped := r.Clip(domain)
		a := clipped.Area()
		if a == 0 {
			continue
		}
		spans = append(spans, emitterSpan{rect: clipped, vel: e.Vel, area: a})
		total += a
	}
	if len(spans) == 0 {
		return ErrNoEmitters
	}

	// Largest share first, remainder to the earliest emitters.
	counts := make([]int, len(spans))
	assigned := 0
	for i, sp := range spans {
		counts[i] = int(float32(n) * sp.area / total)
		assigned += counts[i]
	}
	for i := 0; assigned < n; i = (i + 1) % len(counts) {
		counts[i]++
		assigned++
	}

	rng := rand.New(rand.NewSource(s.seed))
	idx := 0
	for i, sp := range spans {
		for k := 0; k < counts[i]; k++ {
			var pos fluid.Vec2
			for attempt := 0; attempt < 8; attempt++ {
				pos = fluid.Vec2{
					X: sp.rect.X0 + rng.Float32()*(sp.rect.X1-sp.rect.X0),
					Y: sp.rect.Y0 + rng.Float32()*(sp.rect.Y1-sp.rect.Y0),
				}
				if !g.Types[g.CellAt(pos)].IsSolid() {
					break
				}
			}
			p.Pos[idx] = pos
			p.PosOut[idx] = pos
			p.Vel[idx] = sp.vel
			idx++
		}
	}
	return nil
}

// Interaction returns the input of the first probe active at tick, or the
// static interaction if none is.
func (s *Scene) Interaction(tick int64) fluid.Interaction {
	q := s.probeFilter.Query()
	for q.Next() {
		probe := q.Get()
		if probe.Active(tick) {
			in := probe.Input
			q.Close()
			return in
		}
	}
	return s.static
}
