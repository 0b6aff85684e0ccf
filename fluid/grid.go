// Package fluid implements a 2D PIC/FLIP fluid solver on a staggered MAC grid.
//
// A frame is a fixed sequence of data-parallel stages over particle and cell
// buffers. Each stage finishes before the next begins. Velocities are double
// buffered (In/Out) so a stage never writes a buffer it is reading.
package fluid

// CellType classifies a grid cell. Terrain and Stone are solid.
type CellType uint8

const (
	Air CellType = iota
	Terrain
	Stone
	Water
)

// String returns the lowercase name of the cell type.
func (t CellType) String() string {
	switch t {
	case Air:
		return "air"
	case Terrain:
		return "terrain"
	case Stone:
		return "stone"
	case Water:
		return "water"
	}
	return "unknown"
}

// IsSolid reports whether the cell blocks flow.
func (t CellType) IsSolid() bool {
	return t == Terrain || t == Stone
}

// ParseCellType maps a config name to a cell type.
func ParseCellType(s string) (CellType, bool) {
	switch s {
	case "air":
		return Air, true
	case "terrain":
		return Terrain, true
	case "stone":
		return Stone, true
	case "water":
		return Water, true
	}
	return Air, false
}

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X, Y float32
}

// VelocityField holds one generation of staggered velocity.
// U[c] is the flux through the left edge of cell c, V[c] through its bottom edge.
type VelocityField struct {
	U []float32
	V []float32
}

func newVelocityField(n int) VelocityField {
	return VelocityField{U: make([]float32, n), V: make([]float32, n)}
}

// CopyFrom overwrites f with src. Both must have the same length.
func (f VelocityField) CopyFrom(src VelocityField) {
	copy(f.U, src.U)
	copy(f.V, src.V)
}

// Zero clears both components.
func (f VelocityField) Zero() {
	clear(f.U)
	clear(f.V)
}

// Grid owns per-cell state: type, two velocity generations and splat weights.
// Cells are indexed row*Cols + col with row 0 at the bottom.
type Grid struct {
	Cols, Rows int
	CellSize   Vec2
	Bounds     Vec2

	Types []CellType

	In  VelocityField // previous, stable generation
	Out VelocityField // generation being written

	WeightU []float32
	WeightV []float32

	occupied []uint32 // MarkFluid scratch
}

// NewGrid allocates a grid. Capacities are fixed for its lifetime.
func NewGrid(cols, rows int, cellSize Vec2) *Grid {
	n := cols * rows
	return &Grid{
		Cols:     cols,
		Rows:     rows,
		CellSize: cellSize,
		Bounds:   Vec2{X: float32(cols) * cellSize.X, Y: float32(rows) * cellSize.Y},
		Types:    make([]CellType, n),
		In:       newVelocityField(n),
		Out:      newVelocityField(n),
		WeightU:  make([]float32, n),
		WeightV:  make([]float32, n),
		occupied: make([]uint32, n),
	}
}

// TotalCells returns Cols*Rows.
func (g *Grid) TotalCells() int {
	return g.Cols * g.Rows
}

// Index returns the flat index of (col, row).
func (g *Grid) Index(col, row int) int {
	return row*g.Cols + col
}

// Coords returns (col, row) of a flat index.
func (g *Grid) Coords(c int) (col, row int) {
	return c % g.Cols, c / g.Cols
}

// IsBorder reports whether c lies on the outermost ring.
func (g *Grid) IsBorder(c int) bool {
	col, row := g.Coords(c)
	return col == 0 || row == 0 || col == g.Cols-1 || row == g.Rows-1
}

// CellCenter returns the world position of the centre of c.
func (g *Grid) CellCenter(c int) Vec2 {
	col, row := g.Coords(c)
	return Vec2{
		X: (float32(col) + 0.5) * g.CellSize.X,
		Y: (float32(row) + 0.5) * g.CellSize.Y,
	}
}

// CellAt returns the index of the cell containing p, clamped to the grid.
func (g *Grid) CellAt(p Vec2) int {
	col := clampInt(int(floor32(p.X/g.CellSize.X)), 0, g.Cols-1)
	row := clampInt(int(floor32(p.Y/g.CellSize.Y)), 0, g.Rows-1)
	return row*g.Cols + col
}

// SolidAt reports whether (col, row) is solid. Out-of-range cells count as solid.
func (g *Grid) SolidAt(col, row int) bool {
	if col < 0 || row < 0 || col >= g.Cols || row >= g.Rows {
		return true
	}
	return g.Types[row*g.Cols+col].IsSolid()
}

// SetRect sets every cell whose centre lies in [x0,x1)×[y0,y1) to t.
func (g *Grid) SetRect(x0, y0, x1, y1 float32, t CellType) int {
	n := 0
	for c := range g.Types {
		p := g.CellCenter(c)
		if p.X >= x0 && p.X < x1 && p.Y >= y0 && p.Y < y1 {
			g.Types[c] = t
			n++
		}
	}
	return n
}

// SetBorder sets the outermost ring of cells to t.
func (g *Grid) SetBorder(t CellType) {
	for c := range g.Types {
		if g.IsBorder(c) {
			g.Types[c] = t
		}
	}
}

// SwapVelocities flips the In and Out generations.
func (g *Grid) SwapVelocities() {
	g.In, g.Out = g.Out, g.In
}

// CountTypes returns the number of cells of each type, indexed by CellType.
func (g *Grid) CountTypes() [4]int {
	var counts [4]int
	for _, t := range g.Types {
		if int(t) < len(counts) {
			counts[t]++
		}
	}
	return counts
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floor32(v float32) float32 {
	i := float32(int(v))
	if v < i {
		return i - 1
	}
	return i
}
