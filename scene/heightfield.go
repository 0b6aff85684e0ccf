package scene

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/slosh/config"
	"github.com/pthm-cable/slosh/fluid"
)

// Heightfield is ground along the bottom of the grid whose surface follows
// a sum of simplex noise octaves. Each octave halves the wavelength and
// the weight of the previous one.
type Heightfield struct {
	Type       fluid.CellType
	BaseHeight float64
	Amplitude  float64
	Wavelength float64
	Octaves    int
	Seed       int64
}

// HeightfieldFromConfig converts the heightfield section of a scene config.
// seed is used when the section leaves its own seed at 0.
func HeightfieldFromConfig(hc config.HeightfieldConfig, seed int64) (Heightfield, bool) {
	t, ok := fluid.ParseCellType(hc.Type)
	if !hc.Enabled || !ok || !t.IsSolid() {
		return Heightfield{}, false
	}
	if hc.Seed != 0 {
		seed = hc.Seed
	}
	return Heightfield{
		Type:       t,
		BaseHeight: hc.BaseHeight,
		Amplitude:  hc.Amplitude,
		Wavelength: hc.Wavelength,
		Octaves:    max(hc.Octaves, 1),
		Seed:       seed,
	}, true
}

// Heights returns the surface height above every column centre.
func (h *Heightfield) Heights(cols int, cellWidth float32) []float64 {
	octaves := make([]opensimplex.Noise, h.Octaves)
	for o := range octaves {
		octaves[o] = opensimplex.New(h.Seed + int64(o))
	}

	heights := make([]float64, cols)
	for i := range heights {
		x := (float64(i) + 0.5) * float64(cellWidth)

		var sum, norm float64
		weight, wavelength := 1.0, h.Wavelength
		for _, n := range octaves {
			sum += weight * n.Eval2(x/wavelength, 0)
			norm += weight
			weight *= 0.5
			wavelength *= 0.5
		}
		heights[i] = h.BaseHeight + h.Amplitude*sum/norm
	}
	return heights
}

// Rasterise marks every cell whose centre lies below the surface.
// Returns the number of cells written.
func (h *Heightfield) Rasterise(g *fluid.Grid) int {
	heights := h.Heights(g.Cols, g.CellSize.X)
	n := 0
	for col, top := range heights {
		rows := int(math.Ceil(top/float64(g.CellSize.Y) - 0.5))
		for row := 0; row < min(rows, g.Rows); row++ {
			g.Types[g.Index(col, row)] = h.Type
			n++
		}
	}
	return n
}
