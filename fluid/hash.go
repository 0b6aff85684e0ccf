package fluid

import (
	"fmt"
	"sort"
)

// NoParticles marks a cell with no entry in the lookup.
const NoParticles int32 = -1

// SpatialHash maps each cell to the contiguous run of particles it contains.
// After BuildLookup and SortLookup, Keys is sorted and Values holds the
// particle index for each key. Start[c] is the first position of cell c in
// Keys, or NoParticles.
type SpatialHash struct {
	Keys   []int32
	Values []int32
	Start  []int32
}

// NewSpatialHash allocates a lookup for numParticles particles over totalCells cells.
func NewSpatialHash(numParticles, totalCells int) *SpatialHash {
	h := &SpatialHash{
		Keys:   make([]int32, numParticles),
		Values: make([]int32, numParticles),
		Start:  make([]int32, totalCells),
	}
	for i := range h.Start {
		h.Start[i] = NoParticles
	}
	return h
}

// Run returns the bounds [begin, end) of the run of cell c in Keys.
// ok is false when the cell holds no particles.
func (h *SpatialHash) Run(c int) (begin, end int, ok bool) {
	s := h.Start[c]
	if s == NoParticles {
		return 0, 0, false
	}
	end = int(s)
	key := int32(c)
	for end < len(h.Keys) && h.Keys[end] == key {
		end++
	}
	return int(s), end, true
}

// byKey sorts keys and values together.
type byKey SpatialHash

func (b *byKey) Len() int           { return len(b.Keys) }
func (b *byKey) Less(i, j int) bool { return b.Keys[i] < b.Keys[j] }
func (b *byKey) Swap(i, j int) {
	b.Keys[i], b.Keys[j] = b.Keys[j], b.Keys[i]
	b.Values[i], b.Values[j] = b.Values[j], b.Values[i]
}

// Sort orders (key, value) pairs by key. Equal keys keep their relative order.
func (h *SpatialHash) Sort() {
	sort.Stable((*byKey)(h))
}

// checkSorted returns an error if Keys is not in ascending order or any key
// is outside the cell range.
func (h *SpatialHash) checkSorted() error {
	if len(h.Keys) != len(h.Values) {
		return fmt.Errorf("lookup size mismatch: %d keys, %d values", len(h.Keys), len(h.Values))
	}
	for i, k := range h.Keys {
		if k < 0 || int(k) >= len(h.Start) {
			return fmt.Errorf("key %d at %d outside [0,%d)", k, i, len(h.Start))
		}
		if i > 0 && h.Keys[i-1] > k {
			return fmt.Errorf("keys unsorted at %d: %d > %d", i, h.Keys[i-1], k)
		}
	}
	return nil
}

// ClearIndices resets every start index to NoParticles.
func (s *Sim) ClearIndices() {
	start := s.Hash.Start
	n := len(start)
	s.pool.Dispatch(n, func(c int) {
		if c >= n {
			return
		}
		start[c] = NoParticles
	})
}

// BuildLookup records the containing cell of every particle in Keys and the
// particle index in Values. The result is unsorted.
func (s *Sim) BuildLookup() {
	keys, values := s.Hash.Keys, s.Hash.Values
	pos := s.Particles.Pos
	n := len(pos)
	s.pool.Dispatch(n, func(i int) {
		if i >= n {
			return
		}
		keys[i] = int32(s.Grid.CellAt(pos[i]))
		values[i] = int32(i)
	})
}

// SortLookup sorts the lookup by key on the calling goroutine.
func (s *Sim) SortLookup() {
	s.Hash.Sort()
}

// BuildStartIndices records, for each run of equal keys, the position where
// it begins. Keys must be sorted.
func (s *Sim) BuildStartIndices() {
	if s.assert {
		if err := s.Hash.checkSorted(); err != nil {
			panic(fmt.Sprintf("fluid: BuildStartIndices: %v", err))
		}
	}

	keys, start := s.Hash.Keys, s.Hash.Start
	n := len(keys)
	s.pool.Dispatch(n, func(i int) {
		if i >= n {
			return
		}
		k := keys[i]
		if i == 0 || keys[i-1] != k {
			start[k] = int32(i)
		}
	})
}
