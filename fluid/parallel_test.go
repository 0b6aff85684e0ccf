package fluid

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolDispatchCoversPaddedRange(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		group   int
		thresh  int
		n       int
		padded  int
	}{
		{"inline", 4, 8, 1000, 37, 40},
		{"parallel", 4, 8, 1, 37, 40},
		{"exact multiple", 3, 16, 1, 64, 64},
		{"single worker", 1, 64, 1, 5, 64},
		{"more workers than groups", 16, 32, 1, 40, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.workers, tt.group, tt.thresh)
			defer p.Stop()

			if got := p.Padded(tt.n); got != tt.padded {
				t.Fatalf("Padded(%d) = %d, want %d", tt.n, got, tt.padded)
			}

			hits := make([]int32, tt.padded+tt.group)
			p.Dispatch(tt.n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			})
			for i, h := range hits {
				want := int32(0)
				if i < tt.padded {
					want = 1
				}
				if h != want {
					t.Errorf("index %d hit %d times, want %d", i, h, want)
				}
			}
		})
	}
}

func TestPoolDispatchChunks(t *testing.T) {
	p := NewPool(4, 8, 1)
	defer p.Stop()

	const n = 100
	var mu sync.Mutex
	covered := make([]int, n)
	chunks := make(map[int][2]int)

	p.DispatchChunks(n, func(i0, i1, chunk int) {
		mu.Lock()
		defer mu.Unlock()
		if _, dup := chunks[chunk]; dup {
			t.Errorf("chunk %d dispatched twice", chunk)
		}
		chunks[chunk] = [2]int{i0, i1}
		for i := i0; i < i1; i++ {
			covered[i]++
		}
	})

	for i, c := range covered {
		if c != 1 {
			t.Errorf("index %d covered %d times", i, c)
		}
	}
	for chunk, r := range chunks {
		if chunk < 0 || chunk >= p.NumChunks() {
			t.Errorf("chunk index %d out of [0,%d)", chunk, p.NumChunks())
		}
		if r[0]%p.GroupSize() != 0 {
			t.Errorf("chunk %d starts at %d, not a group boundary", chunk, r[0])
		}
	}
}

func TestPoolRestartsAfterStop(t *testing.T) {
	p := NewPool(2, 4, 1)
	var count int32
	p.Dispatch(16, func(int) { atomic.AddInt32(&count, 1) })
	p.Stop()
	p.Dispatch(16, func(int) { atomic.AddInt32(&count, 1) })
	p.Stop()
	p.Stop()

	if count != 32 {
		t.Errorf("count = %d, want 32", count)
	}
}
