package fluid

import (
	"runtime"
	"sync"
)

// defaultThreshold is the minimum element count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const defaultThreshold = 512

// defaultGroupSize matches the thread group width the kernels were tuned for.
const defaultGroupSize = 64

// workChunk represents a range of elements for a worker to process.
type workChunk struct {
	start, end int
	index      int
	fn         func(i0, i1, chunk int)
}

// Pool runs stage kernels over index ranges on persistent worker goroutines.
// Every dispatch returns only after all of its chunks have completed, so
// consecutive dispatches are separated by a full barrier.
type Pool struct {
	numWorkers int
	groupSize  int
	threshold  int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewPool creates a pool. Zero values select GOMAXPROCS workers and the
// package defaults for group size and threshold.
func NewPool(workers, groupSize, threshold int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if groupSize <= 0 {
		groupSize = defaultGroupSize
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Pool{
		numWorkers: workers,
		groupSize:  groupSize,
		threshold:  threshold,
	}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.numWorkers
}

// NumChunks returns an upper bound on the chunk index passed to DispatchChunks
// callbacks. Per-chunk scratch buffers should be sized to it.
func (p *Pool) NumChunks() int {
	return p.numWorkers
}

// GroupSize returns the dispatch granularity.
func (p *Pool) GroupSize() int {
	return p.groupSize
}

// Padded rounds n up to a multiple of the group size.
func (p *Pool) Padded(n int) int {
	return (n + p.groupSize - 1) / p.groupSize * p.groupSize
}

// startWorkers launches persistent worker goroutines.
func (p *Pool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals all workers to exit and waits for them.
// The pool restarts its workers on the next parallel dispatch.
func (p *Pool) Stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.start, chunk.end, chunk.index)
			p.doneChan <- struct{}{}
		}
	}
}

// Dispatch runs fn once for every index in [0, Padded(n)). Indices past n
// are delivered too, as a GPU dispatch would; kernels must skip them.
func (p *Pool) Dispatch(n int, fn func(i int)) {
	p.DispatchChunks(p.Padded(n), func(i0, i1, _ int) {
		for i := i0; i < i1; i++ {
			fn(i)
		}
	})
}

// DispatchChunks splits [0, n) into at most NumChunks contiguous ranges and
// runs fn on each. The chunk index is a pure function of the range, so
// per-chunk reductions are reproducible.
func (p *Pool) DispatchChunks(n int, fn func(i0, i1, chunk int)) {
	if n <= 0 {
		return
	}

	// Single-threaded for small ranges
	if n < p.threshold || p.numWorkers == 1 {
		fn(0, n, 0)
		return
	}

	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	chunkSize = p.Padded(chunkSize)

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		p.workChan <- workChunk{start: start, end: end, index: w, fn: fn}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
