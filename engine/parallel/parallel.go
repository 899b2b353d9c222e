// Package parallel runs data-parallel loops over a shared worker pool. Every CPU pass of the
// software backend splits its rows, cells or samples into bands and waits on a per-call barrier.
package parallel

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// bandsPerWorker oversubscribes the pool so uneven bands still balance.
const bandsPerWorker = 4

type poolImpl struct {
	workers int
	pool    worker.DynamicWorkerPool
	mu      *sync.Mutex
	stopped bool
}

// Pool is a fixed-size worker pool for band-parallel loops.
// For must not be called from inside a band of the same pool.
type Pool interface {
	// For splits [0, n) into contiguous bands and calls fn once per band concurrently.
	// It returns after every band has finished. A panic inside fn is re-raised on the caller.
	//
	// Parameters:
	//   - n: total item count
	//   - fn: band body receiving a half-open [lo, hi) range
	For(n int, fn func(lo, hi int))

	// Workers returns the number of worker goroutines.
	//
	// Returns:
	//   - int: worker count
	Workers() int

	// Stop shuts the workers down. For must not be called afterwards.
	Stop()
}

var _ Pool = &poolImpl{}

// NewPool creates a Pool.
//
// Parameters:
//   - workers: worker goroutine count; values below 1 mean one per logical CPU
//
// Returns:
//   - Pool: the started pool
func NewPool(workers int) Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	// Workers are reused across frames, so the idle timeout is long.
	return &poolImpl{
		workers: workers,
		pool:    worker.NewDynamicWorkerPool(workers, workers*bandsPerWorker*2, time.Minute),
		mu:      &sync.Mutex{},
	}
}

func (p *poolImpl) Workers() int {
	return p.workers
}

func (p *poolImpl) For(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if p.workers == 1 {
		fn(0, n)
		return
	}
	bands := common.Bands(n, p.workers*bandsPerWorker)
	if len(bands) == 1 {
		fn(0, n)
		return
	}

	// A WaitGroup gives a per-call barrier; pool.Wait() waits for idle workers, which never happens between frames.
	var wg sync.WaitGroup
	var panicMu sync.Mutex
	var recovered any

	for i, b := range bands {
		wg.Add(1)
		lo, hi := b[0], b[1]
		p.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						panicMu.Lock()
						if recovered == nil {
							recovered = r
						}
						panicMu.Unlock()
					}
				}()
				fn(lo, hi)
				return nil, nil
			},
		})
	}
	wg.Wait()

	if recovered != nil {
		panic(fmt.Sprintf("parallel band panicked: %v", recovered))
	}
}

func (p *poolImpl) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	p.pool.Stop()
}
