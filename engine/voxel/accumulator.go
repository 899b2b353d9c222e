package voxel

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// channels per cell: sum r, sum g, sum b, sample count
const channels = 4

// Accumulator is the scatter arena. Every cell holds four atomic counters, so any number of
// goroutines may scatter into the same cell concurrently without locks or lost updates.
type Accumulator struct {
	grid  Grid
	cells []atomic.Uint32

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewAccumulator allocates a zeroed arena for g.
func NewAccumulator(g Grid) *Accumulator {
	return &Accumulator{grid: g, cells: make([]atomic.Uint32, g.Cells()*channels)}
}

// Grid returns the grid the arena covers.
func (a *Accumulator) Grid() Grid {
	return a.grid
}

// Scatter adds one quantized colour sample to the cell containing p.
// Positions outside the box are dropped without touching the arena.
//
// Parameters:
//   - p: world-space sample position
//   - rgb: 8-bit colour
//
// Returns:
//   - bool: true if the sample was accumulated
func (a *Accumulator) Scatter(p mgl32.Vec3, rgb [3]uint8) bool {
	x, y, z, ok := a.grid.Cell(p)
	if !ok {
		a.dropped.Add(1)
		return false
	}
	base := a.grid.Index(x, y, z) * channels
	a.cells[base].Add(uint32(rgb[0]))
	a.cells[base+1].Add(uint32(rgb[1]))
	a.cells[base+2].Add(uint32(rgb[2]))
	a.cells[base+3].Add(1)
	a.written.Add(1)
	return true
}

// Cell returns the accumulated sums and sample count of cell (x, y, z).
func (a *Accumulator) Cell(x, y, z int) (sum [3]uint32, count uint32) {
	base := a.grid.Index(x, y, z) * channels
	return [3]uint32{a.cells[base].Load(), a.cells[base+1].Load(), a.cells[base+2].Load()}, a.cells[base+3].Load()
}

// Written returns the number of accepted samples since the last Reset.
func (a *Accumulator) Written() uint64 {
	return a.written.Load()
}

// Dropped returns the number of out-of-box samples since the last Reset.
func (a *Accumulator) Dropped() uint64 {
	return a.dropped.Load()
}

// Occupied returns the number of cells with at least one sample.
func (a *Accumulator) Occupied() int {
	n := 0
	for i := 3; i < len(a.cells); i += channels {
		if a.cells[i].Load() > 0 {
			n++
		}
	}
	return n
}

// ClearCells zeroes cells [lo, hi). Callers split the full range across workers.
func (a *Accumulator) ClearCells(lo, hi int) {
	for i := lo * channels; i < hi*channels; i++ {
		a.cells[i].Store(0)
	}
}

// Reset zeroes every cell and both counters.
func (a *Accumulator) Reset() {
	a.ClearCells(0, a.grid.Cells())
	a.written.Store(0)
	a.dropped.Store(0)
}
