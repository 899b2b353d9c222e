// Package voxel builds the voxel lightmap: scene colour is scattered into a fixed world-space grid with
// atomic adds, reduced to an RGBA8 volume and box-filtered into a mip chain for indirect lighting.
package voxel

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Grid maps a static world-space box onto Resolution^3 cells.
// The same mapping is used by scatter, by volume sampling and by the WGSL include, so cell
// indices agree between producer and consumer.
type Grid struct {
	Resolution int
	// Center is the world-space center of the box.
	Center mgl32.Vec3
	// Extents is the full size of the box along each axis.
	Extents mgl32.Vec3
}

// NewGrid creates a Grid.
func NewGrid(resolution int, center, extents mgl32.Vec3) Grid {
	return Grid{Resolution: resolution, Center: center, Extents: extents}
}

// Min returns the lowest corner of the box.
func (g Grid) Min() mgl32.Vec3 {
	return g.Center.Sub(g.Extents.Mul(0.5))
}

// Normalize maps a world position into the box's [0, 1]^3 space. Values outside [0, 1) lie outside the box.
func (g Grid) Normalize(p mgl32.Vec3) mgl32.Vec3 {
	rel := p.Sub(g.Min())
	return mgl32.Vec3{rel[0] / g.Extents[0], rel[1] / g.Extents[1], rel[2] / g.Extents[2]}
}

// Cell returns the cell containing p at mip level 0.
//
// Parameters:
//   - p: world-space position
//
// Returns:
//   - x, y, z: cell coordinates
//   - ok: false when p is outside the box (or not finite); the coordinates are then meaningless
func (g Grid) Cell(p mgl32.Vec3) (x, y, z int, ok bool) {
	return g.CellAt(p, g.Resolution)
}

// CellAt returns the cell containing p in a grid of res^3 cells covering the same box.
func (g Grid) CellAt(p mgl32.Vec3, res int) (x, y, z int, ok bool) {
	n := g.Normalize(p)
	var c [3]int
	for i := range 3 {
		f := math32.Floor(n[i] * float32(res))
		if !(f >= 0 && f < float32(res)) {
			return 0, 0, 0, false
		}
		c[i] = int(f)
	}
	return c[0], c[1], c[2], true
}

// Index returns the linear index of cell (x, y, z); x varies fastest.
func (g Grid) Index(x, y, z int) int {
	return (z*g.Resolution+y)*g.Resolution + x
}

// Cells returns the number of cells at mip level 0.
func (g Grid) Cells() int {
	return g.Resolution * g.Resolution * g.Resolution
}

// CellCenter returns the world-space center of cell (x, y, z).
func (g Grid) CellCenter(x, y, z int) mgl32.Vec3 {
	size := g.Extents.Mul(1 / float32(g.Resolution))
	return g.Min().Add(mgl32.Vec3{
		(float32(x) + 0.5) * size[0],
		(float32(y) + 0.5) * size[1],
		(float32(z) + 0.5) * size[2],
	})
}

// MipCount returns the number of levels from Resolution down to 1.
func (g Grid) MipCount() int {
	n := 1
	for r := g.Resolution; r > 1; r /= 2 {
		n++
	}
	return n
}
