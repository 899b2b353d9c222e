package voxel

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Level is one mip of a Volume: Size^3 RGBA8 texels, x fastest.
type Level struct {
	Size int
	Pix  []uint8
}

func newLevel(size int) *Level {
	return &Level{Size: size, Pix: make([]uint8, size*size*size*4)}
}

func (l *Level) offset(x, y, z int) int {
	return ((z*l.Size+y)*l.Size + x) * 4
}

// At returns the texel at (x, y, z).
func (l *Level) At(x, y, z int) [4]uint8 {
	o := l.offset(x, y, z)
	return [4]uint8{l.Pix[o], l.Pix[o+1], l.Pix[o+2], l.Pix[o+3]}
}

// Volume is the sampleable result of a rebuild: a mip chain of RGBA8 levels over a Grid.
// A Volume is immutable once published.
type Volume struct {
	grid   Grid
	levels []*Level
}

// NewVolume allocates level 0 for g. Further levels are added by Downsample.
func NewVolume(g Grid) *Volume {
	return &Volume{grid: g, levels: []*Level{newLevel(g.Resolution)}}
}

// Grid returns the grid the volume covers.
func (v *Volume) Grid() Grid {
	return v.grid
}

// Levels returns the number of mip levels built so far.
func (v *Volume) Levels() int {
	return len(v.levels)
}

// Mip returns level i.
func (v *Volume) Mip(i int) *Level {
	return v.levels[i]
}

// ReduceRange writes the average colour of cells in z-slices [z0, z1) of acc into level 0.
// An empty cell yields (0, 0, 0, 0); an occupied cell has alpha 255.
//
// Parameters:
//   - acc: scatter arena for the same grid
//   - z0, z1: half-open z-slice range, so workers can split the volume
func (v *Volume) ReduceRange(acc *Accumulator, z0, z1 int) {
	l0 := v.levels[0]
	res := v.grid.Resolution
	for z := z0; z < z1; z++ {
		for y := range res {
			for x := range res {
				sum, count := acc.Cell(x, y, z)
				o := l0.offset(x, y, z)
				if count == 0 {
					l0.Pix[o], l0.Pix[o+1], l0.Pix[o+2], l0.Pix[o+3] = 0, 0, 0, 0
					continue
				}
				for c := range 3 {
					// rounded integer division; a mean of 8-bit values fits in 8 bits
					l0.Pix[o+c] = uint8((sum[c] + count/2) / count)
				}
				l0.Pix[o+3] = 255
			}
		}
	}
}

// AddLevel appends the next (half size) mip level and returns it for DownsampleRange.
// Returns nil once the chain reaches 1^3.
func (v *Volume) AddLevel() *Level {
	last := v.levels[len(v.levels)-1]
	if last.Size <= 1 {
		return nil
	}
	l := newLevel(last.Size / 2)
	v.levels = append(v.levels, l)
	return l
}

// DownsampleRange fills z-slices [z0, z1) of level dst from level dst-1.
// Every output texel is the unweighted mean of its 8 finer texels, alpha included.
func (v *Volume) DownsampleRange(dst, z0, z1 int) {
	src := v.levels[dst-1]
	out := v.levels[dst]
	for z := z0; z < z1; z++ {
		for y := range out.Size {
			for x := range out.Size {
				var sum [4]uint32
				for dz := range 2 {
					for dy := range 2 {
						for dx := range 2 {
							t := src.At(2*x+dx, 2*y+dy, 2*z+dz)
							for c := range 4 {
								sum[c] += uint32(t[c])
							}
						}
					}
				}
				o := out.offset(x, y, z)
				for c := range 4 {
					out.Pix[o+c] = uint8((sum[c] + 4) / 8)
				}
			}
		}
	}
}

// Sample returns the normalized colour of the cell containing p at mip level round(lod).
// The lookup uses the same cell mapping as Scatter.
//
// Parameters:
//   - p: world-space position
//   - lod: mip level, clamped to the built chain
//
// Returns:
//   - mgl32.Vec4: RGBA in [0, 1]; alpha is the occupied fraction of the covered cells
//   - bool: false when p is outside the box
func (v *Volume) Sample(p mgl32.Vec3, lod float32) (mgl32.Vec4, bool) {
	level := int(math32.Round(mgl32.Clamp(lod, 0, float32(len(v.levels)-1))))
	l := v.levels[level]
	x, y, z, ok := v.grid.CellAt(p, l.Size)
	if !ok {
		return mgl32.Vec4{}, false
	}
	t := l.At(x, y, z)
	return mgl32.Vec4{float32(t[0]) / 255, float32(t[1]) / 255, float32(t[2]) / 255, float32(t[3]) / 255}, true
}

// Reduce builds level 0 of a new Volume from acc on the calling goroutine.
func Reduce(acc *Accumulator) *Volume {
	v := NewVolume(acc.Grid())
	v.ReduceRange(acc, 0, acc.Grid().Resolution)
	return v
}

// Downsample builds the full mip chain of v on the calling goroutine.
func Downsample(v *Volume) {
	for l := v.AddLevel(); l != nil; l = v.AddLevel() {
		v.DownsampleRange(v.Levels()-1, 0, l.Size)
	}
}
