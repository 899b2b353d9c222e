package voxel

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// GPUGridSource is the canonical WGSL definition of the VoxelGrid struct together with the cell
// mapping used by scatter and lighting. It matches Grid.CellAt and Grid.Index.
//
//go:embed assets/voxel_grid.wgsl
var GPUGridSource string

// GPUGrid is the uniform form of a Grid.
// Size: 32 bytes.
type GPUGrid struct {
	Min        [3]float32 // offset  0
	Resolution uint32     // offset 12
	Extents    [3]float32 // offset 16
	MipCount   uint32     // offset 28
}

// NewGPUGrid packs g for upload.
func NewGPUGrid(g Grid) GPUGrid {
	return GPUGrid{
		Min:        [3]float32(g.Min()),
		Resolution: uint32(g.Resolution),
		Extents:    [3]float32(g.Extents),
		MipCount:   uint32(g.MipCount()),
	}
}

// Size returns the size of the marshaled uniform in bytes.
func (g *GPUGrid) Size() int {
	return 32
}

// Marshal serializes the uniform for GPU upload.
func (g *GPUGrid) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Min[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Extents[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], g.Resolution)
	binary.LittleEndian.PutUint32(buf[28:], g.MipCount)
	return buf
}

// AccumulatorBytes is the size of the GPU accumulator for g: four u32 counters per cell.
func AccumulatorBytes(g Grid) uint64 {
	return uint64(g.Cells()) * 16
}

// GPUSampleSize is the stride of one scatter sample in the storage buffer read by voxel_scatter.wgsl:
// the world position in xyz and the colour packed as RGBA8 in the fourth word.
const GPUSampleSize = 16

// MarshalSamples packs every present sample of src for the GPU scatter pass. Empty slots are skipped.
//
// Parameters:
//   - src: the samples
//
// Returns:
//   - []byte: GPUSampleSize bytes per sample
//   - int: number of samples written
func MarshalSamples(src Source) ([]byte, int) {
	buf := make([]byte, 0, src.Len()*GPUSampleSize)
	n := 0
	for i := range src.Len() {
		s, ok := src.At(i)
		if !ok {
			continue
		}
		for k := range 3 {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s.Position[k]))
		}
		packed := uint32(s.Color[0]) | uint32(s.Color[1])<<8 | uint32(s.Color[2])<<16 | 0xff<<24
		buf = binary.LittleEndian.AppendUint32(buf, packed)
		n++
	}
	return buf, n
}
