package shading

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// GPUParamsSource is the canonical WGSL definition of the LightingParams struct.
//
//go:embed assets/lighting_params.wgsl
var GPUParamsSource string

// GPUParams is the GPU-aligned scalar block of Params. Lights and the lightmap are bound separately.
// Size: 48 bytes.
type GPUParams struct {
	Debug            [4]float32 // offset  0
	AmbientIntensity float32    // offset 16
	AmbientPower     float32    // offset 20
	VoxelIntensity   float32    // offset 24
	VoxelLOD         float32    // offset 28
	VoxelEnabled     uint32     // offset 32
}

// NewGPUParams packs the scalar lighting inputs.
func NewGPUParams(p Params) GPUParams {
	g := GPUParams{
		Debug:            p.Debug,
		AmbientIntensity: p.AmbientIntensity,
		AmbientPower:     p.AmbientPower,
		VoxelIntensity:   p.VoxelIntensity,
		VoxelLOD:         p.VoxelLOD,
	}
	if p.Voxel != nil {
		g.VoxelEnabled = 1
	}
	return g
}

// Size returns the size of the marshaled uniform in bytes.
func (g *GPUParams) Size() int {
	return 48
}

// Marshal serializes the uniform for GPU upload.
func (g *GPUParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i, v := range g.Debug {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(g.AmbientIntensity))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(g.AmbientPower))
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(g.VoxelIntensity))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.VoxelLOD))
	binary.LittleEndian.PutUint32(buf[32:], g.VoxelEnabled)
	return buf
}
