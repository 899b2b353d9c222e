package material

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// GPUParamsSource is the canonical WGSL definition of the MaterialParams struct.
//
//go:embed assets/material_params.wgsl
var GPUParamsSource string

// GPUParams is the per-material uniform of the geometry pass.
// Size: 32 bytes.
type GPUParams struct {
	BaseColor      [4]float32 // offset  0
	Factors        [3]float32 // offset 16
	NormalStrength float32    // offset 28
}

// NewGPUParams packs the scalar inputs of m. The normal strength is a pipeline setting, not a material one.
func NewGPUParams(m Material, normalStrength float32) GPUParams {
	return GPUParams{
		BaseColor:      [4]float32(m.BaseColor()),
		Factors:        [3]float32(m.Factors()),
		NormalStrength: normalStrength,
	}
}

// Size returns the size of the marshaled uniform in bytes.
func (g *GPUParams) Size() int {
	return 32
}

// Marshal serializes the uniform for GPU upload.
func (g *GPUParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i, v := range g.BaseColor {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i, v := range g.Factors {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.NormalStrength))
	return buf
}
