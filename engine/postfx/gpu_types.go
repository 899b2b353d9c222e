package postfx

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// GPUParamsSource is the canonical WGSL definition of the PostParams struct.
//
//go:embed assets/post_params.wgsl
var GPUParamsSource string

// GPUParams configures the motion blur and tone map shaders.
// Size: 16 bytes.
type GPUParams struct {
	Taps    uint32
	Scale   float32
	Gamma   float32
	Enabled uint32
}

// Size returns the size of the marshaled uniform in bytes.
func (g *GPUParams) Size() int {
	return 16
}

// Marshal serializes the uniform for GPU upload.
func (g *GPUParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.Taps)
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(g.Scale))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(g.Gamma))
	binary.LittleEndian.PutUint32(buf[12:], g.Enabled)
	return buf
}
