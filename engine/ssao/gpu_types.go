package ssao

import (
	_ "embed"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxKernelSize is the kernel capacity of the GPU uniform.
const MaxKernelSize = 64

// GPUParamsSource is the canonical WGSL definition of the SSAOParams struct.
//
//go:embed assets/ssao_params.wgsl
var GPUParamsSource string

// GPUParams is the uniform shared by the kernel and horizon-based AO shaders.
// Size: 1328 bytes (64 + 16 vec4 entries followed by nine scalars and padding).
type GPUParams struct {
	Kernel     [MaxKernelSize][4]float32
	Noise      [NoiseSize * NoiseSize][4]float32
	Radius     float32
	Bias       float32
	KernelSize uint32
	Directions uint32
	Steps      uint32
	HBAORadius float32
	FallOff    float32
	AngleBias  float32
	// BlurSize is the box filter edge of the blur pass.
	BlurSize uint32
}

// NewGPUParams packs a kernel, the rotation noise and both parameter sets.
func NewGPUParams(kernel, noise []mgl32.Vec3, p Params, h HBAOParams) GPUParams {
	g := GPUParams{
		Radius:     p.Radius,
		Bias:       p.Bias,
		KernelSize: uint32(min(len(kernel), MaxKernelSize)),
		Directions: uint32(h.Directions),
		Steps:      uint32(h.Steps),
		HBAORadius: h.Radius,
		FallOff:    h.FallOff,
		AngleBias:  h.AngleBias,
	}
	for i := range int(g.KernelSize) {
		g.Kernel[i] = [4]float32{kernel[i][0], kernel[i][1], kernel[i][2], 0}
	}
	for i := range min(len(noise), len(g.Noise)) {
		g.Noise[i] = [4]float32{noise[i][0], noise[i][1], noise[i][2], 0}
	}
	return g
}

// Size returns the size of the marshaled uniform in bytes.
func (g *GPUParams) Size() int {
	return (MaxKernelSize+NoiseSize*NoiseSize)*16 + 48
}

// Marshal serializes the uniform for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	off := 0
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
		off += 4
	}
	for _, v := range g.Kernel {
		for _, c := range v {
			put(math.Float32bits(c))
		}
	}
	for _, v := range g.Noise {
		for _, c := range v {
			put(math.Float32bits(c))
		}
	}
	put(math.Float32bits(g.Radius))
	put(math.Float32bits(g.Bias))
	put(g.KernelSize)
	put(g.Directions)
	put(g.Steps)
	put(math.Float32bits(g.HBAORadius))
	put(math.Float32bits(g.FallOff))
	put(math.Float32bits(g.AngleBias))
	put(g.BlurSize)
	return buf
}
