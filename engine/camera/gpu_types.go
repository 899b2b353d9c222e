package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUFrameUniformSource is the canonical WGSL definition of the FrameUniform struct.
// Matches GPUFrameUniform layout exactly (400 bytes).
//
//go:embed assets/frame_uniform.wgsl
var GPUFrameUniformSource string

// GPUFrameUniform is the GPU-aligned representation of a Matrices snapshot.
// Size: 400 bytes (six mat4x4<f32> followed by a padded vec3<f32>).
type GPUFrameUniform struct {
	View           [16]float32 // offset   0
	Proj           [16]float32 // offset  64
	InvView        [16]float32 // offset 128
	InvProj        [16]float32 // offset 192
	PrevView       [16]float32 // offset 256
	PrevProj       [16]float32 // offset 320
	CameraPosition [3]float32  // offset 384
	_pad           float32     // offset 396
}

// NewGPUFrameUniform packs a Matrices snapshot for upload.
func NewGPUFrameUniform(m Matrices) GPUFrameUniform {
	return GPUFrameUniform{
		View:           m.View,
		Proj:           m.Projection,
		InvView:        m.InverseView,
		InvProj:        m.InverseProjection,
		PrevView:       m.PrevView,
		PrevProj:       m.PrevProjection,
		CameraPosition: [3]float32(m.Position),
	}
}

// Size returns the size of the GPUFrameUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (400)
func (g *GPUFrameUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFrameUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUFrameUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	mats := [...]*[16]float32{&g.View, &g.Proj, &g.InvView, &g.InvProj, &g.PrevView, &g.PrevProj}
	for m, mat := range mats {
		putMat(buf[m*64:], mgl32.Mat4(*mat))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[384+i*4:], math.Float32bits(g.CameraPosition[i]))
	}
	binary.LittleEndian.PutUint32(buf[396:], 0) // _pad
	return buf
}

func putMat(dst []byte, m mgl32.Mat4) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(m[i]))
	}
}
