package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput and InstanceData structs.
// Matches GPUVertex (48 bytes) and GPUInstance (128 bytes) exactly.
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Size: 48 bytes, no padding required.
type GPUVertex struct {
	Position [3]float32 // offset  0: model-space position
	TexCoord [2]float32 // offset 12: UV
	Normal   [3]float32 // offset 20: model-space normal
	Tangent  [4]float32 // offset 32: tangent xyz + handedness w
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 48)
	putFloats(buf[0:], g.Position[:])
	putFloats(buf[12:], g.TexCoord[:])
	putFloats(buf[20:], g.Normal[:])
	putFloats(buf[32:], g.Tangent[:])
	return buf
}

// GPUInstance is the per-instance storage buffer entry.
// Size: 128 bytes.
type GPUInstance struct {
	Model        [16]float32 // offset  0
	NormalMatrix [16]float32 // offset 64: inverse transpose of Model, upper 3x3 used
}

// Marshal serializes the GPUInstance struct into a byte buffer suitable for GPU upload.
func (g *GPUInstance) Marshal() []byte {
	buf := make([]byte, 128)
	putFloats(buf[0:], g.Model[:])
	putFloats(buf[64:], g.NormalMatrix[:])
	return buf
}

// MarshalVertices packs every vertex of m for a vertex buffer upload.
func MarshalVertices(m *Mesh) []byte {
	out := make([]byte, 0, len(m.vertices)*48)
	for _, v := range m.vertices {
		g := GPUVertex{
			Position: [3]float32(v.Position),
			TexCoord: [2]float32(v.UV),
			Normal:   [3]float32(v.Normal),
			Tangent:  [4]float32(v.Tangent),
		}
		out = append(out, g.Marshal()...)
	}
	return out
}

// MarshalIndices packs the index list as little-endian uint32.
func MarshalIndices(m *Mesh) []byte {
	out := make([]byte, len(m.indices)*4)
	for i, idx := range m.indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// MarshalInstances packs instances for a storage buffer upload.
func MarshalInstances(instances []Instance) []byte {
	out := make([]byte, 0, len(instances)*128)
	for _, inst := range instances {
		nm := inst.NormalMatrix().Mat4()
		g := GPUInstance{Model: [16]float32(inst.Model), NormalMatrix: [16]float32(nm)}
		out = append(out, g.Marshal()...)
	}
	return out
}

// IdentityInstance is an instance at the origin with no rotation or scale.
func IdentityInstance() Instance {
	return Instance{Model: mgl32.Ident4()}
}

func putFloats(dst []byte, src []float32) {
	for i, f := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}
