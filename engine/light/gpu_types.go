package light

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// MaxGPULights is the number of lights the lighting shader evaluates. Lights past this cap are ignored on the GPU path.
const MaxGPULights = 16

// GPULightSource is the canonical WGSL definition of the Light and LightArray structs.
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light.
// Size: 32 bytes.
type GPULight struct {
	Position [3]float32 // offset  0
	_pad0    float32    // offset 12
	Color    [3]float32 // offset 16
	_pad1    float32    // offset 28
}

// GPULightArray is the uniform block holding the ordered light list.
// Size: 16 byte header + MaxGPULights * 32 bytes.
type GPULightArray struct {
	Count  uint32
	Lights [MaxGPULights]GPULight
}

// NewGPULightArray packs lights in order, truncating at MaxGPULights.
//
// Parameters:
//   - lights: ordered lights, as returned by Set.All
//
// Returns:
//   - GPULightArray: the packed uniform
func NewGPULightArray(lights []Light) GPULightArray {
	var arr GPULightArray
	for i, l := range lights {
		if i >= MaxGPULights {
			break
		}
		arr.Lights[i] = GPULight{Position: [3]float32(l.Position), Color: [3]float32(l.Color)}
		arr.Count++
	}
	return arr
}

// Size returns the size of the marshaled uniform in bytes.
func (g *GPULightArray) Size() int {
	return 16 + MaxGPULights*32
}

// Marshal serializes the light array into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPULightArray) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.Count)
	for i := range g.Lights {
		off := 16 + i*32
		l := &g.Lights[i]
		for c := range 3 {
			binary.LittleEndian.PutUint32(buf[off+c*4:], math.Float32bits(l.Position[c]))
			binary.LittleEndian.PutUint32(buf[off+16+c*4:], math.Float32bits(l.Color[c]))
		}
	}
	return buf
}
