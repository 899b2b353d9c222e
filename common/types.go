// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "github.com/cogentcore/webgpu/wgpu"

// TextureStagingData holds RGBA8 pixel data pending GPU upload.
type TextureStagingData struct {
	// Pixels is row-major RGBA8, 4 bytes per pixel.
	Pixels []byte
	Width  uint32
	Height uint32
}

// SamplerStagingData configures a sampler pending GPU creation. Zero fields fall back to repeat
// addressing with linear filtering.
type SamplerStagingData struct {
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	MagFilter, MinFilter                     wgpu.FilterMode
	MipmapFilter                             wgpu.MipmapFilterMode
	LodMinClamp, LodMaxClamp                 float32
	MaxAnisotropy                            uint16
}
