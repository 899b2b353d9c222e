package shading

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

// Debug parameter slots.
const (
	// DebugShowAO renders the combined occlusion factor as grey when above 0.5.
	DebugShowAO = 0
	// DebugVoxelScale multiplies the voxel lightmap contribution.
	DebugVoxelScale = 1
)

// Params is the immutable per-frame input of the lighting pass.
type Params struct {
	Lights           []light.Light
	ViewPosition     mgl32.Vec3
	AmbientIntensity float32
	AmbientPower     float32
	// Voxel is the published lightmap, nil when disabled or not yet built.
	Voxel          *voxel.Volume
	VoxelIntensity float32
	VoxelLOD       float32
	Debug          [4]float32
}

// SurfaceAt reads pixel (x, y) of the G-buffer. The albedo stays in display gamma.
func SurfaceAt(gb *frame.GBuffer, x, y int) Surface {
	p := gb.Position.At(x, y)
	n := gb.Normal.At(x, y)
	a := gb.Albedo.At(x, y)
	arm := gb.ARM.At(x, y)
	return Surface{
		Position:  p.Vec3(),
		Normal:    n.Vec3(),
		Albedo:    a.Vec3(),
		AO:        arm[0],
		Roughness: arm[1],
		Metallic:  arm[2],
	}
}

// VoxelTerm returns the lightmap modulation at a world position, or (1, 1, 1) when no occupied cell covers it.
func (p Params) VoxelTerm(pos mgl32.Vec3) mgl32.Vec3 {
	if p.Voxel == nil {
		return mgl32.Vec3{1, 1, 1}
	}
	c, ok := p.Voxel.Sample(pos, p.VoxelLOD)
	if !ok || c[3] == 0 {
		return mgl32.Vec3{1, 1, 1}
	}
	return c.Vec3().Mul(p.VoxelIntensity * p.Debug[DebugVoxelScale])
}

// LightingRows shades rows [y0, y1) of the G-buffer into the HDR colour buffer.
// Background pixels are written as (0, 0, 0, 0).
//
// Parameters:
//   - gb: the G-buffer of the current frame
//   - ao: the (blurred) AO buffer
//   - p: lights, ambient and lightmap inputs
//   - dst: HDR colour buffer at G-buffer resolution
//   - y0, y1: half-open row range
func LightingRows(gb *frame.GBuffer, ao *frame.Image1, p Params, dst *frame.Image4, y0, y1 int) {
	w, _ := gb.Size()
	for y := y0; y < y1; y++ {
		for x := range w {
			if gb.IsBackground(x, y) {
				dst.Set(x, y, mgl32.Vec4{})
				continue
			}
			s := SurfaceAt(gb, x, y)
			ssao := ao.At(x, y)
			if p.Debug[DebugShowAO] > 0.5 {
				v := s.AO * ssao
				dst.Set(x, y, mgl32.Vec4{v, v, v, 1})
				continue
			}
			c := Shade(s, p.Lights, p.ViewPosition, Ambient{
				Intensity: p.AmbientIntensity,
				Power:     p.AmbientPower,
				SSAO:      ssao,
				Voxel:     p.VoxelTerm(s.Position),
			})
			dst.Set(x, y, c.Vec4(1))
		}
	}
}
