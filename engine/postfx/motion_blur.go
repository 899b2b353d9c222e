// Package postfx holds the post-lighting passes: temporal motion blur by previous-frame
// reprojection and the tone map that produces the presented image.
package postfx

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
)

// Velocity reprojects the surface seen at uv into the previous frame and returns the
// screen-space motion (current - previous) * scale as a texture-coordinate offset.
//
// Parameters:
//   - uv: texture coordinate of the pixel
//   - depth: NDC depth stored for the pixel
//   - m: camera matrices of the frame, including the previous view and projection
//   - scale: blur distance scale
//
// Returns:
//   - mgl32.Vec2: per-tap offset in texture space
//   - bool: false for background pixels, which must not be reprojected
func Velocity(uv mgl32.Vec2, depth float32, m camera.Matrices, scale float32) (mgl32.Vec2, bool) {
	if depth >= frame.BackgroundDepth {
		return mgl32.Vec2{}, false
	}
	ndc := frame.UVToNDC(uv)
	view := m.InverseProjection.Mul4x1(mgl32.Vec4{ndc[0], ndc[1], depth, 1})
	if view[3] == 0 {
		return mgl32.Vec2{}, false
	}
	view = view.Mul(1 / view[3])
	world := m.InverseView.Mul4x1(view)

	prev := m.PrevViewProjection().Mul4x1(world)
	if prev[3] <= 0 {
		// behind the previous camera; no meaningful motion
		return mgl32.Vec2{}, true
	}
	prevNDC := mgl32.Vec2{prev[0] / prev[3], prev[1] / prev[3]}
	d := ndc.Sub(prevNDC).Mul(scale)
	// NDC y points up, texture v points down
	return mgl32.Vec2{d[0] * 0.5, -d[1] * 0.5}, true
}

// MotionBlurRows blurs rows [y0, y1) of src along each pixel's velocity into dst.
// Each output is the mean of taps samples starting at the pixel and stepping by the velocity,
// clamped to the image edge. Background pixels are written as opaque black.
func MotionBlurRows(src *frame.Image4, depth *frame.Image1, m camera.Matrices, taps int, scale float32, dst *frame.Image4, y0, y1 int) {
	if taps < 1 {
		taps = 1
	}
	inv := 1 / float32(taps)
	for y := y0; y < y1; y++ {
		for x := range src.Width {
			uv := frame.PixelUV(x, y, src.Width, src.Height)
			vel, ok := Velocity(uv, depth.At(x, y), m, scale)
			if !ok {
				dst.Set(x, y, mgl32.Vec4{0, 0, 0, 1})
				continue
			}
			var sum mgl32.Vec4
			for i := range taps {
				sum = sum.Add(src.Nearest(uv.Add(vel.Mul(float32(i)))))
			}
			c := sum.Mul(inv)
			c[3] = 1
			dst.Set(x, y, c)
		}
	}
}
