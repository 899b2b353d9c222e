package ssao

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
)

// KernelAO writes hemisphere-kernel occlusion for rows [y0, y1) into dst. 1 means unoccluded.
//
// For each fragment a TBN basis is built from the view-space normal and the tiled rotation
// vector. Every kernel sample is placed at frag + TBN*sample*Radius, projected, and compared
// against the view depth stored at that pixel. A sample counts as occluded when the stored
// depth is at least sample.z + Bias, weighted by smoothstep(0, 1, Radius/|frag.z - depth|).
// Samples landing off screen or on background contribute nothing, and background fragments
// output 1.
//
// Parameters:
//   - gb: the G-buffer of the current frame
//   - kernel: samples from Kernel
//   - noise: rotation vectors from Noise
//   - p: radius, bias and camera matrices
//   - dst: AO buffer at G-buffer resolution
//   - y0, y1: half-open row range
func KernelAO(gb *frame.GBuffer, kernel, noise []mgl32.Vec3, p Params, dst *frame.Image1, y0, y1 int) {
	w, h := gb.Size()
	n := float32(len(kernel))
	for y := y0; y < y1; y++ {
		for x := range w {
			if gb.IsBackground(x, y) {
				dst.Set(x, y, 1)
				continue
			}
			frag, normal := viewSample(gb, p.View, x, y)
			tbn := basis(normal, noiseAt(noise, x, y))

			var occlusion float32
			for _, k := range kernel {
				s := frag.Add(tbn.Mul3x1(k).Mul(p.Radius))
				sx, sy, ok := project(p.Projection, s, w, h)
				if !ok || gb.IsBackground(sx, sy) {
					continue
				}
				depth, _ := viewSample(gb, p.View, sx, sy)
				if depth[2] >= s[2]+p.Bias {
					occlusion += common.Smoothstep(0, 1, p.Radius/math32.Abs(frag[2]-depth[2]))
				}
			}
			dst.Set(x, y, 1-occlusion/n)
		}
	}
}

// basis builds the tangent frame whose z axis is n, with the tangent taken from the rotation vector.
func basis(n, rotation mgl32.Vec3) mgl32.Mat3 {
	t := rotation.Sub(n.Mul(rotation.Dot(n)))
	if t.Len() < 1e-4 {
		// rotation parallel to the normal; any perpendicular axis works
		t = mgl32.Vec3{1, 0, 0}
		if math32.Abs(n[0]) > 0.9 {
			t = mgl32.Vec3{0, 1, 0}
		}
		t = t.Sub(n.Mul(t.Dot(n)))
	}
	t = t.Normalize()
	b := n.Cross(t)
	return mgl32.Mat3FromCols(t, b, n)
}
