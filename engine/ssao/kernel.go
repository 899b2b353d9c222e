// Package ssao computes the single-channel ambient occlusion buffer from the G-buffer.
// Two formulations are provided, a hemisphere sample kernel and horizon-based marching, plus the
// box blur that removes the noise pattern left by the per-pixel kernel rotation.
package ssao

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
)

// NoiseSize is the edge length of the tiled rotation-noise pattern.
const NoiseSize = 4

// Params holds the per-frame inputs of both formulations.
type Params struct {
	Radius     float32
	Bias       float32
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// Kernel generates n tangent-space hemisphere samples (z >= 0, length <= 1).
// Samples are scaled by lerp(0.1, 1, (i/n)^2) so more of them fall close to the fragment.
//
// Parameters:
//   - n: sample count, 32 or 64
//   - rng: random source; a fixed seed gives a reproducible kernel
//
// Returns:
//   - []mgl32.Vec3: the kernel
//   - error: error if n is not a supported size
func Kernel(n int, rng *rand.Rand) ([]mgl32.Vec3, error) {
	if n != 32 && n != 64 {
		return nil, fmt.Errorf("unsupported ssao kernel size %d", n)
	}
	kernel := make([]mgl32.Vec3, n)
	for i := range kernel {
		s := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32(),
		}
		s = common.SafeNormalize(s, mgl32.Vec3{0, 0, 1}).Mul(rng.Float32())
		t := float32(i) / float32(n)
		kernel[i] = s.Mul(common.Mix(0.1, 1, t*t))
	}
	return kernel, nil
}

// Noise generates the NoiseSize x NoiseSize rotation vectors (x, y, 0) tiled across the screen.
func Noise(rng *rand.Rand) []mgl32.Vec3 {
	noise := make([]mgl32.Vec3, NoiseSize*NoiseSize)
	for i := range noise {
		noise[i] = mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, 0}
	}
	return noise
}

// NewRand returns the deterministic generator used for kernels and noise.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func noiseAt(noise []mgl32.Vec3, x, y int) mgl32.Vec3 {
	return noise[(y%NoiseSize)*NoiseSize+x%NoiseSize]
}

// viewSample returns the view-space position and normal of pixel (x, y).
func viewSample(gb *frame.GBuffer, view mgl32.Mat4, x, y int) (mgl32.Vec3, mgl32.Vec3) {
	p := gb.Position.At(x, y)
	n := gb.Normal.At(x, y)
	vp := view.Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1}).Vec3()
	vn := view.Mul4x1(mgl32.Vec4{n[0], n[1], n[2], 0}).Vec3()
	return vp, common.SafeNormalize(vn, mgl32.Vec3{0, 0, 1})
}

// project maps a view-space point to the pixel containing it.
func project(proj mgl32.Mat4, p mgl32.Vec3, width, height int) (int, int, bool) {
	clip := proj.Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return 0, 0, false
	}
	uv := frame.NDCToUV(mgl32.Vec2{clip[0] / clip[3], clip[1] / clip[3]})
	x, y := frame.UVToPixel(uv, width, height)
	if x < 0 || y < 0 || x >= width || y >= height {
		return 0, 0, false
	}
	return x, y, true
}

// Unoccluded fills rows [y0, y1) of dst with 1. Used when occlusion is switched off.
func Unoccluded(dst *frame.Image1, y0, y1 int) {
	for i := y0 * dst.Width; i < y1*dst.Width; i++ {
		dst.Pix[i] = 1
	}
}
