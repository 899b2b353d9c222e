package ssao

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
)

const (
	testSize = 63
	// enclosure tests use smaller pixels so few kernel samples land back on the fragment itself
	fineSize = 255
)

var testProj = common.Perspective(mgl32.DegToRad(60), 1, 0.1, 1000)

// depthGBuffer fills every pixel with a camera-facing surface at the view depth returned by depthAt.
// The view matrix is identity, so world and view space coincide.
func depthGBuffer(size int, depthAt func(x, y int) float32) *frame.GBuffer {
	gb := frame.NewGBuffer(size, size)
	for y := range size {
		for x := range size {
			z := depthAt(x, y)
			ndc := frame.UVToNDC(frame.PixelUV(x, y, size, size))
			p := mgl32.Vec3{ndc[0] * -z / testProj[0], ndc[1] * -z / testProj[5], z}
			clip := testProj.Mul4x1(p.Vec4(1))
			gb.Position.Set(x, y, p.Vec4(1))
			gb.Normal.Set(x, y, mgl32.Vec4{0, 0, 1, 0})
			gb.Depth.Set(x, y, clip[2]/clip[3])
		}
	}
	return gb
}

func testParams() Params {
	return Params{Radius: 0.5, Bias: 0.025, View: mgl32.Ident4(), Projection: testProj}
}

func testHBAOParams() HBAOParams {
	return HBAOParams{Directions: 8, Steps: 6, Radius: 0.5, FallOff: 0.5, AngleBias: 0.1, View: mgl32.Ident4(), Projection: testProj}
}

func fixtures(t *testing.T) ([]mgl32.Vec3, []mgl32.Vec3) {
	rng := NewRand(7)
	kernel, err := Kernel(32, rng)
	require.NoError(t, err)
	return kernel, Noise(rng)
}

func TestKernelShape(t *testing.T) {
	for _, n := range []int{32, 64} {
		kernel, err := Kernel(n, NewRand(1))
		require.NoError(t, err)
		require.Len(t, kernel, n)
		for i, k := range kernel {
			ti := float32(i) / float32(n)
			assert.GreaterOrEqual(t, k[2], float32(0))
			assert.LessOrEqual(t, k.Len(), common.Mix(0.1, 1, ti*ti)+1e-5)
		}
	}

	_, err := Kernel(48, NewRand(1))
	assert.Error(t, err)

	a, _ := Kernel(32, NewRand(3))
	b, _ := Kernel(32, NewRand(3))
	assert.Equal(t, a, b, "seeded kernels are reproducible")
}

func TestNoiseTile(t *testing.T) {
	noise := Noise(NewRand(1))
	require.Len(t, noise, NoiseSize*NoiseSize)
	for _, n := range noise {
		assert.Equal(t, float32(0), n[2])
		assert.LessOrEqual(t, n[0], float32(1))
		assert.GreaterOrEqual(t, n[1], float32(-1))
	}
	assert.Equal(t, noiseAt(noise, 1, 2), noiseAt(noise, 5, 6))
}

func TestKernelAOIsolatedPlane(t *testing.T) {
	kernel, noise := fixtures(t)
	gb := depthGBuffer(testSize, func(int, int) float32 { return -5 })
	dst := frame.NewImage1(testSize, testSize)

	KernelAO(gb, kernel, noise, testParams(), dst, 0, testSize)

	for _, v := range dst.Pix {
		assert.InDelta(t, 1, v, 1e-4)
	}
}

func TestKernelAOEnclosed(t *testing.T) {
	kernel, noise := fixtures(t)
	c := fineSize / 2
	gb := depthGBuffer(fineSize, func(x, y int) float32 {
		if x == c && y == c {
			return -5
		}
		return -4.45
	})
	dst := frame.NewImage1(fineSize, fineSize)

	KernelAO(gb, kernel, noise, testParams(), dst, c, c+1)

	assert.Less(t, dst.At(c, c), float32(0.25))
}

func TestKernelAOBackground(t *testing.T) {
	kernel, noise := fixtures(t)
	gb := frame.NewGBuffer(8, 8)
	dst := frame.NewImage1(8, 8)

	KernelAO(gb, kernel, noise, testParams(), dst, 0, 8)

	for _, v := range dst.Pix {
		assert.Equal(t, float32(1), v)
	}
}

func TestKernelAOIgnoresBackgroundSamples(t *testing.T) {
	kernel, noise := fixtures(t)
	c := testSize / 2
	gb := depthGBuffer(testSize, func(int, int) float32 { return -5 })
	// everything but the fragment is background, which must not read as occluding geometry
	for y := range testSize {
		for x := range testSize {
			if x != c || y != c {
				gb.Depth.Set(x, y, frame.BackgroundDepth)
				gb.Position.Set(x, y, mgl32.Vec4{})
			}
		}
	}
	dst := frame.NewImage1(testSize, testSize)

	KernelAO(gb, kernel, noise, testParams(), dst, c, c+1)

	assert.InDelta(t, 1, dst.At(c, c), 1e-4)
}

func TestHBAOIsolatedPlane(t *testing.T) {
	_, noise := fixtures(t)
	gb := depthGBuffer(testSize, func(int, int) float32 { return -5 })
	dst := frame.NewImage1(testSize, testSize)

	HBAO(gb, noise, testHBAOParams(), dst, 0, testSize)

	for _, v := range dst.Pix {
		assert.InDelta(t, 1, v, 1e-4)
	}
}

func TestHBAOEnclosed(t *testing.T) {
	_, noise := fixtures(t)
	c := fineSize / 2
	gb := depthGBuffer(fineSize, func(x, y int) float32 {
		if x == c && y == c {
			return -5
		}
		return -4.7
	})
	dst := frame.NewImage1(fineSize, fineSize)

	HBAO(gb, noise, testHBAOParams(), dst, c, c+1)

	assert.Less(t, dst.At(c, c), float32(0.7))
}

func TestHBAOSubPixelRadius(t *testing.T) {
	_, noise := fixtures(t)
	c := fineSize / 2
	gb := depthGBuffer(fineSize, func(x, y int) float32 {
		if x == c && y == c {
			return -500
		}
		return -499.7
	})
	dst := frame.NewImage1(fineSize, fineSize)

	HBAO(gb, noise, testHBAOParams(), dst, c, c+1)

	assert.Equal(t, float32(1), dst.At(c, c))
}

func TestBoxBlur(t *testing.T) {
	src := frame.NewImage1(10, 10)
	src.Set(5, 5, 1)
	dst := frame.NewImage1(10, 10)

	BoxBlur(src, dst, 4, 0, 10)

	assert.InDelta(t, 1.0/16, dst.At(4, 4), 1e-6)
	assert.InDelta(t, 1.0/16, dst.At(7, 7), 1e-6)
	assert.Equal(t, float32(0), dst.At(3, 5))
	assert.Equal(t, float32(0), dst.At(8, 5))

	var sum float32
	for _, v := range dst.Pix {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-5)

	src.Fill(0.5)
	BoxBlur(src, dst, 4, 0, 10)
	assert.InDelta(t, 0.5, dst.At(0, 0), 1e-6, "clamp-to-edge keeps constant images constant")
	assert.InDelta(t, 0.5, dst.At(9, 9), 1e-6)
}

func TestUnoccluded(t *testing.T) {
	dst := frame.NewImage1(4, 4)
	Unoccluded(dst, 1, 3)
	assert.Equal(t, float32(0), dst.At(0, 0))
	assert.Equal(t, float32(1), dst.At(2, 1))
	assert.Equal(t, float32(1), dst.At(3, 2))
	assert.Equal(t, float32(0), dst.At(3, 3))
}

func TestGPUParamsLayout(t *testing.T) {
	kernel, noise := fixtures(t)
	g := NewGPUParams(kernel, noise, testParams(), testHBAOParams())

	assert.Equal(t, 1328, g.Size())
	assert.Len(t, g.Marshal(), 1328)
	assert.Equal(t, uint32(32), g.KernelSize)
	assert.Equal(t, kernel[3][1], g.Kernel[3][1])
	assert.Contains(t, GPUParamsSource, "struct SSAOParams")
}
