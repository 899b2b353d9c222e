package raster

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

const size = 64

func viewProj(eye, target mgl32.Vec3) mgl32.Mat4 {
	view := mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
	return common.Perspective(mgl32.DegToRad(60), 1, 0.1, 100).Mul4(view)
}

func draw(t *testing.T, vp mgl32.Mat4, mesh *model.Mesh, instances []model.Instance, opts ...RasterizerBuilderOption) (*frame.GBuffer, Stats) {
	t.Helper()
	gb := frame.NewGBuffer(size, size)
	r := NewRasterizer(opts...)
	r.Begin(gb, vp)
	r.Submit(mesh, material.NewMaterial(), instances)
	r.DrawRows(0, size)
	return gb, r.Stats()
}

func identity() []model.Instance {
	return []model.Instance{{Model: mgl32.Ident4()}}
}

func TestQuadFacingCamera(t *testing.T) {
	gb, stats := draw(t, viewProj(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{}), model.Quad(), identity())

	assert.Equal(t, 2, stats.Triangles)
	assert.Equal(t, 0, stats.BackFaces)

	c := size / 2
	require.False(t, gb.IsBackground(c, c))
	pos := gb.Position.At(c, c)
	assert.InDelta(t, 0, pos[0], 0.05)
	assert.InDelta(t, 0, pos[2], 1e-4)
	assert.Equal(t, float32(1), pos[3])
	n := gb.Normal.At(c, c)
	// the flat normal map encodes 128/255, a hair off exact zero
	assert.InDeltaSlice(t, []float32{0, 0, 1}, n[:3], 1e-2)
	albedo := gb.Albedo.At(c, c)
	assert.InDeltaSlice(t, []float32{1, 1, 1, 1}, albedo[:], 1e-6)
	arm := gb.ARM.At(c, c)
	assert.InDelta(t, 0.5, arm[1], 1e-6)

	assert.True(t, gb.IsBackground(0, 0))
	assert.True(t, gb.IsBackground(size-1, size-1))
}

func TestBackFaceCulling(t *testing.T) {
	flipped := []model.Instance{model.NewInstance(mgl32.Vec3{}, mgl32.DegToRad(180), 1)}
	vp := viewProj(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{})

	gb, stats := draw(t, vp, model.Quad(), flipped)
	assert.Equal(t, 2, stats.BackFaces)
	assert.True(t, gb.IsBackground(size/2, size/2))

	gb, _ = draw(t, vp, model.Quad(), flipped, WithBackFaceCulling(false))
	assert.False(t, gb.IsBackground(size/2, size/2))
}

func TestWindingDecidesFacing(t *testing.T) {
	tri := func(idx []uint32) *model.Mesh {
		v := []model.Vertex{
			{Position: mgl32.Vec3{-0.5, -0.5, 0}, Normal: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{0.5, -0.5, 0}, Normal: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{0, 0.5, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		}
		return model.NewMesh("tri", v, idx)
	}
	vp := viewProj(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{})

	gb, stats := draw(t, vp, tri([]uint32{0, 1, 2}), identity())
	assert.Equal(t, 1, stats.Triangles)
	assert.Equal(t, 0, stats.BackFaces, "counter-clockwise toward the camera is a front face")
	assert.False(t, gb.IsBackground(size/2, size/2))

	gb, stats = draw(t, vp, tri([]uint32{0, 2, 1}), identity())
	assert.Equal(t, 1, stats.BackFaces)
	assert.True(t, gb.IsBackground(size/2, size/2))
}

func TestFrustumCulling(t *testing.T) {
	behind := []model.Instance{model.NewInstance(mgl32.Vec3{0, 0, 10}, 0, 1)}
	_, stats := draw(t, viewProj(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{}), model.Cube(), behind)
	assert.Equal(t, 1, stats.CulledInstances)
	assert.Equal(t, 0, stats.Triangles)
}

func TestDepthTestKeepsNearest(t *testing.T) {
	instances := []model.Instance{
		model.NewInstance(mgl32.Vec3{0, 0, -1}, 0, 1),
		model.NewInstance(mgl32.Vec3{0, 0, 0.5}, 0, 1),
	}
	gb, _ := draw(t, viewProj(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{}), model.Quad(), instances)
	assert.InDelta(t, 0.5, gb.Position.At(size/2, size/2)[2], 1e-4)
}

func TestNearPlaneClippingAndPerspectiveCorrectness(t *testing.T) {
	// a large ground plane passes under and behind the camera
	vp := viewProj(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, -0.3, -1})
	ground := []model.Instance{model.NewInstance(mgl32.Vec3{0, -1, 0}, 0, 1)}
	gb, stats := draw(t, vp, model.Plane(100), ground)

	assert.Positive(t, stats.Clipped)
	require.False(t, gb.IsBackground(size/2, size-1), "the plane covers the bottom row")

	inv := vp.Inv()
	drawn := 0
	for y := range size {
		for x := range size {
			if gb.IsBackground(x, y) {
				continue
			}
			drawn++
			pos := gb.Position.At(x, y)
			assert.InDelta(t, -1, pos[1], 1e-3)

			// the interpolated position must agree with the one reconstructed from depth
			ndc := frame.UVToNDC(frame.PixelUV(x, y, size, size))
			w := inv.Mul4x1(mgl32.Vec4{ndc[0], ndc[1], gb.Depth.At(x, y), 1})
			world := w.Vec3().Mul(1 / w[3])
			dist := world.Sub(pos.Vec3()).Len()
			assert.Less(t, dist, 0.02*(1+pos.Vec3().Len()))
		}
	}
	assert.Greater(t, drawn, size*size/4)
}

func TestBandsMatchSinglePass(t *testing.T) {
	vp := viewProj(mgl32.Vec3{1.5, 1.2, 2.5}, mgl32.Vec3{})
	instances := []model.Instance{model.NewInstance(mgl32.Vec3{}, 0.4, 1)}

	whole, _ := draw(t, vp, model.UVSphere(16, 12), instances)

	banded := frame.NewGBuffer(size, size)
	r := NewRasterizer()
	r.Begin(banded, vp)
	r.Submit(model.UVSphere(16, 12), material.NewMaterial(), instances)
	for _, b := range common.Bands(size, 7) {
		r.DrawRows(b[0], b[1])
	}

	assert.Equal(t, whole.Depth.Pix, banded.Depth.Pix)
	assert.Equal(t, whole.Normal.Pix, banded.Normal.Pix)
}

func TestPerturbNormal(t *testing.T) {
	n := mgl32.Vec3{0, 1, 0}
	tangent := mgl32.Vec3{1, 0.2, 0}

	assert.Equal(t, n, perturbNormal(n, tangent, 1, mgl32.Vec3{1, 0, 0}, 0))

	flat := perturbNormal(n, tangent, 1, mgl32.Vec3{0, 0, 1}, 1)
	assert.InDeltaSlice(t, n[:], flat[:], 1e-6)

	along := perturbNormal(n, tangent, 1, mgl32.Vec3{1, 0, 0}, 1)
	assert.InDeltaSlice(t, []float32{1, 0, 0}, along[:], 1e-6, "tangent is orthogonalized against n")

	bit := perturbNormal(n, tangent, -1, mgl32.Vec3{0, 1, 0}, 1)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, bit[:], 1e-6, "handedness flips cross(n, t)")

	half := perturbNormal(n, tangent, 1, mgl32.Vec3{1, 0, 0}, 0.5)
	assert.InDelta(t, 1, half.Len(), 1e-6)
	assert.InDelta(t, half[0], half[1], 1e-6)
}

func TestClipNear(t *testing.T) {
	v := func(z float32) clipVertex { return clipVertex{clip: mgl32.Vec4{0, 0, z, 1}} }
	assert.Nil(t, clipNear([3]clipVertex{v(-1), v(-2), v(-0.5)}))
	assert.Len(t, clipNear([3]clipVertex{v(1), v(2), v(0.5)}), 1)
	assert.Len(t, clipNear([3]clipVertex{v(1), v(-1), v(-1)}), 1)
	two := clipNear([3]clipVertex{v(1), v(1), v(-1)})
	require.Len(t, two, 2)
	for _, tri := range two {
		for _, p := range tri {
			assert.GreaterOrEqual(t, p.clip[2], float32(0))
		}
	}
}
