package model

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertOrthonormalFrames(t *testing.T, m *Mesh) {
	t.Helper()
	for i, v := range m.Vertices() {
		tan := v.Tangent.Vec3()
		assert.InDelta(t, 1, tan.Len(), 1e-4, "vertex %d tangent length", i)
		assert.InDelta(t, 0, tan.Dot(v.Normal), 1e-4, "vertex %d tangent not perpendicular", i)
		assert.Contains(t, []float32{-1, 1}, v.Tangent.W())
	}
}

func TestQuad(t *testing.T) {
	q := Quad()
	require.Equal(t, 2, q.TriangleCount())
	assertOrthonormalFrames(t, q)

	v := q.Vertices()[0]
	assert.True(t, v.Tangent.Vec3().ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-5))

	c, r := q.Bounds()
	assert.True(t, c.ApproxEqual(mgl32.Vec3{}))
	assert.InDelta(t, 0.7071, r, 1e-3)
}

func TestCubeAndSphereFrames(t *testing.T) {
	cube := Cube()
	assert.Equal(t, 12, cube.TriangleCount())
	assertOrthonormalFrames(t, cube)

	s := UVSphere(8, 12)
	assert.Equal(t, 8*12*2, s.TriangleCount())
	for _, v := range s.Vertices() {
		assert.InDelta(t, 1, v.Position.Len(), 1e-5)
	}
	assertOrthonormalFrames(t, s)
}

func TestCubeWindingFacesOutward(t *testing.T) {
	cube := Cube()
	verts, idx := cube.Vertices(), cube.Indices()
	for i := 0; i < len(idx); i += 3 {
		a, b, c := verts[idx[i]], verts[idx[i+1]], verts[idx[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		assert.Greater(t, n.Dot(a.Normal), float32(0), "triangle %d", i/3)
	}
}

func TestMeshKeysAreUnique(t *testing.T) {
	assert.NotEqual(t, Quad().Key(), Quad().Key())
}

func TestInstanceNormalMatrix(t *testing.T) {
	inst := Instance{Model: mgl32.Scale3D(2, 1, 1)}
	n := inst.NormalMatrix().Mul3x1(mgl32.Vec3{1, 1, 0})
	assert.InDelta(t, 0.5, n.X(), 1e-6)
	assert.InDelta(t, 1, n.Y(), 1e-6)
}

func TestMarshal(t *testing.T) {
	q := Quad()
	assert.Len(t, MarshalVertices(q), 4*48)
	assert.Len(t, MarshalIndices(q), 6*4)
	assert.Len(t, MarshalInstances([]Instance{IdentityInstance(), NewInstance(mgl32.Vec3{1, 0, 0}, 0, 1)}), 256)

	var v GPUVertex
	assert.Equal(t, 48, v.Size())
}
