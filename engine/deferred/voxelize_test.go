package deferred

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

func TestSceneSourceCoversInstancedTriangles(t *testing.T) {
	grid := voxel.NewGrid(16, mgl32.Vec3{}, mgl32.Vec3{4, 4, 4})
	lights := []light.Light{{Position: mgl32.Vec3{1, 2, 0}, Color: mgl32.Vec3{1, 1, 1}}}
	batches := []Batch{{
		Mesh:     model.Plane(1),
		Material: material.NewMaterial(),
		Instances: []model.Instance{
			model.NewInstance(mgl32.Vec3{1, 0, 0}, 0, 1),
			// entirely outside the box
			model.NewInstance(mgl32.Vec3{10, 0, 0}, 0, 1),
		},
	}, {Mesh: model.Plane(1)}}

	src := NewSceneSource(batches, lights, grid)
	require.Positive(t, src.Len())

	acc := voxel.NewAccumulator(grid)
	present := 0
	for i := range src.Len() {
		s, ok := src.At(i)
		if !ok {
			continue
		}
		present++
		assert.InDelta(t, 0, s.Position[1], 1e-5)
		assert.True(t, s.Position[0] > 0.5 && s.Position[0] < 1.5, "x=%v lies on the translated plane", s.Position[0])
		assert.True(t, s.Position[2] > -0.5 && s.Position[2] < 0.5)
		assert.Equal(t, s.Color[0], s.Color[1])
		assert.Positive(t, s.Color[0])
		require.True(t, acc.Scatter(s.Position, s.Color))
	}
	assert.Greater(t, present, src.Len()/2-1, "about half of each lattice lies inside its triangle")
	assert.Zero(t, acc.Dropped())

	// every cell under the 1x1 plane is hit
	assert.Equal(t, 16, acc.Occupied())
}

func TestSceneSourceIgnoresCamera(t *testing.T) {
	grid := voxel.NewGrid(8, mgl32.Vec3{}, mgl32.Vec3{4, 4, 4})
	in := FrameInputs{Batches: []Batch{{
		Mesh:      model.Cube(),
		Material:  material.NewMaterial(),
		Instances: []model.Instance{model.IdentityInstance()},
	}}}
	a := NewSceneSource(in.Batches, nil, grid)

	in.Camera.View = mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 1, 0})
	b := NewSceneSource(in.Batches, nil, grid)
	assert.Equal(t, a.Len(), b.Len())
}
