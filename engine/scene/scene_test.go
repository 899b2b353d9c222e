package scene

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

type rebuildCounter struct{ n int }

func (r *rebuildCounter) RequestVoxelRebuild() { r.n++ }

func TestDemoScene(t *testing.T) {
	cfg := config.Default()
	s := Demo(cfg, 16.0/9.0)

	batches := s.Batches()
	require.Len(t, batches, 5, "plane, three cubes and a sphere")
	assert.Equal(t, "plane", batches[0].Mesh.Name())
	assert.Equal(t, "checker", batches[0].Material.Name())
	assert.Equal(t, 1, s.Lights().Len())

	lo := mgl32.Vec3(cfg.Voxel.Center).Sub(mgl32.Vec3(cfg.Voxel.Extents).Mul(0.5))
	hi := mgl32.Vec3(cfg.Voxel.Center).Add(mgl32.Vec3(cfg.Voxel.Extents).Mul(0.5))
	for _, b := range batches[1:] {
		for _, inst := range b.Instances {
			p := inst.Model.Col(3).Vec3()
			for i := range 3 {
				assert.True(t, p[i] >= lo[i] && p[i] <= hi[i], "%s placed outside the voxel box", b.Mesh.Name())
			}
		}
	}
}

func TestTickOrbitsLights(t *testing.T) {
	s := NewScene(
		WithLights(light.NewLight(light.WithPosition(1, 2, 0))),
		WithOrbit(90),
	)
	v := s.Version()

	s.Tick(time.Second)
	l := s.Lights().All()[0]
	assert.InDelta(t, 0, l.Position.X(), 1e-5)
	assert.InDelta(t, 2, l.Position.Y(), 1e-5)
	assert.InDelta(t, 1, mgl32.Abs(l.Position.Z()), 1e-5)
	assert.Greater(t, s.Version(), v)

	assert.True(t, s.ToggleOrbit())
	v = s.Version()
	s.Tick(time.Second)
	assert.Equal(t, v, s.Version(), "paused orbit leaves the lights alone")
}

func TestSyncRequestsRebuildOnChange(t *testing.T) {
	s := NewScene()
	r := &rebuildCounter{}

	id := s.AddBatch(model.Cube(), material.NewMaterial(), model.NewInstance(mgl32.Vec3{}, 0, 1))
	assert.True(t, s.Sync(r))
	assert.False(t, s.Sync(r), "no change since the last sync")

	require.True(t, s.SetInstances(id, model.NewInstance(mgl32.Vec3{1, 0, 0}, 0, 1)))
	assert.True(t, s.Sync(r))
	assert.Equal(t, 2, r.n)

	assert.False(t, s.SetInstances(BatchID(7)))
}

func TestBatchesAreCopies(t *testing.T) {
	s := NewScene()
	s.AddBatch(model.Cube(), material.NewMaterial(), model.NewInstance(mgl32.Vec3{}, 0, 1))

	b := s.Batches()
	b[0].Instances[0] = model.NewInstance(mgl32.Vec3{5, 5, 5}, 0, 1)
	assert.Equal(t, mgl32.Vec3{}, s.Batches()[0].Instances[0].Model.Col(3).Vec3())

	in := s.Inputs([4]float32{1, 2, 3, 4})
	assert.Equal(t, [4]float32{1, 2, 3, 4}, in.Debug)
	assert.Len(t, in.Batches, 1)
}
