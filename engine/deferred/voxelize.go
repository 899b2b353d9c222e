package deferred

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

// maxVoxelizeSteps bounds the subdivision of one triangle edge.
const maxVoxelizeSteps = 512

// sceneTri is one world-space triangle and the slice of sample indices it owns.
type sceneTri struct {
	p        [3]mgl32.Vec3
	n        [3]mgl32.Vec3
	uv       [3]mgl32.Vec2
	material material.Material
	steps    int
	first    int
}

func (t *sceneTri) end() int {
	return t.first + t.steps*t.steps
}

type sceneSource struct {
	tris   []sceneTri
	lights []light.Light
	total  int
}

var _ voxel.Source = &sceneSource{}

// NewSceneSource voxelizes the batches themselves rather than what the camera sees. Every triangle
// overlapping the grid box is covered by a barycentric lattice spaced at half a cell, and each lattice
// point is lit with the diffuse term of lights. Off-screen and occluded surfaces are included.
//
// Parameters:
//   - batches: the scene geometry, transformed by each instance
//   - lights: lights used to colour the samples
//   - grid: the voxel grid the samples are scattered into
//
// Returns:
//   - voxel.Source: samples indexed so they can be split across workers
func NewSceneSource(batches []Batch, lights []light.Light, grid voxel.Grid) voxel.Source {
	s := &sceneSource{lights: lights}
	cell := min(grid.Extents[0], grid.Extents[1], grid.Extents[2]) / float32(max(grid.Resolution, 1))
	spacing := max(cell*0.5, 1e-6)
	lo, hi := grid.Min(), grid.Min().Add(grid.Extents)

	for _, batch := range batches {
		if batch.Mesh == nil || batch.Material == nil {
			continue
		}
		verts, idx := batch.Mesh.Vertices(), batch.Mesh.Indices()
		for _, inst := range batch.Instances {
			nm := inst.NormalMatrix()
			for i := 0; i+2 < len(idx); i += 3 {
				var t sceneTri
				for k := range 3 {
					v := verts[idx[i+k]]
					t.p[k] = inst.Model.Mul4x1(v.Position.Vec4(1)).Vec3()
					t.n[k] = nm.Mul3x1(v.Normal)
					t.uv[k] = v.UV
				}
				if !overlapsBox(t.p, lo, hi) {
					continue
				}
				edge := max(t.p[1].Sub(t.p[0]).Len(), t.p[2].Sub(t.p[1]).Len(), t.p[0].Sub(t.p[2]).Len())
				t.steps = min(max(int(math32.Ceil(edge/spacing)), 1), maxVoxelizeSteps)
				t.material = batch.Material
				t.first = s.total
				s.total = t.end()
				s.tris = append(s.tris, t)
			}
		}
	}
	return s
}

func overlapsBox(p [3]mgl32.Vec3, lo, hi mgl32.Vec3) bool {
	for axis := range 3 {
		if min(p[0][axis], p[1][axis], p[2][axis]) > hi[axis] || max(p[0][axis], p[1][axis], p[2][axis]) < lo[axis] {
			return false
		}
	}
	return true
}

func (s *sceneSource) Len() int {
	return s.total
}

// At maps sample i onto a steps x steps lattice of its triangle. Lattice points past the
// hypotenuse hold no sample.
func (s *sceneSource) At(i int) (voxel.Sample, bool) {
	k := sort.Search(len(s.tris), func(k int) bool { return s.tris[k].end() > i })
	if k == len(s.tris) {
		return voxel.Sample{}, false
	}
	t := &s.tris[k]
	j := i - t.first
	a, c := j/t.steps, j%t.steps
	if a+c > t.steps-1 {
		return voxel.Sample{}, false
	}
	u := (float32(a) + 0.5) / float32(t.steps)
	v := (float32(c) + 0.5) / float32(t.steps)
	w := 1 - u - v

	pos := t.p[0].Mul(w).Add(t.p[1].Mul(u)).Add(t.p[2].Mul(v))
	n := t.n[0].Mul(w).Add(t.n[1].Mul(u)).Add(t.n[2].Mul(v))
	uv := t.uv[0].Mul(w).Add(t.uv[1].Mul(u)).Add(t.uv[2].Mul(v))
	albedo, arm, _ := t.material.Sample(uv)

	surf := shading.Surface{
		Position:  pos,
		Normal:    common.SafeNormalize(n, mgl32.Vec3{0, 1, 0}),
		Albedo:    albedo.Vec3(),
		AO:        arm[0],
		Roughness: arm[1],
		Metallic:  arm[2],
	}
	return voxel.Sample{
		Position: pos,
		Color:    voxel.Quantize(shading.Diffuse(surf, s.lights)),
	}, true
}
