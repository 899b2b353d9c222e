// Package raster is the CPU geometry pass: it transforms instanced meshes, clips them against the
// near plane and rasterizes perspective-correct surface attributes into a G-buffer.
package raster

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// Stats counts the work of one frame.
type Stats struct {
	Instances       int
	CulledInstances int
	Triangles       int
	BackFaces       int
	Clipped         int
}

// screenTri is a triangle ready for rasterization.
type screenTri struct {
	x, y, z  [3]float32 // pixel coordinates and NDC depth
	invW     [3]float32
	attr     [3][varyings]float32 // attributes premultiplied by 1/w
	area     float32
	minX     int
	maxX     int
	minY     int
	maxY     int
	material material.Material
}

type rasterizerImpl struct {
	mu *sync.Mutex

	gb             *frame.GBuffer
	viewProj       mgl32.Mat4
	frustum        common.Frustum
	normalStrength float32
	cullBackFaces  bool

	tris  []screenTri
	stats Stats
}

// Rasterizer writes world-space surface attributes into a G-buffer.
// Submit prepares triangles and is serialized internally; DrawRows may then be called
// concurrently for disjoint row ranges.
type Rasterizer interface {
	// Begin starts a frame against gb with the given camera.
	//
	// Parameters:
	//   - gb: target G-buffer, cleared by the caller
	//   - viewProj: projection * view with WebGPU depth range
	Begin(gb *frame.GBuffer, viewProj mgl32.Mat4)

	// Submit transforms, culls and clips every instance of a mesh.
	//
	// Parameters:
	//   - mesh: the mesh
	//   - mat: the material sampled per fragment
	//   - instances: model matrices
	Submit(mesh *model.Mesh, mat material.Material, instances []model.Instance)

	// DrawRows rasterizes every submitted triangle into rows [y0, y1) of the G-buffer.
	//
	// Parameters:
	//   - y0, y1: half-open row range
	DrawRows(y0, y1 int)

	// SetNormalStrength changes the normal map blend factor for subsequent frames.
	SetNormalStrength(strength float32)

	// Stats returns the counters of the current frame.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats
}

var _ Rasterizer = &rasterizerImpl{}

// NewRasterizer creates a Rasterizer.
//
// Parameters:
//   - options: functional options to configure the rasterizer
//
// Returns:
//   - Rasterizer: the new rasterizer
func NewRasterizer(options ...RasterizerBuilderOption) Rasterizer {
	r := &rasterizerImpl{
		mu:             &sync.Mutex{},
		normalStrength: 1,
		cullBackFaces:  true,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *rasterizerImpl) Begin(gb *frame.GBuffer, viewProj mgl32.Mat4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gb = gb
	r.viewProj = viewProj
	r.frustum = common.ExtractFrustum(viewProj)
	r.tris = r.tris[:0]
	r.stats = Stats{}
}

func (r *rasterizerImpl) SetNormalStrength(strength float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalStrength = strength
}

func (r *rasterizerImpl) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *rasterizerImpl) Submit(mesh *model.Mesh, mat material.Material, instances []model.Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	center, radius := mesh.Bounds()
	verts := mesh.Vertices()
	idx := mesh.Indices()
	w, h := r.gb.Size()

	for _, inst := range instances {
		r.stats.Instances++
		worldCenter := inst.Model.Mul4x1(center.Vec4(1)).Vec3()
		if !r.frustum.IntersectsSphere(worldCenter, radius*common.MaxScale(inst.Model)) {
			r.stats.CulledInstances++
			continue
		}
		mvp := r.viewProj.Mul4(inst.Model)
		nm := inst.NormalMatrix()
		m3 := inst.Model.Mat3()

		transformed := make([]clipVertex, len(verts))
		for i, v := range verts {
			world := inst.Model.Mul4x1(v.Position.Vec4(1))
			n := nm.Mul3x1(v.Normal)
			t := m3.Mul3x1(v.Tangent.Vec3())
			transformed[i] = clipVertex{
				clip: mvp.Mul4x1(v.Position.Vec4(1)),
				attr: [varyings]float32{
					world[0], world[1], world[2],
					v.UV[0], v.UV[1],
					n[0], n[1], n[2],
					t[0], t[1], t[2], v.Tangent[3],
				},
			}
		}

		for i := 0; i+2 < len(idx); i += 3 {
			r.stats.Triangles++
			tri := [3]clipVertex{transformed[idx[i]], transformed[idx[i+1]], transformed[idx[i+2]]}
			pieces := clipNear(tri)
			if len(pieces) != 1 || pieces[0] != tri {
				r.stats.Clipped++
			}
			for _, p := range pieces {
				st, ok := r.setup(p, w, h)
				if !ok {
					continue
				}
				st.material = mat
				r.tris = append(r.tris, st)
			}
		}
	}
}

// setup projects a clipped triangle to pixel space. Returns false for back faces, degenerate
// triangles and triangles fully outside the viewport.
func (r *rasterizerImpl) setup(tri [3]clipVertex, w, h int) (screenTri, bool) {
	var st screenTri
	for i, v := range tri {
		if v.clip[3] <= 0 {
			return st, false
		}
		inv := 1 / v.clip[3]
		ndc := mgl32.Vec3{v.clip[0] * inv, v.clip[1] * inv, v.clip[2] * inv}
		uv := frame.NDCToUV(ndc.Vec2())
		st.x[i] = uv[0] * float32(w)
		st.y[i] = uv[1] * float32(h)
		st.z[i] = ndc[2]
		st.invW[i] = inv
		for a := range varyings {
			st.attr[i][a] = v.attr[a] * inv
		}
	}

	// counter-clockwise in NDC gives a positive area here with pixel y pointing down
	st.area = edge(st.x[0], st.y[0], st.x[1], st.y[1], st.x[2], st.y[2])
	if st.area == 0 {
		return st, false
	}
	if r.cullBackFaces && st.area < 0 {
		r.stats.BackFaces++
		return st, false
	}

	st.minX = max(int(math32.Floor(min(st.x[0], st.x[1], st.x[2]))), 0)
	st.maxX = min(int(math32.Ceil(max(st.x[0], st.x[1], st.x[2]))), w-1)
	st.minY = max(int(math32.Floor(min(st.y[0], st.y[1], st.y[2]))), 0)
	st.maxY = min(int(math32.Ceil(max(st.y[0], st.y[1], st.y[2]))), h-1)
	if st.minX > st.maxX || st.minY > st.maxY {
		return st, false
	}
	return st, true
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (px-ax)*(by-ay) - (py-ay)*(bx-ax)
}

func (r *rasterizerImpl) DrawRows(y0, y1 int) {
	for ti := range r.tris {
		t := &r.tris[ti]
		lo, hi := max(y0, t.minY), min(y1-1, t.maxY)
		for y := lo; y <= hi; y++ {
			py := float32(y) + 0.5
			for x := t.minX; x <= t.maxX; x++ {
				px := float32(x) + 0.5
				b0 := edge(t.x[1], t.y[1], t.x[2], t.y[2], px, py) / t.area
				b1 := edge(t.x[2], t.y[2], t.x[0], t.y[0], px, py) / t.area
				b2 := 1 - b0 - b1
				if b0 < 0 || b1 < 0 || b2 < 0 {
					continue
				}
				depth := b0*t.z[0] + b1*t.z[1] + b2*t.z[2]
				if depth < 0 || depth >= r.gb.Depth.At(x, y) {
					continue
				}
				r.shade(t, x, y, depth, b0, b1, b2)
			}
		}
	}
}

// shade interpolates the attributes perspective-correctly and writes one G-buffer texel.
func (r *rasterizerImpl) shade(t *screenTri, x, y int, depth, b0, b1, b2 float32) {
	invW := b0*t.invW[0] + b1*t.invW[1] + b2*t.invW[2]
	var a [varyings]float32
	for i := range varyings {
		a[i] = (b0*t.attr[0][i] + b1*t.attr[1][i] + b2*t.attr[2][i]) / invW
	}
	pos := mgl32.Vec3{a[0], a[1], a[2]}
	uv := mgl32.Vec2{a[3], a[4]}
	n := common.SafeNormalize(mgl32.Vec3{a[5], a[6], a[7]}, mgl32.Vec3{0, 1, 0})
	tangent := mgl32.Vec3{a[8], a[9], a[10]}
	handedness := float32(1)
	if a[11] < 0 {
		handedness = -1
	}

	albedo, arm, tn := t.material.Sample(uv)
	normal := perturbNormal(n, tangent, handedness, tn, r.normalStrength)

	r.gb.Position.Set(x, y, pos.Vec4(1))
	r.gb.Normal.Set(x, y, normal.Vec4(0))
	r.gb.Albedo.Set(x, y, albedo)
	r.gb.ARM.Set(x, y, arm.Vec4(1))
	r.gb.Depth.Set(x, y, depth)
}

// perturbNormal maps a tangent-space normal into world space and blends it with the vertex normal.
// The tangent is re-orthogonalized against n (Gram-Schmidt) and the bitangent is cross(n, t) * handedness.
// A strength of 0 returns n unchanged.
func perturbNormal(n, tangent mgl32.Vec3, handedness float32, tn mgl32.Vec3, strength float32) mgl32.Vec3 {
	t := tangent.Sub(n.Mul(n.Dot(tangent)))
	if t.Len() < 1e-6 {
		return n
	}
	t = t.Normalize()
	b := n.Cross(t).Mul(handedness)
	mapped := t.Mul(tn[0]).Add(b.Mul(tn[1])).Add(n.Mul(tn[2]))
	mapped = common.SafeNormalize(mapped, n)
	return common.SafeNormalize(common.MixVec3(n, mapped, strength), n)
}
