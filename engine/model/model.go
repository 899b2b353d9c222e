// Package model holds the mesh and instance data the scene collaborator hands to the geometry pass.
package model

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// meshCount is an atomic counter used to give every mesh a unique key for GPU buffer caching.
var meshCount atomic.Uint64

// Vertex is one mesh vertex in model space.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
	Normal   mgl32.Vec3
	// Tangent holds the tangent direction in xyz and the bitangent handedness (+1 or -1) in w.
	Tangent mgl32.Vec4
}

// Mesh is an indexed triangle list. Winding is counter-clockwise for front faces.
type Mesh struct {
	name     string
	key      uint64
	vertices []Vertex
	indices  []uint32
	center   mgl32.Vec3
	radius   float32
}

// NewMesh creates a mesh from vertices and triangle indices and computes its bounding sphere.
//
// Parameters:
//   - name: debug label
//   - vertices: model-space vertices
//   - indices: triangle list, three indices per triangle
//
// Returns:
//   - *Mesh: the new mesh
func NewMesh(name string, vertices []Vertex, indices []uint32) *Mesh {
	m := &Mesh{
		name:     name,
		key:      meshCount.Add(1),
		vertices: vertices,
		indices:  indices,
	}
	m.computeBounds()
	return m
}

// Name returns the debug label.
func (m *Mesh) Name() string { return m.name }

// Key returns a process-unique identifier for caching GPU buffers.
func (m *Mesh) Key() uint64 { return m.key }

// Vertices returns the vertex slice. Callers must not modify it.
func (m *Mesh) Vertices() []Vertex { return m.vertices }

// Indices returns the index slice. Callers must not modify it.
func (m *Mesh) Indices() []uint32 { return m.indices }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.indices) / 3 }

// Bounds returns the model-space bounding sphere.
func (m *Mesh) Bounds() (center mgl32.Vec3, radius float32) {
	return m.center, m.radius
}

func (m *Mesh) computeBounds() {
	if len(m.vertices) == 0 {
		return
	}
	lo, hi := m.vertices[0].Position, m.vertices[0].Position
	for _, v := range m.vertices[1:] {
		for i := range 3 {
			lo[i] = min(lo[i], v.Position[i])
			hi[i] = max(hi[i], v.Position[i])
		}
	}
	m.center = lo.Add(hi).Mul(0.5)
	for _, v := range m.vertices {
		m.radius = max(m.radius, v.Position.Sub(m.center).Len())
	}
}

// Instance places a mesh in the world.
type Instance struct {
	Model mgl32.Mat4
}

// NewInstance creates an instance from translation, Y rotation (radians) and uniform scale.
func NewInstance(translation mgl32.Vec3, rotY, scale float32) Instance {
	m := mgl32.Translate3D(translation[0], translation[1], translation[2]).
		Mul4(mgl32.HomogRotate3DY(rotY)).
		Mul4(mgl32.Scale3D(scale, scale, scale))
	return Instance{Model: m}
}

// NormalMatrix returns the inverse transpose of the model matrix, used to transform normals and tangents.
func (i Instance) NormalMatrix() mgl32.Mat3 {
	return i.Model.Mat3().Inv().Transpose()
}
