package model

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Quad creates a unit quad in the XY plane centered at the origin, facing +Z.
func Quad() *Mesh {
	v := []Vertex{
		{Position: mgl32.Vec3{-0.5, -0.5, 0}, UV: mgl32.Vec2{0, 1}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{0.5, -0.5, 0}, UV: mgl32.Vec2{1, 1}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, UV: mgl32.Vec2{1, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, UV: mgl32.Vec2{0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
	}
	idx := []uint32{0, 1, 2, 0, 2, 3}
	ComputeTangents(v, idx)
	return NewMesh("quad", v, idx)
}

// Plane creates a size x size plane in the XZ plane facing +Y, with UVs repeating every world unit.
func Plane(size float32) *Mesh {
	h := size / 2
	v := []Vertex{
		{Position: mgl32.Vec3{-h, 0, h}, UV: mgl32.Vec2{0, size}, Normal: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{h, 0, h}, UV: mgl32.Vec2{size, size}, Normal: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{h, 0, -h}, UV: mgl32.Vec2{size, 0}, Normal: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{-h, 0, -h}, UV: mgl32.Vec2{0, 0}, Normal: mgl32.Vec3{0, 1, 0}},
	}
	idx := []uint32{0, 1, 2, 0, 2, 3}
	ComputeTangents(v, idx)
	return NewMesh("plane", v, idx)
}

// Cube creates a unit cube centered at the origin with per-face normals.
func Cube() *Mesh {
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}
	var verts []Vertex
	var idx []uint32
	for _, f := range faces {
		base := uint32(len(verts))
		c := f.n.Mul(0.5)
		corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, k := range corners {
			p := c.Add(f.u.Mul(k[0] * 0.5)).Add(f.v.Mul(k[1] * 0.5))
			verts = append(verts, Vertex{
				Position: p,
				UV:       mgl32.Vec2{(k[0] + 1) / 2, 1 - (k[1]+1)/2},
				Normal:   f.n,
			})
		}
		idx = append(idx, base, base+1, base+2, base, base+2, base+3)
	}
	ComputeTangents(verts, idx)
	return NewMesh("cube", verts, idx)
}

// UVSphere creates a unit-radius sphere with the given number of latitude rings and longitude segments.
func UVSphere(rings, segments int) *Mesh {
	rings = max(rings, 2)
	segments = max(segments, 3)
	var verts []Vertex
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		theta := v * math32.Pi
		st, ct := math32.Sincos(theta)
		for s := 0; s <= segments; s++ {
			u := float32(s) / float32(segments)
			phi := u * 2 * math32.Pi
			sp, cp := math32.Sincos(phi)
			n := mgl32.Vec3{st * cp, ct, -st * sp}
			verts = append(verts, Vertex{Position: n, UV: mgl32.Vec2{u, v}, Normal: n})
		}
	}
	var idx []uint32
	row := uint32(segments + 1)
	for r := range uint32(rings) {
		for s := range uint32(segments) {
			a := r*row + s
			b := a + row
			idx = append(idx, a, b, a+1, a+1, b, b+1)
		}
	}
	ComputeTangents(verts, idx)
	return NewMesh("sphere", verts, idx)
}
