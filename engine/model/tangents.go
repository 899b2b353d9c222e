package model

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// ComputeTangents fills Vertex.Tangent from positions and UVs by accumulating per-triangle
// tangent frames, then Gram-Schmidt orthogonalizing against each vertex normal.
// Vertices whose UVs are degenerate receive an arbitrary tangent perpendicular to the normal.
//
// Parameters:
//   - verts: vertices to update in place
//   - indices: triangle list
func ComputeTangents(verts []Vertex, indices []uint32) {
	tan := make([]mgl32.Vec3, len(verts))
	bit := make([]mgl32.Vec3, len(verts))

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := verts[i0].Position, verts[i1].Position, verts[i2].Position
		w0, w1, w2 := verts[i0].UV, verts[i1].UV, verts[i2].UV

		e1, e2 := p1.Sub(p0), p2.Sub(p0)
		du1, dv1 := w1[0]-w0[0], w1[1]-w0[1]
		du2, dv2 := w2[0]-w0[0], w2[1]-w0[1]
		det := du1*dv2 - du2*dv1
		if mgl32.Abs(det) < 1e-12 {
			continue
		}
		r := 1 / det
		t := e1.Mul(dv2).Sub(e2.Mul(dv1)).Mul(r)
		b := e2.Mul(du1).Sub(e1.Mul(du2)).Mul(r)
		for _, k := range [3]uint32{i0, i1, i2} {
			tan[k] = tan[k].Add(t)
			bit[k] = bit[k].Add(b)
		}
	}

	for i := range verts {
		n := verts[i].Normal
		t := tan[i].Sub(n.Mul(n.Dot(tan[i])))
		t = common.SafeNormalize(t, perpendicular(n))
		w := float32(1)
		if n.Cross(t).Dot(bit[i]) < 0 {
			w = -1
		}
		verts[i].Tangent = t.Vec4(w)
	}
}

func perpendicular(n mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if mgl32.Abs(n[0]) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return common.SafeNormalize(axis.Sub(n.Mul(n.Dot(axis))), mgl32.Vec3{1, 0, 0})
}
