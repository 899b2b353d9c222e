package raster

import "github.com/go-gl/mathgl/mgl32"

// varyings per vertex: world position (3), uv (2), normal (3), tangent (4)
const varyings = 12

// clipVertex is a vertex after the model and view-projection transforms.
type clipVertex struct {
	clip mgl32.Vec4
	attr [varyings]float32
}

func lerpVertex(a, b clipVertex, t float32) clipVertex {
	var out clipVertex
	out.clip = a.clip.Add(b.clip.Sub(a.clip).Mul(t))
	for i := range out.attr {
		out.attr[i] = a.attr[i] + (b.attr[i]-a.attr[i])*t
	}
	return out
}

// clipNear clips a triangle against the WebGPU near plane (clip z >= 0) and returns the resulting
// convex polygon as a triangle fan. Returns nil if the triangle is entirely in front of the near plane.
func clipNear(tri [3]clipVertex) [][3]clipVertex {
	inside := 0
	for _, v := range tri {
		if v.clip[2] >= 0 {
			inside++
		}
	}
	switch inside {
	case 0:
		return nil
	case 3:
		return [][3]clipVertex{tri}
	}

	poly := make([]clipVertex, 0, 4)
	for i := range 3 {
		a, b := tri[i], tri[(i+1)%3]
		aIn, bIn := a.clip[2] >= 0, b.clip[2] >= 0
		if aIn {
			poly = append(poly, a)
		}
		if aIn != bIn {
			t := a.clip[2] / (a.clip[2] - b.clip[2])
			poly = append(poly, lerpVertex(a, b, t))
		}
	}
	out := make([][3]clipVertex, 0, len(poly)-2)
	for i := 1; i+1 < len(poly); i++ {
		out = append(out, [3]clipVertex{poly[0], poly[i], poly[i+1]})
	}
	return out
}
