package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// OpenGLToWGPU remaps OpenGL clip space depth [-w, w] into the WebGPU range [0, w].
// mgl32 builds OpenGL style projections, so every projection passed to a pass is premultiplied by this matrix.
var OpenGLToWGPU = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Perspective creates a perspective projection matrix with WebGPU depth in [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: width / height
//   - near: near clip distance
//   - far: far clip distance
//
// Returns:
//   - mgl32.Mat4: column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	return OpenGLToWGPU.Mul4(mgl32.Perspective(fovY, aspect, near, far))
}

// Hadamard returns the component-wise product of two vectors.
func Hadamard(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Saturate clamps x into [0, 1].
func Saturate(x float32) float32 {
	return mgl32.Clamp(x, 0, 1)
}

// Mix linearly interpolates between a and b, matching the shading language builtin.
func Mix(a, b, t float32) float32 {
	return a + (b-a)*t
}

// MixVec3 linearly interpolates between two vectors.
func MixVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Smoothstep performs Hermite interpolation between edge0 and edge1, matching the shading language builtin.
//
// Parameters:
//   - edge0: lower edge
//   - edge1: upper edge
//   - x: source value
//
// Returns:
//   - float32: 0 when x <= edge0, 1 when x >= edge1, a smooth curve between
func Smoothstep(edge0, edge1, x float32) float32 {
	t := Saturate((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// PowVec3 raises each component of v to the power p.
func PowVec3(v mgl32.Vec3, p float32) mgl32.Vec3 {
	return mgl32.Vec3{math32.Pow(v[0], p), math32.Pow(v[1], p), math32.Pow(v[2], p)}
}

// SafeNormalize normalizes v, returning fallback when v has no usable length.
func SafeNormalize(v, fallback mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-8 || math32.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / l)
}
