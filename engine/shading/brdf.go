// Package shading evaluates the Cook-Torrance lighting model of the deferred lighting pass.
package shading

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// SpecularEpsilon keeps the specular denominator finite at grazing angles.
const SpecularEpsilon = 1e-4

// DielectricF0 is the normal-incidence reflectance of non-metals.
var DielectricF0 = mgl32.Vec3{0.04, 0.04, 0.04}

// FresnelSchlick approximates Fresnel reflectance: F0 + (1-F0)(1-cos)^5.
func FresnelSchlick(cosTheta float32, f0 mgl32.Vec3) mgl32.Vec3 {
	f := math32.Pow(common.Saturate(1-cosTheta), 5)
	return f0.Add(mgl32.Vec3{1, 1, 1}.Sub(f0).Mul(f))
}

// DistributionGGX is the Trowbridge-Reitz normal distribution with alpha = roughness^2.
func DistributionGGX(n, h mgl32.Vec3, roughness float32) float32 {
	a := roughness * roughness
	a2 := a * a
	nDotH := max(n.Dot(h), 0)
	denom := nDotH*nDotH*(a2-1) + 1
	return a2 / (math32.Pi * denom * denom)
}

// GeometrySchlickGGX is the Schlick-GGX masking term with k = (roughness+1)^2/8.
func GeometrySchlickGGX(nDotV, roughness float32) float32 {
	r := roughness + 1
	k := r * r / 8
	return nDotV / (nDotV*(1-k) + k)
}

// GeometrySmith combines view and light masking.
func GeometrySmith(n, v, l mgl32.Vec3, roughness float32) float32 {
	return GeometrySchlickGGX(max(n.Dot(v), 0), roughness) * GeometrySchlickGGX(max(n.Dot(l), 0), roughness)
}
