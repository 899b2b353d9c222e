package shading

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
)

// DisplayGamma is the encoding of albedo textures.
const DisplayGamma = 2.2

// Surface is one shaded G-buffer sample.
type Surface struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	// Albedo is linear unless noted otherwise by the caller.
	Albedo    mgl32.Vec3
	AO        float32
	Roughness float32
	Metallic  float32
}

// Linearize returns s with its display-gamma albedo converted to linear.
func (s Surface) Linearize() Surface {
	s.Albedo = common.PowVec3(s.Albedo, DisplayGamma)
	return s
}

// Ambient holds the indirect term inputs of one pixel.
type Ambient struct {
	Intensity float32
	Power     float32
	// SSAO is the screen-space occlusion factor, 1 for unoccluded.
	SSAO float32
	// Voxel multiplies the ambient term; (1, 1, 1) when no lightmap cell covers the pixel.
	Voxel mgl32.Vec3
}

// Direct returns the Cook-Torrance reflected radiance from one point light.
//
// Parameters:
//   - s: surface with linear albedo
//   - l: the light
//   - viewPos: world-space eye position
//
// Returns:
//   - mgl32.Vec3: (kD*albedo/pi + specular) * radiance * NdotL
func Direct(s Surface, l light.Light, viewPos mgl32.Vec3) mgl32.Vec3 {
	n := s.Normal
	v := common.SafeNormalize(viewPos.Sub(s.Position), n)
	toLight := l.Position.Sub(s.Position)
	dist2 := toLight.Dot(toLight)
	if dist2 < 1e-12 {
		return mgl32.Vec3{}
	}
	lDir := toLight.Mul(1 / math32.Sqrt(dist2))
	h := common.SafeNormalize(v.Add(lDir), n)
	radiance := l.Color.Mul(1 / dist2)

	f0 := common.MixVec3(DielectricF0, s.Albedo, s.Metallic)
	f := FresnelSchlick(max(h.Dot(v), 0), f0)
	ndf := DistributionGGX(n, h, s.Roughness)
	g := GeometrySmith(n, v, lDir, s.Roughness)

	nDotL := max(n.Dot(lDir), 0)
	nDotV := max(n.Dot(v), 0)
	specular := f.Mul(ndf * g / (4*nDotV*nDotL + SpecularEpsilon))
	kD := mgl32.Vec3{1, 1, 1}.Sub(f).Mul(1 - s.Metallic)

	diffuse := common.Hadamard(kD, s.Albedo).Mul(1 / math32.Pi)
	return common.Hadamard(diffuse.Add(specular), radiance).Mul(nDotL)
}

// AmbientTerm returns intensity * albedo * (ao*ssao)^power * voxel.
func AmbientTerm(s Surface, a Ambient) mgl32.Vec3 {
	occ := math32.Pow(common.Saturate(s.AO*a.SSAO), a.Power)
	return common.Hadamard(s.Albedo, a.Voxel).Mul(a.Intensity * occ)
}

// Shade returns the HDR colour of a surface lit by every light plus the ambient term.
// The albedo of s is in display gamma and is linearized first. Lights are summed in slice order.
func Shade(s Surface, lights []light.Light, viewPos mgl32.Vec3, a Ambient) mgl32.Vec3 {
	s = s.Linearize()
	var c mgl32.Vec3
	for _, l := range lights {
		c = c.Add(Direct(s, l, viewPos))
	}
	return c.Add(AmbientTerm(s, a))
}

// Diffuse returns the directly lit diffuse colour albedo * sum(NdotL * radiance), the colour scattered
// into the voxel lightmap. The albedo of s is in display gamma.
func Diffuse(s Surface, lights []light.Light) mgl32.Vec3 {
	s = s.Linearize()
	var irradiance mgl32.Vec3
	for _, l := range lights {
		toLight := l.Position.Sub(s.Position)
		dist2 := toLight.Dot(toLight)
		if dist2 < 1e-12 {
			continue
		}
		nDotL := max(s.Normal.Dot(toLight.Mul(1/math32.Sqrt(dist2))), 0)
		irradiance = irradiance.Add(l.Color.Mul(nDotL / dist2))
	}
	return common.Hadamard(s.Albedo, irradiance)
}
