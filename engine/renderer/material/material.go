// Package material describes the surface inputs of the geometry pass: albedo, packed
// ambient-occlusion/roughness/metallic, and a tangent-space normal map.
package material

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// materialCount is an atomic counter used to give every material a unique key for GPU bind group caching.
var materialCount atomic.Uint64

// material is the implementation of the Material interface.
type material struct {
	name      string
	key       uint64
	baseColor mgl32.Vec4
	ao        float32
	roughness float32
	metallic  float32
	albedo    *Texture
	arm       *Texture
	normal    *Texture
}

// Material defines the read-only surface description sampled by the geometry pass.
// Texture samples are multiplied by the scalar factors, so a material without textures
// is described by its factors alone.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Key returns a process-unique identifier for GPU resource caching.
	//
	// Returns:
	//   - uint64: the key
	Key() uint64

	// BaseColor retrieves the albedo multiplier in display gamma.
	//
	// Returns:
	//   - mgl32.Vec4: the base color as RGBA values
	BaseColor() mgl32.Vec4

	// Factors retrieves the ambient occlusion, roughness and metallic multipliers packed like the ARM texture.
	//
	// Returns:
	//   - mgl32.Vec3: (ao, roughness, metallic)
	Factors() mgl32.Vec3

	// AlbedoTexture retrieves the albedo texture. Never nil.
	//
	// Returns:
	//   - *Texture: the albedo texture
	AlbedoTexture() *Texture

	// ARMTexture retrieves the ambient occlusion (r), roughness (g), metallic (b) texture. Never nil.
	//
	// Returns:
	//   - *Texture: the ARM texture
	ARMTexture() *Texture

	// NormalTexture retrieves the tangent-space normal map. Never nil.
	//
	// Returns:
	//   - *Texture: the normal map
	NormalTexture() *Texture

	// Sample evaluates every texture at uv and applies the factors.
	//
	// Parameters:
	//   - uv: texture coordinate
	//
	// Returns:
	//   - albedo: display-gamma RGBA
	//   - arm: (ao, roughness, metallic)
	//   - tangentNormal: tangent-space normal in [-1, 1]
	Sample(uv mgl32.Vec2) (albedo mgl32.Vec4, arm mgl32.Vec3, tangentNormal mgl32.Vec3)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Defaults are white, fully unoccluded, roughness 0.5, dielectric, with a flat normal map.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		key:       materialCount.Add(1),
		baseColor: mgl32.Vec4{1, 1, 1, 1},
		ao:        1,
		roughness: 0.5,
		metallic:  0,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.albedo == nil {
		m.albedo = SolidTexture(255, 255, 255, 255)
	}
	if m.arm == nil {
		m.arm = SolidTexture(255, 255, 255, 255)
	}
	if m.normal == nil {
		m.normal = FlatNormalTexture()
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Key() uint64 {
	return m.key
}

func (m *material) BaseColor() mgl32.Vec4 {
	return m.baseColor
}

func (m *material) Factors() mgl32.Vec3 {
	return mgl32.Vec3{m.ao, m.roughness, m.metallic}
}

func (m *material) AlbedoTexture() *Texture {
	return m.albedo
}

func (m *material) ARMTexture() *Texture {
	return m.arm
}

func (m *material) NormalTexture() *Texture {
	return m.normal
}

func (m *material) Sample(uv mgl32.Vec2) (mgl32.Vec4, mgl32.Vec3, mgl32.Vec3) {
	a := m.albedo.Sample(uv)
	albedo := mgl32.Vec4{a[0] * m.baseColor[0], a[1] * m.baseColor[1], a[2] * m.baseColor[2], a[3] * m.baseColor[3]}

	r := m.arm.Sample(uv)
	arm := mgl32.Vec3{r[0] * m.ao, r[1] * m.roughness, r[2] * m.metallic}

	n := m.normal.Sample(uv)
	tn := mgl32.Vec3{n[0]*2 - 1, n[1]*2 - 1, n[2]*2 - 1}
	return albedo, arm, tn
}
