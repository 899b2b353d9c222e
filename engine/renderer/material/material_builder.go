package material

import "github.com/go-gl/mathgl/mgl32"

type MaterialBuilderOption func(*material)

// WithName sets the material identifier.
//
// Parameters:
//   - name: the identifier
//
// Returns:
//   - MaterialBuilderOption: a function that sets the name
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor sets the albedo multiplier (display gamma).
func WithBaseColor(r, g, b, a float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = mgl32.Vec4{r, g, b, a}
	}
}

// WithRoughness sets the roughness multiplier.
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithMetallic sets the metallic multiplier.
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = metallic
	}
}

// WithAmbientOcclusion sets the baked ambient occlusion multiplier.
func WithAmbientOcclusion(ao float32) MaterialBuilderOption {
	return func(m *material) {
		m.ao = ao
	}
}

// WithAlbedoTexture sets the albedo texture.
func WithAlbedoTexture(t *Texture) MaterialBuilderOption {
	return func(m *material) {
		m.albedo = t
	}
}

// WithARMTexture sets the packed ambient occlusion / roughness / metallic texture.
func WithARMTexture(t *Texture) MaterialBuilderOption {
	return func(m *material) {
		m.arm = t
	}
}

// WithNormalTexture sets the tangent-space normal map.
func WithNormalTexture(t *Texture) MaterialBuilderOption {
	return func(m *material) {
		m.normal = t
	}
}
