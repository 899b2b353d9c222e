package raster

// RasterizerBuilderOption is a functional option for configuring a Rasterizer.
type RasterizerBuilderOption func(*rasterizerImpl)

// WithNormalStrength sets how much of the normal map replaces the vertex normal, in [0, 1].
//
// Parameters:
//   - strength: blend factor; 0 keeps the vertex normal
//
// Returns:
//   - RasterizerBuilderOption: a function that applies the strength
func WithNormalStrength(strength float32) RasterizerBuilderOption {
	return func(r *rasterizerImpl) {
		r.normalStrength = strength
	}
}

// WithBackFaceCulling enables or disables back-face culling. Enabled by default.
func WithBackFaceCulling(enabled bool) RasterizerBuilderOption {
	return func(r *rasterizerImpl) {
		r.cullBackFaces = enabled
	}
}
