package light

import "github.com/go-gl/mathgl/mgl32"

type LightBuilderOption func(*Light)

// WithPosition sets the world-space position of the light.
//
// Parameters:
//   - x, y, z: world-space coordinates
//
// Returns:
//   - LightBuilderOption: a function that sets the position
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *Light) {
		l.Position = mgl32.Vec3{x, y, z}
	}
}

// WithColor sets the linear RGB colour of the light. Values above 1 brighten it.
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *Light) {
		l.Color = mgl32.Vec3{r, g, b}
	}
}
