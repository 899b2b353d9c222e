package frame

import "github.com/go-gl/mathgl/mgl32"

// BackgroundDepth is the cleared depth value. A pixel still holding it has no geometry.
const BackgroundDepth float32 = 1

// GBuffer holds the per-pixel surface attributes written by the geometry pass.
// Position.w is 1 where geometry was rasterized and 0 for background.
type GBuffer struct {
	Position *Image4 // world-space xyz
	Normal   *Image4 // world-space xyz, unit length
	Albedo   *Image4 // display-gamma rgba
	ARM      *Image4 // r = ambient occlusion, g = roughness, b = metallic
	Depth    *Image1 // NDC depth in [0, 1]
}

// NewGBuffer allocates a cleared G-buffer.
func NewGBuffer(width, height int) *GBuffer {
	g := &GBuffer{
		Position: NewImage4(width, height),
		Normal:   NewImage4(width, height),
		Albedo:   NewImage4(width, height),
		ARM:      NewImage4(width, height),
		Depth:    NewImage1(width, height),
	}
	g.Clear()
	return g
}

// Clear resets every attachment to its background value.
func (g *GBuffer) Clear() {
	g.Position.Fill(mgl32.Vec4{})
	g.Normal.Fill(mgl32.Vec4{})
	g.Albedo.Fill(mgl32.Vec4{})
	g.ARM.Fill(mgl32.Vec4{})
	g.Depth.Fill(BackgroundDepth)
}

// ClearRows resets rows [y0, y1) of every attachment.
func (g *GBuffer) ClearRows(y0, y1 int) {
	w := g.Depth.Width
	for i := y0 * w; i < y1*w; i++ {
		g.Position.Pix[i] = mgl32.Vec4{}
		g.Normal.Pix[i] = mgl32.Vec4{}
		g.Albedo.Pix[i] = mgl32.Vec4{}
		g.ARM.Pix[i] = mgl32.Vec4{}
		g.Depth.Pix[i] = BackgroundDepth
	}
}

// Size returns the G-buffer resolution.
func (g *GBuffer) Size() (int, int) {
	return g.Depth.Width, g.Depth.Height
}

// IsBackground reports whether pixel (x, y) holds no geometry.
func (g *GBuffer) IsBackground(x, y int) bool {
	return g.Depth.At(x, y) >= BackgroundDepth
}
