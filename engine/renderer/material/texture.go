package material

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// Texture is an RGBA8 image sampled with repeat addressing and bilinear filtering.
type Texture struct {
	Width, Height int
	Pix           []uint8
}

// NewTexture wraps raw RGBA8 pixels.
//
// Parameters:
//   - width, height: texture size in pixels
//   - pix: row-major RGBA8 data, len must be width*height*4
//
// Returns:
//   - *Texture: the texture
//   - error: error if the pixel slice does not match the size
func NewTexture(width, height int, pix []uint8) (*Texture, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return nil, fmt.Errorf("texture %dx%d needs %d bytes, got %d", width, height, width*height*4, len(pix))
	}
	return &Texture{Width: width, Height: height, Pix: pix}, nil
}

// SolidTexture creates a 1x1 texture of a single colour.
func SolidTexture(r, g, b, a uint8) *Texture {
	return &Texture{Width: 1, Height: 1, Pix: []uint8{r, g, b, a}}
}

// FlatNormalTexture creates a tangent-space normal map pointing straight along the surface normal.
func FlatNormalTexture() *Texture {
	return SolidTexture(128, 128, 255, 255)
}

// CheckerTexture creates a size x size checkerboard of cells x cells squares alternating between a and b.
func CheckerTexture(size, cells int, a, b [4]uint8) *Texture {
	t := &Texture{Width: size, Height: size, Pix: make([]uint8, size*size*4)}
	cell := max(size/max(cells, 1), 1)
	for y := range size {
		for x := range size {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			copy(t.Pix[(y*size+x)*4:], c[:])
		}
	}
	return t
}

// Texel returns the texel at (x, y) with repeat addressing, normalized to [0, 1].
func (t *Texture) Texel(x, y int) mgl32.Vec4 {
	x = ((x % t.Width) + t.Width) % t.Width
	y = ((y % t.Height) + t.Height) % t.Height
	o := (y*t.Width + x) * 4
	return mgl32.Vec4{
		float32(t.Pix[o]) / 255,
		float32(t.Pix[o+1]) / 255,
		float32(t.Pix[o+2]) / 255,
		float32(t.Pix[o+3]) / 255,
	}
}

// Sample bilinearly filters the texture at uv with repeat addressing.
func (t *Texture) Sample(uv mgl32.Vec2) mgl32.Vec4 {
	if t.Width == 1 && t.Height == 1 {
		return t.Texel(0, 0)
	}
	fx := uv[0]*float32(t.Width) - 0.5
	fy := uv[1]*float32(t.Height) - 0.5
	x0f, y0f := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0f, fy-y0f
	x0, y0 := int(x0f), int(y0f)

	a := t.Texel(x0, y0)
	b := t.Texel(x0+1, y0)
	c := t.Texel(x0, y0+1)
	d := t.Texel(x0+1, y0+1)
	top := a.Mul(1 - tx).Add(b.Mul(tx))
	bottom := c.Mul(1 - tx).Add(d.Mul(tx))
	return top.Mul(1 - ty).Add(bottom.Mul(ty))
}

// StagingData returns the texture as an upload for the GPU renderer.
func (t *Texture) StagingData() common.TextureStagingData {
	return common.TextureStagingData{Pixels: t.Pix, Width: uint32(t.Width), Height: uint32(t.Height)}
}
