// Package frame holds the CPU-side render targets of the deferred pipeline: the G-buffer,
// the single-channel AO buffer and the HDR colour buffers.
package frame

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Image4 is a row-major RGBA float32 image. Pixel (0, 0) is the top-left corner.
type Image4 struct {
	Width, Height int
	Pix           []mgl32.Vec4
}

// NewImage4 allocates a zeroed Image4.
func NewImage4(width, height int) *Image4 {
	return &Image4{Width: width, Height: height, Pix: make([]mgl32.Vec4, width*height)}
}

// At returns the pixel at (x, y) with coordinates clamped to the image.
func (im *Image4) At(x, y int) mgl32.Vec4 {
	x, y = clampXY(x, y, im.Width, im.Height)
	return im.Pix[y*im.Width+x]
}

// Set writes the pixel at (x, y). Out of range writes are ignored.
func (im *Image4) Set(x, y int, v mgl32.Vec4) {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return
	}
	im.Pix[y*im.Width+x] = v
}

// Nearest returns the pixel under texture coordinate uv (clamp-to-edge).
func (im *Image4) Nearest(uv mgl32.Vec2) mgl32.Vec4 {
	x, y := UVToPixel(uv, im.Width, im.Height)
	return im.At(x, y)
}

// Fill sets every pixel to v.
func (im *Image4) Fill(v mgl32.Vec4) {
	for i := range im.Pix {
		im.Pix[i] = v
	}
}

// Image1 is a row-major single-channel float32 image.
type Image1 struct {
	Width, Height int
	Pix           []float32
}

// NewImage1 allocates a zeroed Image1.
func NewImage1(width, height int) *Image1 {
	return &Image1{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// At returns the value at (x, y) with coordinates clamped to the image.
func (im *Image1) At(x, y int) float32 {
	x, y = clampXY(x, y, im.Width, im.Height)
	return im.Pix[y*im.Width+x]
}

// Set writes the value at (x, y). Out of range writes are ignored.
func (im *Image1) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return
	}
	im.Pix[y*im.Width+x] = v
}

// Nearest returns the value under texture coordinate uv (clamp-to-edge).
func (im *Image1) Nearest(uv mgl32.Vec2) float32 {
	x, y := UVToPixel(uv, im.Width, im.Height)
	return im.At(x, y)
}

// Fill sets every value to v.
func (im *Image1) Fill(v float32) {
	for i := range im.Pix {
		im.Pix[i] = v
	}
}

// PixelUV returns the texture coordinate of the center of pixel (x, y).
func PixelUV(x, y, width, height int) mgl32.Vec2 {
	return mgl32.Vec2{(float32(x) + 0.5) / float32(width), (float32(y) + 0.5) / float32(height)}
}

// UVToPixel maps a texture coordinate to the pixel containing it. The result may lie outside the image.
func UVToPixel(uv mgl32.Vec2, width, height int) (int, int) {
	fx := uv[0] * float32(width)
	fy := uv[1] * float32(height)
	x, y := int(fx), int(fy)
	// int() truncates toward zero, which would fold (-1, 0) into pixel 0
	if fx < 0 {
		x--
	}
	if fy < 0 {
		y--
	}
	return x, y
}

// UVToNDC converts a texture coordinate (y down) to normalized device xy (y up).
func UVToNDC(uv mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{uv[0]*2 - 1, 1 - uv[1]*2}
}

// NDCToUV converts normalized device xy (y up) to a texture coordinate (y down).
func NDCToUV(ndc mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{ndc[0]*0.5 + 0.5, 0.5 - ndc[1]*0.5}
}

func clampXY(x, y, w, h int) (int, int) {
	if x < 0 {
		x = 0
	} else if x >= w {
		x = w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= h {
		y = h - 1
	}
	return x, y
}
