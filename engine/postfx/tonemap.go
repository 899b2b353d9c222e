package postfx

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
)

// ToneMap applies Reinhard c/(c+1) per channel followed by gamma encoding. Alpha is 1.
func ToneMap(c mgl32.Vec4, gamma float32) mgl32.Vec4 {
	out := mgl32.Vec4{0, 0, 0, 1}
	for i := range 3 {
		v := max(c[i], 0)
		out[i] = math32.Pow(v/(v+1), 1/gamma)
	}
	return out
}

// ToneMapRows tone maps rows [y0, y1) of src into dst.
func ToneMapRows(src, dst *frame.Image4, gamma float32, y0, y1 int) {
	for i := y0 * src.Width; i < y1*src.Width; i++ {
		dst.Pix[i] = ToneMap(src.Pix[i], gamma)
	}
}

// ToRGBA8 quantizes a display-encoded image for presentation.
func ToRGBA8(im *frame.Image4) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	for y := range im.Height {
		for x := range im.Width {
			c := im.Pix[y*im.Width+x]
			out.SetRGBA(x, y, color.RGBA{
				R: quantize(c[0]),
				G: quantize(c[1]),
				B: quantize(c[2]),
				A: quantize(c[3]),
			})
		}
	}
	return out
}

func quantize(v float32) uint8 {
	return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
}
