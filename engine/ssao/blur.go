package ssao

import "github.com/Carmen-Shannon/oxy-deferred/engine/frame"

// BoxBlur averages a size x size neighbourhood of src into rows [y0, y1) of dst.
// Offsets run from -size/2 to size/2-1 with clamp-to-edge addressing, so the default 4x4 filter
// exactly covers one tile of the rotation noise.
func BoxBlur(src, dst *frame.Image1, size, y0, y1 int) {
	lo := -size / 2
	hi := lo + size
	inv := 1 / float32(size*size)
	for y := y0; y < y1; y++ {
		for x := range src.Width {
			var sum float32
			for oy := lo; oy < hi; oy++ {
				for ox := lo; ox < hi; ox++ {
					sum += src.At(x+ox, y+oy)
				}
			}
			dst.Set(x, y, sum*inv)
		}
	}
}
