package frame

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/chewxy/math32"
	"golang.org/x/image/tiff"
)

// Remap converts a linear channel value into [0, 1] for display in a dump.
type Remap func(v float32) float32

// Identity passes values through, clamped by the encoder.
func Identity(v float32) float32 { return v }

// SignedUnit maps [-1, 1] to [0, 1]. Used for normals.
func SignedUnit(v float32) float32 { return v*0.5 + 0.5 }

// Range returns a Remap mapping [lo, hi] to [0, 1]. Used for world positions.
func Range(lo, hi float32) Remap {
	return func(v float32) float32 { return (v - lo) / (hi - lo) }
}

// ToNRGBA64 converts an Image4 to a 16-bit image. Alpha is forced opaque so dumps stay viewable.
func ToNRGBA64(im *Image4, remap Remap) *image.NRGBA64 {
	out := image.NewNRGBA64(image.Rect(0, 0, im.Width, im.Height))
	for y := range im.Height {
		for x := range im.Width {
			p := im.Pix[y*im.Width+x]
			out.SetNRGBA64(x, y, color.NRGBA64{
				R: quantize16(remap(p[0])),
				G: quantize16(remap(p[1])),
				B: quantize16(remap(p[2])),
				A: 0xffff,
			})
		}
	}
	return out
}

// ToGray16 converts an Image1 to a 16-bit grayscale image.
func ToGray16(im *Image1, remap Remap) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, im.Width, im.Height))
	for y := range im.Height {
		for x := range im.Width {
			out.SetGray16(x, y, color.Gray16{Y: quantize16(remap(im.Pix[y*im.Width+x]))})
		}
	}
	return out
}

// WriteTIFF encodes img as a deflate-compressed TIFF.
//
// Parameters:
//   - w: destination writer
//   - img: image to encode
//
// Returns:
//   - error: error if encoding fails
func WriteTIFF(w io.Writer, img image.Image) error {
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("failed to encode tiff: %w", err)
	}
	return nil
}

// WriteTIFFFile encodes img into a new file at path.
func WriteTIFFFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteTIFF(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DumpGBuffer writes every G-buffer attachment into dir as TIFF files.
// Positions are remapped from [-extent, extent].
//
// Parameters:
//   - dir: output directory, created if missing
//   - g: G-buffer to dump
//   - extent: half size of the world region mapped into the position image
//
// Returns:
//   - error: error if any file cannot be written
func DumpGBuffer(dir string, g *GBuffer, extent float32) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dump dir %s: %w", dir, err)
	}
	files := []struct {
		name string
		img  image.Image
	}{
		{"gbuffer_position.tiff", ToNRGBA64(g.Position, Range(-extent, extent))},
		{"gbuffer_normal.tiff", ToNRGBA64(g.Normal, SignedUnit)},
		{"gbuffer_albedo.tiff", ToNRGBA64(g.Albedo, Identity)},
		{"gbuffer_arm.tiff", ToNRGBA64(g.ARM, Identity)},
		{"gbuffer_depth.tiff", ToGray16(g.Depth, Identity)},
	}
	for _, f := range files {
		if err := WriteTIFFFile(filepath.Join(dir, f.name), f.img); err != nil {
			return err
		}
	}
	return nil
}

func quantize16(v float32) uint16 {
	if math32.IsNaN(v) {
		return 0
	}
	v = math32.Max(0, math32.Min(1, v))
	return uint16(math32.Round(v * 0xffff))
}
