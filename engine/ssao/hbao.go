package ssao

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
)

// HBAOParams configures the horizon-based formulation.
type HBAOParams struct {
	Directions int
	Steps      int
	Radius     float32
	FallOff    float32
	// AngleBias is the elevation above the tangent plane a horizon must exceed to count.
	AngleBias  float32
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// HBAO writes horizon-based occlusion for rows [y0, y1) into dst. 1 means unoccluded.
//
// Each fragment marches Directions screen-space rays of Steps samples across the projected radius.
// Per ray it keeps the highest horizon elevation seen so far and accumulates only increases,
// weighted by 1-(d/FallOff)^2. Fragments whose projected radius covers less than one pixel are
// left unoccluded, as are background fragments. Background samples are skipped.
func HBAO(gb *frame.GBuffer, noise []mgl32.Vec3, p HBAOParams, dst *frame.Image1, y0, y1 int) {
	w, h := gb.Size()
	// proj[5] scales view y into clip y
	focal := p.Projection[5] * 0.5 * float32(h)
	minSin := math32.Sin(p.AngleBias)
	dirStep := 2 * math32.Pi / float32(p.Directions)

	for y := y0; y < y1; y++ {
		for x := range w {
			if gb.IsBackground(x, y) {
				dst.Set(x, y, 1)
				continue
			}
			frag, normal := viewSample(gb, p.View, x, y)
			if frag[2] >= 0 {
				dst.Set(x, y, 1)
				continue
			}
			radiusPx := p.Radius * focal / -frag[2]
			if radiusPx < 1 {
				dst.Set(x, y, 1)
				continue
			}
			stepPx := radiusPx / float32(p.Steps+1)
			rot := noiseAt(noise, x, y)
			jitter := math32.Atan2(rot[1], rot[0])

			var ao float32
			for d := range p.Directions {
				angle := float32(d)*dirStep + jitter
				dx, dy := math32.Cos(angle), math32.Sin(angle)
				maxSin := minSin
				for s := 1; s <= p.Steps; s++ {
					sx := int(math32.Round(float32(x) + dx*stepPx*float32(s)))
					sy := int(math32.Round(float32(y) + dy*stepPx*float32(s)))
					if sx < 0 || sy < 0 || sx >= w || sy >= h || gb.IsBackground(sx, sy) {
						continue
					}
					sample, _ := viewSample(gb, p.View, sx, sy)
					delta := sample.Sub(frag)
					dist := delta.Len()
					if dist < 1e-6 {
						continue
					}
					falloff := 1 - (dist/p.FallOff)*(dist/p.FallOff)
					if falloff <= 0 {
						continue
					}
					sinH := normal.Dot(delta) / dist
					if sinH > maxSin {
						ao += (sinH - maxSin) * falloff
						maxSin = sinH
					}
				}
			}
			dst.Set(x, y, mgl32.Clamp(1-ao/float32(p.Directions), 0, 1))
		}
	}
}
