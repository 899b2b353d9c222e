package light

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Orbit rotates a light around the world Y axis through the origin at a fixed angular speed.
type Orbit struct {
	// DegreesPerSecond is the angular speed; positive is counter-clockwise seen from +Y.
	DegreesPerSecond float32
	// Paused freezes the orbit without losing the speed.
	Paused bool
}

// Advance rotates l by the angle covered in dt and returns the moved light.
//
// Parameters:
//   - l: the light to move
//   - dt: elapsed time since the last advance
//
// Returns:
//   - Light: the light at its new position
func (o Orbit) Advance(l Light, dt time.Duration) Light {
	if o.Paused || dt <= 0 {
		return l
	}
	angle := mgl32.DegToRad(o.DegreesPerSecond * float32(dt.Seconds()))
	l.Position = mgl32.Rotate3DY(angle).Mul3x1(l.Position)
	return l
}
