package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// SceneBuilderOption is a functional option for configuring a Scene.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithCamera replaces the default camera.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.cam = cam
	}
}

// WithLights adds lights in order.
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		for _, l := range lights {
			s.lights.Add(l)
		}
	}
}

// WithOrbit sets the light orbit speed in degrees per second around the world Y axis.
func WithOrbit(degreesPerSecond float32) SceneBuilderOption {
	return func(s *scene) {
		s.orbit.DegreesPerSecond = degreesPerSecond
	}
}

// Demo builds the stock test scene inside the voxel grid of cfg: a checkered ground plane, a row of
// cubes in solid materials, a metallic sphere and one orbiting white light.
//
// Parameters:
//   - cfg: supplies the grid box and the orbit speed
//   - aspect: initial camera aspect ratio
//
// Returns:
//   - Scene: the populated scene
func Demo(cfg config.Config, aspect float32) Scene {
	ext := cfg.Voxel.Extents
	center := mgl32.Vec3(cfg.Voxel.Center)
	floor := center.Y() - ext[1]*0.5

	s := NewScene(
		WithName("demo"),
		WithCamera(camera.NewCamera(
			camera.WithPose(center.Add(mgl32.Vec3{0, ext[1] * 0.35, ext[2] * 0.9}), center.Add(mgl32.Vec3{0, floor * 0.3, 0})),
			camera.WithAspect(aspect),
			camera.WithClip(0.1, 200),
		)),
		WithLights(light.NewLight(
			light.WithPosition(center.X()+ext[0]*0.25, floor+ext[1]*0.6, center.Z()),
			light.WithColor(60, 60, 60),
		)),
		WithOrbit(cfg.Lighting.OrbitSpeed),
	)

	checker := material.NewMaterial(
		material.WithName("checker"),
		material.WithAlbedoTexture(material.CheckerTexture(256, 8, [4]uint8{200, 200, 200, 255}, [4]uint8{60, 60, 60, 255})),
		material.WithRoughness(0.8),
	)
	s.AddBatch(model.Plane(max(ext[0], ext[2])*1.8), checker,
		model.NewInstance(mgl32.Vec3{center.X(), floor, center.Z()}, 0, 1))

	solids := []material.Material{
		material.NewMaterial(material.WithName("red"), material.WithBaseColor(0.8, 0.1, 0.1, 1), material.WithRoughness(0.6)),
		material.NewMaterial(material.WithName("green"), material.WithBaseColor(0.1, 0.7, 0.2, 1), material.WithRoughness(0.4)),
		material.NewMaterial(material.WithName("blue"), material.WithBaseColor(0.1, 0.2, 0.8, 1), material.WithRoughness(0.3)),
	}
	cube := model.Cube()
	for i, m := range solids {
		x := center.X() + (float32(i)-1)*ext[0]*0.15
		s.AddBatch(cube, m, model.NewInstance(mgl32.Vec3{x, floor + 1, center.Z() - ext[2]*0.1}, float32(i)*0.4, 1))
	}

	metal := material.NewMaterial(
		material.WithName("metal"),
		material.WithBaseColor(0.95, 0.8, 0.4, 1),
		material.WithMetallic(1),
		material.WithRoughness(0.25),
	)
	s.AddBatch(model.UVSphere(24, 48), metal,
		model.NewInstance(mgl32.Vec3{center.X(), floor + 1.5, center.Z() + ext[2]*0.1}, 0, 1.5))
	return s
}
