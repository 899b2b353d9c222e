// Package scene holds what the deferred pipeline draws: mesh batches, the light set, the camera and
// a version counter that tells the renderer when the voxel lightmap is stale.
package scene

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// BatchID identifies a batch inside a Scene.
type BatchID int

// RebuildRequester is the part of deferred.Renderer a scene drives.
type RebuildRequester interface {
	RequestVoxelRebuild()
}

type scene struct {
	mu *sync.Mutex

	name    string
	log     *zap.Logger
	cam     camera.Camera
	lights  light.Set
	orbit   light.Orbit
	batches []deferred.Batch

	// version counts batch mutations; the light set keeps its own.
	version uint64
	synced  uint64
}

// Scene is a thread-safe collection of batches and lights viewed through one camera.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Camera returns the scene camera.
	Camera() camera.Camera

	// Lights returns the light set. Mutating it bumps the scene version.
	Lights() light.Set

	// AddBatch appends a mesh drawn with a material at the given placements.
	//
	// Parameters:
	//   - mesh: the mesh
	//   - mat: the material
	//   - instances: world placements
	//
	// Returns:
	//   - BatchID: handle for SetInstances
	AddBatch(mesh *model.Mesh, mat material.Material, instances ...model.Instance) BatchID

	// SetInstances replaces the placements of a batch.
	//
	// Parameters:
	//   - id: batch handle
	//   - instances: new placements
	//
	// Returns:
	//   - bool: false if id is unknown
	SetInstances(id BatchID, instances ...model.Instance) bool

	// Batches returns a copy of the batch list in insertion order.
	Batches() []deferred.Batch

	// SetOrbitPaused freezes or resumes the light orbit.
	SetOrbitPaused(paused bool)

	// ToggleOrbit flips the orbit pause state.
	//
	// Returns:
	//   - bool: true if the orbit is now paused
	ToggleOrbit() bool

	// Tick advances every light along the orbit by dt.
	//
	// Parameters:
	//   - dt: elapsed time since the last tick
	Tick(dt time.Duration)

	// Version changes whenever a batch or light changes.
	Version() uint64

	// Sync requests a voxel rebuild from r if the scene changed since the last Sync.
	// The renderer throttles the requests to its rebuild interval.
	//
	// Parameters:
	//   - r: the renderer to notify
	//
	// Returns:
	//   - bool: true if a rebuild was requested
	Sync(r RebuildRequester) bool

	// Inputs assembles the frame payload for the current state.
	//
	// Parameters:
	//   - debug: the debug parameter vector
	//
	// Returns:
	//   - deferred.FrameInputs: lights, batches and debug parameters
	Inputs(debug [4]float32) deferred.FrameInputs
}

var _ Scene = &scene{}

// NewScene creates an empty scene with a default camera and no lights.
//
// Parameters:
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:     &sync.Mutex{},
		name:   "scene",
		log:    logger.Named("scene"),
		lights: light.NewSet(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.cam == nil {
		s.cam = camera.NewCamera(camera.WithPose(mgl32.Vec3{0, 6, 18}, mgl32.Vec3{0, 1, 0}))
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Lights() light.Set {
	return s.lights
}

func (s *scene) AddBatch(mesh *model.Mesh, mat material.Material, instances ...model.Instance) BatchID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, deferred.Batch{Mesh: mesh, Material: mat, Instances: instances})
	s.version++
	return BatchID(len(s.batches) - 1)
}

func (s *scene) SetInstances(id BatchID, instances ...model.Instance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.batches) {
		return false
	}
	s.batches[id].Instances = instances
	s.version++
	return true
}

func (s *scene) Batches() []deferred.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]deferred.Batch, len(s.batches))
	for i, b := range s.batches {
		b.Instances = append([]model.Instance(nil), b.Instances...)
		out[i] = b
	}
	return out
}

func (s *scene) SetOrbitPaused(paused bool) {
	s.mu.Lock()
	s.orbit.Paused = paused
	s.mu.Unlock()
}

func (s *scene) ToggleOrbit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orbit.Paused = !s.orbit.Paused
	s.log.Debug("light orbit toggled", zap.Bool("paused", s.orbit.Paused))
	return s.orbit.Paused
}

func (s *scene) Tick(dt time.Duration) {
	s.mu.Lock()
	orbit := s.orbit
	s.mu.Unlock()
	if orbit.Paused || orbit.DegreesPerSecond == 0 || dt <= 0 {
		return
	}
	for _, id := range s.lights.IDs() {
		if l, ok := s.lights.Get(id); ok {
			s.lights.Update(id, orbit.Advance(l, dt))
		}
	}
}

func (s *scene) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version + s.lights.Version()
}

func (s *scene) Sync(r RebuildRequester) bool {
	v := s.Version()
	s.mu.Lock()
	changed := v != s.synced
	s.synced = v
	s.mu.Unlock()
	if changed {
		r.RequestVoxelRebuild()
	}
	return changed
}

func (s *scene) Inputs(debug [4]float32) deferred.FrameInputs {
	return deferred.FrameInputs{
		Lights:  s.lights.All(),
		Batches: s.Batches(),
		Debug:   debug,
	}
}
