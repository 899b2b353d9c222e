package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	eye    mgl32.Vec3
	target mgl32.Vec3
	up     mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	view       mgl32.Mat4
	projection mgl32.Mat4
}

// Camera is the scene-side camera collaborator. It owns a look-at pose and a perspective lens
// and publishes its matrices into a FrameState once per frame.
type Camera interface {
	// Eye returns the camera position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space eye position
	Eye() mgl32.Vec3

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - mgl32.Vec3: world-space look target
	Target() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ViewMatrix returns the current view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: world to view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix with WebGPU depth range [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: view to clip matrix
	ProjectionMatrix() mgl32.Mat4

	// LookAt moves the camera.
	//
	// Parameters:
	//   - eye: new eye position
	//   - target: new look target
	LookAt(eye, target mgl32.Vec3)

	// SetAspect sets the aspect ratio (width / height) and recomputes the projection.
	// Called from the window resize path.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// Publish writes the current matrices into fs for the coming frame.
	//
	// Parameters:
	//   - fs: frame state consumed by the pipeline
	Publish(fs FrameState)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at (0, 0, 5) looking at the origin with a 45 degree lens.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		eye:    mgl32.Vec3{0, 0, 5},
		up:     mgl32.Vec3{0, 1, 0},
		fov:    mgl32.DegToRad(45),
		aspect: 1,
		near:   0.1,
		far:    100,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Eye() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) LookAt(eye, target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eye = eye
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) Publish(fs FrameState) {
	c.mu.Lock()
	view, proj := c.view, c.projection
	c.mu.Unlock()
	fs.Update(view, proj)
}

// updateMatrices recomputes view and projection. Caller holds mu (or owns c exclusively).
func (c *cameraImpl) updateMatrices() {
	up := c.up
	// a view direction parallel to up would make LookAt degenerate
	dir := c.target.Sub(c.eye)
	if dir.Len() > 0 && mgl32.Abs(common.SafeNormalize(dir, up).Dot(up.Normalize())) > 0.999 {
		up = mgl32.Vec3{0, 0, -1}
	}
	c.view = mgl32.LookAtV(c.eye, c.target, up)
	c.projection = common.Perspective(c.fov, c.aspect, c.near, c.far)
}
