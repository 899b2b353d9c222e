package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// FrameState holds the camera matrices consumed by one frame together with the matrices of the previous frame.
// The previous matrices lag the current ones by exactly one consumed frame: Update writes V and P,
// the pipeline reads them, and EndFrame copies them into the previous slots before the next Update.
type FrameState interface {
	// Update stores the view and projection matrices for the coming frame and recomputes their inverses.
	// The first Update also seeds the previous matrices so the first frame reprojects onto itself.
	//
	// Parameters:
	//   - view: world to view matrix
	//   - proj: view to clip matrix (WebGPU depth range)
	Update(view, proj mgl32.Mat4)

	// EndFrame copies the just-consumed view and projection matrices into the previous-frame slots.
	EndFrame()

	// View returns the current view matrix.
	View() mgl32.Mat4

	// Projection returns the current projection matrix.
	Projection() mgl32.Mat4

	// InverseView returns the inverse of the current view matrix.
	InverseView() mgl32.Mat4

	// InverseProjection returns the inverse of the current projection matrix.
	InverseProjection() mgl32.Mat4

	// PrevView returns the view matrix of the previous consumed frame.
	PrevView() mgl32.Mat4

	// PrevProjection returns the projection matrix of the previous consumed frame.
	PrevProjection() mgl32.Mat4

	// Position returns the world-space eye position derived from the inverse view matrix.
	Position() mgl32.Vec3

	// Snapshot returns an immutable copy of every matrix for handing to a pass.
	//
	// Returns:
	//   - Matrices: value copy of the current state
	Snapshot() Matrices
}

// Matrices is an immutable per-frame copy of a FrameState. Passes receive this instead of the live state.
type Matrices struct {
	View, Projection               mgl32.Mat4
	InverseView, InverseProjection mgl32.Mat4
	PrevView, PrevProjection       mgl32.Mat4
	Position                       mgl32.Vec3
}

// ViewProjection returns Projection * View.
func (m Matrices) ViewProjection() mgl32.Mat4 {
	return m.Projection.Mul4(m.View)
}

// PrevViewProjection returns PrevProjection * PrevView.
func (m Matrices) PrevViewProjection() mgl32.Mat4 {
	return m.PrevProjection.Mul4(m.PrevView)
}

type frameStateImpl struct {
	mu *sync.Mutex

	seeded bool
	cur    Matrices
}

var _ FrameState = &frameStateImpl{}

// NewFrameState creates a FrameState with identity matrices.
//
// Returns:
//   - FrameState: the new frame state
func NewFrameState() FrameState {
	id := mgl32.Ident4()
	return &frameStateImpl{
		mu: &sync.Mutex{},
		cur: Matrices{
			View: id, Projection: id,
			InverseView: id, InverseProjection: id,
			PrevView: id, PrevProjection: id,
		},
	}
}

func (f *frameStateImpl) Update(view, proj mgl32.Mat4) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur.View = view
	f.cur.Projection = proj
	f.cur.InverseView = view.Inv()
	f.cur.InverseProjection = proj.Inv()
	f.cur.Position = f.cur.InverseView.Col(3).Vec3()
	if !f.seeded {
		f.cur.PrevView = view
		f.cur.PrevProjection = proj
		f.seeded = true
	}
}

func (f *frameStateImpl) EndFrame() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur.PrevView = f.cur.View
	f.cur.PrevProjection = f.cur.Projection
}

func (f *frameStateImpl) View() mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.View
}

func (f *frameStateImpl) Projection() mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.Projection
}

func (f *frameStateImpl) InverseView() mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.InverseView
}

func (f *frameStateImpl) InverseProjection() mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.InverseProjection
}

func (f *frameStateImpl) PrevView() mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.PrevView
}

func (f *frameStateImpl) PrevProjection() mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.PrevProjection
}

func (f *frameStateImpl) Position() mgl32.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.Position
}

func (f *frameStateImpl) Snapshot() Matrices {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}
