package graph

import "context"

// FrameContext is handed to every pass of one frame.
type FrameContext struct {
	// Index counts frames from 1.
	Index uint64
	// Resolution is the output size of this frame.
	Resolution Resolution
	// Registry holds the resources allocated for this frame's resolution.
	Registry *Registry
	// Inputs is the immutable per-frame payload supplied by the caller of Frame.
	Inputs any

	written map[Purpose]bool
}

// Written reports whether a resource was written earlier in this frame.
func (fc *FrameContext) Written(p Purpose) bool {
	return fc.written[p]
}

// Pass is one node of the frame graph.
type Pass interface {
	// Name returns a unique, human-readable pass name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Reads returns the resources the pass consumes.
	//
	// Returns:
	//   - []Purpose: consumed purposes
	Reads() []Purpose

	// Writes returns the resources the pass produces. A purpose may have only one writer.
	//
	// Returns:
	//   - []Purpose: produced purposes
	Writes() []Purpose

	// Execute records the pass into the frame.
	//
	// Parameters:
	//   - ctx: cancellation
	//   - fc: the frame context
	//
	// Returns:
	//   - error: error if the pass failed; wrap ErrDeviceLost for device loss
	Execute(ctx context.Context, fc *FrameContext) error
}

// Conditional is implemented by passes that only run on some frames.
// An inactive pass leaves its outputs untouched.
type Conditional interface {
	Pass

	// Active reports whether the pass runs this frame.
	//
	// Parameters:
	//   - fc: the frame context
	//
	// Returns:
	//   - bool: true to execute
	Active(fc *FrameContext) bool
}

// Device is the backend half of the orchestrator: it allocates resources and brackets each frame
// in one command stream.
type Device interface {
	// Allocate creates the backend resource for desc at res.
	//
	// Returns:
	//   - any: the resource, registered under desc.Purpose
	//   - func(): frees the resource; may be nil
	//   - error: allocation failure
	Allocate(desc ResourceDesc, res Resolution) (any, func(), error)

	// BeginFrame opens the frame's command stream.
	BeginFrame(ctx context.Context) error

	// EndFrame submits the frame's command stream.
	EndFrame(ctx context.Context) error

	// Drain blocks until all submitted work has finished.
	Drain() error

	// Reinitialize recreates the device after a loss. Every resource must be reallocated afterwards.
	Reinitialize() error
}
