// Package graph orders render passes by their resource dependencies and owns the resources they share.
// Resources live in a Registry keyed by purpose and resolution and are reached through typed,
// generation-checked handles, so nothing can keep using an attachment freed by a resize.
package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is returned by Compile when pass dependencies form a cycle.
	ErrCycle = errors.New("pass dependencies form a cycle")
	// ErrMissingProducer is returned by Compile when a transient resource is read but never written.
	ErrMissingProducer = errors.New("transient resource has no producer")
	// ErrMultipleWriters is returned by Compile when two passes write the same resource.
	ErrMultipleWriters = errors.New("resource has more than one writer")
	// ErrUnknownResource is returned when a purpose was never declared or is not allocated.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrStaleHandle is returned when a handle outlived the allocation it was issued for.
	ErrStaleHandle = errors.New("stale resource handle")
	// ErrTypeMismatch is returned when a resource is resolved as the wrong type.
	ErrTypeMismatch = errors.New("resource type mismatch")
	// ErrBarrier is returned when a pass would read a transient resource before its producer ran this frame.
	ErrBarrier = errors.New("read before write")
	// ErrDeviceLost signals that the device dropped the in-flight frame. Backends wrap it.
	ErrDeviceLost = errors.New("device lost")
	// ErrAllocation wraps every resource allocation failure. Allocation is never retried.
	ErrAllocation = errors.New("resource allocation failed")
	// ErrNotCompiled is returned by Frame before a successful Compile.
	ErrNotCompiled = errors.New("orchestrator not compiled")
)

// Purpose names what a resource is for, such as the G-buffer or the AO buffer.
type Purpose string

// Resolution is a 2D size in pixels, or the edge length of a cubic volume in Width with Height 0.
type Resolution struct {
	Width, Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Key identifies one allocation in the Registry.
type Key struct {
	Purpose    Purpose
	Resolution Resolution
}

// Kind describes a resource lifetime.
type Kind int

const (
	// Transient resources are rewritten every frame before they are read.
	Transient Kind = iota
	// Persistent resources keep their contents across frames.
	Persistent
)

func (k Kind) String() string {
	if k == Persistent {
		return "persistent"
	}
	return "transient"
}

// Format names the pixel format of a resource. Backends map it to their own enum.
type Format string

// ResourceDesc declares a resource to the orchestrator.
type ResourceDesc struct {
	Purpose Purpose
	Format  Format
	Kind    Kind
	// ScalesWithOutput resources are sized to the output and recreated on resize.
	ScalesWithOutput bool
	// Size is used when ScalesWithOutput is false.
	Size Resolution
}
