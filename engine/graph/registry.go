package graph

import (
	"fmt"
	"sync"
)

type slot struct {
	desc    ResourceDesc
	gen     uint64
	value   any
	release func()
}

// Registry holds the live resources of a pipeline, one per purpose.
// It is safe for concurrent use.
type Registry struct {
	mu      *sync.Mutex
	nextGen uint64
	entries map[Key]*slot
	current map[Purpose]Key
}

// Handle is a typed reference to one allocation. The zero Handle is always stale.
type Handle[T any] struct {
	Key Key
	gen uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:      &sync.Mutex{},
		entries: make(map[Key]*slot),
		current: make(map[Purpose]Key),
	}
}

// Register stores value as the resource for desc.Purpose at res, releasing any previous allocation of that purpose.
//
// Parameters:
//   - r: the registry
//   - desc: resource declaration
//   - res: resolution the value was allocated at
//   - value: the backend resource
//   - release: frees the backend resource; may be nil
//
// Returns:
//   - Handle[T]: handle valid until the allocation is released
func Register[T any](r *Registry, desc ResourceDesc, res Resolution, value T, release func()) Handle[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(desc.Purpose)

	r.nextGen++
	key := Key{Purpose: desc.Purpose, Resolution: res}
	r.entries[key] = &slot{desc: desc, gen: r.nextGen, value: value, release: release}
	r.current[desc.Purpose] = key
	return Handle[T]{Key: key, gen: r.nextGen}
}

// Resolve returns the value behind h.
//
// Returns:
//   - T: the resource
//   - error: ErrStaleHandle if the allocation was released or replaced, ErrTypeMismatch if it is not a T
func Resolve[T any](r *Registry, h Handle[T]) (T, error) {
	var zero T
	r.mu.Lock()
	s, ok := r.entries[h.Key]
	r.mu.Unlock()
	if !ok || s.gen != h.gen {
		return zero, fmt.Errorf("%w: %s at %s", ErrStaleHandle, h.Key.Purpose, h.Key.Resolution)
	}
	v, ok := s.value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, h.Key.Purpose, s.value)
	}
	return v, nil
}

// Lookup returns the current allocation for a purpose together with its handle.
//
// Returns:
//   - T: the resource
//   - Handle[T]: handle to the allocation
//   - error: ErrUnknownResource if nothing is allocated, ErrTypeMismatch if it is not a T
func Lookup[T any](r *Registry, p Purpose) (T, Handle[T], error) {
	var zero T
	r.mu.Lock()
	key, ok := r.current[p]
	var s *slot
	if ok {
		s = r.entries[key]
	}
	r.mu.Unlock()
	if s == nil {
		return zero, Handle[T]{}, fmt.Errorf("%w: %s", ErrUnknownResource, p)
	}
	v, ok := s.value.(T)
	if !ok {
		return zero, Handle[T]{}, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, p, s.value)
	}
	return v, Handle[T]{Key: key, gen: s.gen}, nil
}

// Has reports whether a purpose is currently allocated.
func (r *Registry) Has(p Purpose) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.current[p]
	return ok
}

// Len returns the number of live allocations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Release frees the allocation of a purpose, if any.
func (r *Registry) Release(p Purpose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(p)
}

// InvalidateScaled releases every allocation that scales with the output size.
//
// Returns:
//   - int: number of released allocations
func (r *Registry) InvalidateScaled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for p, key := range r.current {
		if r.entries[key].desc.ScalesWithOutput {
			r.releaseLocked(p)
			n++
		}
	}
	return n
}

// ReleaseAll frees every allocation.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p := range r.current {
		r.releaseLocked(p)
	}
}

func (r *Registry) releaseLocked(p Purpose) {
	key, ok := r.current[p]
	if !ok {
		return
	}
	if s := r.entries[key]; s != nil && s.release != nil {
		s.release()
	}
	delete(r.entries, key)
	delete(r.current, p)
}
