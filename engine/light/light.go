package light

import (
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Light is a point light: a world-space location and a linear RGB colour.
// Radiance falls off with the inverse square of distance.
type Light struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// ID identifies a light inside a Set. IDs are never reused.
type ID uint64

// NewLight creates a white light at (2, 2, 2) adjusted by options.
//
// Parameters:
//   - opts: functional options to configure the light
//
// Returns:
//   - Light: the configured light
func NewLight(opts ...LightBuilderOption) Light {
	l := Light{
		Position: mgl32.Vec3{2, 2, 2},
		Color:    mgl32.Vec3{1, 1, 1},
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

type entry struct {
	id    ID
	light Light
}

type setImpl struct {
	mu *sync.Mutex

	nextID  ID
	entries []entry
	version uint64
}

// Set is an insertion-ordered light collection. Iteration order is the order lights were added,
// and removal keeps the relative order of the remaining lights, so shading sums are stable across frames.
type Set interface {
	// Add appends a light.
	//
	// Parameters:
	//   - l: the light to add
	//
	// Returns:
	//   - ID: handle for later updates or removal
	Add(l Light) ID

	// Remove deletes a light.
	//
	// Parameters:
	//   - id: light handle
	//
	// Returns:
	//   - bool: false if id is unknown
	Remove(id ID) bool

	// Get returns a light by handle.
	//
	// Parameters:
	//   - id: light handle
	//
	// Returns:
	//   - Light: the light value
	//   - bool: false if id is unknown
	Get(id ID) (Light, bool)

	// Update replaces a light in place, keeping its position in the order.
	//
	// Parameters:
	//   - id: light handle
	//   - l: new light value
	//
	// Returns:
	//   - bool: false if id is unknown
	Update(id ID, l Light) bool

	// All returns a copy of every light in insertion order.
	//
	// Returns:
	//   - []Light: ordered copy, safe to retain
	All() []Light

	// IDs returns the handle of every light in insertion order.
	IDs() []ID

	// Len returns the number of lights.
	Len() int

	// Version increments on every mutation. Used to detect lighting changes that invalidate the voxel lightmap.
	Version() uint64
}

var _ Set = &setImpl{}

// NewSet creates a Set holding the given lights in order.
func NewSet(lights ...Light) Set {
	s := &setImpl{mu: &sync.Mutex{}, nextID: 1}
	for _, l := range lights {
		s.Add(l)
	}
	return s
}

func (s *setImpl) Add(l Light) ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.entries = append(s.entries, entry{id: id, light: l})
	s.version++
	return id
}

func (s *setImpl) Remove(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	s.version++
	return true
}

func (s *setImpl) Get(id ID) (Light, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Light{}, false
	}
	return s.entries[i].light, true
}

func (s *setImpl) Update(id ID, l Light) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	if s.entries[i].light != l {
		s.entries[i].light = l
		s.version++
	}
	return true
}

func (s *setImpl) All() []Light {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Light, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.light
	}
	return out
}

func (s *setImpl) IDs() []ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ID, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.id
	}
	return out
}

func (s *setImpl) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *setImpl) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *setImpl) indexOf(id ID) int {
	return slices.IndexFunc(s.entries, func(e entry) bool { return e.id == id })
}
