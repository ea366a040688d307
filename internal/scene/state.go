package scene

import (
	"sync"
	"sync/atomic"
)

// State wraps the scene with interior mutability. All access goes through
// the scoped closures; no reference to the scene escapes them. Single
// writer, multiple readers between writes.
type State struct {
	mu          sync.RWMutex
	scene       *Scene
	nextNumeric atomic.Uint32
}

// NewState takes ownership of the scene (nil means empty) and seeds the id
// allocator at max(existing numeric ids) + 1.
func NewState(s *Scene) *State {
	if s == nil {
		s = &Scene{}
	}
	st := &State{scene: s}
	st.seedAllocator()
	return st
}

// seedAllocator raises the allocator to cover the scene's numeric ids. It
// never lowers it: ids issued earlier in the session stay retired even
// after a scene swap, so handles from before the swap cannot alias new
// entities.
func (st *State) seedAllocator() {
	var max uint32
	for _, e := range st.scene.Entities {
		if e.NumericID > max {
			max = e.NumericID
		}
	}
	if max > st.nextNumeric.Load() {
		st.nextNumeric.Store(max)
	}
}

// WithScene runs fn under the read lock.
func (st *State) WithScene(fn func(*Scene)) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	fn(st.scene)
}

// WithSceneMut runs fn under the write lock.
func (st *State) WithSceneMut(fn func(*Scene)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st.scene)
}

// Replace swaps in a new scene wholesale. The id allocator only moves
// forward across the swap.
func (st *State) Replace(s *Scene) {
	if s == nil {
		s = &Scene{}
	}
	st.mu.Lock()
	st.scene = s
	st.seedAllocator()
	st.mu.Unlock()
}

// GenerateNumericID returns the next runtime entity id. Monotonic, never
// reused during a session.
func (st *State) GenerateNumericID() uint32 {
	return st.nextNumeric.Add(1)
}

// EntityCount returns the number of entities.
func (st *State) EntityCount() int {
	var n int
	st.WithScene(func(s *Scene) { n = len(s.Entities) })
	return n
}

// HasEntity reports whether a handle resolves to an entity.
func (st *State) HasEntity(id EntityID) bool {
	var ok bool
	st.WithScene(func(s *Scene) { ok = s.FindByEntityID(id) != nil })
	return ok
}
