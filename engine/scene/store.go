package scene

import "slices"

// Store holds one component type, densely packed and ordered by entity creation.
type Store[T any] struct {
	entities []Entity
	values   []T
}

func newStore[T any]() *Store[T] {
	return &Store[T]{}
}

func (st *Store[T]) find(e Entity) (int, bool) {
	return slices.BinarySearch(st.entities, e)
}

// Len returns the number of entities with this component.
func (st *Store[T]) Len() int {
	return len(st.entities)
}

// Has reports whether e has this component.
func (st *Store[T]) Has(e Entity) bool {
	_, ok := st.find(e)
	return ok
}

// Get returns a pointer to e's component. The pointer is invalidated by the next Set or
// Remove on this store.
func (st *Store[T]) Get(e Entity) (*T, bool) {
	i, ok := st.find(e)
	if !ok {
		return nil, false
	}
	return &st.values[i], true
}

func (st *Store[T]) set(e Entity, v T) {
	i, ok := st.find(e)
	if ok {
		st.values[i] = v
		return
	}
	st.entities = slices.Insert(st.entities, i, e)
	st.values = slices.Insert(st.values, i, v)
}

func (st *Store[T]) remove(e Entity) bool {
	i, ok := st.find(e)
	if !ok {
		return false
	}
	st.entities = slices.Delete(st.entities, i, i+1)
	st.values = slices.Delete(st.values, i, i+1)
	return true
}

// Each1 calls fn for every entity holding an A, in entity creation order. fn must not
// mutate the scene.
func Each1[A any](s *Scene, a *Store[A], fn func(e Entity, a *A)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, e := range a.entities {
		fn(e, &a.values[i])
	}
}

// Each2 calls fn for every entity holding both an A and a B, in entity creation order. fn
// must not mutate the scene.
func Each2[A, B any](s *Scene, a *Store[A], b *Store[B], fn func(e Entity, a *A, b *B)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, e := range a.entities {
		bv, ok := b.Get(e)
		if !ok {
			continue
		}
		fn(e, &a.values[i], bv)
	}
}
