package ecs

import (
	"iter"
	"slices"
)

// CachedQuery wraps a View with a per-tick snapshot of the matching entities.
// Execute materialises the snapshot; Iter walks it, so entities may be created,
// destroyed or changed while iterating without invalidating the loop.
type CachedQuery[T any] struct {
	view           *View[T]
	world          *World
	cachedEntities []EntityId
	cacheValid     bool
}

// NewCachedQuery creates a CachedQuery over w for the view struct T.
func NewCachedQuery[T any](w *World) *CachedQuery[T] {
	return &CachedQuery[T]{
		view:  NewView[T](w),
		world: w,
	}
}

// Execute snapshots the entities currently matching the query.
func (q *CachedQuery[T]) Execute() {
	q.cachedEntities = q.cachedEntities[:0]
	for id := range q.view.matching() {
		q.cachedEntities = append(q.cachedEntities, id)
	}
	q.cacheValid = true
}

// Invalidate drops the snapshot; Iter panics until Execute runs again.
func (q *CachedQuery[T]) Invalidate() {
	q.cacheValid = false
}

// Len returns the size of the current snapshot.
func (q *CachedQuery[T]) Len() int {
	return len(q.cachedEntities)
}

// Entities returns a copy of the current snapshot.
func (q *CachedQuery[T]) Entities() []EntityId {
	return slices.Clone(q.cachedEntities)
}

// Iter yields every snapshotted entity that still matches the view, skipping
// entities destroyed or changed since Execute. Components are borrowed while
// yielded. Panics if Execute has not been called.
func (q *CachedQuery[T]) Iter() iter.Seq2[EntityId, T] {
	if !q.cacheValid {
		panic("CachedQuery.Iter() called before CachedQuery.Execute()")
	}

	return func(yield func(EntityId, T) bool) {
		stores, ok := q.view.resolve()
		if !ok {
			return
		}

		var result T
		for _, id := range q.cachedEntities {
			if !q.world.IsAlive(id) {
				continue
			}
			if !q.view.yieldBorrowed(id, stores, &result, yield) {
				return
			}
		}
	}
}

// Values yields just the view structs of Iter.
func (q *CachedQuery[T]) Values() iter.Seq[T] {
	seq := q.Iter()
	return func(yield func(T) bool) {
		for _, value := range seq {
			if !yield(value) {
				return
			}
		}
	}
}
