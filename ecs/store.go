package ecs

import (
	"iter"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	storeBlockSize = 64
)

type slotMeta struct {
	generation uint32
	filled     bool
	borrowed   bool
}

// Store holds the components of a single type T, indexed by entity slot.
// Components live in fixed-size blocks so pointers handed out by GetMut stay
// valid while the store grows.
type Store[T any] struct {
	typ    reflect.Type
	blocks []*[storeBlockSize]T
	meta   []*[storeBlockSize]slotMeta
	count  int
}

// NewStore creates an empty store for component type T.
// It panics if T is a pointer, map, channel or function type.
func NewStore[T any]() *Store[T] {
	typ := reflect.TypeFor[T]()
	checkComponentType(typ)
	return &Store[T]{typ: typ}
}

// Type returns the component type held by this store.
func (s *Store[T]) Type() reflect.Type {
	return s.typ
}

// Len returns the number of components in the store.
func (s *Store[T]) Len() int {
	return s.count
}

func (s *Store[T]) slot(index uint32) (*slotMeta, *T) {
	blockIdx := int(index / storeBlockSize)
	slotIdx := index % storeBlockSize
	if blockIdx >= len(s.blocks) {
		return nil, nil
	}
	return &s.meta[blockIdx][slotIdx], &s.blocks[blockIdx][slotIdx]
}

// lookup returns the slot for id only if it holds a component of the same generation.
func (s *Store[T]) lookup(id EntityId) (*slotMeta, *T, bool) {
	meta, value := s.slot(id.Index())
	if meta == nil || !meta.filled || meta.generation != id.Generation() {
		return nil, nil, false
	}
	return meta, value, true
}

func (s *Store[T]) grow(index uint32) {
	blockIdx := int(index / storeBlockSize)
	for blockIdx >= len(s.blocks) {
		s.blocks = append(s.blocks, new([storeBlockSize]T))
		s.meta = append(s.meta, new([storeBlockSize]slotMeta))
	}
}

// Insert attaches value to id, returning the previous value if the same entity already had one.
// Insert does not check liveness. It panics if the slot is currently borrowed.
func (s *Store[T]) Insert(id EntityId, value T) (T, bool) {
	s.grow(id.Index())
	meta, slot := s.slot(id.Index())
	if meta.borrowed {
		panic(errors.Wrapf(ErrAliasedBorrow, "insert %s into %s store", id, s.typ))
	}

	var prev T
	replaced := false
	if meta.filled && meta.generation == id.Generation() {
		prev = *slot
		replaced = true
	} else if !meta.filled {
		s.count++
	}

	meta.filled = true
	meta.generation = id.Generation()
	*slot = value
	return prev, replaced
}

// Remove detaches and returns the component of id, if present.
// It panics if the component is currently borrowed.
func (s *Store[T]) Remove(id EntityId) (T, bool) {
	var zero T
	meta, slot, ok := s.lookup(id)
	if !ok {
		return zero, false
	}
	if meta.borrowed {
		panic(errors.Wrapf(ErrAliasedBorrow, "remove %s from %s store", id, s.typ))
	}

	prev := *slot
	*slot = zero
	meta.filled = false
	s.count--
	return prev, true
}

// Get returns a copy of the component of id.
func (s *Store[T]) Get(id EntityId) (T, bool) {
	_, slot, ok := s.lookup(id)
	if !ok {
		var zero T
		return zero, false
	}
	return *slot, true
}

// Contains reports whether id has a component in this store.
func (s *Store[T]) Contains(id EntityId) bool {
	_, _, ok := s.lookup(id)
	return ok
}

// GetMut borrows the component of id for writing. Only one borrow per
// component may be outstanding; a second one fails with ErrAliasedBorrow.
// The returned RefMut must be released.
func (s *Store[T]) GetMut(id EntityId) (*RefMut[T], error) {
	meta, slot, ok := s.lookup(id)
	if !ok {
		return nil, ErrComponentNotFound
	}
	if meta.borrowed {
		return nil, ErrAliasedBorrow
	}
	meta.borrowed = true
	return &RefMut[T]{store: s, id: id, ptr: slot}, nil
}

// Update borrows the component of id, passes it to fn and releases it afterwards.
func (s *Store[T]) Update(id EntityId, fn func(*T) error) error {
	ref, err := s.GetMut(id)
	if err != nil {
		return err
	}
	defer ref.Release()
	return fn(ref.Get())
}

// All returns a lazy iterator over (entity, component copy) pairs in slot order.
func (s *Store[T]) All() iter.Seq2[EntityId, T] {
	return func(yield func(EntityId, T) bool) {
		for blockIdx, block := range s.meta {
			for slotIdx := range block {
				meta := &block[slotIdx]
				if !meta.filled {
					continue
				}
				index := uint32(blockIdx*storeBlockSize + slotIdx)
				if !yield(NewEntityId(index, meta.generation), s.blocks[blockIdx][slotIdx]) {
					return
				}
			}
		}
	}
}

// AllMut returns a lazy iterator over (entity, component pointer) pairs in slot order.
// Each component is borrowed while it is yielded; the pointer must not be kept
// past the loop body. It panics if it reaches a component that is already borrowed.
func (s *Store[T]) AllMut() iter.Seq2[EntityId, *T] {
	return func(yield func(EntityId, *T) bool) {
		for blockIdx, block := range s.meta {
			for slotIdx := range block {
				meta := &block[slotIdx]
				if !meta.filled {
					continue
				}
				id := NewEntityId(uint32(blockIdx*storeBlockSize+slotIdx), meta.generation)
				if meta.borrowed {
					panic(errors.Wrapf(ErrAliasedBorrow, "iterate %s in %s store", id, s.typ))
				}

				if !yieldMut(meta, id, &s.blocks[blockIdx][slotIdx], yield) {
					return
				}
			}
		}
	}
}

func (s *Store[T]) ids() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		for id := range s.All() {
			if !yield(id) {
				return
			}
		}
	}
}

func (s *Store[T]) contains(id EntityId) bool {
	return s.Contains(id)
}

func (s *Store[T]) remove(id EntityId) bool {
	_, ok := s.Remove(id)
	return ok
}

func (s *Store[T]) isBorrowed(id EntityId) bool {
	meta, _, ok := s.lookup(id)
	return ok && meta.borrowed
}

func (s *Store[T]) pointer(id EntityId) unsafe.Pointer {
	_, slot, ok := s.lookup(id)
	if !ok {
		return nil
	}
	return unsafe.Pointer(slot)
}

func (s *Store[T]) acquire(id EntityId) bool {
	meta, _, ok := s.lookup(id)
	if !ok || meta.borrowed {
		return false
	}
	meta.borrowed = true
	return true
}

// yieldMut marks meta borrowed for the duration of yield, even if it panics.
func yieldMut[T any](meta *slotMeta, id EntityId, ptr *T, yield func(EntityId, *T) bool) bool {
	meta.borrowed = true
	defer func() { meta.borrowed = false }()
	return yield(id, ptr)
}

func (s *Store[T]) release(id EntityId) {
	if meta, _, ok := s.lookup(id); ok {
		meta.borrowed = false
	}
}

func (s *Store[T]) insertAny(id EntityId, item any) bool {
	var value T
	if ptr, ok := item.(*T); ok {
		if ptr == nil {
			return false
		}
		value = *ptr
	} else if val, ok := item.(T); ok {
		value = val
	} else {
		return false
	}
	s.Insert(id, value)
	return true
}

func (s *Store[T]) getAny(id EntityId) (any, bool) {
	return s.Get(id)
}

// RefMut is an exclusive borrow of one component.
type RefMut[T any] struct {
	store *Store[T]
	id    EntityId
	ptr   *T
}

// Get returns the borrowed component, or nil once released.
func (r *RefMut[T]) Get() *T {
	return r.ptr
}

// Entity returns the entity owning the borrowed component.
func (r *RefMut[T]) Entity() EntityId {
	return r.id
}

// Release ends the borrow. Releasing twice is a no-op.
func (r *RefMut[T]) Release() {
	if r.store == nil {
		return
	}
	r.store.release(r.id)
	r.store = nil
	r.ptr = nil
}

// checkComponentType panics for kinds that are not plain data.
func checkComponentType(typ reflect.Type) {
	switch typ.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func:
		panic("components cannot be pointers, maps, channels, or functions: " + typ.String())
	}
}
