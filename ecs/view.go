package ecs

import (
	"iter"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// View joins several component stores. The type T must be a struct whose
// fields are pointers to component types. Embedded fields are always required;
// named fields can be marked optional with the `ecs:"optional"` struct tag.
type View[T any] struct {
	world       *World
	types       []reflect.Type
	optional    []bool
	fieldOffset []uintptr
}

// NewView creates a view over w for the struct type T.
func NewView[T any](w *World) *View[T] {
	structType := reflect.TypeFor[T]()
	if structType.Kind() != reflect.Struct {
		panic("View type parameter must be a struct")
	}

	types := make([]reflect.Type, 0, structType.NumField())
	optional := make([]bool, 0, structType.NumField())
	fieldOffset := make([]uintptr, 0, structType.NumField())

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if field.Type.Kind() != reflect.Pointer {
			panic("View struct fields must be pointer types")
		}

		componentType := field.Type.Elem()
		for _, seen := range types {
			if seen == componentType {
				panic("View struct has two fields of type " + componentType.String())
			}
		}

		isOptional := false
		if !field.Anonymous {
			if tag := field.Tag.Get("ecs"); tag != "" {
				if tag != "optional" {
					panic("invalid ecs tag value: \"" + tag + "\" (only \"optional\" is supported)")
				}
				isOptional = true
			}
		}

		types = append(types, componentType)
		optional = append(optional, isOptional)
		fieldOffset = append(fieldOffset, field.Offset)
	}

	return &View[T]{
		world:       w,
		types:       types,
		optional:    optional,
		fieldOffset: fieldOffset,
	}
}

// resolve looks up the stores backing each field. ok is false when a required store is missing.
func (v *View[T]) resolve() (stores []componentStore, ok bool) {
	stores = make([]componentStore, len(v.types))
	for i, typ := range v.types {
		store, found := v.world.store(typ)
		if !found && !v.optional[i] {
			return nil, false
		}
		stores[i] = store
	}
	return stores, true
}

func (v *View[T]) fill(id EntityId, ptr *T, stores []componentStore) bool {
	structPtr := unsafe.Pointer(ptr)

	for i, store := range stores {
		fieldPtr := unsafe.Add(structPtr, v.fieldOffset[i])

		var componentPtr unsafe.Pointer
		if store != nil {
			componentPtr = store.pointer(id)
		}
		if componentPtr == nil && !v.optional[i] {
			return false
		}
		*(*unsafe.Pointer)(fieldPtr) = componentPtr
	}
	return true
}

// Fill populates ptr with the components of id.
// Returns false if the entity is dead or missing a required component.
func (v *View[T]) Fill(id EntityId, ptr *T) bool {
	if !v.world.IsAlive(id) {
		return false
	}
	stores, ok := v.resolve()
	if !ok {
		return false
	}
	return v.fill(id, ptr, stores)
}

// Get returns a populated view struct for id, or nil if it does not match.
func (v *View[T]) Get(id EntityId) *T {
	var result T
	if !v.Fill(id, &result) {
		return nil
	}
	return &result
}

// driver picks the smallest required store to drive iteration.
func (v *View[T]) driver(stores []componentStore) componentStore {
	var best componentStore
	for i, store := range stores {
		if v.optional[i] {
			continue
		}
		if best == nil || store.Len() < best.Len() {
			best = store
		}
	}
	return best
}

func (v *View[T]) candidates(stores []componentStore) iter.Seq[EntityId] {
	if driver := v.driver(stores); driver != nil {
		return driver.ids()
	}
	return v.world.Entities()
}

// borrow marks every present component of id as borrowed, or none of them.
func (v *View[T]) borrow(id EntityId, stores []componentStore) error {
	for i, store := range stores {
		if store == nil || !store.contains(id) {
			continue
		}
		if !store.acquire(id) {
			for _, held := range stores[:i] {
				if held != nil {
					held.release(id)
				}
			}
			return errors.Wrapf(ErrAliasedBorrow, "view over %s at %s", store.Type(), id)
		}
	}
	return nil
}

func (v *View[T]) unborrow(id EntityId, stores []componentStore) {
	for _, store := range stores {
		if store != nil {
			store.release(id)
		}
	}
}

// matching returns the entities matching the view without borrowing anything.
func (v *View[T]) matching() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		stores, ok := v.resolve()
		if !ok {
			return
		}

		var result T
		for id := range v.candidates(stores) {
			if !v.fill(id, &result, stores) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// yieldBorrowed fills, borrows and yields a single entity. It returns false when iteration should stop.
func (v *View[T]) yieldBorrowed(id EntityId, stores []componentStore, result *T, yield func(EntityId, T) bool) bool {
	if !v.fill(id, result, stores) {
		return true
	}
	if err := v.borrow(id, stores); err != nil {
		panic(err)
	}
	defer v.unborrow(id, stores)
	return yield(id, *result)
}

// Iter returns a lazy iterator over all entities matching the view.
// Every yielded component is borrowed until the loop body returns, so a
// conflicting GetComponentMut fails with ErrAliasedBorrow. It panics if a
// matching component is already borrowed elsewhere.
func (v *View[T]) Iter() iter.Seq2[EntityId, T] {
	return func(yield func(EntityId, T) bool) {
		stores, ok := v.resolve()
		if !ok {
			return
		}

		var result T
		for id := range v.candidates(stores) {
			if !v.yieldBorrowed(id, stores, &result, yield) {
				return
			}
		}
	}
}

// Values returns an iterator over just the view structs.
func (v *View[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, value := range v.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// Spawn creates an entity from the non-nil fields of data.
// Every component type must already be registered.
func (v *View[T]) Spawn(data T) (EntityId, error) {
	structPtr := unsafe.Pointer(&data)

	components := make([]any, 0, len(v.types))
	for i, typ := range v.types {
		componentPtr := *(*unsafe.Pointer)(unsafe.Add(structPtr, v.fieldOffset[i]))
		if componentPtr == nil {
			if !v.optional[i] {
				return 0, errors.Errorf("required component %s is nil", typ)
			}
			continue
		}
		components = append(components, reflect.NewAt(typ, componentPtr).Elem().Interface())
	}

	return v.world.Spawn(components...)
}
