package ecs

import (
	"reflect"
	"unsafe"
)

type singletonEntry struct {
	typ     reflect.Type
	dataPtr unsafe.Pointer
}

// AddSingleton stores value as the world's single instance of its type,
// replacing any previous one. Pointers are dereferenced.
func (w *World) AddSingleton(value any) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	ptr := reflect.New(v.Type())
	ptr.Elem().Set(v)

	w.singletons[v.Type()] = &singletonEntry{
		typ:     v.Type(),
		dataPtr: ptr.UnsafePointer(),
	}
}

// RemoveSingleton drops the singleton of the given type.
func (w *World) RemoveSingleton(typ reflect.Type) bool {
	if _, ok := w.singletons[typ]; !ok {
		return false
	}
	delete(w.singletons, typ)
	return true
}

func (w *World) getSingletonEntry(typ reflect.Type) *singletonEntry {
	return w.singletons[typ]
}

// Singleton provides access to a single component instance that is not
// associated with any entity, such as a simulation clock or configuration.
type Singleton[T any] struct {
	world        *World
	componentPtr unsafe.Pointer
}

// NewSingleton creates a Singleton accessor for w. If the singleton does not
// exist yet it is created from initializer, or the zero value.
func NewSingleton[T any](w *World, initializer ...T) *Singleton[T] {
	typ := reflect.TypeFor[T]()

	entry := w.getSingletonEntry(typ)
	if entry == nil {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		w.AddSingleton(value)
		entry = w.getSingletonEntry(typ)
	}

	return &Singleton[T]{
		world:        w,
		componentPtr: entry.dataPtr,
	}
}

// Get returns a pointer to the singleton, or nil if it was removed.
func (s *Singleton[T]) Get() *T {
	s.updateCache()
	if s.componentPtr == nil {
		return nil
	}
	return (*T)(s.componentPtr)
}

// Exists reports whether the singleton is present in the world.
func (s *Singleton[T]) Exists() bool {
	s.updateCache()
	return s.componentPtr != nil
}

func (s *Singleton[T]) updateCache() {
	if s.world == nil {
		return
	}
	if entry := s.world.getSingletonEntry(reflect.TypeFor[T]()); entry != nil {
		s.componentPtr = entry.dataPtr
	} else {
		s.componentPtr = nil
	}
}
