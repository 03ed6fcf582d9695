package ecs

import (
	"iter"
	"reflect"
	"unsafe"
)

// componentStore is the type-erased view of a Store[T] held by the World.
type componentStore interface {
	Type() reflect.Type
	Len() int
	contains(id EntityId) bool
	remove(id EntityId) bool
	isBorrowed(id EntityId) bool
	pointer(id EntityId) unsafe.Pointer
	acquire(id EntityId) bool
	release(id EntityId)
	insertAny(id EntityId, item any) bool
	getAny(id EntityId) (any, bool)
	ids() iter.Seq[EntityId]
}

var _ componentStore = (*Store[struct{}])(nil)
