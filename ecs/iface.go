package ecs

import (
	"reflect"
	"unsafe"
)

// iface represents the internal memory layout of an interface{}.
type iface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

// typeId returns an integer identity for t, usable as an intmap key.
// reflect.Type values are interfaces over a unique *rtype, so the data word
// identifies the type for the lifetime of the process.
func typeId(t reflect.Type) int {
	ptr := (*iface)(unsafe.Pointer(&t)).data
	return int(uintptr(ptr))
}
