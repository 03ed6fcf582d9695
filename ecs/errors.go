package ecs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAllocationExhausted is returned when the allocator has no index space left.
	ErrAllocationExhausted = errors.New("entity allocation exhausted")
	// ErrStaleHandle is returned when an id refers to a dead or recycled slot.
	ErrStaleHandle = errors.New("stale entity handle")
	// ErrEntityNotFound is returned when an operation targets an entity that is not alive.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrTypeNotRegistered is returned when no store exists for a component type.
	ErrTypeNotRegistered = errors.New("component type not registered")
	// ErrComponentNotFound is returned when a store exists but the entity lacks the component.
	ErrComponentNotFound = errors.New("component not found")
	// ErrNilComponent is returned when a type-erased component is nil or a nil pointer.
	ErrNilComponent = errors.New("nil component")
	// ErrAliasedBorrow is returned when a component is already mutably borrowed.
	ErrAliasedBorrow = errors.New("component already borrowed")
)

// EntityError reports a failed entity operation.
type EntityError struct {
	Op     string
	Entity EntityId
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// SystemError wraps the failure of a single system during a tick.
type SystemError struct {
	System string
	Tick   uint64
	Err    error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system %q failed on tick %d: %v", e.System, e.Tick, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

func entityErr(op string, id EntityId, err error) error {
	return &EntityError{Op: op, Entity: id, Err: err}
}
