package ecs

import "fmt"

// EntityId encodes both the slot generation (upper 32 bits) and the slot index (lower 32 bits).
// The zero value is never issued and can be used as a nil entity.
type EntityId uint64

// NewEntityId creates an EntityId from a slot index and generation
func NewEntityId(index uint32, generation uint32) EntityId {
	return EntityId(uint64(generation)<<32 | uint64(index))
}

// Index extracts the slot index from the entity ID
func (e EntityId) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// Generation extracts the slot generation from the entity ID
func (e EntityId) Generation() uint32 {
	return uint32(e >> 32)
}

// IsZero reports whether e is the nil entity.
func (e EntityId) IsZero() bool {
	return e == 0
}

func (e EntityId) String() string {
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}
