package ecs

import (
	"iter"
	"math"
)

// MaxEntities is the largest number of slots an allocator can hand out.
const MaxEntities = math.MaxUint32

type entitySlot struct {
	generation uint32
	alive      bool
}

// EntityAllocator issues generational entity ids and recycles destroyed slots.
type EntityAllocator struct {
	slots     []entitySlot
	freeSlots []uint32
	capacity  int
	alive     int
}

// NewEntityAllocator creates an allocator that hands out at most capacity slots.
// A capacity <= 0 or above MaxEntities means MaxEntities.
func NewEntityAllocator(capacity int) *EntityAllocator {
	const limit = min(math.MaxInt, MaxEntities)
	if capacity <= 0 || uint64(capacity) > limit {
		capacity = limit
	}
	return &EntityAllocator{
		capacity: capacity,
	}
}

// Create allocates a fresh or recycled slot.
func (a *EntityAllocator) Create() (EntityId, error) {
	if n := len(a.freeSlots); n > 0 {
		index := a.freeSlots[n-1]
		a.freeSlots = a.freeSlots[:n-1]

		slot := &a.slots[index]
		slot.alive = true
		a.alive++
		return NewEntityId(index, slot.generation), nil
	}

	if len(a.slots) >= a.capacity {
		return 0, ErrAllocationExhausted
	}

	index := uint32(len(a.slots))
	a.slots = append(a.slots, entitySlot{generation: 1, alive: true})
	a.alive++
	return NewEntityId(index, 1), nil
}

// Destroy frees the slot referenced by id and bumps its generation.
func (a *EntityAllocator) Destroy(id EntityId) error {
	if !a.IsAlive(id) {
		return ErrStaleHandle
	}

	index := id.Index()
	slot := &a.slots[index]
	slot.alive = false
	a.alive--

	// Slots whose generation would wrap are retired for good.
	if slot.generation == math.MaxUint32 {
		return nil
	}
	slot.generation++
	a.freeSlots = append(a.freeSlots, index)
	return nil
}

// IsAlive reports whether id refers to the current occupant of a live slot.
func (a *EntityAllocator) IsAlive(id EntityId) bool {
	index := int(id.Index())
	if index >= len(a.slots) {
		return false
	}
	slot := a.slots[index]
	return slot.alive && slot.generation == id.Generation()
}

// Len returns the number of live entities.
func (a *EntityAllocator) Len() int {
	return a.alive
}

// Cap returns the number of slots ever allocated, live or free.
func (a *EntityAllocator) Cap() int {
	return len(a.slots)
}

// Alive returns a lazy iterator over live entities in slot order.
// Creating or destroying entities while ranging over it is undefined; collect first.
func (a *EntityAllocator) Alive() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		for i, slot := range a.slots {
			if !slot.alive {
				continue
			}
			if !yield(NewEntityId(uint32(i), slot.generation)) {
				return
			}
		}
	}
}
