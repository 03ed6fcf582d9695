package ecs

import (
	"errors"
	"reflect"
)

// Commands buffers structural changes made during a tick. The dispatcher
// flushes them after the last system has run, so systems can destroy or add
// entities while ranging over lazy queries.
type Commands struct {
	creates  []createCommand
	destroys []EntityId
	adds     []addComponentCommand
	removes  []removeComponentCommand
	defers   []deferCommand
}

// NewCommands creates an empty command buffer.
func NewCommands() *Commands {
	return &Commands{}
}

type deferCommand struct {
	fn func()
}

type createCommand struct {
	components []any
}

type addComponentCommand struct {
	entity    EntityId
	component any
}

type removeComponentCommand struct {
	entity   EntityId
	compType reflect.Type
}

// Defer queues a function to run after all structural changes are applied.
func (c *Commands) Defer(fn func()) {
	c.defers = append(c.defers, deferCommand{fn: fn})
}

// Create queues the creation of an entity with the given components.
func (c *Commands) Create(components ...any) {
	c.creates = append(c.creates, createCommand{components: components})
}

// Destroy queues the destruction of an entity.
func (c *Commands) Destroy(entity EntityId) {
	c.destroys = append(c.destroys, entity)
}

// AddComponent queues a component addition. The component type must be registered by flush time.
func (c *Commands) AddComponent(entity EntityId, component any) {
	c.adds = append(c.adds, addComponentCommand{
		entity:    entity,
		component: component,
	})
}

// RemoveComponent queues a component removal.
func (c *Commands) RemoveComponent(entity EntityId, compType reflect.Type) {
	c.removes = append(c.removes, removeComponentCommand{
		entity:   entity,
		compType: compType,
	})
}

// QueueRemove queues the removal of the T component of entity.
func QueueRemove[T any](c *Commands, entity EntityId) {
	c.RemoveComponent(entity, reflect.TypeFor[T]())
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.creates) + len(c.destroys) + len(c.adds) + len(c.removes) + len(c.defers)
}

// Flush applies all queued commands to w and resets the buffer. Destroys run
// first, then removals, additions, creations and finally deferred functions.
// Commands targeting an entity destroyed in the same flush are dropped. Every
// command is attempted; the failures are joined into the returned error.
func (c *Commands) Flush(w *World) error {
	defer c.reset()

	var errs []error
	destroyed := make(map[EntityId]bool)

	for _, id := range c.destroys {
		if destroyed[id] {
			continue
		}
		if err := w.DestroyEntity(id); err != nil {
			errs = append(errs, err)
			continue
		}
		destroyed[id] = true
	}

	for _, cmd := range c.removes {
		if !destroyed[cmd.entity] {
			w.removeType(cmd.entity, cmd.compType)
		}
	}

	for _, cmd := range c.adds {
		if destroyed[cmd.entity] {
			continue
		}
		if err := w.addAny(cmd.entity, cmd.component); err != nil {
			errs = append(errs, err)
		}
	}

	for _, cmd := range c.creates {
		if _, err := w.Spawn(cmd.components...); err != nil {
			errs = append(errs, err)
		}
	}

	for _, df := range c.defers {
		df.fn()
	}

	return errors.Join(errs...)
}

func (c *Commands) reset() {
	c.creates = c.creates[:0]
	c.destroys = c.destroys[:0]
	c.adds = c.adds[:0]
	c.removes = c.removes[:0]
	c.defers = c.defers[:0]
}
