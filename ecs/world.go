package ecs

import (
	"iter"
	"reflect"
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/pkg/errors"
)

// World owns every entity, component store and singleton of a simulation.
// A World is not safe for concurrent use; systems access it one at a time.
type World struct {
	entities   *EntityAllocator
	stores     *intmap.Map[int, componentStore]
	order      []componentStore
	singletons map[reflect.Type]*singletonEntry
}

type worldConfig struct {
	maxEntities int
}

// WorldOption configures a World.
type WorldOption func(*worldConfig)

// WithMaxEntities caps the number of entity slots the world may allocate.
func WithMaxEntities(n int) WorldOption {
	return func(c *worldConfig) {
		c.maxEntities = n
	}
}

// NewWorld creates an empty world.
func NewWorld(opts ...WorldOption) *World {
	var cfg worldConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &World{
		entities:   NewEntityAllocator(cfg.maxEntities),
		stores:     intmap.New[int, componentStore](32),
		singletons: make(map[reflect.Type]*singletonEntry),
	}
}

// CreateEntity allocates a new entity with no components.
func (w *World) CreateEntity() (EntityId, error) {
	id, err := w.entities.Create()
	if err != nil {
		return 0, errors.Wrapf(err, "create entity (%d live)", w.entities.Len())
	}
	return id, nil
}

// Spawn creates an entity with the given components. Each component type must
// already be registered. On failure the partially built entity is destroyed.
func (w *World) Spawn(components ...any) (EntityId, error) {
	id, err := w.CreateEntity()
	if err != nil {
		return 0, err
	}

	for _, component := range components {
		if err := w.addAny(id, component); err != nil {
			_ = w.DestroyEntity(id)
			return 0, err
		}
	}
	return id, nil
}

// DestroyEntity removes id and all of its components.
// It fails with ErrStaleHandle if id is not alive, and with ErrAliasedBorrow
// (leaving the entity untouched) if one of its components is borrowed.
func (w *World) DestroyEntity(id EntityId) error {
	if !w.entities.IsAlive(id) {
		return entityErr("destroy entity", id, ErrStaleHandle)
	}

	for _, store := range w.order {
		if store.isBorrowed(id) {
			return entityErr("destroy entity", id, errors.Wrapf(ErrAliasedBorrow, "%s", store.Type()))
		}
	}

	for _, store := range w.order {
		store.remove(id)
	}

	return w.entities.Destroy(id)
}

// IsAlive reports whether id refers to a live entity.
func (w *World) IsAlive(id EntityId) bool {
	return w.entities.IsAlive(id)
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.entities.Len()
}

// Entities returns a lazy iterator over live entities in slot order.
// Do not create or destroy entities while ranging over it; use EntityList instead.
func (w *World) Entities() iter.Seq[EntityId] {
	return w.entities.Alive()
}

// EntityList returns a snapshot of all live entities that is safe to mutate against.
func (w *World) EntityList() []EntityId {
	return slices.Collect(w.entities.Alive())
}

// ComponentTypes returns the registered component types in registration order.
func (w *World) ComponentTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(w.order))
	for _, store := range w.order {
		types = append(types, store.Type())
	}
	return types
}

// ComponentsOf returns copies of every component attached to id, in registration order.
func (w *World) ComponentsOf(id EntityId) []any {
	var components []any
	for _, store := range w.order {
		if comp, ok := store.getAny(id); ok {
			components = append(components, comp)
		}
	}
	return components
}

func (w *World) store(typ reflect.Type) (componentStore, bool) {
	return w.stores.Get(typeId(typ))
}

func (w *World) addStore(store componentStore) {
	w.stores.Put(typeId(store.Type()), store)
	w.order = append(w.order, store)
}

// addAny attaches a type-erased component. The component type must already be registered.
func (w *World) addAny(id EntityId, component any) error {
	if !w.entities.IsAlive(id) {
		return entityErr("add component", id, ErrEntityNotFound)
	}

	if isNilComponent(component) {
		return entityErr("add component", id, errors.Wrapf(ErrNilComponent, "%T", component))
	}

	typ := componentType(component)
	store, ok := w.store(typ)
	if !ok {
		return entityErr("add component", id, errors.Wrapf(ErrTypeNotRegistered, "%s", typ))
	}
	if store.isBorrowed(id) {
		return entityErr("add component", id, ErrAliasedBorrow)
	}
	if !store.insertAny(id, component) {
		return entityErr("add component", id, errors.Errorf("value of type %T does not fit %s store", component, typ))
	}
	return nil
}

// removeType detaches the component of type typ from id.
func (w *World) removeType(id EntityId, typ reflect.Type) bool {
	store, ok := w.store(typ)
	if !ok {
		return false
	}
	return store.remove(id)
}

// RegisterComponent returns the store for T, creating it if needed.
func RegisterComponent[T any](w *World) *Store[T] {
	typ := reflect.TypeFor[T]()
	if store, ok := w.store(typ); ok {
		return store.(*Store[T])
	}

	store := NewStore[T]()
	w.addStore(store)
	return store
}

// StoreFor returns the store for T without creating it.
func StoreFor[T any](w *World) (*Store[T], bool) {
	store, ok := w.store(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	return store.(*Store[T]), true
}

// AddComponent attaches value to id, replacing any existing T.
func AddComponent[T any](w *World, id EntityId, value T) error {
	if !w.entities.IsAlive(id) {
		return entityErr("add component", id, ErrEntityNotFound)
	}

	store := RegisterComponent[T](w)
	if store.isBorrowed(id) {
		return entityErr("add component", id, ErrAliasedBorrow)
	}
	store.Insert(id, value)
	return nil
}

// RemoveComponent detaches and returns the T of id. It panics with
// ErrAliasedBorrow if that component is borrowed.
func RemoveComponent[T any](w *World, id EntityId) (T, bool) {
	store, ok := StoreFor[T](w)
	if !ok {
		var zero T
		return zero, false
	}
	return store.Remove(id)
}

// GetComponent returns a copy of the T of id.
func GetComponent[T any](w *World, id EntityId) (T, bool) {
	store, ok := StoreFor[T](w)
	if !ok {
		var zero T
		return zero, false
	}
	return store.Get(id)
}

// LookupComponent is GetComponent with a reason for absence:
// ErrTypeNotRegistered when T has no store, ErrComponentNotFound otherwise.
func LookupComponent[T any](w *World, id EntityId) (T, error) {
	var zero T
	store, ok := StoreFor[T](w)
	if !ok {
		return zero, entityErr("get component", id, errors.Wrapf(ErrTypeNotRegistered, "%s", reflect.TypeFor[T]()))
	}
	value, ok := store.Get(id)
	if !ok {
		return zero, entityErr("get component", id, errors.Wrapf(ErrComponentNotFound, "%s", store.Type()))
	}
	return value, nil
}

// HasComponent reports whether id has a T.
func HasComponent[T any](w *World, id EntityId) bool {
	store, ok := StoreFor[T](w)
	return ok && store.Contains(id)
}

// GetComponentMut borrows the T of id for writing. The borrow must be released.
func GetComponentMut[T any](w *World, id EntityId) (*RefMut[T], error) {
	store, ok := StoreFor[T](w)
	if !ok {
		return nil, entityErr("borrow component", id, errors.Wrapf(ErrTypeNotRegistered, "%s", reflect.TypeFor[T]()))
	}
	ref, err := store.GetMut(id)
	if err != nil {
		return nil, entityErr("borrow component", id, errors.Wrapf(err, "%s", store.Type()))
	}
	return ref, nil
}

// UpdateComponent borrows the T of id for the duration of fn.
func UpdateComponent[T any](w *World, id EntityId, fn func(*T) error) error {
	ref, err := GetComponentMut[T](w, id)
	if err != nil {
		return err
	}
	defer ref.Release()
	return fn(ref.Get())
}

// Query returns a lazy iterator over entities holding a T, in slot order.
// Do not add or remove T components while ranging over it; use QueryList instead.
func Query[T any](w *World) iter.Seq2[EntityId, T] {
	store, ok := StoreFor[T](w)
	if !ok {
		return func(func(EntityId, T) bool) {}
	}
	return store.All()
}

// QueryMut is Query yielding pointers. Each component is borrowed while yielded.
func QueryMut[T any](w *World) iter.Seq2[EntityId, *T] {
	store, ok := StoreFor[T](w)
	if !ok {
		return func(func(EntityId, *T) bool) {}
	}
	return store.AllMut()
}

// QueryList returns a snapshot of the entities holding a T.
func QueryList[T any](w *World) []EntityId {
	store, ok := StoreFor[T](w)
	if !ok {
		return nil
	}
	return slices.Collect(store.ids())
}

func isNilComponent(component any) bool {
	if component == nil {
		return true
	}
	v := reflect.ValueOf(component)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func componentType(component any) reflect.Type {
	typ := reflect.TypeOf(component)
	if typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}
