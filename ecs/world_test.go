package ecs_test

import (
	"errors"
	"math/rand"
	"reflect"
	"slices"
	"testing"

	"github.com/plus3/aerosim/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndDestroyEntity(t *testing.T) {
	w := ecs.NewWorld()

	id, err := w.CreateEntity()
	require.NoError(t, err)
	assert.True(t, w.IsAlive(id))
	assert.Equal(t, 1, w.EntityCount())

	require.NoError(t, w.DestroyEntity(id))
	assert.False(t, w.IsAlive(id))
	assert.Equal(t, 0, w.EntityCount())

	err = w.DestroyEntity(id)
	assert.ErrorIs(t, err, ecs.ErrStaleHandle)

	var entityErr *ecs.EntityError
	require.True(t, errors.As(err, &entityErr))
	assert.Equal(t, id, entityErr.Entity)
	assert.Equal(t, "destroy entity", entityErr.Op)
}

func TestWorldMaxEntities(t *testing.T) {
	w := ecs.NewWorld(ecs.WithMaxEntities(1))

	_, err := w.CreateEntity()
	require.NoError(t, err)

	_, err = w.CreateEntity()
	assert.ErrorIs(t, err, ecs.ErrAllocationExhausted)
}

func TestAddComponent(t *testing.T) {
	t.Run("lazily creates the store", func(t *testing.T) {
		w := ecs.NewWorld()
		id, err := w.CreateEntity()
		require.NoError(t, err)

		_, ok := ecs.StoreFor[Position](w)
		assert.False(t, ok)

		require.NoError(t, ecs.AddComponent(w, id, Position{X: 1, Y: 2}))

		store, ok := ecs.StoreFor[Position](w)
		require.True(t, ok)
		assert.Equal(t, 1, store.Len())
		assert.Equal(t, []reflect.Type{reflect.TypeFor[Position]()}, w.ComponentTypes())
	})

	t.Run("rejects dead entities", func(t *testing.T) {
		w := ecs.NewWorld()
		id, err := w.CreateEntity()
		require.NoError(t, err)
		require.NoError(t, w.DestroyEntity(id))

		err = ecs.AddComponent(w, id, Position{})
		assert.ErrorIs(t, err, ecs.ErrEntityNotFound)

		err = ecs.AddComponent(w, ecs.NewEntityId(77, 1), Position{})
		assert.ErrorIs(t, err, ecs.ErrEntityNotFound)
	})

	t.Run("overwrite then remove returns latest", func(t *testing.T) {
		w := ecs.NewWorld()
		id, err := w.CreateEntity()
		require.NoError(t, err)

		require.NoError(t, ecs.AddComponent(w, id, Health{Current: 1, Max: 10}))
		got, ok := ecs.GetComponent[Health](w, id)
		require.True(t, ok)
		assert.Equal(t, Health{Current: 1, Max: 10}, got)

		require.NoError(t, ecs.AddComponent(w, id, Health{Current: 2, Max: 10}))
		got, _ = ecs.GetComponent[Health](w, id)
		assert.Equal(t, 2, got.Current)

		removed, ok := ecs.RemoveComponent[Health](w, id)
		require.True(t, ok)
		assert.Equal(t, Health{Current: 2, Max: 10}, removed)

		_, ok = ecs.RemoveComponent[Health](w, id)
		assert.False(t, ok)
		assert.True(t, w.IsAlive(id))
	})
}

func TestRemoveComponentAbsent(t *testing.T) {
	w := ecs.NewWorld()
	id, err := w.CreateEntity()
	require.NoError(t, err)

	_, ok := ecs.RemoveComponent[Position](w, id)
	assert.False(t, ok)

	require.NoError(t, w.DestroyEntity(id))
	_, ok = ecs.RemoveComponent[Position](w, id)
	assert.False(t, ok)
}

func TestLookupComponentDistinguishesAbsence(t *testing.T) {
	w := ecs.NewWorld()
	id, err := w.CreateEntity()
	require.NoError(t, err)

	_, err = ecs.LookupComponent[Velocity](w, id)
	assert.ErrorIs(t, err, ecs.ErrTypeNotRegistered)
	assert.NotErrorIs(t, err, ecs.ErrComponentNotFound)

	ecs.RegisterComponent[Velocity](w)
	_, err = ecs.LookupComponent[Velocity](w, id)
	assert.ErrorIs(t, err, ecs.ErrComponentNotFound)
	assert.NotErrorIs(t, err, ecs.ErrTypeNotRegistered)

	require.NoError(t, ecs.AddComponent(w, id, Velocity{DX: 3}))
	vel, err := ecs.LookupComponent[Velocity](w, id)
	require.NoError(t, err)
	assert.Equal(t, float32(3), vel.DX)
}

func TestDestroyLeavesNoOrphans(t *testing.T) {
	w := newTestWorld()

	id := spawn(t, w, Position{X: 1}, Velocity{DX: 1}, Name{Value: "a"}, Score(3), Tag("x"))
	other := spawn(t, w, Position{X: 2}, Score(4))

	require.NoError(t, w.DestroyEntity(id))

	assert.Empty(t, w.ComponentsOf(id))
	_, ok := ecs.GetComponent[Position](w, id)
	assert.False(t, ok)
	_, ok = ecs.GetComponent[Velocity](w, id)
	assert.False(t, ok)
	_, ok = ecs.GetComponent[Name](w, id)
	assert.False(t, ok)
	_, ok = ecs.GetComponent[Score](w, id)
	assert.False(t, ok)
	_, ok = ecs.GetComponent[Tag](w, id)
	assert.False(t, ok)

	// The recycled slot starts empty.
	reused, err := w.CreateEntity()
	require.NoError(t, err)
	assert.Equal(t, id.Index(), reused.Index())
	assert.Empty(t, w.ComponentsOf(reused))
	assert.False(t, ecs.HasComponent[Position](w, reused))

	// Other entities are untouched.
	pos, ok := ecs.GetComponent[Position](w, other)
	require.True(t, ok)
	assert.Equal(t, float32(2), pos.X)
}

func TestStaleHandleAfterRecycle(t *testing.T) {
	w := newTestWorld()

	old := spawn(t, w, Position{X: 1})
	require.NoError(t, w.DestroyEntity(old))
	fresh := spawn(t, w, Position{X: 2})
	require.Equal(t, old.Index(), fresh.Index())

	assert.ErrorIs(t, w.DestroyEntity(old), ecs.ErrStaleHandle)
	assert.ErrorIs(t, ecs.AddComponent(w, old, Velocity{}), ecs.ErrEntityNotFound)
	_, ok := ecs.GetComponent[Position](w, old)
	assert.False(t, ok)
	_, err := ecs.GetComponentMut[Position](w, old)
	assert.ErrorIs(t, err, ecs.ErrComponentNotFound)
	_, ok = ecs.RemoveComponent[Position](w, old)
	assert.False(t, ok)

	pos, ok := ecs.GetComponent[Position](w, fresh)
	require.True(t, ok)
	assert.Equal(t, float32(2), pos.X)
}

func TestGetComponentMut(t *testing.T) {
	w := newTestWorld()
	id := spawn(t, w, Position{X: 1})

	ref, err := ecs.GetComponentMut[Position](w, id)
	require.NoError(t, err)
	ref.Get().X = 10

	_, err = ecs.GetComponentMut[Position](w, id)
	assert.ErrorIs(t, err, ecs.ErrAliasedBorrow)

	assert.ErrorIs(t, w.DestroyEntity(id), ecs.ErrAliasedBorrow)
	assert.True(t, w.IsAlive(id), "failed destroy must leave the entity intact")
	assert.ErrorIs(t, ecs.AddComponent(w, id, Position{}), ecs.ErrAliasedBorrow)
	assert.Panics(t, func() { ecs.RemoveComponent[Position](w, id) })

	ref.Release()

	pos, _ := ecs.GetComponent[Position](w, id)
	assert.Equal(t, float32(10), pos.X)
	require.NoError(t, w.DestroyEntity(id))

	_, err = ecs.GetComponentMut[Velocity](ecs.NewWorld(), id)
	assert.ErrorIs(t, err, ecs.ErrTypeNotRegistered)
}

func TestUpdateComponent(t *testing.T) {
	w := newTestWorld()
	id := spawn(t, w, Health{Current: 1, Max: 5})

	sentinel := errors.New("boom")
	err := ecs.UpdateComponent(w, id, func(h *Health) error {
		h.Current = 4
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	// The borrow is released even when fn fails.
	require.NoError(t, ecs.UpdateComponent(w, id, func(h *Health) error {
		h.Current++
		return nil
	}))
	got, _ := ecs.GetComponent[Health](w, id)
	assert.Equal(t, 5, got.Current)
}

func TestQueryCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	w := newTestWorld()

	expected := make(map[ecs.EntityId]Score)
	var all []ecs.EntityId
	for i := 0; i < 300; i++ {
		id, err := w.CreateEntity()
		require.NoError(t, err)
		all = append(all, id)
		if rng.Intn(2) == 0 {
			require.NoError(t, ecs.AddComponent(w, id, Score(i)))
			expected[id] = Score(i)
		}
	}

	// Churn: destroy some, strip some, add some.
	for _, id := range all {
		switch rng.Intn(4) {
		case 0:
			require.NoError(t, w.DestroyEntity(id))
			delete(expected, id)
		case 1:
			ecs.RemoveComponent[Score](w, id)
			delete(expected, id)
		case 2:
			require.NoError(t, ecs.AddComponent(w, id, Score(-1)))
			expected[id] = Score(-1)
		}
	}

	got := make(map[ecs.EntityId]Score)
	for id, score := range ecs.Query[Score](w) {
		assert.True(t, w.IsAlive(id))
		got[id] = score
	}
	assert.Equal(t, expected, got)

	list := ecs.QueryList[Score](w)
	assert.Len(t, list, len(expected))
	assert.True(t, slices.IsSortedFunc(list, func(a, b ecs.EntityId) int {
		return int(a.Index()) - int(b.Index())
	}), "query order is slot order")
}

func TestQueryUnregisteredType(t *testing.T) {
	w := ecs.NewWorld()
	for range ecs.Query[Position](w) {
		t.Fatal("unexpected item")
	}
	for range ecs.QueryMut[Position](w) {
		t.Fatal("unexpected item")
	}
	assert.Empty(t, ecs.QueryList[Position](w))
}

func TestQueryMut(t *testing.T) {
	w := newTestWorld()
	a := spawn(t, w, Position{X: 1})
	b := spawn(t, w, Position{X: 2})

	for id, pos := range ecs.QueryMut[Position](w) {
		pos.X *= 10

		_, err := ecs.GetComponentMut[Position](w, id)
		assert.ErrorIs(t, err, ecs.ErrAliasedBorrow)
		assert.ErrorIs(t, w.DestroyEntity(id), ecs.ErrAliasedBorrow)
	}

	pa, _ := ecs.GetComponent[Position](w, a)
	pb, _ := ecs.GetComponent[Position](w, b)
	assert.Equal(t, float32(10), pa.X)
	assert.Equal(t, float32(20), pb.X)
}

func TestSnapshotAllowsMutation(t *testing.T) {
	w := newTestWorld()
	for i := 0; i < 10; i++ {
		spawn(t, w, Score(i))
	}

	for _, id := range w.EntityList() {
		score, _ := ecs.GetComponent[Score](w, id)
		if score%2 == 0 {
			require.NoError(t, w.DestroyEntity(id))
		}
	}
	assert.Equal(t, 5, w.EntityCount())

	for _, id := range ecs.QueryList[Score](w) {
		ecs.RemoveComponent[Score](w, id)
		require.NoError(t, ecs.AddComponent(w, id, Tag("odd")))
	}
	assert.Empty(t, ecs.QueryList[Score](w))
	assert.Len(t, ecs.QueryList[Tag](w), 5)
}

func TestSpawnRequiresRegistration(t *testing.T) {
	w := ecs.NewWorld()
	ecs.RegisterComponent[Position](w)

	_, err := w.Spawn(Position{}, Velocity{})
	assert.ErrorIs(t, err, ecs.ErrTypeNotRegistered)
	assert.Equal(t, 0, w.EntityCount(), "failed spawn must not leak an entity")

	id, err := w.Spawn(&Position{X: 4})
	require.NoError(t, err)
	pos, _ := ecs.GetComponent[Position](w, id)
	assert.Equal(t, float32(4), pos.X)
}

func TestSpawnRejectsNilComponents(t *testing.T) {
	w := newTestWorld()

	_, err := w.Spawn(Position{X: 1}, (*Velocity)(nil))
	assert.ErrorIs(t, err, ecs.ErrNilComponent)
	var entityErr *ecs.EntityError
	require.True(t, errors.As(err, &entityErr))
	assert.Equal(t, "add component", entityErr.Op)
	assert.Equal(t, 0, w.EntityCount())

	_, err = w.Spawn(nil)
	assert.ErrorIs(t, err, ecs.ErrNilComponent)

	id := spawn(t, w, Position{})
	c := ecs.NewCommands()
	c.AddComponent(id, (*Health)(nil))
	assert.ErrorIs(t, c.Flush(w), ecs.ErrNilComponent)
	assert.False(t, ecs.HasComponent[Health](w, id))
}

func TestQueryMutReleasesBorrowOnPanic(t *testing.T) {
	w := newTestWorld()
	id := spawn(t, w, Position{X: 1})

	assert.Panics(t, func() {
		for range ecs.QueryMut[Position](w) {
			panic("boom")
		}
	})

	require.NoError(t, w.DestroyEntity(id))
}

func TestComponentsOf(t *testing.T) {
	w := newTestWorld()
	id := spawn(t, w, Name{Value: "probe"}, Position{X: 1})

	assert.Equal(t, []any{Position{X: 1}, Name{Value: "probe"}}, w.ComponentsOf(id))
}
