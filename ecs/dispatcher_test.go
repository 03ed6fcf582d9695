package ecs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plus3/aerosim/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MovementSystem struct {
	ExecuteCount int
}

func (s *MovementSystem) Name() string { return "movement" }

func (s *MovementSystem) Run(frame *ecs.UpdateFrame) error {
	s.ExecuteCount++
	view := ecs.NewView[struct {
		*Position
		*Velocity
	}](frame.World)

	for _, item := range view.Iter() {
		item.Position.X += item.Velocity.DX * float32(frame.DeltaTime)
		item.Position.Y += item.Velocity.DY * float32(frame.DeltaTime)
	}
	return nil
}

type HealthSystem struct {
	ExecuteCount int
	TotalHealth  float64
}

func (s *HealthSystem) Name() string { return "health" }

func (s *HealthSystem) Run(frame *ecs.UpdateFrame) error {
	s.ExecuteCount++
	s.TotalHealth = 0
	for _, health := range ecs.Query[Health](frame.World) {
		s.TotalHealth += float64(health.Current)
	}
	return nil
}

// recordingSystem appends its name to a shared log and optionally fails.
type recordingSystem struct {
	name string
	log  *[]string
	err  error
	fn   func(frame *ecs.UpdateFrame)
}

func (s *recordingSystem) Name() string { return s.name }

func (s *recordingSystem) Run(frame *ecs.UpdateFrame) error {
	*s.log = append(*s.log, s.name)
	if s.fn != nil {
		s.fn(frame)
	}
	return s.err
}

type lifecycleSystem struct {
	recordingSystem
	inits    int
	cleanups int
	initErr  error
}

func (s *lifecycleSystem) Init(*ecs.World) error {
	s.inits++
	return s.initErr
}

func (s *lifecycleSystem) Cleanup(*ecs.World) error {
	s.cleanups++
	*s.log = append(*s.log, "cleanup:"+s.name)
	return nil
}

func TestDispatcher(t *testing.T) {
	t.Run("system execution order", func(t *testing.T) {
		var log []string
		d := ecs.NewDispatcher()
		d.Register(&recordingSystem{name: "A", log: &log})
		d.Register(&recordingSystem{name: "B", log: &log})
		d.Register(&recordingSystem{name: "C", log: &log})

		w := ecs.NewWorld()
		for tick := 0; tick < 5; tick++ {
			require.NoError(t, d.RunTick(w, 0.1))
		}

		expected := make([]string, 0, 15)
		for tick := 0; tick < 5; tick++ {
			expected = append(expected, "A", "B", "C")
		}
		assert.Equal(t, expected, log)
		assert.Equal(t, uint64(5), d.Ticks())
		assert.Equal(t, 3, d.Len())
	})

	t.Run("duplicate names are allowed", func(t *testing.T) {
		var log []string
		d := ecs.NewDispatcher()
		d.Register(&recordingSystem{name: "same", log: &log})
		d.Register(&recordingSystem{name: "same", log: &log})

		require.NoError(t, d.RunTick(ecs.NewWorld(), 1))
		assert.Equal(t, []string{"same", "same"}, log)
	})

	t.Run("same delta time for every system", func(t *testing.T) {
		var seen []float64
		d := ecs.NewDispatcher()
		for _, name := range []string{"a", "b", "c"} {
			d.Register(ecs.SystemFunc(name, func(frame *ecs.UpdateFrame) error {
				seen = append(seen, frame.DeltaTime)
				return nil
			}))
		}

		require.NoError(t, d.RunTick(ecs.NewWorld(), 0.25))
		assert.Equal(t, []float64{0.25, 0.25, 0.25}, seen)
	})

	t.Run("fail fast without rollback", func(t *testing.T) {
		w := newTestWorld()
		id := spawn(t, w, Score(0))

		var log []string
		boom := errors.New("boom")
		d := ecs.NewDispatcher()
		d.Register(&recordingSystem{name: "A", log: &log, fn: func(frame *ecs.UpdateFrame) {
			require.NoError(t, ecs.AddComponent(frame.World, id, Score(1)))
		}})
		d.Register(&recordingSystem{name: "B", log: &log, err: boom})
		d.Register(&recordingSystem{name: "C", log: &log, fn: func(frame *ecs.UpdateFrame) {
			require.NoError(t, ecs.AddComponent(frame.World, id, Score(2)))
		}})

		err := d.RunTick(w, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var sysErr *ecs.SystemError
		require.True(t, errors.As(err, &sysErr))
		assert.Equal(t, "B", sysErr.System)
		assert.Equal(t, uint64(1), sysErr.Tick)

		assert.Equal(t, []string{"A", "B"}, log)
		score, _ := ecs.GetComponent[Score](w, id)
		assert.Equal(t, Score(1), score, "A's mutation must survive B's failure")

		stats := d.Stats()
		assert.Equal(t, int64(1), stats.Systems[1].FailureCount)
		assert.Equal(t, int64(0), stats.Systems[2].ExecutionCount)
	})

	t.Run("delta time calculation", func(t *testing.T) {
		w := newTestWorld()
		id := spawn(t, w, Position{X: 0, Y: 0}, Velocity{DX: 10, DY: 20})

		d := ecs.NewDispatcher()
		movement := &MovementSystem{}
		d.Register(movement)

		require.NoError(t, d.RunTick(w, 0.5))

		pos, ok := ecs.GetComponent[Position](w, id)
		require.True(t, ok)
		assert.Equal(t, Position{X: 5, Y: 10}, pos)
		assert.Equal(t, 1, movement.ExecuteCount)
	})

	t.Run("custom state persistence", func(t *testing.T) {
		w := newTestWorld()
		spawn(t, w, Health{Current: 50, Max: 100})
		spawn(t, w, Health{Current: 75, Max: 100})

		d := ecs.NewDispatcher()
		health := &HealthSystem{}
		d.Register(health)

		require.NoError(t, d.RunTick(w, 1))
		assert.Equal(t, 125.0, health.TotalHealth)

		spawn(t, w, Health{Current: 25, Max: 100})
		require.NoError(t, d.RunTick(w, 1))
		assert.Equal(t, 150.0, health.TotalHealth)
		assert.Equal(t, 2, health.ExecuteCount)
	})

	t.Run("init and cleanup", func(t *testing.T) {
		var log []string
		first := &lifecycleSystem{recordingSystem: recordingSystem{name: "first", log: &log}}
		second := &lifecycleSystem{recordingSystem: recordingSystem{name: "second", log: &log}}

		d := ecs.NewDispatcher()
		d.Register(first)
		d.Register(second)

		w := ecs.NewWorld()
		require.NoError(t, d.RunTick(w, 1))
		require.NoError(t, d.RunTick(w, 1))
		assert.Equal(t, 1, first.inits)
		assert.Equal(t, 1, second.inits)

		require.NoError(t, d.Close(w))
		assert.Equal(t, []string{"first", "second", "first", "second", "cleanup:second", "cleanup:first"}, log)
	})

	t.Run("init failure is a system failure", func(t *testing.T) {
		var log []string
		initErr := errors.New("no gpu")
		broken := &lifecycleSystem{recordingSystem: recordingSystem{name: "broken", log: &log}, initErr: initErr}

		d := ecs.NewDispatcher()
		d.Register(broken)

		err := d.RunTick(ecs.NewWorld(), 1)
		assert.ErrorIs(t, err, initErr)
		assert.Empty(t, log)

		// Never initialised, so never cleaned up.
		require.NoError(t, d.Close(ecs.NewWorld()))
		assert.Equal(t, 0, broken.cleanups)
	})

	t.Run("context cancellation in run", func(t *testing.T) {
		d := ecs.NewDispatcher()
		movement := &MovementSystem{}
		d.Register(movement)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error)
		go func() {
			done <- d.Run(ctx, newTestWorld(), time.Millisecond, 0.016)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("dispatcher did not stop after context cancellation")
		}
	})

	t.Run("run stops on failure", func(t *testing.T) {
		boom := errors.New("boom")
		d := ecs.NewDispatcher()
		d.Register(ecs.SystemFunc("fails", func(*ecs.UpdateFrame) error { return boom }))

		err := d.Run(context.Background(), ecs.NewWorld(), time.Millisecond, 0.016)
		assert.ErrorIs(t, err, boom)
	})
}

func TestDispatcherStats(t *testing.T) {
	d := ecs.NewDispatcher()
	d.Register(&MovementSystem{})
	d.Register(&HealthSystem{})

	stats := d.Stats()
	assert.Equal(t, 2, stats.SystemCount)
	assert.Equal(t, int64(0), stats.TotalExecutions)
	assert.Equal(t, time.Duration(0), stats.Systems[0].MinDuration)

	w := newTestWorld()
	for i := 0; i < 3; i++ {
		require.NoError(t, d.RunTick(w, 1))
	}

	stats = d.Stats()
	assert.Equal(t, uint64(3), stats.Ticks)
	assert.Equal(t, int64(6), stats.TotalExecutions)
	assert.Equal(t, "movement", stats.Systems[0].Name)
	assert.Equal(t, "health", stats.Systems[1].Name)
	for _, sys := range stats.Systems {
		assert.Equal(t, int64(3), sys.ExecutionCount)
		assert.LessOrEqual(t, sys.MinDuration, sys.MaxDuration)
		assert.GreaterOrEqual(t, sys.TotalDuration, sys.MaxDuration)
	}
}
