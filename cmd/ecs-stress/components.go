package main

import (
	"math/rand"

	"github.com/plus3/aerosim/ecs"
)

type scalar = struct{ V float64 }

type (
	c00 scalar
	c01 scalar
	c02 scalar
	c03 scalar
	c04 scalar
	c05 scalar
	c06 scalar
	c07 scalar
	c08 scalar
	c09 scalar
	c10 scalar
	c11 scalar
	c12 scalar
	c13 scalar
	c14 scalar
	c15 scalar
)

// componentKind bundles the per-type operations the stress test needs.
type componentKind struct {
	name     string
	register func(w *ecs.World)
	random   func(r *rand.Rand) any
	system   func() ecs.System
}

func kind[T ~scalar](name string) componentKind {
	return componentKind{
		name:     name,
		register: func(w *ecs.World) { ecs.RegisterComponent[T](w) },
		random:   func(r *rand.Rand) any { return T{V: r.Float64()} },
		system:   func() ecs.System { return &decaySystem[T]{name: "decay-" + name} },
	}
}

var componentKinds = []componentKind{
	kind[c00]("c00"), kind[c01]("c01"), kind[c02]("c02"), kind[c03]("c03"),
	kind[c04]("c04"), kind[c05]("c05"), kind[c06]("c06"), kind[c07]("c07"),
	kind[c08]("c08"), kind[c09]("c09"), kind[c10]("c10"), kind[c11]("c11"),
	kind[c12]("c12"), kind[c13]("c13"), kind[c14]("c14"), kind[c15]("c15"),
}

// decaySystem shrinks every T towards zero.
type decaySystem[T ~scalar] struct {
	name string
}

func (s *decaySystem[T]) Name() string { return s.name }

func (s *decaySystem[T]) Run(frame *ecs.UpdateFrame) error {
	factor := 1 - frame.DeltaTime
	for _, c := range ecs.QueryMut[T](frame.World) {
		*c = T{V: scalar(*c).V * factor}
	}
	return nil
}

// churnSystem destroys random entities and queues replacements, exercising
// slot recycling and deferred commands.
type churnSystem struct {
	rng     *rand.Rand
	perTick int
	queued  int64
}

func (s *churnSystem) Name() string { return "churn" }

func (s *churnSystem) Run(frame *ecs.UpdateFrame) error {
	entities := frame.World.EntityList()
	if len(entities) == 0 {
		return nil
	}

	for i := 0; i < s.perTick; i++ {
		frame.Commands.Destroy(entities[s.rng.Intn(len(entities))])
		frame.Commands.Create(randomComponents(s.rng, s.rng.Intn(5)+1)...)
	}
	s.queued += int64(s.perTick)
	return nil
}

// randomComponents picks n distinct component kinds with random values.
func randomComponents(rng *rand.Rand, n int) []any {
	components := make([]any, 0, n)
	for _, idx := range rng.Perm(len(componentKinds))[:n] {
		components = append(components, componentKinds[idx].random(rng))
	}
	return components
}
