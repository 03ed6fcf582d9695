package sim

import "github.com/plus3/aerosim/ecs"

type movable struct {
	*Position
	*Velocity
}

// MovementSystem advances every entity that has both a Position and a
// Velocity by velocity * dt.
type MovementSystem struct {
	view *ecs.View[movable]
}

func NewMovementSystem() *MovementSystem {
	return &MovementSystem{}
}

func (s *MovementSystem) Name() string { return "movement" }

// Init registers the component types the system reads.
func (s *MovementSystem) Init(w *ecs.World) error {
	ecs.RegisterComponent[Position](w)
	ecs.RegisterComponent[Velocity](w)
	s.view = ecs.NewView[movable](w)
	return nil
}

func (s *MovementSystem) Run(frame *ecs.UpdateFrame) error {
	if s.view == nil {
		s.view = ecs.NewView[movable](frame.World)
	}

	dt := float32(frame.DeltaTime)
	for _, m := range s.view.Iter() {
		m.Position.X += m.Velocity.X * dt
		m.Position.Y += m.Velocity.Y * dt
	}
	return nil
}
