package ecs

// System represents a behavior that runs once per tick against the world.
// Systems are plain stateful values; any fields persist between ticks.
type System interface {
	// Name identifies the system in errors and statistics. Names need not be unique.
	Name() string
	// Run executes one tick. A returned error stops the rest of the tick.
	Run(frame *UpdateFrame) error
}

// Initializer is implemented by systems that need setup before their first run.
type Initializer interface {
	Init(w *World) error
}

// Cleaner is implemented by systems that release resources when the dispatcher closes.
type Cleaner interface {
	Cleanup(w *World) error
}

type funcSystem struct {
	name string
	fn   func(frame *UpdateFrame) error
}

// SystemFunc adapts a plain function into a System.
func SystemFunc(name string, fn func(frame *UpdateFrame) error) System {
	return &funcSystem{name: name, fn: fn}
}

func (s *funcSystem) Name() string {
	return s.name
}

func (s *funcSystem) Run(frame *UpdateFrame) error {
	return s.fn(frame)
}
