package ecs

// UpdateFrame is what a system sees during one tick.
type UpdateFrame struct {
	Tick      uint64
	DeltaTime float64
	World     *World
	Commands  *Commands
}

func newUpdateFrame(tick uint64, dt float64, world *World, commands *Commands) *UpdateFrame {
	return &UpdateFrame{
		Tick:      tick,
		DeltaTime: dt,
		World:     world,
		Commands:  commands,
	}
}
