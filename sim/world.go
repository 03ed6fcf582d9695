package sim

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/plus3/aerosim/ecs"
)

// Stats is a snapshot of a running simulation.
type Stats struct {
	EntityCount int
	SystemCount int
	Ticks       uint64
	TotalTime   time.Duration
	TimeStep    float64
}

// Option configures a SimWorld.
type Option func(*SimWorld)

// WithLogger sets the logger for lifecycle and progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SimWorld) {
		s.logger = logger
	}
}

// WithOutput sets where the DebugSystem writes its reports.
func WithOutput(out io.Writer) Option {
	return func(s *SimWorld) {
		s.out = out
	}
}

// SimWorld drives a World through a Dispatcher at a fixed time step.
type SimWorld struct {
	World      *ecs.World
	Dispatcher *ecs.Dispatcher

	config      Config
	logger      *slog.Logger
	out         io.Writer
	clock       *ecs.Singleton[Clock]
	initialized bool
}

// New creates a SimWorld with every simulation component registered and no
// systems. Call Initialize to add the default systems.
func New(cfg Config, opts ...Option) (*SimWorld, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	var worldOpts []ecs.WorldOption
	if cfg.MaxEntities > 0 {
		worldOpts = append(worldOpts, ecs.WithMaxEntities(cfg.MaxEntities))
	}

	s := &SimWorld{
		World:      ecs.NewWorld(worldOpts...),
		Dispatcher: ecs.NewDispatcher(),
		config:     cfg,
		logger:     slog.New(slog.DiscardHandler),
		out:        io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}

	RegisterComponents(s.World)
	s.clock = ecs.NewSingleton[Clock](s.World, Clock{TimeStep: cfg.TimeStep})
	return s, nil
}

// Config returns the configuration the world was created with.
func (s *SimWorld) Config() Config {
	return s.config
}

// Initialize registers the movement and debug systems. It fails if called
// twice.
func (s *SimWorld) Initialize() error {
	if s.initialized {
		return errors.New("simulation already initialized")
	}
	s.initialized = true

	s.Dispatcher.Register(NewMovementSystem())
	s.Dispatcher.Register(NewDebugSystem(s.out, s.config.PrintInterval))

	s.logger.Info("simulation initialized",
		"systems", s.Dispatcher.Len(),
		"time_step", s.config.TimeStep,
		"print_interval", s.config.PrintInterval)
	return nil
}

// AddSystem registers an extra system after the default ones.
func (s *SimWorld) AddSystem(system ecs.System) {
	s.Dispatcher.Register(system)
}

// PopulateTestEntities spawns three sample bodies: a slow mover, a
// stationary object and a fast mover heading the other way.
func (s *SimWorld) PopulateTestEntities() ([]ecs.EntityId, error) {
	bodies := [][]any{
		{Name{Value: "Moving Object"}, Position{X: 0, Y: 0}, Velocity{X: 10, Y: 5}, Mass{Value: 1}, Rotation{}},
		{Name{Value: "Stationary Object"}, Position{X: 50, Y: 30}, Velocity{}, Mass{Value: 2.5}},
		{Name{Value: "Fast Object"}, Position{X: -20, Y: 10}, Velocity{X: -15, Y: 8}, Mass{Value: 0.5}},
	}

	ids := make([]ecs.EntityId, 0, len(bodies))
	for _, components := range bodies {
		id, err := s.World.Spawn(components...)
		if err != nil {
			return ids, errors.Wrap(err, "populate test entities")
		}
		ids = append(ids, id)
	}

	s.logger.Info("created test entities", "count", len(ids))
	return ids, nil
}

// Step runs one tick. The clock only advances when every system succeeds.
func (s *SimWorld) Step() error {
	if err := s.Dispatcher.RunTick(s.World, s.config.TimeStep); err != nil {
		return err
	}

	clock := s.clock.Get()
	if clock == nil {
		clock = ecs.NewSingleton[Clock](s.World, Clock{TimeStep: s.config.TimeStep}).Get()
	}
	clock.Tick = s.Dispatcher.Ticks()
	clock.Elapsed += s.config.TimeStep
	return nil
}

// RunFor steps the simulation for the number of whole ticks that fit in d,
// or the configured duration if d is zero. It stops early when ctx is
// cancelled or a tick fails.
func (s *SimWorld) RunFor(ctx context.Context, d time.Duration) error {
	if d == 0 {
		d = s.config.Duration
	}
	steps := s.config.Steps(d)
	s.logger.Info("running simulation", "duration", d, "steps", steps)

	var pace <-chan time.Time
	if s.config.Realtime {
		ticker := time.NewTicker(s.config.tickInterval())
		defer ticker.Stop()
		pace = ticker.C
	}

	for step := 0; step < steps; step++ {
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Step(); err != nil {
			return errors.Wrapf(err, "step %d/%d", step+1, steps)
		}

		if s.config.ProgressEvery > 0 && step%s.config.ProgressEvery == 0 {
			s.logger.Info("progress",
				"step", step+1,
				"steps", steps,
				"time", s.Stats().TotalTime)
		}
	}
	return nil
}

// Stats returns the current entity, system and time counters.
func (s *SimWorld) Stats() Stats {
	var elapsed float64
	if clock := s.clock.Get(); clock != nil {
		elapsed = clock.Elapsed
	}
	return Stats{
		EntityCount: s.World.EntityCount(),
		SystemCount: s.Dispatcher.Len(),
		Ticks:       s.Dispatcher.Ticks(),
		TotalTime:   time.Duration(elapsed * float64(time.Second)),
		TimeStep:    s.config.TimeStep,
	}
}

// Close runs the cleanup hooks of every system.
func (s *SimWorld) Close() error {
	return s.Dispatcher.Close(s.World)
}
