package sim

import (
	"flag"
	"time"

	"github.com/pkg/errors"
)

// Config controls a simulation run.
type Config struct {
	// TimeStep is the fixed delta time of one tick, in seconds.
	TimeStep float64
	// Duration is the simulated time covered by RunFor when called with zero.
	Duration time.Duration
	// PrintInterval is the simulated time between DebugSystem reports.
	// Zero disables the report.
	PrintInterval time.Duration
	// ProgressEvery logs a progress line every N steps. Zero disables it.
	ProgressEvery int
	// MaxEntities caps the number of live entities. Zero means no cap.
	MaxEntities int
	// Realtime paces RunFor so one tick takes TimeStep of wall time.
	Realtime bool
}

// DefaultConfig runs at 60 ticks per second for five seconds and reports
// every two seconds.
func DefaultConfig() Config {
	return Config{
		TimeStep:      1.0 / 60.0,
		Duration:      5 * time.Second,
		PrintInterval: 2 * time.Second,
		ProgressEvery: 60,
	}
}

// RegisterFlags binds the config fields to fs, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Float64Var(&c.TimeStep, "timestep", c.TimeStep, "fixed tick length in seconds")
	fs.DurationVar(&c.Duration, "duration", c.Duration, "simulated time to run")
	fs.DurationVar(&c.PrintInterval, "print-interval", c.PrintInterval, "simulated time between debug reports (0 disables)")
	fs.IntVar(&c.ProgressEvery, "progress-every", c.ProgressEvery, "log progress every N steps (0 disables)")
	fs.IntVar(&c.MaxEntities, "max-entities", c.MaxEntities, "maximum live entities (0 for no limit)")
	fs.BoolVar(&c.Realtime, "realtime", c.Realtime, "pace ticks to wall-clock time")
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.TimeStep <= 0:
		return errors.Errorf("timestep must be positive, got %v", c.TimeStep)
	case c.Realtime && c.tickInterval() <= 0:
		return errors.Errorf("timestep %v is below the realtime clock resolution", c.TimeStep)
	case c.Duration < 0:
		return errors.Errorf("duration must not be negative, got %v", c.Duration)
	case c.PrintInterval < 0:
		return errors.Errorf("print interval must not be negative, got %v", c.PrintInterval)
	case c.ProgressEvery < 0:
		return errors.Errorf("progress-every must not be negative, got %d", c.ProgressEvery)
	case c.MaxEntities < 0:
		return errors.Errorf("max entities must not be negative, got %d", c.MaxEntities)
	}
	return nil
}

// Steps returns how many whole ticks fit in d.
func (c Config) Steps(d time.Duration) int {
	// The epsilon absorbs rounding such as 0.3/0.1 landing just under 3.
	return int(d.Seconds()/c.TimeStep + 1e-9)
}

// tickInterval is the wall-clock length of one step in realtime mode.
func (c Config) tickInterval() time.Duration {
	return time.Duration(c.TimeStep * float64(time.Second))
}
