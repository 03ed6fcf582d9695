package ecs

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
)

// DispatcherStats provides statistics about dispatcher execution.
type DispatcherStats struct {
	SystemCount     int
	Ticks           uint64
	TotalExecutions int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	FailureCount   int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	name           string
	initialized    bool
	executionCount int64
	failureCount   int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

// Dispatcher runs an ordered list of systems once per tick.
//
// A tick is fail-fast with no rollback: when a system returns an error the
// remaining systems are skipped for that tick, effects of the systems that
// already ran are kept, and the error is reported as a *SystemError.
type Dispatcher struct {
	systems     []System
	systemStats []*systemStatsInternal
	commands    *Commands
	ticks       uint64
}

// NewDispatcher creates a dispatcher with no systems.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		systems:  make([]System, 0),
		commands: NewCommands(),
	}
}

// Register appends a system. Registration order is execution order.
func (d *Dispatcher) Register(system System) {
	d.systems = append(d.systems, system)
	d.systemStats = append(d.systemStats, &systemStatsInternal{
		name:        system.Name(),
		minDuration: time.Duration(1<<63 - 1),
	})
}

// Len returns the number of registered systems.
func (d *Dispatcher) Len() int {
	return len(d.systems)
}

// Ticks returns the number of ticks started so far.
func (d *Dispatcher) Ticks() uint64 {
	return d.ticks
}

// RunTick runs every system once, in registration order, with the same delta
// time, then flushes the commands they queued. Commands queued before a
// failing system are still applied.
func (d *Dispatcher) RunTick(w *World, dt float64) error {
	d.ticks++
	frame := newUpdateFrame(d.ticks, dt, w, d.commands)

	var runErr error
	for i, system := range d.systems {
		if err := d.runSystem(i, system, frame); err != nil {
			runErr = &SystemError{System: system.Name(), Tick: d.ticks, Err: err}
			break
		}
	}

	flushErr := d.commands.Flush(w)
	if runErr != nil {
		return runErr
	}
	if flushErr != nil {
		return errors.Wrapf(flushErr, "flush commands on tick %d", d.ticks)
	}
	return nil
}

func (d *Dispatcher) runSystem(i int, system System, frame *UpdateFrame) error {
	stats := d.systemStats[i]

	if !stats.initialized {
		if initializer, ok := system.(Initializer); ok {
			if err := initializer.Init(frame.World); err != nil {
				stats.failureCount++
				return errors.Wrap(err, "init")
			}
		}
		stats.initialized = true
	}

	start := time.Now()
	err := system.Run(frame)
	duration := time.Since(start)

	stats.executionCount++
	stats.lastDuration = duration
	stats.totalDuration += duration
	if duration < stats.minDuration {
		stats.minDuration = duration
	}
	if duration > stats.maxDuration {
		stats.maxDuration = duration
	}
	if err != nil {
		stats.failureCount++
	}
	return err
}

// Run executes ticks with a fixed delta time every interval until ctx is
// cancelled or a tick fails. Cancellation is not an error.
func (d *Dispatcher) Run(ctx context.Context, w *World, interval time.Duration, dt float64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.RunTick(w, dt); err != nil {
				return err
			}
		}
	}
}

// Close calls Cleanup on every initialized system that implements Cleaner,
// in reverse registration order. All cleanups run; their errors are joined.
func (d *Dispatcher) Close(w *World) error {
	var errs []error
	for i := len(d.systems) - 1; i >= 0; i-- {
		if !d.systemStats[i].initialized {
			continue
		}
		cleaner, ok := d.systems[i].(Cleaner)
		if !ok {
			continue
		}
		if err := cleaner.Cleanup(w); err != nil {
			errs = append(errs, &SystemError{System: d.systems[i].Name(), Tick: d.ticks, Err: err})
		}
		d.systemStats[i].initialized = false
	}
	return stderrors.Join(errs...)
}

// Stats returns statistics about system execution.
func (d *Dispatcher) Stats() *DispatcherStats {
	stats := &DispatcherStats{
		SystemCount: len(d.systems),
		Ticks:       d.ticks,
		Systems:     make([]SystemStats, len(d.systemStats)),
	}

	var totalExecs int64
	for i, internal := range d.systemStats {
		avgDuration := time.Duration(0)
		minDuration := time.Duration(0)
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
			minDuration = internal.minDuration
		}

		stats.Systems[i] = SystemStats{
			Name:           internal.name,
			ExecutionCount: internal.executionCount,
			FailureCount:   internal.failureCount,
			MinDuration:    minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
