package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"github.com/plus3/aerosim/internal/cli"
	"github.com/plus3/aerosim/sim"
	"github.com/plus3/aerosim/sim/tui"
)

func main() {
	cfg := sim.DefaultConfig()
	cfg.RegisterFlags(flag.CommandLine)
	useTUI := flag.Bool("tui", false, "draw a live entity table in the terminal (implies -realtime)")
	profileMode := flag.String("profile", "", "write a pprof profile: cpu, mem or allocs")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	flag.Parse()

	if err := run(cfg, *useTUI, *profileMode, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "aerosim:", err)
		os.Exit(1)
	}
}

func run(cfg sim.Config, useTUI bool, profileMode, logLevel string) error {
	stopProfile, err := cli.StartProfile(profileMode)
	if err != nil {
		return err
	}
	defer stopProfile()

	var out io.Writer = os.Stdout
	var logOut io.Writer = os.Stderr
	if useTUI {
		// The screen owns the terminal; text output would corrupt it.
		out, logOut = io.Discard, io.Discard
		cfg.Realtime = true
	}

	logger, err := cli.NewLogger(logOut, logLevel)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s, err := sim.New(cfg, sim.WithLogger(logger), sim.WithOutput(out))
	if err != nil {
		return err
	}
	if err := s.Initialize(); err != nil {
		return err
	}
	if _, err := s.PopulateTestEntities(); err != nil {
		return err
	}

	var screen tcell.Screen
	if useTUI {
		screen, err = tcell.NewScreen()
		if err != nil {
			return errors.Wrap(err, "create screen")
		}
		if err := screen.Init(); err != nil {
			return errors.Wrap(err, "init screen")
		}
		defer screen.Fini()
		s.AddSystem(tui.NewInspector(screen))
		go tui.WatchQuit(ctx, screen, cancel)
	}

	stats := s.Stats()
	logger.Info("initial state",
		"entities", stats.EntityCount,
		"systems", stats.SystemCount,
		"time_step", stats.TimeStep)

	runErr := s.RunFor(ctx, 0)
	if closeErr := s.Close(); closeErr != nil {
		logger.Error("cleanup failed", "error", closeErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	final := s.Stats()
	logger.Info("simulation complete",
		"total_time", final.TotalTime,
		"ticks", final.Ticks,
		"entities", final.EntityCount,
		"interrupted", runErr != nil)
	logSystemStats(logger, s)
	return nil
}

func logSystemStats(logger *slog.Logger, s *sim.SimWorld) {
	for _, sys := range s.Dispatcher.Stats().Systems {
		logger.Debug("system",
			"name", sys.Name,
			"runs", sys.ExecutionCount,
			"failures", sys.FailureCount,
			"avg", sys.AvgDuration,
			"max", sys.MaxDuration)
	}
}
