// Package cli holds the flag helpers shared by the command binaries.
package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
)

// StartProfile starts a pprof profile written to the working directory.
// mode is "", "cpu", "mem" or "allocs"; the empty mode returns a no-op stop.
func StartProfile(mode string) (stop func(), err error) {
	var opt func(*profile.Profile)
	switch strings.ToLower(mode) {
	case "":
		return func() {}, nil
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	case "allocs":
		opt = profile.MemProfileAllocs
	default:
		return nil, errors.Errorf("unknown profile mode %q (want cpu, mem or allocs)", mode)
	}

	p := profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}

// NewLogger returns a text logger writing to out at the named level.
func NewLogger(out io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})), nil
}
