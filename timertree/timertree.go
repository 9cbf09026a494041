// Package timertree provides a hierarchical profiler for programs built from
// cooperating goroutine teams.
//
// Call sites declare named timed regions which nest into a call tree. Each
// region may belong to groups used for cross-cutting aggregation, and the tree
// carries a structural hash so that independently profiled processes can
// check they built the same hierarchy before merging results.
// An example tree may be:
//
//	total             [Total]
//	 ├ solve
//	 │  ├ halo exchange [MPI]
//	 │  └ kernel
//	 └ write output     [IO]
//	    └ flush         [IO]
//
// The node arena is shared by the team, timing state and the cursor are private
// to every member (see [Thread]).
package timertree

import (
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/exp/slog"
)

const (
	rootLabel = "total"
	rootGroup = "Total"
)

func init() {
	teamSize = runtime.NumCPU()
	nestingCheck.Store(true)

	logLevel = new(slog.LevelVar)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(h)
}

var (
	teamSize     int
	nestingCheck atomic.Bool
	logger       *slog.Logger
	logLevel     *slog.LevelVar
)

// SetLogger replaces the logger receiving misuse reports such as mismatched
// stops. Once it is called, [SetLogLevel] has no effect.
func SetLogger(newlogger *slog.Logger) {
	logger = newlogger
}

// SetLogLevel sets the minimum level of the default stderr logger.
// It starts at [slog.LevelInfo].
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetTeamSize sets the team size used by [NewTeam] when no valid size is given.
// Default value is initialized using [runtime.NumCPU].
func SetTeamSize(n int) {
	if n > 0 {
		teamSize = n
	} else {
		logger.Error("invalid team size",
			slog.Int("n", n))
	}
}

// SetNestingCheck enables or disables the check that every stop targets the
// innermost running timer. It is enabled by default and may be toggled while
// teams are running.
func SetNestingCheck(enabled bool) {
	nestingCheck.Store(enabled)
}
