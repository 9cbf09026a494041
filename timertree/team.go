package timertree

import (
	"sync"

	"golang.org/x/exp/slog"
)

// # Team
//
// Represents a fixed number of goroutines executing the same sequence of
// profiler calls. It provides the one synchronization point the tree needs:
// a section run by a single elected member whose result is published to every
// member once the whole team has arrived.
// A Team should always be instantiated using [NewTeam].
type Team struct {
	mu   sync.Mutex
	cond *sync.Cond
	size int

	arrived    int
	generation uint64
	// results alternates between consecutive rounds: a member released from
	// round g may already be leading round g+1 while others still read g.
	results [2]int
}

// NewTeam returns a team of size members. If size is not positive the size set
// with [SetTeamSize] is used.
func NewTeam(size int) *Team {
	if size <= 0 {
		logger.Error("invalid team size, using default",
			slog.Int("size", size),
			slog.Int("default", teamSize))
		size = teamSize
	}
	t := &Team{size: size}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Size returns the number of members of t.
func (t *Team) Size() int { return t.size }

// Single must be called by every member of t. The first member to arrive runs
// f, the others wait. All members return the value produced by f once every
// member has arrived.
func (t *Team) Single(f func() int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	gen := t.generation
	slot := gen % 2
	if t.arrived == 0 {
		t.results[slot] = f()
	}
	t.arrived++

	if t.arrived == t.size {
		t.arrived = 0
		t.generation++
		t.cond.Broadcast()
		return t.results[slot]
	}
	for gen == t.generation {
		t.cond.Wait()
	}
	return t.results[slot]
}

// Barrier blocks until every member of t has called it.
func (t *Team) Barrier() {
	t.Single(func() int { return 0 })
}
