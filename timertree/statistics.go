package timertree

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// # Stats
//
// A copy of the state of one timer as seen by one team member. Changing it has
// no effect on the tree.
type Stats struct {
	ID            int
	ParentID      int
	Depth         int
	Label         string
	FullLabel     string
	Groups        []string
	Active        bool
	Calls         int64
	TotalTime     time.Duration
	AverageTime   time.Duration
	WorkUnits     float64
	WorkUnitLabel string
}

// WorkRate returns the work units processed per second of total time, or 0 if
// none were recorded.
func (s Stats) WorkRate() float64 {
	if s.WorkUnits <= 0 || s.TotalTime <= 0 {
		return 0
	}
	return s.WorkUnits / s.TotalTime.Seconds()
}

func (s Stats) String() string {
	var b bytes.Buffer

	b.WriteString(fmt.Sprintf("[Timer %s]\n", s.FullLabel))
	b.WriteString(fmt.Sprintf("id: %d\n", s.ID))
	b.WriteString(fmt.Sprintf("parent: %d\n", s.ParentID))
	b.WriteString(fmt.Sprintf("groups: %s\n", strings.Join(s.Groups, ",")))
	b.WriteString(fmt.Sprintf("active: %t\n", s.Active))
	b.WriteString(fmt.Sprintf("calls: %d\n", s.Calls))
	b.WriteString(fmt.Sprintf("totalTime: %s\n", s.TotalTime))
	b.WriteString(fmt.Sprintf("averageTime: %s\n", s.AverageTime))
	if s.WorkUnitLabel != "" {
		b.WriteString(fmt.Sprintf("workUnits: %g %s\n", s.WorkUnits, s.WorkUnitLabel))
	}

	return b.String()
}

// Stats returns a snapshot of timer id. ok is false if there is no such timer.
func (th *Thread) Stats(id int) (s Stats, ok bool) {
	th.tree.RLock()
	defer th.tree.RUnlock()

	if th.tree.node(id) == nil {
		return Stats{}, false
	}
	return th.stats(id, th.tree.clock.Now()), true
}

// Snapshot returns the stats of every timer, depth first with children in the
// order they were created.
func (th *Thread) Snapshot() []Stats {
	th.tree.RLock()
	defer th.tree.RUnlock()

	now := th.tree.clock.Now()
	all := make([]Stats, 0, len(th.tree.nodes))

	stack := []int{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		all = append(all, th.stats(id, now))

		children := th.tree.nodes[id].childIDs
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return all
}

func (th *Thread) stats(id int, now time.Time) Stats {
	n := th.tree.nodes[id]
	tm := n.timings[th.rank]

	s := Stats{
		ID:            n.id,
		ParentID:      n.parentID,
		Depth:         th.tree.depth(id),
		Label:         n.label,
		FullLabel:     th.tree.fullLabel(id, false),
		Groups:        slices.Clone(n.groups),
		Active:        tm.active,
		Calls:         tm.calls,
		TotalTime:     tm.elapsed(now),
		AverageTime:   tm.average(now),
		WorkUnits:     tm.workUnits,
		WorkUnitLabel: n.workUnitLabel,
	}
	if tm.workUnitLabel != "" {
		s.WorkUnitLabel = tm.workUnitLabel
	}
	return s
}
