package timertree

import (
	"time"

	"golang.org/x/exp/slog"
)

// # Thread
//
// Represents the view of a [Tree] private to one team member: the cursor
// naming its innermost running timer, and its timing of every node. A Thread
// must only be used by the goroutine acting as that member.
// Timers nest strictly: the timer stopped next is always the one started last.
//
// InitializeTimer, Start and StartTimer are collective, every member of the
// team must call them in the same order. The other methods need no
// synchronization.
type Thread struct {
	tree      *Tree
	rank      int
	currentID int
}

// Rank returns the index of the member owning th.
func (th *Thread) Rank() int { return th.rank }

// CurrentID returns the id of the innermost running timer of th.
func (th *Thread) CurrentID() int { return th.currentID }

// InitializeTimer returns the id of the child of the current timer labeled
// label, creating it with groups and workUnitLabel if it does not exist. It
// must be called by every member of the team; one member performs the lookup
// and all of them return the same id once it is visible to everybody.
func (th *Thread) InitializeTimer(label string, groups []string, workUnitLabel string) int {
	parent := th.currentID
	return th.tree.team.Single(func() int {
		return th.tree.childOrCreate(parent, label, groups, workUnitLabel)
	})
}

// Start is equivalent to calling:
//
//	th.StartTimer(label, nil, "")
func (th *Thread) Start(label string) bool {
	return th.StartTimer(label, nil, "")
}

// StartTimer starts the child of the current timer labeled label, creating it
// first if needed (see [Thread.InitializeTimer]). It is a collective call.
func (th *Thread) StartTimer(label string, groups []string, workUnitLabel string) bool {
	id := th.InitializeTimer(label, groups, workUnitLabel)
	return th.StartID(id)
}

// StartID starts the timer id, which must be a child of the current timer.
// It skips the label lookup and the team synchronization of [Thread.Start].
func (th *Thread) StartID(id int) bool {
	n := th.tree.Node(id)
	if n == nil {
		logger.Error("start of unknown timer",
			slog.Int("id", id),
			slog.Int("rank", th.rank))
		return false
	}
	th.currentID = n.start(th.rank, th.tree.clock.Now())
	return th.currentID == id
}

// Stop stops the timer id, which must be the current timer.
func (th *Thread) Stop(id int) bool {
	return th.StopUnitsLabel(id, -1, "")
}

// StopUnits stops the timer id recording workUnits units of work.
func (th *Thread) StopUnits(id int, workUnits float64) bool {
	return th.StopUnitsLabel(id, workUnits, "")
}

// StopUnitsLabel stops the timer id recording workUnits units of work labeled
// workUnitLabel. Negative workUnits are not recorded.
func (th *Thread) StopUnitsLabel(id int, workUnits float64, workUnitLabel string) bool {
	if nestingCheck.Load() && id != th.currentID {
		logger.Error("id mismatch in stop",
			slog.Int("id", id),
			slog.Int("current", th.currentID),
			slog.String("label", th.tree.FullLabel(th.currentID, false)),
			slog.Int("rank", th.rank))
		return false
	}
	return th.stopCurrent(workUnits, workUnitLabel)
}

// StopLabel stops the current timer, which should be labeled label.
func (th *Thread) StopLabel(label string) bool {
	return th.StopLabelUnits(label, -1, "")
}

// StopLabelUnits stops the current timer, which should be labeled label,
// recording workUnits units of work labeled workUnitLabel.
func (th *Thread) StopLabelUnits(label string, workUnits float64, workUnitLabel string) bool {
	if nestingCheck.Load() {
		if n := th.tree.Node(th.currentID); n.label != label {
			logger.Error("label mismatch in stop",
				slog.String("label", label),
				slog.String("current", n.label),
				slog.Int("rank", th.rank))
			return false
		}
	}
	return th.stopCurrent(workUnits, workUnitLabel)
}

func (th *Thread) stopCurrent(workUnits float64, workUnitLabel string) bool {
	n := th.tree.Node(th.currentID)
	parent, ok := n.stop(th.rank, th.tree.clock.Now(), workUnits, workUnitLabel)
	if !ok {
		logger.Error("stop of a timer that is not running",
			slog.Int("id", n.id),
			slog.String("label", n.label),
			slog.Int("rank", th.rank))
		return false
	}
	if parent < 0 {
		// the root is stopped for good, the cursor stays on it
		return true
	}
	th.currentID = parent
	return true
}

// Time returns the average time of timer id per start, the running interval
// included if the timer is active. The time of the root is the wall time
// elapsed since the tree was built.
func (th *Thread) Time(id int) time.Duration {
	n := th.tree.Node(id)
	if n == nil {
		return 0
	}
	return n.averageTime(th.rank, th.tree.clock.Now())
}

// GroupTime returns the time spent in group within the subtree of id. A timer
// in group accounts for all of its descendants, which are not visited, so
// nested members of a group are never counted twice.
func (th *Thread) GroupTime(group string, id int) time.Duration {
	th.tree.RLock()
	defer th.tree.RUnlock()
	return th.groupTime(group, id, th.tree.clock.Now())
}

func (th *Thread) groupTime(group string, id int, now time.Time) time.Duration {
	n := th.tree.node(id)
	if n == nil {
		return 0
	}
	if n.InGroup(group) {
		return n.averageTime(th.rank, now)
	}
	var sum time.Duration
	for _, c := range n.childIDs {
		sum += th.groupTime(group, c, now)
	}
	return sum
}

// ResetTime zeroes the accumulated time of timer id and of its direct
// children. Running timers among them restart from resetWallTime unless it is
// the zero time. Call counts are kept.
func (th *Thread) ResetTime(resetWallTime time.Time, id int) {
	th.tree.RLock()
	defer th.tree.RUnlock()

	n := th.tree.node(id)
	if n == nil {
		return
	}
	n.resetTime(th.rank, resetWallTime)
	for _, c := range n.childIDs {
		th.tree.nodes[c].resetTime(th.rank, resetWallTime)
	}
}

// ShiftActiveStartTime pushes the start of timer id and of its direct children
// forward by shift if they are running, excluding an interval such as the time
// spent printing a report from their measurements.
func (th *Thread) ShiftActiveStartTime(shift time.Duration, id int) {
	th.tree.RLock()
	defer th.tree.RUnlock()

	n := th.tree.node(id)
	if n == nil {
		return
	}
	n.shiftActiveStartTime(th.rank, shift)
	for _, c := range n.childIDs {
		th.tree.nodes[c].shiftActiveStartTime(th.rank, shift)
	}
}

// excludeInterval shifts every running timer on the path from the current
// timer to the root, each exactly once.
func (th *Thread) excludeInterval(shift time.Duration) {
	th.tree.RLock()
	defer th.tree.RUnlock()

	for id := th.currentID; id >= 0; id = th.tree.nodes[id].parentID {
		th.tree.nodes[id].shiftActiveStartTime(th.rank, shift)
	}
}
