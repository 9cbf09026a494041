package timertree

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/slices"
)

// hashSeparator terminates every string fed to the node hash so that
// ("ab", "c") and ("a", "bc") do not collide.
const hashSeparator = 0

// # Node
//
// Represents one labeled region of the timer tree. A node is created once per
// distinct (parent, label) pair and lives as long as its [Tree]. Its identity
// (label, groups, work unit label, position) is shared by the whole team while
// its timing state is kept separately for every team member.
// Its zero value has no meaning, nodes are only created by a [Tree].
type Node struct {
	// mu is the lock of the owning tree, held while children are appended.
	mu *sync.RWMutex

	id            int
	parentID      int
	label         string
	groups        []string
	workUnitLabel string
	childIDs      []int

	timings []timing
}

func newNode(id, parentID int, label string, groups []string, workUnitLabel string, members int) *Node {
	n := &Node{
		id:            id,
		parentID:      parentID,
		label:         label,
		workUnitLabel: workUnitLabel,
		timings:       make([]timing, members),
	}
	for _, g := range groups {
		if !slices.Contains(n.groups, g) {
			n.groups = append(n.groups, g)
		}
	}
	return n
}

// ID returns the index of n in its tree.
func (n *Node) ID() int { return n.id }

// ParentID returns the id of the enclosing node, -1 for the root.
func (n *Node) ParentID() int { return n.parentID }

// Label returns the name of the region, unique among siblings.
func (n *Node) Label() string { return n.label }

// Groups returns the groups n belongs to in the order they were declared.
// They are fixed when n is created.
func (n *Node) Groups() []string { return slices.Clone(n.groups) }

// WorkUnitLabel returns the work unit label given when n was created.
func (n *Node) WorkUnitLabel() string { return n.workUnitLabel }

// ChildIDs returns the ids of the children of n in creation order. It is safe
// to call while another member creates timers.
func (n *Node) ChildIDs() []int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.childIDs)
}

// InGroup reports whether n belongs to group.
func (n *Node) InGroup(group string) bool {
	return slices.Contains(n.groups, group)
}

// Hash combines the label, the groups and the work unit label of n. Two nodes
// built from the same strings, with groups in the same order, hash identically.
func (n *Node) Hash() uint64 {
	d := xxhash.New()
	write := func(s string) {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{hashSeparator})
	}
	write(n.label)
	for _, g := range n.groups {
		write(g)
	}
	write(n.workUnitLabel)
	return d.Sum64()
}

// start returns the id of n for the caller to move its cursor to.
func (n *Node) start(rank int, now time.Time) int {
	n.timings[rank].begin(now)
	return n.id
}

// stop returns the parent id of n for the caller to move its cursor back to.
// It fails if n is not running for rank.
func (n *Node) stop(rank int, now time.Time, workUnits float64, workUnitLabel string) (int, bool) {
	if !n.timings[rank].end(now, workUnits, workUnitLabel) {
		return n.id, false
	}
	return n.parentID, true
}

func (n *Node) averageTime(rank int, now time.Time) time.Duration {
	return n.timings[rank].average(now)
}

func (n *Node) resetTime(rank int, resetWallTime time.Time) {
	n.timings[rank].reset(resetWallTime)
}

func (n *Node) shiftActiveStartTime(rank int, shift time.Duration) {
	n.timings[rank].shift(shift)
}
