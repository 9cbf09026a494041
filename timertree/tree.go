package timertree

import (
	"context"
	"math"
	"strings"
	"sync"

	"fortio.org/safecast"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// # Tree
//
// Represents the timer tree of one process. Nodes are kept in an append-only
// arena and addressed by their index, which never changes. Index 0 is the root
// timer "total" in group "Total", created and started for every team member
// when the tree is built.
//
// The arena is shared by all members of the tree's [Team] and only grows inside
// [Thread.InitializeTimer]. Each member drives its own [Thread].
type Tree struct {
	*sync.RWMutex
	nodes   []*Node
	team    *Team
	clock   Clock
	threads []*Thread
}

// Option configures a [Tree].
type Option func(*Tree)

// WithTeam makes the tree shared by the members of team.
// The default is a team of one.
func WithTeam(team *Team) Option {
	return func(t *Tree) {
		t.team = team
	}
}

// WithClock sets the time source of the tree. The default is [WallClock].
func WithClock(clock Clock) Option {
	return func(t *Tree) {
		t.clock = clock
	}
}

// New returns a tree holding only the running root timer.
func New(opts ...Option) *Tree {
	t := &Tree{
		RWMutex: &sync.RWMutex{},
		clock:   WallClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.team == nil {
		t.team = NewTeam(1)
	}

	members := t.team.Size()
	root := newNode(0, -1, rootLabel, []string{rootGroup}, "", members)
	root.mu = t.RWMutex
	t.nodes = append(t.nodes, root)

	now := t.clock.Now()
	t.threads = make([]*Thread, members)
	for rank := range t.threads {
		t.threads[rank] = &Thread{
			tree:      t,
			rank:      rank,
			currentID: root.start(rank, now),
		}
	}
	return t
}

// Team returns the team sharing t.
func (t *Tree) Team() *Team { return t.team }

// Thread returns the view of t private to the team member rank, or nil if
// rank is not a member.
func (t *Tree) Thread(rank int) *Thread {
	if rank < 0 || rank >= len(t.threads) {
		logger.Error("rank out of range",
			slog.Int("rank", rank),
			slog.Int("team", len(t.threads)))
		return nil
	}
	return t.threads[rank]
}

// Main is equivalent to calling:
//
//	t.Thread(0)
func (t *Tree) Main() *Thread {
	return t.threads[0]
}

// Len returns the number of timers in t, the root included.
func (t *Tree) Len() int {
	t.RLock()
	defer t.RUnlock()
	return len(t.nodes)
}

// Node returns the node with the given id, or nil if there is none.
func (t *Tree) Node(id int) *Node {
	t.RLock()
	defer t.RUnlock()
	return t.node(id)
}

func (t *Tree) node(id int) *Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// ChildID returns the id of the child of parent labeled label, or -1.
func (t *Tree) ChildID(parent int, label string) int {
	t.RLock()
	defer t.RUnlock()
	return t.childID(parent, label)
}

// childID returns the first match, siblings sharing a label are one timer.
func (t *Tree) childID(parent int, label string) int {
	p := t.node(parent)
	if p == nil {
		return -1
	}
	for _, id := range p.childIDs {
		if t.nodes[id].label == label {
			return id
		}
	}
	return -1
}

// childOrCreate returns the child of parent labeled label, appending it to the
// arena if it does not exist yet.
func (t *Tree) childOrCreate(parent int, label string, groups []string, workUnitLabel string) int {
	t.Lock()
	defer t.Unlock()

	if id := t.childID(parent, label); id >= 0 {
		return id
	}

	id := len(t.nodes)
	n := newNode(id, parent, label, groups, workUnitLabel, t.team.Size())
	n.mu = t.RWMutex
	t.nodes = append(t.nodes, n)
	p := t.nodes[parent]
	p.childIDs = append(p.childIDs, id)

	logger.Debug("timer created",
		slog.Int("id", id),
		slog.Int("parent", parent),
		slog.String("label", label))
	return id
}

// Hash returns a non zero fingerprint of the labels, groups and work unit
// labels of node id and its direct children. Deeper descendants are not
// included; use [Tree.TreeHash] to cover the whole tree.
// The value fits the int32 key of group split primitives.
func (t *Tree) Hash(id int) int32 {
	t.RLock()
	defer t.RUnlock()

	n := t.node(id)
	if n == nil {
		logger.Error("hash of unknown timer",
			slog.Int("id", id))
		return 1
	}
	sum := n.Hash()
	for _, c := range n.childIDs {
		sum += t.nodes[c].Hash()
	}
	return reduceHash(sum)
}

// TreeHash is the fingerprint of every node of t. Trees built from the same
// ordered sequence of timer declarations have the same TreeHash.
func (t *Tree) TreeHash() int32 {
	t.RLock()
	defer t.RUnlock()

	var sum uint64
	for _, n := range t.nodes {
		sum += n.Hash()
	}
	return reduceHash(sum)
}

// reduceHash maps sum onto [1, MaxInt32).
func reduceHash(sum uint64) int32 {
	// split keys must not be zero
	if sum == 0 {
		return 1
	}
	h, err := safecast.Conv[int32](sum % math.MaxInt32)
	if err != nil || h == 0 {
		return 1
	}
	return h
}

// FullLabel returns the hierarchical name of timer id. The root is implicit
// and never named: for the chain total → A → B the name of B is "/A/B", or
// "B\A\" if reverse is set.
func (t *Tree) FullLabel(id int, reverse bool) string {
	t.RLock()
	defer t.RUnlock()
	return t.fullLabel(id, reverse)
}

func (t *Tree) fullLabel(id int, reverse bool) string {
	var labels []string
	for id > 0 && id < len(t.nodes) {
		labels = append(labels, t.nodes[id].label)
		id = t.nodes[id].parentID
	}

	var b strings.Builder
	if reverse {
		for _, l := range labels {
			b.WriteString(l)
			b.WriteString(`\`)
		}
		return b.String()
	}
	for i := len(labels) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(labels[i])
	}
	return b.String()
}

// Groups returns the sorted names of all groups used in t.
func (t *Tree) Groups() []string {
	t.RLock()
	defer t.RUnlock()

	set := make(map[string]struct{})
	for _, n := range t.nodes {
		for _, g := range n.groups {
			set[g] = struct{}{}
		}
	}
	groups := maps.Keys(set)
	slices.Sort(groups)
	return groups
}

// depth returns the number of ancestors of id.
func (t *Tree) depth(id int) int {
	d := 0
	for id > 0 {
		id = t.nodes[id].parentID
		d++
	}
	return d
}

// Run calls fn once for every member of the team of t, each on its own
// goroutine, and waits for all of them. The first error cancels ctx.
// A member returning early leaves the others blocked in collective calls, so fn
// should only fail once it is past its last collective call.
func (t *Tree) Run(ctx context.Context, fn func(ctx context.Context, th *Thread) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, th := range t.threads {
		th := th
		g.Go(func() error {
			return fn(ctx, th)
		})
	}
	return g.Wait()
}
