package timertree

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slog"
)

var (
	// ErrZeroKey is returned when splitting with a zero key.
	ErrZeroKey = errors.New("split key must not be zero")
	// ErrRankOutOfRange is returned for ranks outside the process group.
	ErrRankOutOfRange = errors.New("rank out of range")
	// ErrRankPending is returned when a rank splits again before its previous
	// round completed.
	ErrRankPending = errors.New("rank already waiting in this round")
)

// Splitter partitions a group of cooperating processes. Every process calls
// Split with its own rank and key; each one gets back the ranks, in ascending
// order, of the processes that passed the same key.
type Splitter interface {
	Size() int
	Split(ctx context.Context, rank int, key int32) ([]int, error)
}

// # LocalGroup
//
// A [Splitter] for processes simulated inside one program, one goroutine per
// rank. A round completes once every rank has submitted its key.
// A LocalGroup should always be instantiated using [NewLocalGroup].
type LocalGroup struct {
	mu    sync.Mutex
	size  int
	round *splitRound
}

type splitRound struct {
	keys      []int32
	submitted []bool
	arrived   int
	done      chan struct{}
}

// NewLocalGroup returns a group of size processes.
func NewLocalGroup(size int) *LocalGroup {
	return &LocalGroup{size: size}
}

// Size implements [Splitter].
func (g *LocalGroup) Size() int { return g.size }

// Split implements [Splitter]. It blocks until every rank of g has called it
// or ctx is done. A rank giving up on ctx withdraws its key from the round.
func (g *LocalGroup) Split(ctx context.Context, rank int, key int32) ([]int, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("split rank %d of %d: %w", rank, g.size, ErrRankOutOfRange)
	}
	if key == 0 {
		return nil, fmt.Errorf("split rank %d: %w", rank, ErrZeroKey)
	}

	g.mu.Lock()
	r := g.round
	if r == nil {
		r = &splitRound{
			keys:      make([]int32, g.size),
			submitted: make([]bool, g.size),
			done:      make(chan struct{}),
		}
		g.round = r
	}
	if r.submitted[rank] {
		g.mu.Unlock()
		return nil, fmt.Errorf("split rank %d: %w", rank, ErrRankPending)
	}
	r.keys[rank] = key
	r.submitted[rank] = true
	r.arrived++
	if r.arrived == g.size {
		g.round = nil
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		if g.withdraw(r, rank) {
			return nil, fmt.Errorf("split rank %d: %w", rank, ctx.Err())
		}
		// the round completed while giving up, its result stands
	}

	var peers []int
	for i, k := range r.keys {
		if k == key {
			peers = append(peers, i)
		}
	}
	return peers, nil
}

// withdraw removes the key of rank from r unless r already completed.
func (g *LocalGroup) withdraw(r *splitRound, rank int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.round != r {
		return false
	}
	r.keys[rank] = 0
	r.submitted[rank] = false
	r.arrived--
	return true
}

// Consistency is the outcome of [CheckConsistency] for one process.
type Consistency struct {
	Hash  int32
	Peers []int
	// Consistent is true if every process of the group built the same tree.
	Consistent bool
}

// CheckConsistency splits the processes of s by the hash of their trees. It
// must be called by every process of s.
func CheckConsistency(ctx context.Context, s Splitter, rank int, tree *Tree) (Consistency, error) {
	h := tree.TreeHash()
	peers, err := s.Split(ctx, rank, h)
	if err != nil {
		return Consistency{}, fmt.Errorf("check timer tree consistency: %w", err)
	}

	c := Consistency{
		Hash:       h,
		Peers:      peers,
		Consistent: len(peers) == s.Size(),
	}
	if !c.Consistent {
		logger.Warn("timer tree differs between processes",
			slog.Int("rank", rank),
			slog.Int("hash", int(h)),
			slog.Int("peers", len(peers)),
			slog.Int("processes", s.Size()))
	}
	return c, nil
}
