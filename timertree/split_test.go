package timertree

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLocalGroupSplit(t *testing.T) {
	group := NewLocalGroup(4)
	keys := []int32{7, 9, 7, 9}
	got := make([][]int, len(keys))

	g, ctx := errgroup.WithContext(context.Background())
	for rank, key := range keys {
		rank, key := rank, key
		g.Go(func() error {
			peers, err := group.Split(ctx, rank, key)
			got[rank] = peers
			return err
		})
	}
	require.NoError(t, g.Wait())

	want := [][]int{{0, 2}, {1, 3}, {0, 2}, {1, 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestLocalGroupErrors(t *testing.T) {
	group := NewLocalGroup(2)

	_, err := group.Split(context.Background(), 0, 0)
	require.ErrorIs(t, err, ErrZeroKey)

	_, err = group.Split(context.Background(), 2, 1)
	require.ErrorIs(t, err, ErrRankOutOfRange)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = group.Split(ctx, 0, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCheckConsistency(t *testing.T) {
	renamed := sampleDecls()
	renamed[0].children[1].label = "exchange"

	trees := []*Tree{
		buildTree(t, sampleDecls()),
		buildTree(t, sampleDecls()),
		buildTree(t, renamed),
	}

	run := func(trees []*Tree) []Consistency {
		group := NewLocalGroup(len(trees))
		got := make([]Consistency, len(trees))
		g, ctx := errgroup.WithContext(context.Background())
		for rank := range trees {
			rank := rank
			g.Go(func() error {
				c, err := CheckConsistency(ctx, group, rank, trees[rank])
				got[rank] = c
				return err
			})
		}
		require.NoError(t, g.Wait())
		return got
	}

	got := run(trees)
	require.Equal(t, []int{0, 1}, got[0].Peers)
	require.Equal(t, []int{2}, got[2].Peers)
	require.NotEqual(t, got[0].Hash, got[2].Hash)
	for _, c := range got {
		require.False(t, c.Consistent)
	}

	got = run(trees[:2])
	for _, c := range got {
		require.True(t, c.Consistent)
		require.Equal(t, []int{0, 1}, c.Peers)
	}
}

func TestLocalGroupRetryAfterCancel(t *testing.T) {
	group := NewLocalGroup(2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := group.Split(ctx, 0, 7)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the cancelled key is withdrawn, the retry still waits for rank 1
	got := make([][]int, 2)
	g, ctx := errgroup.WithContext(context.Background())
	ctx, cancel = context.WithTimeout(ctx, time.Second)
	defer cancel()
	for rank := range got {
		rank := rank
		g.Go(func() error {
			peers, err := group.Split(ctx, rank, 7)
			got[rank] = peers
			return err
		})
	}
	require.NoError(t, g.Wait())

	want := [][]int{{0, 1}, {0, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestLocalGroupRejectsPendingRank(t *testing.T) {
	group := NewLocalGroup(2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var g errgroup.Group
	var first []int
	g.Go(func() error {
		var err error
		first, err = group.Split(ctx, 0, 7)
		return err
	})
	require.Eventually(t, func() bool {
		group.mu.Lock()
		defer group.mu.Unlock()
		return group.round != nil && group.round.submitted[0]
	}, time.Second, time.Millisecond)

	_, err := group.Split(ctx, 0, 7)
	require.ErrorIs(t, err, ErrRankPending)

	second, err := group.Split(ctx, 1, 7)
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	require.Equal(t, []int{0, 1}, first)
	require.Equal(t, []int{0, 1}, second)
}
