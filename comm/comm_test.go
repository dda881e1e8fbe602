package comm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllGatherOrderedByRank(t *testing.T) {
	const n = 4
	var mu sync.Mutex
	results := make([][][]int, n)
	err := Run(context.Background(), n, func(ctx context.Context, c Comm) error {
		got, err := AllGatherInts(ctx, c, []int{c.Rank() * 10})
		if err != nil {
			return err
		}
		mu.Lock()
		results[c.Rank()] = got
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for r := 0; r < n; r++ {
		assert.Equal(t, [][]int{{0}, {10}, {20}, {30}}, results[r])
	}
}

func TestExclusiveScan(t *testing.T) {
	offsets := make([]int, 3)
	totals := make([]int, 3)
	err := Run(context.Background(), 3, func(ctx context.Context, c Comm) error {
		off, tot, err := ExclusiveScan(ctx, c, c.Rank()+1)
		offsets[c.Rank()] = off
		totals[c.Rank()] = tot
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, offsets)
	assert.Equal(t, []int{6, 6, 6}, totals)
}

func TestExchangeRing(t *testing.T) {
	const n = 5
	got := make([][]float64, n)
	err := Run(context.Background(), n, func(ctx context.Context, c Comm) error {
		right := (c.Rank() + 1) % n
		left := (c.Rank() + n - 1) % n
		recv, err := ExchangeFloats(ctx, c,
			map[int][]float64{right: {float64(c.Rank())}}, []int{left})
		if err != nil {
			return err
		}
		got[c.Rank()] = recv[left]
		return nil
	})
	require.NoError(t, err)
	for r := 0; r < n; r++ {
		assert.Equal(t, []float64{float64((r + n - 1) % n)}, got[r])
	}
}

func TestSplitFormsIndependentGroups(t *testing.T) {
	const n = 6
	sizes := make([]int, n)
	subRanks := make([]int, n)
	sums := make([]int, n)
	err := Run(context.Background(), n, func(ctx context.Context, c Comm) error {
		sub, err := c.Split(ctx, c.Rank()/2, -c.Rank())
		if err != nil {
			return err
		}
		sizes[c.Rank()] = sub.Size()
		subRanks[c.Rank()] = sub.Rank()
		all, err := AllGatherInts(ctx, sub, []int{c.Rank()})
		if err != nil {
			return err
		}
		for _, v := range all {
			sums[c.Rank()] += v[0]
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2, 2, 2}, sizes)
	// key = -rank puts the higher world rank first
	assert.Equal(t, []int{1, 0, 1, 0, 1, 0}, subRanks)
	assert.Equal(t, []int{1, 1, 5, 5, 9, 9}, sums)
}

func TestBroadcast(t *testing.T) {
	got := make([]any, 3)
	err := Run(context.Background(), 3, func(ctx context.Context, c Comm) error {
		v, err := Broadcast(ctx, c, 2, "task-"+string(rune('a'+c.Rank())))
		got[c.Rank()] = v
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"task-c", "task-c", "task-c"}, got)
}

func TestFailedRankCancelsPeers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Run(ctx, 3, func(ctx context.Context, c Comm) error {
		if c.Rank() == 1 {
			return assert.AnError
		}
		// peers block here until rank 1's failure cancels the group
		return c.Barrier(ctx)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
