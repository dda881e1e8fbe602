package contingency

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/gridcomp"
	"github.com/notargets/GridKernel/linalg"
	"github.com/notargets/GridKernel/network"
	"github.com/notargets/GridKernel/partitions"
)

func ckt(tag string, x, rating float64, online bool) map[string]any {
	status := 0
	if online {
		status = 1
	}
	return map[string]any{
		component.BranchCircuit: tag,
		component.BranchX:       x,
		component.BranchRating:  rating,
		component.BranchStatus:  status,
	}
}

func gen(tag string, pg float64, online bool) map[string]any {
	return map[string]any{
		component.GeneratorID:     tag,
		component.GeneratorPG:     pg,
		component.GeneratorStatus: online,
	}
}

// loopCase is a three-bus loop with a radial spur to bus 4. Bus 1 carries
// the generation and bus 2 the load.
func loopCase(t *testing.T) *network.Case {
	t.Helper()
	cs := &network.Case{
		Name: "loop",
		Buses: []network.BusData{
			{ID: 1, Type: component.TypeReference, Area: 1, Zone: 1, Generators: []map[string]any{
				gen("'1'", 1.0, true), gen("2", 0.5, false),
			}},
			{ID: 2, Type: component.TypePQ, Area: 1, Zone: 1, Data: map[string]any{component.LoadPL: 1.0}},
			{ID: 3, Type: component.TypePV, Area: 1, Zone: 2, Generators: []map[string]any{gen("1", 0, true)}},
			{ID: 4, Type: component.TypePQ, Area: 2, Zone: 2},
		},
		Branches: []network.BranchData{
			{From: 1, To: 2, Circuits: []map[string]any{ckt("'1'", 0.1, 0.5, true), ckt("2", 0.1, 0.5, false)}},
			{From: 2, To: 3, Circuits: []map[string]any{ckt("1", 0.1, 2, true)}},
			{From: 1, To: 3, Circuits: []map[string]any{ckt("1", 0.1, 2, true)}},
			{From: 3, To: 4, Circuits: []map[string]any{ckt("1", 0.1, 2, true)}},
		},
	}
	require.NoError(t, cs.Validate())
	return cs
}

func build(t *testing.T, cs *network.Case) *gridcomp.Network {
	t.Helper()
	layout, err := cs.Partition(1, partitions.BlockPartition)
	require.NoError(t, err)
	ctx := context.Background()
	net, err := gridcomp.NewNetwork(ctx, comm.NewWorld(1)[0], cs, layout)
	require.NoError(t, err)
	require.NoError(t, gridcomp.NewFactory(net).Initialize(ctx))
	return net
}

func branchBetween(t *testing.T, net *gridcomp.Network, from, to int) *gridcomp.GridBranch {
	t.Helper()
	for i := 0; i < net.NumBranches(); i++ {
		f, tt := net.BranchOriginalIndices(i)
		if f == from && tt == to {
			return net.Branch(i)
		}
	}
	require.Failf(t, "branch not found", "%d-%d", from, to)
	return nil
}

func busByID(t *testing.T, net *gridcomp.Network, id int) *gridcomp.GridBus {
	t.Helper()
	i, ok := net.FindBus(id)
	require.True(t, ok)
	return net.Bus(i)
}

func TestApplyClearRestoresExactState(t *testing.T) {
	net := build(t, loopCase(t))
	br := branchBetween(t, net, 1, 2)
	c := &Contingency{
		Name: "both circuits 1-2",
		Lines: []LineOutage{
			{From: 1, To: 2, Circuit: "1"}, // unquoted tag
			{From: 1, To: 2, Circuit: "'2'"},
		},
	}

	require.NoError(t, Apply(net, c))
	assert.True(t, c.Applied())
	assert.Equal(t, 2, c.Matched())
	assert.Equal(t, c.Name, net.LiveContingency())
	assert.False(t, br.CircuitStatus(0))
	assert.False(t, br.CircuitStatus(1))
	assert.False(t, br.InService())

	require.NoError(t, Clear(net, c))
	assert.False(t, c.Applied())
	assert.Empty(t, net.LiveContingency())
	assert.True(t, br.CircuitStatus(0))
	assert.False(t, br.CircuitStatus(1), "circuit out before the contingency stays out")
}

func TestOutageMatchesBranchDirection(t *testing.T) {
	cs := &network.Case{
		Buses: []network.BusData{{ID: 1, Type: component.TypeReference}, {ID: 2, Type: component.TypePQ}},
		Branches: []network.BranchData{
			{From: 1, To: 2, Circuits: []map[string]any{ckt("1", 0.1, 1, true)}},
			{From: 2, To: 1, Circuits: []map[string]any{ckt("1", 0.2, 1, true)}},
		},
	}
	require.NoError(t, cs.Validate())
	net := build(t, cs)
	forward, backward := branchBetween(t, net, 1, 2), branchBetween(t, net, 2, 1)

	c := &Contingency{Name: "Line_1_2_1", Lines: []LineOutage{{From: 1, To: 2, Circuit: "1"}}}
	require.NoError(t, Apply(net, c))
	assert.Equal(t, 1, c.Matched())
	assert.False(t, forward.CircuitStatus(0))
	assert.True(t, backward.CircuitStatus(0))
	require.NoError(t, Clear(net, c))

	single := build(t, loopCase(t))
	reversed := &Contingency{Name: "Line_2_1_1", Lines: []LineOutage{{From: 2, To: 1, Circuit: "1"}}}
	require.NoError(t, Apply(single, reversed))
	assert.Zero(t, reversed.Matched())
	assert.True(t, branchBetween(t, single, 1, 2).CircuitStatus(0))
	require.NoError(t, Clear(single, reversed))
}

func TestMatchedCountsOwnedCopiesOnly(t *testing.T) {
	cs := loopCase(t)
	layout, err := cs.Partition(2, partitions.RoundRobin)
	require.NoError(t, err)
	outage := &Contingency{Name: "Line_1_2_1", Lines: []LineOutage{{From: 1, To: 2, Circuit: "1"}}}

	err = comm.Run(context.Background(), 2, func(ctx context.Context, c comm.Comm) error {
		net, err := gridcomp.NewNetwork(ctx, c, cs, layout)
		if err != nil {
			return err
		}
		mine := outage.Clone()
		if err := Apply(net, mine); err != nil {
			return err
		}
		for i := 0; i < net.NumBranches(); i++ {
			if from, to := net.BranchOriginalIndices(i); from == 1 && to == 2 {
				assert.False(t, net.Branch(i).CircuitStatus(0), "rank %d ghost=%v", c.Rank(), net.IsGhostBranch(i))
			}
		}
		all, err := comm.AllGatherInts(ctx, c, []int{mine.Matched()})
		if err != nil {
			return err
		}
		assert.Equal(t, 1, all[0][0]+all[1][0])
		return Clear(net, mine)
	})
	require.NoError(t, err)
}

func TestGeneratorOutage(t *testing.T) {
	net := build(t, loopCase(t))
	b := busByID(t, net, 1)
	c := &Contingency{Name: "Gen_1_1", Type: TypeGenerator, Generators: []GeneratorOutage{{Bus: 1, GenID: "1"}}}

	require.NoError(t, Apply(net, c))
	assert.Equal(t, 1, c.Matched())
	assert.False(t, b.GeneratorStatus(0))
	assert.False(t, b.GeneratorStatus(1))
	require.NoError(t, Clear(net, c))
	assert.True(t, b.GeneratorStatus(0))
	assert.False(t, b.GeneratorStatus(1))
}

func TestToggleProtocolErrors(t *testing.T) {
	net := build(t, loopCase(t))
	other := build(t, loopCase(t))
	c := &Contingency{Name: "a", Lines: []LineOutage{{From: 2, To: 3, Circuit: "1"}}}

	assert.ErrorIs(t, Clear(net, c), ErrNotApplied)
	require.NoError(t, Apply(net, c))
	assert.ErrorIs(t, Apply(net, c), ErrAlreadyApplied)

	second := &Contingency{Name: "b", Lines: []LineOutage{{From: 1, To: 3, Circuit: "1"}}}
	assert.ErrorIs(t, Apply(net, second), network.ErrContingencyLive)
	assert.True(t, branchBetween(t, net, 1, 3).CircuitStatus(0))

	assert.ErrorIs(t, Clear(other, c), ErrWrongNetwork)
	require.NoError(t, Clear(net, c))
	require.NoError(t, Apply(net, second))
	require.NoError(t, Clear(net, second))
}

func TestCloneIsUnapplied(t *testing.T) {
	net := build(t, loopCase(t))
	c := &Contingency{Name: "a", Lines: []LineOutage{{From: 2, To: 3, Circuit: "1"}}}
	require.NoError(t, Apply(net, c))
	cl := c.Clone()
	assert.False(t, cl.Applied())
	assert.Equal(t, c.Lines, cl.Lines)
	cl.Lines[0].Circuit = "9"
	assert.Equal(t, "1", c.Lines[0].Circuit)
	require.NoError(t, Clear(net, c))
}

func TestBranchContingenciesByRegion(t *testing.T) {
	cs := loopCase(t)

	var names []string
	for _, c := range BranchContingencies(cs, 0, 0) {
		assert.Equal(t, TypeBranch, c.Type)
		require.Len(t, c.Lines, 1)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Line_1_2_1", "Line_2_3_1", "Line_1_3_1", "Line_3_4_1"}, names)

	names = names[:0]
	for _, c := range BranchContingencies(cs, 1, 0) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Line_1_2_1", "Line_2_3_1", "Line_1_3_1"}, names)

	names = names[:0]
	for _, c := range BranchContingencies(cs, 1, 1) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Line_1_2_1"}, names)
	assert.Empty(t, BranchContingencies(cs, 3, 0))
}

func TestGeneratorContingenciesSkipOffline(t *testing.T) {
	cs := loopCase(t)
	list := GeneratorContingencies(cs, 0, 0)
	require.Len(t, list, 2)
	assert.Equal(t, "Gen_1_1", list[0].Name)
	assert.Equal(t, []GeneratorOutage{{Bus: 1, GenID: "1"}}, list[0].Generators)
	assert.Equal(t, "Gen_3_1", list[1].Name)

	list = GeneratorContingencies(cs, 0, 1)
	require.Len(t, list, 1)
	assert.Equal(t, "Gen_1_1", list[0].Name)
}

func TestDCFlowOnLoop(t *testing.T) {
	net := build(t, loopCase(t))
	out, err := NewDCFlow(net, DCOptions{}).Evaluate(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, -1.0/15, busByID(t, net, 2).DCAngle(), 1e-9)
	assert.InDelta(t, -1.0/30, busByID(t, net, 3).DCAngle(), 1e-9)
	assert.InDelta(t, -1.0/30, busByID(t, net, 4).DCAngle(), 1e-9)
	assert.InDelta(t, 2.0/3, branchBetween(t, net, 1, 2).CircuitDCFlow(0), 1e-9)
	assert.InDelta(t, -1.0/3, branchBetween(t, net, 2, 3).CircuitDCFlow(0), 1e-9)
	assert.InDelta(t, 1.0/3, branchBetween(t, net, 1, 3).CircuitDCFlow(0), 1e-9)

	require.Len(t, out.Violations, 1)
	v := out.Violations[0]
	assert.Equal(t, 1, v.From)
	assert.Equal(t, 2, v.To)
	assert.Equal(t, "1", v.Circuit)
	assert.InDelta(t, 4.0/3, v.Loading, 1e-9)
	assert.InDelta(t, 4.0/3, out.MaxLoading, 1e-9)
	assert.Less(t, out.Residual, 1e-9)
}

func TestDCFlowThreshold(t *testing.T) {
	net := build(t, loopCase(t))
	out, err := NewDCFlow(net, DCOptions{RatingThreshold: 1.5}).Evaluate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Violations)
	assert.InDelta(t, 4.0/3/1.5, out.MaxLoading, 1e-9)
}

func TestDCFlowIslandHasNoSolution(t *testing.T) {
	net := build(t, loopCase(t))
	c := &Contingency{Name: "spur", Lines: []LineOutage{{From: 3, To: 4, Circuit: "1"}}}
	require.NoError(t, Apply(net, c))
	gridcomp.NewFactory(net).SetYBus()

	_, err := NewDCFlow(net, DCOptions{}).Evaluate(context.Background())
	assert.ErrorIs(t, err, linalg.ErrNoSolution)
	require.NoError(t, Clear(net, c))
}

func TestDCFlowAcrossRanksMatchesSingleRank(t *testing.T) {
	cs := loopCase(t)
	layout, err := cs.Partition(2, partitions.RoundRobin)
	require.NoError(t, err)

	err = comm.Run(context.Background(), 2, func(ctx context.Context, c comm.Comm) error {
		net, err := gridcomp.NewNetwork(ctx, c, cs, layout)
		if err != nil {
			return err
		}
		if err := gridcomp.NewFactory(net).Initialize(ctx); err != nil {
			return err
		}
		out, err := NewDCFlow(net, DCOptions{}).Evaluate(ctx)
		if err != nil {
			return err
		}
		assert.InDelta(t, 4.0/3, out.MaxLoading, 1e-9)
		assert.Len(t, out.Violations, 1)
		for i := 0; i < net.NumBuses(); i++ {
			if net.BusOriginalIndex(i) == 2 {
				assert.InDelta(t, -1.0/15, net.Bus(i).DCAngle(), 1e-9, "rank %d", c.Rank())
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestTaskQueueHandsOutEachIndexOnce(t *testing.T) {
	q := NewTaskQueue(100)
	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := q.Next(); i >= 0; i = q.Next() {
				mu.Lock()
				seen[i]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 100)
	for i, n := range seen {
		assert.Equal(t, 1, n, "index %d", i)
	}
	assert.Equal(t, -1, q.Next())
}

func TestScreenContinuesPastIslanding(t *testing.T) {
	cs := loopCase(t)
	list := BranchContingencies(cs, 0, 0)
	list = append(list, &Contingency{Name: "missing", Lines: []LineOutage{{From: 1, To: 4, Circuit: "1"}}})
	q := NewTaskQueue(len(list))

	reports := make([]*Report, 4)
	err := comm.Run(context.Background(), 4, func(ctx context.Context, c comm.Comm) error {
		s := &Screener{
			World:         c,
			GroupSize:     2,
			Case:          cs,
			Strategy:      partitions.BlockPartition,
			Contingencies: list,
			Queue:         q,
			RunID:         "test",
		}
		rep, err := s.Screen(ctx)
		reports[c.Rank()] = rep
		return err
	})
	require.NoError(t, err)

	rep := reports[0]
	assert.Equal(t, 2, rep.Groups)
	assert.Equal(t, StatusViolation, rep.Base.Status)
	require.Len(t, rep.Results, len(list))
	want := []Status{StatusOK, StatusViolation, StatusViolation, StatusNoSolution, StatusViolation}
	for i, res := range rep.Results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, list[i].Name, res.Name)
		assert.Equal(t, want[i], res.Status, res.Name)
	}
	assert.Equal(t, 0, rep.Results[4].Matched)
	assert.Equal(t, 1, rep.Count(StatusOK))
	assert.Equal(t, 3, rep.Count(StatusViolation))
	assert.Equal(t, 1, rep.Count(StatusNoSolution))

	for r := 1; r < 4; r++ {
		assert.Equal(t, rep.Results, reports[r].Results, "rank %d", r)
	}

	table, err := rep.Table()
	require.NoError(t, err)
	assert.Contains(t, table, "Line_3_4_1")
	assert.Contains(t, table, "base case")
}

func TestTogglingSingleBranchRemovesCoupling(t *testing.T) {
	cs := &network.Case{
		Buses: []network.BusData{{ID: 1, Type: component.TypePQ}, {ID: 2, Type: component.TypePQ}},
		Branches: []network.BranchData{{From: 1, To: 2, Circuits: []map[string]any{
			{component.BranchCircuit: "1", component.BranchR: 0.0, component.BranchX: 0.1},
		}}},
	}
	require.NoError(t, cs.Validate())
	net := build(t, cs)
	f := gridcomp.NewFactory(net)
	br := net.Branch(0)

	vals := make([]complex128, 1)
	require.True(t, br.MatrixForwardValues(component.YBus, vals))
	assert.InDelta(t, 10, imag(vals[0]), 1e-9)

	c := &Contingency{Name: "Line_1_2_1", Lines: []LineOutage{{From: 1, To: 2, Circuit: "1"}}}
	require.NoError(t, Apply(net, c))
	f.SetYBus()
	i, j, ok := br.MatrixForwardSize(component.YBus)
	assert.False(t, ok)
	assert.Zero(t, i*j)
	_, _, ok = br.MatrixReverseSize(component.YBus)
	assert.False(t, ok)
	assert.Zero(t, busByID(t, net, 1).YBusDiag())

	require.NoError(t, Clear(net, c))
	f.SetYBus()
	_, _, ok = br.MatrixForwardSize(component.YBus)
	assert.True(t, ok)
	assert.InDelta(t, -10, imag(busByID(t, net, 2).YBusDiag()), 1e-9)
}
