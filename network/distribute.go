package network

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/logger"
	"github.com/notargets/GridKernel/partitions"
	"github.com/notargets/GridKernel/utils"
)

// halo is one partition's local share of the case, in case positions
type halo struct {
	buses    []int // owned (ascending) then ghosts (first ring, then second ring)
	branches []int // owned (ascending) then ghosts (ascending)
	owned    int
	ownedBr  int
	boundary map[int]bool // second-ring ghost bus positions
}

// incidence returns, for each bus position, the incident branch positions
func incidence(cs *Case) [][]int {
	inc := make([][]int, len(cs.Buses))
	for i, br := range cs.Branches {
		from, _ := cs.BusPosition(br.From)
		to, _ := cs.BusPosition(br.To)
		inc[from] = append(inc[from], i)
		inc[to] = append(inc[to], i)
	}
	return inc
}

func buildHalo(cs *Case, inc [][]int, layout *partitions.PartitionLayout, p int) halo {
	h := halo{boundary: make(map[int]bool)}
	heldBus := make(map[int]bool)
	heldBr := make(map[int]bool)

	owned := layout.Partitions[p].Buses
	h.buses = append(h.buses, owned...)
	h.owned = len(owned)
	for _, b := range owned {
		heldBus[b] = true
	}

	endpoints := func(i int) (int, int) {
		from, _ := cs.BusPosition(cs.Branches[i].From)
		to, _ := cs.BusPosition(cs.Branches[i].To)
		return from, to
	}

	// First ring: every branch touching an owned bus
	var ring1Br []int
	for _, b := range owned {
		for _, br := range inc[b] {
			if !heldBr[br] {
				heldBr[br] = true
				ring1Br = append(ring1Br, br)
			}
		}
	}
	var ring1 []int
	for _, br := range ring1Br {
		from, to := endpoints(br)
		for _, b := range []int{from, to} {
			if !heldBus[b] {
				heldBus[b] = true
				ring1 = append(ring1, b)
			}
		}
	}
	sort.Ints(ring1)

	// Second ring: complete the incident sets of first-ring ghosts
	var ring2Br []int
	for _, b := range ring1 {
		for _, br := range inc[b] {
			if !heldBr[br] {
				heldBr[br] = true
				ring2Br = append(ring2Br, br)
			}
		}
	}
	var ring2 []int
	for _, br := range ring2Br {
		from, to := endpoints(br)
		for _, b := range []int{from, to} {
			if !heldBus[b] {
				heldBus[b] = true
				ring2 = append(ring2, b)
				h.boundary[b] = true
			}
		}
	}
	sort.Ints(ring2)
	h.buses = append(h.buses, ring1...)
	h.buses = append(h.buses, ring2...)

	var ownedBr, ghostBr []int
	for br := range heldBr {
		from, _ := endpoints(br)
		if layout.BToP[from] == p {
			ownedBr = append(ownedBr, br)
		} else {
			ghostBr = append(ghostBr, br)
		}
	}
	sort.Ints(ownedBr)
	sort.Ints(ghostBr)
	h.branches = append(ownedBr, ghostBr...)
	h.ownedBr = len(ownedBr)
	return h
}

// Distribute builds this rank's graph from the replicated case. Every rank of
// c calls it with the same validated case and layout; the case is only read.
// Collective, since owners assign global bus numbers and push them to ghosts.
func Distribute[B component.Bus, R component.Branch](
	ctx context.Context,
	c comm.Comm,
	cs *Case,
	layout *partitions.PartitionLayout,
	newBus func() B,
	newBranch func() R,
) (*Graph[B, R], error) {
	if cs.position == nil {
		return nil, errors.New("case must be validated before distribution")
	}
	if layout.NumPartitions != c.Size() {
		return nil, errors.Newf("layout has %d partitions for %d ranks", layout.NumPartitions, c.Size())
	}
	if layout.TotalBuses != len(cs.Buses) {
		return nil, errors.Newf("layout covers %d buses, case has %d", layout.TotalBuses, len(cs.Buses))
	}

	inc := incidence(cs)
	halos := make([]halo, layout.NumPartitions)
	localBuses := make([][]int, layout.NumPartitions)
	for p := range halos {
		halos[p] = buildHalo(cs, inc, layout, p)
		localBuses[p] = halos[p].buses
	}
	connector, err := utils.NewGhostConnector(layout.BToP, localBuses)
	if err != nil {
		return nil, errors.Wrap(err, "build ghost connector")
	}
	if err := connector.Verify(); err != nil {
		return nil, errors.Wrap(err, "verify ghost connector")
	}

	rank := c.Rank()
	h := halos[rank]
	g := &Graph[B, R]{
		comm:      c,
		buses:     make([]busEntry[B], len(h.buses)),
		branches:  make([]branchEntry[R], len(h.branches)),
		ownedBus:  h.owned,
		ownedBr:   h.ownedBr,
		connector: connector,
		totalBus:  len(cs.Buses),
	}

	localOf := make(map[int]int, len(h.buses))
	for local, pos := range h.buses {
		bd := &cs.Buses[pos]
		comp := newBus()
		if gh, ok := any(comp).(component.Ghoster); ok {
			gh.SetGhost(local >= h.owned)
		}
		if ld, ok := any(comp).(component.Loader); ok {
			ld.Load(bd.Collection())
		}
		g.buses[local] = busEntry[B]{
			comp:     comp,
			original: bd.ID,
			global:   -1,
			position: pos,
			owner:    layout.BToP[pos],
			ghost:    local >= h.owned,
			boundary: h.boundary[pos],
			area:     bd.Area,
			zone:     bd.Zone,
		}
		localOf[pos] = local
	}

	for local, pos := range h.branches {
		bd := &cs.Branches[pos]
		from, _ := cs.BusPosition(bd.From)
		to, _ := cs.BusPosition(bd.To)
		comp := newBranch()
		if gh, ok := any(comp).(component.Ghoster); ok {
			gh.SetGhost(local >= h.ownedBr)
		}
		if ld, ok := any(comp).(component.Loader); ok {
			ld.Load(bd.Collection())
		}
		g.branches[local] = branchEntry[R]{
			comp:     comp,
			bus1:     localOf[from],
			bus2:     localOf[to],
			position: pos,
			owner:    layout.BToP[from],
			ghost:    local >= h.ownedBr,
		}
	}

	// Incident lists in ascending case order, so every rank visits them alike
	order := make([]int, len(g.branches))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return g.branches[order[a]].position < g.branches[order[b]].position
	})
	for _, br := range order {
		e := g.branches[br]
		g.buses[e.bus1].branches = append(g.buses[e.bus1].branches, br)
		g.buses[e.bus2].branches = append(g.buses[e.bus2].branches, br)
	}

	if err := g.assignGlobalBusIndices(ctx); err != nil {
		return nil, err
	}

	logger.Logger.Debugw("network distributed",
		logger.FieldRank, rank,
		"owned_buses", g.ownedBus,
		"ghost_buses", len(g.buses)-g.ownedBus,
		"owned_branches", g.ownedBr,
		"ghost_branches", len(g.branches)-g.ownedBr)
	return g, nil
}

// assignGlobalBusIndices numbers owned buses contiguously per rank in rank
// order, then ghosts learn their number from the owner.
func (g *Graph[B, R]) assignGlobalBusIndices(ctx context.Context) error {
	offset, _, err := comm.ExclusiveScan(ctx, g.comm, g.ownedBus)
	if err != nil {
		return errors.Wrap(err, "global bus numbering")
	}
	for i := 0; i < g.ownedBus; i++ {
		g.buses[i].global = offset + i
	}
	return g.ExchangeGhostInts(ctx, 1,
		func(local int, dst []int) { dst[0] = g.buses[local].global },
		func(local int, src []int) { g.buses[local].global = src[0] })
}
