package gridcomp

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/logger"
	"github.com/notargets/GridKernel/network"
	"github.com/notargets/GridKernel/partitions"
)

// Network is a partitioned graph of grid components
type Network = network.Graph[*GridBus, *GridBranch]

// NewNetwork distributes cs over c and wires the components. It is
// collective over c.
func NewNetwork(ctx context.Context, c comm.Comm, cs *network.Case, layout *partitions.PartitionLayout) (*Network, error) {
	net, err := network.Distribute(ctx, c, cs, layout, NewGridBus, NewGridBranch)
	if err != nil {
		return nil, err
	}
	NewFactory(net).Setup()
	return net, nil
}

// Factory runs the network-wide preparation passes over every local
// component, owned and ghost alike
type Factory struct {
	net *Network
}

func NewFactory(net *Network) *Factory {
	return &Factory{net: net}
}

// Setup hands every component pointers to its neighbours. Ghost buses on
// the halo edge see only the branches held locally.
func (f *Factory) Setup() {
	g := f.net
	for i := 0; i < g.NumBranches(); i++ {
		b1, b2 := g.BranchEndpoints(i)
		br := g.Branch(i)
		br.bus1, br.bus2 = g.Bus(b1), g.Bus(b2)
	}
	for i := 0; i < g.NumBuses(); i++ {
		bus := g.Bus(i)
		bus.branches = bus.branches[:0]
		for _, j := range g.NeighborBranches(i) {
			bus.branches = append(bus.branches, g.Branch(j))
		}
	}
}

// Initialize refreshes ghosts and runs SetYBus, SetSBus and SetGBus
func (f *Factory) Initialize(ctx context.Context) error {
	if err := f.net.UpdateBuses(ctx); err != nil {
		return err
	}
	f.SetYBus()
	f.SetSBus()
	f.SetGBus()
	return nil
}

// SetYBus recomputes admittances, branches before buses. Run it again after
// changing circuit status.
func (f *Factory) SetYBus() {
	g := f.net
	for i := 0; i < g.NumBranches(); i++ {
		g.Branch(i).SetYBus()
	}
	for i := 0; i < g.NumBuses(); i++ {
		g.Bus(i).SetYBus()
	}
}

func (f *Factory) SetSBus() {
	for i := 0; i < f.net.NumBuses(); i++ {
		f.net.Bus(i).SetSBus()
	}
}

func (f *Factory) SetGBus() {
	for i := 0; i < f.net.NumBuses(); i++ {
		f.net.Bus(i).SetGBus()
	}
}

// SetFault applies a fault shunt to every local copy of bus id
func (f *Factory) SetFault(id int, y complex128) error {
	i, ok := f.net.FindBus(id)
	if !ok {
		return errors.Newf("bus %d is not held on rank %d", id, f.net.Rank())
	}
	f.net.Bus(i).SetFault(y)
	return nil
}

func (f *Factory) ClearFaults() {
	for i := 0; i < f.net.NumBuses(); i++ {
		f.net.Bus(i).ClearFault()
	}
}

// Balance sums online generation and load over the owned buses of every
// rank. Collective.
func (f *Factory) Balance(ctx context.Context) (gen, load complex128, err error) {
	var local [4]float64
	for i := 0; i < f.net.NumOwnedBuses(); i++ {
		b := f.net.Bus(i)
		s := b.onlineGeneration()
		local[0] += real(s)
		local[1] += imag(s)
		local[2] += b.pl
		local[3] += b.ql
	}
	all, err := comm.AllGatherFloats(ctx, f.net.Comm(), local[:])
	if err != nil {
		return 0, 0, err
	}
	var sum [4]float64
	for _, v := range all {
		for k := range sum {
			sum[k] += v[k]
		}
	}
	return complex(sum[0], sum[1]), complex(sum[2], sum[3]), nil
}

// CheckIsolated warns about owned buses with no in-service branch and
// returns their original indices
func (f *Factory) CheckIsolated() []int {
	var lone []int
	for i := 0; i < f.net.NumOwnedBuses(); i++ {
		b := f.net.Bus(i)
		connected := false
		for _, br := range b.branches {
			if br.InService() {
				connected = true
				break
			}
		}
		if !connected {
			lone = append(lone, b.number)
			logger.Logger.Warnw("bus has no in-service branch",
				logger.FieldRank, f.net.Rank(), logger.FieldBus, b.number)
		}
	}
	return lone
}
