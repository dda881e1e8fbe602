// Package network holds one rank's share of a partitioned power network:
// owned buses and branches followed by read-mostly ghost copies of the
// neighbours owned elsewhere.
package network

import (
	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/utils"
)

// ErrContingencyLive is returned when a second contingency is applied to a
// graph that already has one in effect.
var ErrContingencyLive = errors.New("a contingency is already live on this network")

type busEntry[B component.Bus] struct {
	comp     B
	original int // index from the input case
	global   int // owner-assigned global bus number
	position int // position in the case bus list
	owner    int
	ghost    bool
	boundary bool // ghost whose incident branches are not all held here
	area     int
	zone     int
	branches []int // incident local branch indices
}

type branchEntry[R component.Branch] struct {
	comp     R
	bus1     int // local index of the From bus
	bus2     int // local index of the To bus
	position int // position in the case branch list
	owner    int
	ghost    bool
}

// Graph is the local view of a partitioned network. Buses and branches are
// stored owned-first; indices are contiguous on each rank.
type Graph[B component.Bus, R component.Branch] struct {
	comm      comm.Comm
	buses     []busEntry[B]
	branches  []branchEntry[R]
	ownedBus  int
	ownedBr   int
	connector *utils.GhostConnector
	totalBus  int
	live      string
}

func (g *Graph[B, R]) checkBus(i int) {
	if i < 0 || i >= len(g.buses) {
		panic(errors.AssertionFailedf("rank %d: bus index %d outside [0,%d)", g.Rank(), i, len(g.buses)))
	}
}

func (g *Graph[B, R]) checkBranch(i int) {
	if i < 0 || i >= len(g.branches) {
		panic(errors.AssertionFailedf("rank %d: branch index %d outside [0,%d)", g.Rank(), i, len(g.branches)))
	}
}

// Comm returns the communicator the graph is distributed over
func (g *Graph[B, R]) Comm() comm.Comm { return g.comm }

// Rank returns this process's rank
func (g *Graph[B, R]) Rank() int { return g.comm.Rank() }

// Connector returns the ghost exchange plan shared by all ranks
func (g *Graph[B, R]) Connector() *utils.GhostConnector { return g.connector }

func (g *Graph[B, R]) NumBuses() int { return len(g.buses) }
func (g *Graph[B, R]) NumBranches() int { return len(g.branches) }
func (g *Graph[B, R]) NumOwnedBuses() int { return g.ownedBus }
func (g *Graph[B, R]) NumOwnedBranches() int { return g.ownedBr }
func (g *Graph[B, R]) TotalBuses() int { return g.totalBus }

// Bus returns the component of local bus i
func (g *Graph[B, R]) Bus(i int) B {
	g.checkBus(i)
	return g.buses[i].comp
}

// Branch returns the component of local branch i
func (g *Graph[B, R]) Branch(i int) R {
	g.checkBranch(i)
	return g.branches[i].comp
}

func (g *Graph[B, R]) IsGhostBus(i int) bool {
	g.checkBus(i)
	return g.buses[i].ghost
}

func (g *Graph[B, R]) IsGhostBranch(i int) bool {
	g.checkBranch(i)
	return g.branches[i].ghost
}

// IsBoundaryBus reports a ghost bus whose incident edge set is incomplete
func (g *Graph[B, R]) IsBoundaryBus(i int) bool {
	g.checkBus(i)
	return g.buses[i].boundary
}

func (g *Graph[B, R]) BusOriginalIndex(i int) int {
	g.checkBus(i)
	return g.buses[i].original
}

// BusGlobalIndex returns the owner-assigned global bus number
func (g *Graph[B, R]) BusGlobalIndex(i int) int {
	g.checkBus(i)
	return g.buses[i].global
}

func (g *Graph[B, R]) BusOwner(i int) int {
	g.checkBus(i)
	return g.buses[i].owner
}

func (g *Graph[B, R]) BusArea(i int) int {
	g.checkBus(i)
	return g.buses[i].area
}

func (g *Graph[B, R]) BusZone(i int) int {
	g.checkBus(i)
	return g.buses[i].zone
}

// NeighborBranches returns the local indices of the branches incident to
// bus i, in ascending case order. For owned and first-ring ghost buses this
// is the full incident set, identical on every rank holding the bus.
func (g *Graph[B, R]) NeighborBranches(i int) []int {
	g.checkBus(i)
	return g.buses[i].branches
}

// BranchEndpoints returns the local bus indices at each end of branch i
func (g *Graph[B, R]) BranchEndpoints(i int) (bus1, bus2 int) {
	g.checkBranch(i)
	return g.branches[i].bus1, g.branches[i].bus2
}

// BranchOriginalIndices returns the original From and To bus indices
func (g *Graph[B, R]) BranchOriginalIndices(i int) (from, to int) {
	g.checkBranch(i)
	br := g.branches[i]
	return g.buses[br.bus1].original, g.buses[br.bus2].original
}

// BranchCasePosition returns the position of branch i in the case branch list
func (g *Graph[B, R]) BranchCasePosition(i int) int {
	g.checkBranch(i)
	return g.branches[i].position
}

// FindBus returns the local index of the bus with original index id
func (g *Graph[B, R]) FindBus(id int) (int, bool) {
	for i := range g.buses {
		if g.buses[i].original == id {
			return i, true
		}
	}
	return -1, false
}

// LiveContingency returns the name of the contingency in effect, if any
func (g *Graph[B, R]) LiveContingency() string { return g.live }

// MarkLive records name as the contingency in effect
func (g *Graph[B, R]) MarkLive(name string) error {
	if g.live != "" {
		return errors.Wrapf(ErrContingencyLive, "%q is live, cannot apply %q", g.live, name)
	}
	g.live = name
	return nil
}

// ReleaseLive clears the live marker set for name
func (g *Graph[B, R]) ReleaseLive(name string) error {
	if g.live != name {
		return errors.Newf("contingency %q is not live (live: %q)", name, g.live)
	}
	g.live = ""
	return nil
}
