package partitions

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
)

// PartitionBuilder constructs partitions from network connectivity
type PartitionBuilder struct {
	// Network connectivity
	Conn *BusConnectivity

	// Partitioning parameters
	NumPartitions int
	Strategy      PartitionStrategy
}

// BusConnectivity provides the network topology needed for partitioning.
// Buses are addressed by position 0..NumBuses-1.
type BusConnectivity struct {
	NumBuses int
	Branches [][2]int // Bus positions at each end of every branch

	adj [][]int
}

// NewBusConnectivity builds the adjacency lists for the given branch list
func NewBusConnectivity(numBuses int, branches [][2]int) (*BusConnectivity, error) {
	conn := &BusConnectivity{NumBuses: numBuses, Branches: branches}
	conn.adj = make([][]int, numBuses)
	for i, br := range branches {
		for _, b := range br {
			if b < 0 || b >= numBuses {
				return nil, errors.Newf("branch %d references bus position %d of %d", i, b, numBuses)
			}
		}
		conn.adj[br[0]] = append(conn.adj[br[0]], br[1])
		conn.adj[br[1]] = append(conn.adj[br[1]], br[0])
	}
	for _, a := range conn.adj {
		sort.Ints(a)
	}
	return conn, nil
}

// Neighbors returns the bus positions adjacent to bus b
func (c *BusConnectivity) Neighbors(b int) []int {
	return c.adj[b]
}

// PartitionStrategy defines how buses are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive buses
	RoundRobin                              // Distribute cyclically

	// Graph-based strategy: breadth-first region growing
	GraphPartition
)

// ParseStrategy maps a configuration name onto a strategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch name {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin", "round-robin":
		return RoundRobin, nil
	case "graph", "bfs":
		return GraphPartition, nil
	}
	return BlockPartition, errors.Newf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout from network connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Conn == nil {
		return nil, errors.New("partition builder has no connectivity")
	}
	numPartitions := pb.NumPartitions
	if numPartitions < 1 {
		numPartitions = 1
	}

	bToP := pb.partitionBuses(numPartitions)

	partitions := pb.createPartitions(bToP, numPartitions)

	kpartMax := 0
	for _, p := range partitions {
		if p.NumBuses > kpartMax {
			kpartMax = p.NumBuses
		}
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalBuses:    pb.Conn.NumBuses,
		NumPartitions: numPartitions,
		BToP:          bToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, errors.Wrap(err, "invalid partition layout")
	}

	return layout, nil
}

// partitionBuses assigns buses to partitions
func (pb *PartitionBuilder) partitionBuses(numPartitions int) []int {
	n := pb.Conn.NumBuses
	bToP := make([]int, n)

	switch pb.Strategy {
	case RoundRobin:
		for i := 0; i < n; i++ {
			bToP[i] = i % numPartitions
		}

	case GraphPartition:
		return pb.growRegions(numPartitions)

	default:
		busesPerPartition := int(math.Ceil(float64(n) / float64(numPartitions)))
		if busesPerPartition < 1 {
			busesPerPartition = 1
		}
		for i := 0; i < n; i++ {
			bToP[i] = i / busesPerPartition
			if bToP[i] >= numPartitions {
				bToP[i] = numPartitions - 1
			}
		}
	}

	return bToP
}

// growRegions fills partitions one at a time by breadth-first search from the
// lowest unassigned bus, so that each partition is a connected patch where
// the topology allows it.
func (pb *PartitionBuilder) growRegions(numPartitions int) []int {
	n := pb.Conn.NumBuses
	bToP := make([]int, n)
	for i := range bToP {
		bToP[i] = -1
	}

	target := int(math.Ceil(float64(n) / float64(numPartitions)))
	next := 0
	for part := 0; part < numPartitions; part++ {
		quota := target
		if part == numPartitions-1 {
			quota = n
		}
		count := 0
		var queue []int
		for count < quota {
			if len(queue) == 0 {
				for next < n && bToP[next] >= 0 {
					next++
				}
				if next == n {
					break
				}
				bToP[next] = part
				count++
				queue = append(queue, next)
				continue
			}
			b := queue[0]
			queue = queue[1:]
			for _, nb := range pb.Conn.Neighbors(b) {
				if count == quota {
					break
				}
				if bToP[nb] < 0 {
					bToP[nb] = part
					count++
					queue = append(queue, nb)
				}
			}
		}
	}
	return bToP
}

// createPartitions builds partition structures from bus assignments
func (pb *PartitionBuilder) createPartitions(bToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)

	for i := range partitions {
		partitions[i] = Partition{
			ID:    i,
			Buses: make([]int, 0),
		}
	}

	for bus, part := range bToP {
		partitions[part].Buses = append(partitions[part].Buses, bus)
		partitions[part].NumBuses++
	}

	for _, br := range pb.Conn.Branches {
		partitions[bToP[br[0]]].NumBranches++
	}

	return partitions
}
