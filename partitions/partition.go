package partitions

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Partition is the set of buses owned by one rank
type Partition struct {
	// Unique identifier for this partition, equal to the owning rank
	ID int

	// Bus membership
	Buses    []int // Global bus positions owned by this partition, ascending
	NumBuses int   // Number of owned buses

	// Branches whose From bus is owned here
	NumBranches int
}

// PartitionLayout manages the complete network decomposition
type PartitionLayout struct {
	// All partitions of the network
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumBuses) across all partitions
	TotalBuses    int // Sum of owned buses across partitions
	NumPartitions int

	// Bus to partition mapping
	BToP []int // Length TotalBuses: bus k is owned by partition BToP[k]
}

// GetPartition returns the partition owning bus k
func (pl *PartitionLayout) GetPartition(bus int) int {
	if bus < 0 || bus >= len(pl.BToP) {
		return -1
	}
	return pl.BToP[bus]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return errors.Newf("layout has %d partitions, NumPartitions=%d",
			len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.BToP) != pl.TotalBuses {
		return errors.Newf("BToP length %d != TotalBuses %d", len(pl.BToP), pl.TotalBuses)
	}

	actualMax := 0
	owned := 0
	for _, p := range pl.Partitions {
		if p.NumBuses != len(p.Buses) {
			return errors.Newf("partition %d: NumBuses %d != len(Buses) %d",
				p.ID, p.NumBuses, len(p.Buses))
		}
		if p.NumBuses > actualMax {
			actualMax = p.NumBuses
		}
		for _, b := range p.Buses {
			if pl.GetPartition(b) != p.ID {
				return errors.Newf("partition %d lists bus %d owned by %d",
					p.ID, b, pl.GetPartition(b))
			}
		}
		owned += p.NumBuses
	}
	if owned != pl.TotalBuses {
		return errors.Newf("partitions own %d buses, network has %d", owned, pl.TotalBuses)
	}
	if actualMax != pl.KpartMax {
		return errors.Newf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinBuses:      math.MaxInt32,
		MaxBuses:      0,
		AvgBuses:      float64(pl.TotalBuses) / float64(pl.NumPartitions),
	}

	for _, p := range pl.Partitions {
		if p.NumBuses < stats.MinBuses {
			stats.MinBuses = p.NumBuses
		}
		if p.NumBuses > stats.MaxBuses {
			stats.MaxBuses = p.NumBuses
		}
	}

	if stats.AvgBuses > 0 {
		stats.Imbalance = float64(stats.MaxBuses) / stats.AvgBuses
	}

	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinBuses      int
	MaxBuses      int
	AvgBuses      float64
	Imbalance     float64 // MaxBuses / AvgBuses
}

// CutBranches counts branches whose endpoints are owned by different partitions
func (pl *PartitionLayout) CutBranches(conn *BusConnectivity) int {
	cut := 0
	for _, br := range conn.Branches {
		if pl.BToP[br[0]] != pl.BToP[br[1]] {
			cut++
		}
	}
	return cut
}
