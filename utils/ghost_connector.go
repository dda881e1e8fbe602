package utils

import (
	"github.com/cockroachdb/errors"
)

// GhostConnector manages pick and place indices for refreshing ghost buses
// held by one partition from the partition that owns them
type GhostConnector struct {
	NumPartitions int

	// Input ownership
	BToP []int // Global bus position → owning partition

	// Partition mappings
	OwnedPerPartition []int         // Owned buses per partition
	GlobalToLocal     []map[int]int // [partition][globalBus] → local bus index (owned or ghost)
	LocalToGlobal     [][]int       // [partition][localBus] → globalBus

	// Pick/Place indices per partition
	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]
}

// PickBuffer contains owner-local bus indices gathered for sending
type PickBuffer struct {
	Indices         []int
	TargetPartition int
}

// PlaceBuffer contains ghost-local bus indices receiving values
type PlaceBuffer struct {
	Indices         []int
	SourcePartition int
}

// NewGhostConnector builds the connector from the ownership map and the local
// bus order of every partition. localBuses[p] lists global bus positions in
// partition p's local order: owned buses first, then ghosts.
func NewGhostConnector(bToP []int, localBuses [][]int) (*GhostConnector, error) {
	numPartitions := len(localBuses)
	if numPartitions == 0 {
		return nil, errors.New("no partitions")
	}
	for b, p := range bToP {
		if p < 0 || p >= numPartitions {
			return nil, errors.Newf("bus %d owned by invalid partition %d", b, p)
		}
	}

	gc := &GhostConnector{
		NumPartitions: numPartitions,
		BToP:          bToP,
	}

	if err := gc.buildPartitionMappings(localBuses); err != nil {
		return nil, err
	}

	gc.initializeBuffers()

	if err := gc.BuildIndices(); err != nil {
		return nil, err
	}

	return gc, nil
}

// buildPartitionMappings creates bidirectional mappings between global and local bus numbering
func (gc *GhostConnector) buildPartitionMappings(localBuses [][]int) error {
	gc.OwnedPerPartition = make([]int, gc.NumPartitions)
	gc.GlobalToLocal = make([]map[int]int, gc.NumPartitions)
	gc.LocalToGlobal = make([][]int, gc.NumPartitions)

	for p, buses := range localBuses {
		gc.GlobalToLocal[p] = make(map[int]int, len(buses))
		gc.LocalToGlobal[p] = append([]int(nil), buses...)
		seenGhost := false
		for local, global := range buses {
			if global < 0 || global >= len(gc.BToP) {
				return errors.Newf("partition %d local bus %d: global %d out of range", p, local, global)
			}
			if _, dup := gc.GlobalToLocal[p][global]; dup {
				return errors.Newf("partition %d holds bus %d twice", p, global)
			}
			gc.GlobalToLocal[p][global] = local
			if gc.BToP[global] == p {
				if seenGhost {
					return errors.Newf("partition %d: owned bus %d listed after a ghost", p, global)
				}
				gc.OwnedPerPartition[p]++
			} else {
				seenGhost = true
			}
		}
	}
	return nil
}

// initializeBuffers creates empty pick and place buffer structures
func (gc *GhostConnector) initializeBuffers() {
	gc.PickIndices = make([][]PickBuffer, gc.NumPartitions)
	gc.PlaceIndices = make([][]PlaceBuffer, gc.NumPartitions)

	for p := 0; p < gc.NumPartitions; p++ {
		gc.PickIndices[p] = make([]PickBuffer, gc.NumPartitions)
		gc.PlaceIndices[p] = make([]PlaceBuffer, gc.NumPartitions)

		for q := 0; q < gc.NumPartitions; q++ {
			gc.PickIndices[p][q] = PickBuffer{
				Indices:         make([]int, 0),
				TargetPartition: q,
			}
			gc.PlaceIndices[p][q] = PlaceBuffer{
				Indices:         make([]int, 0),
				SourcePartition: q,
			}
		}
	}
}

// BuildIndices constructs pick and place indices for all partitions
func (gc *GhostConnector) BuildIndices() error {
	for p := 0; p < gc.NumPartitions; p++ {
		// Ghosts sit after the owned block, in local order
		for local := gc.OwnedPerPartition[p]; local < len(gc.LocalToGlobal[p]); local++ {
			global := gc.LocalToGlobal[p][local]
			owner := gc.BToP[global]

			ownerLocal, ok := gc.GlobalToLocal[owner][global]
			if !ok || ownerLocal >= gc.OwnedPerPartition[owner] {
				return errors.Newf("bus %d ghosted on %d is not owned by partition %d", global, p, owner)
			}

			gc.PickIndices[owner][p].Indices = append(gc.PickIndices[owner][p].Indices, ownerLocal)
			gc.PlaceIndices[p][owner].Indices = append(gc.PlaceIndices[p][owner].Indices, local)
		}
	}

	return nil
}

// GetPickIndices returns pick indices for sending from source to target partition
func (gc *GhostConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= gc.NumPartitions ||
		targetPartition < 0 || targetPartition >= gc.NumPartitions {
		return nil
	}
	return gc.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (gc *GhostConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= gc.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= gc.NumPartitions {
		return nil
	}
	return gc.PlaceIndices[targetPartition][sourcePartition].Indices
}

// SendTargets returns the partitions that p sends ghost values to
func (gc *GhostConnector) SendTargets(p int) []int {
	var out []int
	for q := 0; q < gc.NumPartitions; q++ {
		if len(gc.PickIndices[p][q].Indices) > 0 {
			out = append(out, q)
		}
	}
	return out
}

// RecvSources returns the partitions that p receives ghost values from
func (gc *GhostConnector) RecvSources(p int) []int {
	var out []int
	for q := 0; q < gc.NumPartitions; q++ {
		if len(gc.PlaceIndices[p][q].Indices) > 0 {
			out = append(out, q)
		}
	}
	return out
}

// Verify checks index validity and conservation properties
func (gc *GhostConnector) Verify() error {
	// Verify 1: Local validity - pick indices address owned buses
	for p := 0; p < gc.NumPartitions; p++ {
		for q := 0; q < gc.NumPartitions; q++ {
			for _, idx := range gc.PickIndices[p][q].Indices {
				if idx < 0 || idx >= gc.OwnedPerPartition[p] {
					return errors.Newf("invalid pick index %d for partition %d (owned %d)",
						idx, p, gc.OwnedPerPartition[p])
				}
			}
		}
	}

	// Verify 2: Correspondence - pick and place arrays have same length
	for p := 0; p < gc.NumPartitions; p++ {
		for q := 0; q < gc.NumPartitions; q++ {
			pickLen := len(gc.PickIndices[p][q].Indices)
			placeLen := len(gc.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return errors.Newf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
			for i, idx := range gc.PickIndices[p][q].Indices {
				if gc.LocalToGlobal[p][idx] != gc.LocalToGlobal[q][gc.PlaceIndices[q][p].Indices[i]] {
					return errors.Newf("pick[%d][%d][%d] and place[%d][%d][%d] name different buses",
						p, q, i, q, p, i)
				}
			}
		}
	}

	// Verify 3: Conservation - every ghost slot is placed exactly once
	for p := 0; p < gc.NumPartitions; p++ {
		placed := make(map[int]bool)
		for q := 0; q < gc.NumPartitions; q++ {
			for _, idx := range gc.PlaceIndices[p][q].Indices {
				if placed[idx] {
					return errors.Newf("partition %d ghost slot %d placed twice", p, idx)
				}
				placed[idx] = true
			}
		}
		ghosts := len(gc.LocalToGlobal[p]) - gc.OwnedPerPartition[p]
		if len(placed) != ghosts {
			return errors.Newf("conservation error: partition %d places %d of %d ghosts",
				p, len(placed), ghosts)
		}
	}

	return nil
}
