package network

import (
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/partitions"
)

// Case is the global, replicated description of a network. Every rank reads
// the same case and keeps only its partition plus ghosts.
type Case struct {
	Name     string       `yaml:"name"`
	BaseMVA  float64      `yaml:"base_mva"`
	Buses    []BusData    `yaml:"buses"`
	Branches []BranchData `yaml:"branches"`

	position map[int]int
}

// BusData describes one bus and the devices attached to it
type BusData struct {
	ID         int              `yaml:"id"`
	Type       int              `yaml:"type"`
	Area       int              `yaml:"area"`
	Zone       int              `yaml:"zone"`
	Data       map[string]any   `yaml:"data"`
	Generators []map[string]any `yaml:"generators"`
}

// BranchData describes the parallel circuits between two buses
type BranchData struct {
	From     int              `yaml:"from"`
	To       int              `yaml:"to"`
	Data     map[string]any   `yaml:"data"`
	Circuits []map[string]any `yaml:"circuits"`
}

// LoadCase reads a YAML case description
func LoadCase(path string) (*Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read case %s", path)
	}
	return ParseCase(raw)
}

// ParseCase decodes and validates a YAML case description
func ParseCase(raw []byte) (*Case, error) {
	var c Case
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errors.Wrap(err, "decode case")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks bus uniqueness and branch endpoints and builds the
// original-index lookup
func (c *Case) Validate() error {
	if len(c.Buses) == 0 {
		return errors.New("case has no buses")
	}
	c.position = make(map[int]int, len(c.Buses))
	for i, b := range c.Buses {
		if _, dup := c.position[b.ID]; dup {
			return errors.Newf("duplicate bus %d", b.ID)
		}
		c.position[b.ID] = i
	}
	for i, br := range c.Branches {
		if _, ok := c.position[br.From]; !ok {
			return errors.Newf("branch %d: unknown from bus %d", i, br.From)
		}
		if _, ok := c.position[br.To]; !ok {
			return errors.Newf("branch %d: unknown to bus %d", i, br.To)
		}
		if br.From == br.To {
			return errors.Newf("branch %d: self loop on bus %d", i, br.From)
		}
	}
	return nil
}

// BusPosition returns the position of the bus with original index id
func (c *Case) BusPosition(id int) (int, bool) {
	if c.position == nil {
		if err := c.Validate(); err != nil {
			return 0, false
		}
	}
	p, ok := c.position[id]
	return p, ok
}

// Connectivity returns the bus graph in position space for partitioning
func (c *Case) Connectivity() (*partitions.BusConnectivity, error) {
	branches := make([][2]int, len(c.Branches))
	for i, br := range c.Branches {
		from, _ := c.BusPosition(br.From)
		to, _ := c.BusPosition(br.To)
		branches[i] = [2]int{from, to}
	}
	return partitions.NewBusConnectivity(len(c.Buses), branches)
}

// Partition builds a layout for numPartitions ranks
func (c *Case) Partition(numPartitions int, strategy partitions.PartitionStrategy) (*partitions.PartitionLayout, error) {
	conn, err := c.Connectivity()
	if err != nil {
		return nil, err
	}
	pb := &partitions.PartitionBuilder{Conn: conn, NumPartitions: numPartitions, Strategy: strategy}
	return pb.BuildPartitions()
}

// Collection returns the parameter bag for a bus, with generators flattened
// into indexed keys
func (b *BusData) Collection() *component.DataCollection {
	dc := component.NewDataCollection(b.Data)
	dc.Set(component.BusNumber, b.ID)
	dc.Set(component.BusType, b.Type)
	dc.Set(component.BusArea, b.Area)
	dc.Set(component.BusZone, b.Zone)
	if len(b.Generators) > 0 {
		dc.Set(component.GeneratorNumber, len(b.Generators))
		for i, gen := range b.Generators {
			for _, k := range sortedKeys(gen) {
				dc.SetAt(k, i, gen[k])
			}
		}
	}
	return dc
}

// Collection returns the parameter bag for a branch, with circuits flattened
// into indexed keys
func (br *BranchData) Collection() *component.DataCollection {
	dc := component.NewDataCollection(br.Data)
	dc.Set(component.BranchFromBus, br.From)
	dc.Set(component.BranchToBus, br.To)
	if len(br.Circuits) > 0 {
		dc.Set(component.BranchNumElements, len(br.Circuits))
		for i, ckt := range br.Circuits {
			for _, k := range sortedKeys(ckt) {
				dc.SetAt(k, i, ckt[k])
			}
		}
	}
	return dc
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
