package contingency

import (
	"fmt"

	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/gridcomp"
	"github.com/notargets/GridKernel/network"
)

func inRegion(b *network.BusData, area, zone int) bool {
	return (area == 0 || b.Area == area) && (zone == 0 || b.Zone == zone)
}

// BranchContingencies returns one single-circuit outage for every
// in-service circuit whose both ends lie in area and zone. Zero matches any
// area or zone.
func BranchContingencies(cs *network.Case, area, zone int) []*Contingency {
	var out []*Contingency
	for i := range cs.Branches {
		br := &cs.Branches[i]
		from, _ := cs.BusPosition(br.From)
		to, _ := cs.BusPosition(br.To)
		if !inRegion(&cs.Buses[from], area, zone) || !inRegion(&cs.Buses[to], area, zone) {
			continue
		}
		data := br.Collection()
		n, ok := data.GetInt(component.BranchNumElements)
		if !ok {
			n = 1
		}
		for l := 0; l < n; l++ {
			if status, ok := data.GetBoolAt(component.BranchStatus, l); ok && !status {
				continue
			}
			tag, ok := data.GetStringAt(component.BranchCircuit, l)
			if !ok {
				tag = "1"
			}
			tag = gridcomp.NormalizeTag(tag)
			out = append(out, &Contingency{
				Name:  fmt.Sprintf("Line_%d_%d_%s", br.From, br.To, tag),
				Type:  TypeBranch,
				Lines: []LineOutage{{From: br.From, To: br.To, Circuit: tag}},
			})
		}
	}
	return out
}

// GeneratorContingencies returns one outage for every online generator on
// a bus in area and zone
func GeneratorContingencies(cs *network.Case, area, zone int) []*Contingency {
	var out []*Contingency
	for i := range cs.Buses {
		b := &cs.Buses[i]
		if !inRegion(b, area, zone) {
			continue
		}
		data := b.Collection()
		n, _ := data.GetInt(component.GeneratorNumber)
		for u := 0; u < n; u++ {
			if status, ok := data.GetBoolAt(component.GeneratorStatus, u); ok && !status {
				continue
			}
			tag, ok := data.GetStringAt(component.GeneratorID, u)
			if !ok {
				tag = "1"
			}
			tag = gridcomp.NormalizeTag(tag)
			out = append(out, &Contingency{
				Name:       fmt.Sprintf("Gen_%d_%s", b.ID, tag),
				Type:       TypeGenerator,
				Generators: []GeneratorOutage{{Bus: b.ID, GenID: tag}},
			})
		}
	}
	return out
}
