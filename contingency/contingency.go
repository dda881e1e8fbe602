// Package contingency switches network elements out of service, screens
// lists of such outages in parallel groups and reports the results.
package contingency

import (
	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/gridcomp"
	"github.com/notargets/GridKernel/network"
)

var (
	ErrAlreadyApplied = errors.New("contingency: already applied")
	ErrNotApplied     = errors.New("contingency: not applied")
	ErrWrongNetwork   = errors.New("contingency: applied to a different network")
)

// Type says which kind of element a contingency takes out
type Type int

const (
	TypeBranch Type = iota
	TypeGenerator
)

func (t Type) String() string {
	if t == TypeGenerator {
		return "generator"
	}
	return "branch"
}

// LineOutage names one circuit by the original indices of its end buses,
// in the branch's from/to order
type LineOutage struct {
	From    int    `yaml:"from" mapstructure:"from"`
	To      int    `yaml:"to" mapstructure:"to"`
	Circuit string `yaml:"circuit" mapstructure:"circuit"`
}

// GeneratorOutage names one generator by bus and unit id
type GeneratorOutage struct {
	Bus   int    `yaml:"bus" mapstructure:"bus"`
	GenID string `yaml:"gen_id" mapstructure:"gen_id"`
}

// Switchable branches expose per-circuit status
type Switchable interface {
	component.Branch
	NumCircuits() int
	CircuitTag(i int) string
	CircuitStatus(i int) bool
	SetCircuitStatus(i int, online bool)
}

// GeneratorHost buses expose per-generator status
type GeneratorHost interface {
	component.Bus
	NumGenerators() int
	GeneratorTag(i int) string
	GeneratorStatus(i int) bool
	SetGeneratorStatus(i int, online bool)
}

// saved status is keyed by local element index, valid for one network
type lineKey struct{ branch, circuit int }
type genKey struct{ bus, unit int }

// Contingency is a set of outages plus, while applied, the status each
// matched element had before. A Contingency is applied to one network at
// a time; use Clone for another.
type Contingency struct {
	Name       string
	Type       Type
	Lines      []LineOutage
	Generators []GeneratorOutage

	savedLines map[lineKey]bool
	savedGens  map[genKey]bool
	network    any
	applied    bool
	owned      int
}

// Clone returns an unapplied copy of the outage definition
func (c *Contingency) Clone() *Contingency {
	return &Contingency{
		Name:       c.Name,
		Type:       c.Type,
		Lines:      append([]LineOutage(nil), c.Lines...),
		Generators: append([]GeneratorOutage(nil), c.Generators...),
	}
}

func (c *Contingency) Applied() bool { return c.applied }

// Matched returns how many owned elements the applied contingency switched.
// Ghost copies are switched too but counted only by their owner.
func (c *Contingency) Matched() int { return c.owned }

func (c *Contingency) matchesLine(from, to int, tag string) bool {
	tag = gridcomp.NormalizeTag(tag)
	for _, l := range c.Lines {
		if gridcomp.NormalizeTag(l.Circuit) != tag {
			continue
		}
		if l.From == from && l.To == to {
			return true
		}
	}
	return false
}

func (c *Contingency) matchesGenerator(bus int, tag string) bool {
	tag = gridcomp.NormalizeTag(tag)
	for _, gen := range c.Generators {
		if gen.Bus == bus && gridcomp.NormalizeTag(gen.GenID) == tag {
			return true
		}
	}
	return false
}

// Apply takes every matching local circuit and generator out of service,
// owned and ghost copies alike, and records their previous status. It does
// not recompute admittances; run the factory passes afterwards.
func Apply[B GeneratorHost, R Switchable](g *network.Graph[B, R], c *Contingency) error {
	if c.applied {
		return errors.Wrapf(ErrAlreadyApplied, "%q", c.Name)
	}
	if err := g.MarkLive(c.Name); err != nil {
		return err
	}
	c.savedLines = make(map[lineKey]bool)
	c.savedGens = make(map[genKey]bool)
	c.owned = 0

	for i := 0; i < g.NumBranches(); i++ {
		br := g.Branch(i)
		from, to := g.BranchOriginalIndices(i)
		for l := 0; l < br.NumCircuits(); l++ {
			if !c.matchesLine(from, to, br.CircuitTag(l)) {
				continue
			}
			c.savedLines[lineKey{i, l}] = br.CircuitStatus(l)
			br.SetCircuitStatus(l, false)
			if !g.IsGhostBranch(i) {
				c.owned++
			}
		}
	}
	for i := 0; i < g.NumBuses(); i++ {
		bus := g.Bus(i)
		id := g.BusOriginalIndex(i)
		for u := 0; u < bus.NumGenerators(); u++ {
			if !c.matchesGenerator(id, bus.GeneratorTag(u)) {
				continue
			}
			c.savedGens[genKey{i, u}] = bus.GeneratorStatus(u)
			bus.SetGeneratorStatus(u, false)
			if !g.IsGhostBus(i) {
				c.owned++
			}
		}
	}
	c.network = g
	c.applied = true
	return nil
}

// Clear restores exactly the elements Apply switched and forgets them
func Clear[B GeneratorHost, R Switchable](g *network.Graph[B, R], c *Contingency) error {
	if !c.applied {
		return errors.Wrapf(ErrNotApplied, "%q", c.Name)
	}
	if c.network != any(g) {
		return errors.Wrapf(ErrWrongNetwork, "%q", c.Name)
	}
	for k, status := range c.savedLines {
		g.Branch(k.branch).SetCircuitStatus(k.circuit, status)
	}
	for k, status := range c.savedGens {
		g.Bus(k.bus).SetGeneratorStatus(k.unit, status)
	}
	c.savedLines, c.savedGens = nil, nil
	c.owned = 0
	c.network = nil
	c.applied = false
	return g.ReleaseLive(c.Name)
}
