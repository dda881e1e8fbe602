package gridcomp

import (
	"math"
	"math/cmplx"
	"strings"

	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/logger"
)

// Circuit is one parallel element of a branch
type Circuit struct {
	Tag     string
	R, X    float64
	B       float64 // line charging, split evenly between the ends
	G1, B1  float64 // From-end shunt
	G2, B2  float64 // To-end shunt
	Tap     float64
	Shift   float64 // radians
	Rating  float64
	Online  bool
	invalid bool // missing impedance; never contributes
}

// InService reports whether the circuit contributes to the network
func (c Circuit) InService() bool { return c.Online && !c.invalid }

// Admittance returns the series admittance 1/(R+jX)
func (c Circuit) Admittance() complex128 {
	return 1 / complex(c.R, c.X)
}

// TapPhasor returns the complex turns ratio t·e^{jφ}
func (c Circuit) TapPhasor() complex128 {
	return cmplx.Rect(c.Tap, c.Shift)
}

// Generator is a constant-injection machine attached to a bus
type Generator struct {
	Tag    string
	Pg, Qg float64
	Online bool
}

// NormalizeTag unwraps a tag quoted as in 'A1': leading quotes are skipped and
// the tag ends at the next quote. Surrounding blanks are dropped.
func NormalizeTag(tag string) string {
	start := strings.IndexFunc(tag, func(r rune) bool { return r != '\'' })
	if start < 0 {
		return ""
	}
	tag = tag[start:]
	if end := strings.IndexByte(tag, '\''); end >= 0 {
		tag = tag[:end]
	}
	return strings.TrimSpace(tag)
}

func loadCircuits(data *component.DataCollection, where string) []Circuit {
	n, ok := data.GetInt(component.BranchNumElements)
	if !ok {
		logger.Logger.Warnw("branch has no circuit count, assuming one",
			logger.FieldBranch, where, logger.FieldKey, component.BranchNumElements)
		n = 1
	}
	if n < 0 {
		logger.Logger.Warnw("negative circuit count, branch has no circuits",
			logger.FieldBranch, where, logger.FieldKey, component.BranchNumElements)
		n = 0
	}
	circuits := make([]Circuit, n)
	for i := range circuits {
		c := &circuits[i]
		tag, ok := data.GetStringAt(component.BranchCircuit, i)
		if !ok {
			tag = "1"
		}
		c.Tag = NormalizeTag(tag)
		c.R = data.FloatAtOr(component.BranchR, i, 0)
		x, ok := data.GetFloatAt(component.BranchX, i)
		if !ok || (x == 0 && c.R == 0) {
			logger.Logger.Warnw("circuit has no impedance, marking inactive",
				logger.FieldBranch, where, logger.FieldCircuit, c.Tag, logger.FieldKey, component.BranchX)
			c.invalid = true
		}
		c.X = x
		c.B = data.FloatAtOr(component.BranchB, i, 0)
		c.G1 = data.FloatAtOr(component.BranchShuntG1, i, 0)
		c.B1 = data.FloatAtOr(component.BranchShuntB1, i, 0)
		c.G2 = data.FloatAtOr(component.BranchShuntG2, i, 0)
		c.B2 = data.FloatAtOr(component.BranchShuntB2, i, 0)
		c.Tap = data.FloatAtOr(component.BranchTap, i, 1)
		if c.Tap == 0 {
			c.Tap = 1
		}
		c.Shift = data.FloatAtOr(component.BranchShift, i, 0) * math.Pi / 180
		c.Rating = data.FloatAtOr(component.BranchRating, i, 0)
		status, ok := data.GetBoolAt(component.BranchStatus, i)
		if !ok {
			status = true
		}
		c.Online = status
	}
	return circuits
}

func loadGenerators(data *component.DataCollection, bus int) []Generator {
	n, _ := data.GetInt(component.GeneratorNumber)
	if n < 0 {
		logger.Logger.Warnw("negative generator count, bus has no generators",
			logger.FieldBus, bus, logger.FieldKey, component.GeneratorNumber)
		n = 0
	}
	gens := make([]Generator, n)
	for i := range gens {
		g := &gens[i]
		tag, ok := data.GetStringAt(component.GeneratorID, i)
		if !ok {
			tag = "1"
		}
		g.Tag = NormalizeTag(tag)
		pg, ok := data.GetFloatAt(component.GeneratorPG, i)
		if !ok {
			logger.Logger.Warnw("generator has no real output, using zero",
				logger.FieldBus, bus, logger.FieldKey, component.GeneratorPG)
		}
		g.Pg = pg
		g.Qg = data.FloatAtOr(component.GeneratorQG, i, 0)
		status, ok := data.GetBoolAt(component.GeneratorStatus, i)
		if !ok {
			status = true
		}
		g.Online = status
	}
	return gens
}
