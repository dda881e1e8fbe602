package gridcomp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/notargets/GridKernel/component"
)

// GridBranch holds the parallel circuits between two buses
type GridBranch struct {
	from, to int
	circuits []Circuit
	ghost    bool
	bus1     *GridBus
	bus2     *GridBus
	yf       complex128 // From row, To column
	yr       complex128 // To row, From column
}

// NewGridBranch returns an unloaded branch
func NewGridBranch() *GridBranch { return &GridBranch{} }

// Load reads the circuits of the branch
func (br *GridBranch) Load(data *component.DataCollection) {
	br.from, _ = data.GetInt(component.BranchFromBus)
	br.to, _ = data.GetInt(component.BranchToBus)
	br.circuits = loadCircuits(data, br.String())
}

func (br *GridBranch) String() string { return fmt.Sprintf("%d-%d", br.from, br.to) }

func (br *GridBranch) SetGhost(ghost bool) { br.ghost = ghost }

func (br *GridBranch) Bus1() *GridBus { return br.bus1 }
func (br *GridBranch) Bus2() *GridBus { return br.bus2 }

func (br *GridBranch) NumCircuits() int { return len(br.circuits) }

// Circuit returns a copy of circuit i
func (br *GridBranch) Circuit(i int) Circuit { return br.circuits[i] }

func (br *GridBranch) CircuitTag(i int) string { return br.circuits[i].Tag }

func (br *GridBranch) CircuitStatus(i int) bool { return br.circuits[i].Online }

func (br *GridBranch) SetCircuitStatus(i int, online bool) { br.circuits[i].Online = online }

// InService reports whether any circuit contributes
func (br *GridBranch) InService() bool {
	for i := range br.circuits {
		if br.circuits[i].InService() {
			return true
		}
	}
	return false
}

// SetYBus computes the off-diagonal admittances from the in-service circuits
func (br *GridBranch) SetYBus() {
	br.yf, br.yr = 0, 0
	for i := range br.circuits {
		c := &br.circuits[i]
		if !c.InService() {
			continue
		}
		y := c.Admittance()
		a := c.TapPhasor()
		br.yf -= y / cmplx.Conj(a)
		br.yr -= y / a
	}
}

// Forward and Reverse return the off-diagonal admittances set by SetYBus
func (br *GridBranch) Forward() complex128 { return br.yf }
func (br *GridBranch) Reverse() complex128 { return br.yr }

// admittance is the negated series admittance of the in-service circuits
func (br *GridBranch) admittance() complex128 {
	var s complex128
	for i := range br.circuits {
		if br.circuits[i].InService() {
			s -= br.circuits[i].Admittance()
		}
	}
	return s
}

// transformer corrects the From-end diagonal to y/|a|²
func (br *GridBranch) transformer(bus *GridBus) complex128 {
	if bus != br.bus1 {
		return 0
	}
	var s complex128
	for i := range br.circuits {
		c := &br.circuits[i]
		if !c.InService() {
			continue
		}
		y := c.Admittance()
		s += y/complex(c.Tap*c.Tap, 0) - y
	}
	return s
}

func (br *GridBranch) shunt(bus *GridBus) complex128 {
	var s complex128
	for i := range br.circuits {
		c := &br.circuits[i]
		if !c.InService() {
			continue
		}
		s += complex(0, c.B/2)
		if bus == br.bus1 {
			s += complex(c.G1, c.B1)
		} else {
			s += complex(c.G2, c.B2)
		}
	}
	return s
}

// selfAdmittance is this branch's share of bus's diagonal entry
func (br *GridBranch) selfAdmittance(bus *GridBus) complex128 {
	return -br.admittance() + br.transformer(bus) + br.shunt(bus)
}

// coupling returns the admittance in bus's row and the bus at the far end
func (br *GridBranch) coupling(bus *GridBus) (complex128, *GridBus) {
	if bus == br.bus1 {
		return br.yf, br.bus2
	}
	return br.yr, br.bus1
}

// side returns the admittance, far-end voltage magnitude and angle
// difference seen from bus
func (br *GridBranch) side(bus *GridBus) (y complex128, vFar, theta float64) {
	theta = br.bus1.Phase() - br.bus2.Phase()
	if bus == br.bus1 {
		return br.yf, br.bus2.VoltageMag(), theta
	}
	return br.yr, br.bus1.VoltageMag(), -theta
}

// jacobianTerms returns the branch corrections to bus's Jacobian diagonal
func (br *GridBranch) jacobianTerms(bus *GridBus) [4]float64 {
	y, v, theta := br.side(bus)
	yr, yi := real(y), imag(y)
	cs, sn := math.Cos(theta), math.Sin(theta)
	return [4]float64{
		v * (yr*sn - yi*cs),
		v * (yr*cs + yi*sn),
		yr*cs + yi*sn,
		yr*sn - yi*cs,
	}
}

// flowTerms returns the branch's share of bus's computed P and Q
func (br *GridBranch) flowTerms(bus *GridBus) (float64, float64) {
	y, _, theta := br.side(bus)
	yr, yi := real(y), imag(y)
	cs, sn := math.Cos(theta), math.Sin(theta)
	v1v2 := br.bus1.VoltageMag() * br.bus2.VoltageMag()
	return v1v2 * (yr*cs + yi*sn), v1v2 * (yr*sn - yi*cs)
}

func (br *GridBranch) dcSusceptance() float64 {
	var s float64
	for i := range br.circuits {
		c := &br.circuits[i]
		if c.InService() && c.X != 0 {
			s += 1 / c.X
		}
	}
	return s
}

// CircuitDCFlow returns the DC flow on circuit i from the last DC angles,
// (θ1 - θ2 - shift)/x, or zero when the circuit is out
func (br *GridBranch) CircuitDCFlow(i int) float64 {
	c := &br.circuits[i]
	if !c.InService() || c.X == 0 {
		return 0
	}
	return (br.bus1.DCAngle() - br.bus2.DCAngle() - c.Shift) / c.X
}

func (br *GridBranch) touchesReference() bool {
	return br.bus1.IsReference() || br.bus2.IsReference()
}

func (br *GridBranch) blockSize(mode component.Mode) (int, int, bool) {
	if !br.InService() {
		return 0, 0, false
	}
	switch mode {
	case component.YBus:
		return 1, 1, true
	case component.Jacobian:
		if br.touchesReference() {
			return 0, 0, false
		}
		return 2, 2, true
	case component.ResidualEval, component.FaultEval:
		return 2, 2, true
	case component.DCFlow:
		if br.touchesReference() {
			return 0, 0, false
		}
		return 1, 1, true
	}
	return 0, 0, false
}

func (br *GridBranch) MatrixForwardSize(mode component.Mode) (int, int, bool) {
	return br.blockSize(mode)
}

func (br *GridBranch) MatrixReverseSize(mode component.Mode) (int, int, bool) {
	return br.blockSize(mode)
}

// MatrixForwardValues fills the From-row, To-column block
func (br *GridBranch) MatrixForwardValues(mode component.Mode, values []complex128) bool {
	isize, jsize, ok := br.blockSize(mode)
	if !ok {
		return false
	}
	component.CheckBlock(values, isize, jsize)
	switch mode {
	case component.YBus:
		values[0] = br.yf
	case component.Jacobian:
		v1, v2 := br.bus1.VoltageMag(), br.bus2.VoltageMag()
		jacobianBlock(values, br.yf, br.bus1.Phase()-br.bus2.Phase(), v1*v2, v1)
	case component.ResidualEval, component.FaultEval:
		realBlock(values, br.yf)
	case component.DCFlow:
		values[0] = complex(-br.dcSusceptance(), 0)
	}
	return true
}

// MatrixReverseValues fills the To-row, From-column block. The Jacobian
// block scales its second column by the To-bus voltage.
func (br *GridBranch) MatrixReverseValues(mode component.Mode, values []complex128) bool {
	isize, jsize, ok := br.blockSize(mode)
	if !ok {
		return false
	}
	component.CheckBlock(values, isize, jsize)
	switch mode {
	case component.YBus:
		values[0] = br.yr
	case component.Jacobian:
		v1, v2 := br.bus1.VoltageMag(), br.bus2.VoltageMag()
		jacobianBlock(values, br.yr, br.bus2.Phase()-br.bus1.Phase(), v1*v2, v2)
	case component.ResidualEval, component.FaultEval:
		realBlock(values, br.yr)
	case component.DCFlow:
		values[0] = complex(-br.dcSusceptance(), 0)
	}
	return true
}

func jacobianBlock(values []complex128, y complex128, theta, vv, v float64) {
	yr, yi := real(y), imag(y)
	cs, sn := math.Cos(theta), math.Sin(theta)
	values[0] = complex((yr*sn-yi*cs)*vv, 0)
	values[1] = complex((yr*cs+yi*sn)*v, 0)
	values[2] = complex((yr*cs+yi*sn)*-vv, 0)
	values[3] = complex((yr*sn-yi*cs)*v, 0)
}
