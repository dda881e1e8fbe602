// Package gridcomp provides the power-grid bus and branch components and
// the factory that prepares them for assembly.
package gridcomp

import (
	"math"
	"math/cmplx"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/logger"
)

// stateSize is the number of floats a bus exchanges with its ghost copies:
// Vr, Vi, dVr, dVi and the DC angle
const stateSize = 5

// GridBus is a network node with its shunt, load and generators
type GridBus struct {
	number   int
	busType  int
	area     int
	zone     int
	ghost    bool
	branches []*GridBranch

	v       complex128 // rectangular voltage
	dv      complex128 // time derivative of v
	dcAngle float64    // radians, relative to the reference bus

	shunt      complex128 // gs + j bs
	pl, ql     float64
	generators []Generator

	ybus    complex128 // diagonal admittance, set by SetYBus
	s0      complex128 // scheduled injection, set by SetSBus
	i0      complex128 // injected current frozen at SetSBus
	sgen    complex128 // online generation, set by SetGBus
	fault   complex128
	faulted bool
}

// NewGridBus returns an unloaded bus at flat start
func NewGridBus() *GridBus {
	return &GridBus{v: 1}
}

// Load reads the bus parameters. Missing values fall back to defaults with
// a warning; nothing here is fatal.
func (b *GridBus) Load(data *component.DataCollection) {
	b.number, _ = data.GetInt(component.BusNumber)
	b.area, _ = data.GetInt(component.BusArea)
	b.zone, _ = data.GetInt(component.BusZone)
	typ, ok := data.GetInt(component.BusType)
	if !ok {
		logger.Logger.Warnw("bus has no type, assuming PQ",
			logger.FieldBus, b.number, logger.FieldKey, component.BusType)
		typ = component.TypePQ
	}
	b.busType = typ

	vm, ok := data.GetFloat(component.BusVoltageMag)
	if !ok || vm <= 0 {
		vm = 1
	}
	va := data.FloatOr(component.BusVoltageAng, 0) * math.Pi / 180
	b.v = cmplx.Rect(vm, va)

	b.shunt = complex(data.FloatOr(component.BusShuntGs, 0), data.FloatOr(component.BusShuntBs, 0))
	b.pl = data.FloatOr(component.LoadPL, 0)
	b.ql = data.FloatOr(component.LoadQL, 0)
	b.generators = loadGenerators(data, b.number)
}

func (b *GridBus) SetGhost(ghost bool) { b.ghost = ghost }
func (b *GridBus) IsGhost() bool { return b.ghost }

func (b *GridBus) Number() int { return b.number }
func (b *GridBus) Area() int { return b.area }
func (b *GridBus) Zone() int { return b.zone }

// IsReference reports the slack bus, which is excluded from the Jacobian
// and DC flow systems
func (b *GridBus) IsReference() bool { return b.busType == component.TypeReference }

// Voltage returns the rectangular bus voltage
func (b *GridBus) Voltage() complex128 { return b.v }

// SetVoltage sets the bus voltage from magnitude and angle (radians)
func (b *GridBus) SetVoltage(mag, angle float64) { b.v = cmplx.Rect(mag, angle) }

func (b *GridBus) VoltageMag() float64 { return cmplx.Abs(b.v) }
func (b *GridBus) Phase() float64 { return cmplx.Phase(b.v) }

// DCAngle returns the angle written by the last DC flow solution
func (b *GridBus) DCAngle() float64 { return b.dcAngle }

// YBusDiag returns the diagonal admittance computed by SetYBus
func (b *GridBus) YBusDiag() complex128 { return b.ybus }

// Branches returns the incident branches wired by the factory
func (b *GridBus) Branches() []*GridBranch { return b.branches }

func (b *GridBus) NumGenerators() int { return len(b.generators) }

func (b *GridBus) GeneratorTag(i int) string { return b.generators[i].Tag }

func (b *GridBus) GeneratorStatus(i int) bool { return b.generators[i].Online }

func (b *GridBus) SetGeneratorStatus(i int, online bool) { b.generators[i].Online = online }

// SetFault places a shunt fault admittance on the bus for FaultEval
func (b *GridBus) SetFault(y complex128) {
	b.fault = y
	b.faulted = true
}

func (b *GridBus) ClearFault() {
	b.fault = 0
	b.faulted = false
}

// SetYBus sums the incident branch contributions and the bus shunt into the
// diagonal admittance. Branches must have run their own SetYBus first.
func (b *GridBus) SetYBus() {
	var y complex128
	for _, br := range b.branches {
		y += br.selfAdmittance(b)
	}
	b.ybus = y + b.shunt
}

// SetSBus freezes the scheduled complex injection and the equivalent
// current at the present voltage
func (b *GridBus) SetSBus() {
	b.s0 = b.onlineGeneration() - complex(b.pl, b.ql)
	if b.v != 0 {
		b.i0 = cmplx.Conj(b.s0 / b.v)
	} else {
		b.i0 = 0
	}
}

// SetGBus recomputes the online generation
func (b *GridBus) SetGBus() {
	b.sgen = b.onlineGeneration()
}

func (b *GridBus) onlineGeneration() complex128 {
	var s complex128
	for _, g := range b.generators {
		if g.Online {
			s += complex(g.Pg, g.Qg)
		}
	}
	return s
}

// MatrixDiagSize negotiates the diagonal block for mode
func (b *GridBus) MatrixDiagSize(mode component.Mode) (int, int, bool) {
	switch mode {
	case component.YBus:
		return 1, 1, true
	case component.Jacobian:
		if b.IsReference() {
			return 0, 0, false
		}
		return 2, 2, true
	case component.ResidualEval, component.FaultEval:
		return 2, 2, true
	case component.DCFlow:
		if b.IsReference() {
			return 0, 0, false
		}
		return 1, 1, true
	}
	return 0, 0, false
}

// MatrixDiagValues fills the negotiated diagonal block
func (b *GridBus) MatrixDiagValues(mode component.Mode, values []complex128) bool {
	isize, jsize, ok := b.MatrixDiagSize(mode)
	if !ok {
		return false
	}
	component.CheckBlock(values, isize, jsize)

	switch mode {
	case component.YBus:
		values[0] = b.ybus
	case component.Jacobian:
		b.jacobianDiag(values)
	case component.ResidualEval:
		realBlock(values, b.ybus)
	case component.FaultEval:
		realBlock(values, b.ybus+b.fault)
	case component.DCFlow:
		var s float64
		for _, br := range b.branches {
			s += br.dcSusceptance()
		}
		values[0] = complex(s, 0)
	}
	return true
}

// jacobianDiag follows the polar derivation: [0, 0, 2vG, -2vB] corrected by
// every incident branch
func (b *GridBus) jacobianDiag(values []complex128) {
	v := b.VoltageMag()
	g, bb := real(b.ybus), imag(b.ybus)
	acc := [4]float64{0, 0, 2 * v * g, -2 * v * bb}
	for _, br := range b.branches {
		bv := br.jacobianTerms(b)
		acc[0] -= v * bv[0]
		acc[1] += v * bv[1]
		acc[2] += v * bv[2]
		acc[3] += v * bv[3]
	}
	for k := range acc {
		values[k] = complex(acc[k], 0)
	}
}

// realBlock writes y as the 2x2 real block [[G, -B], [B, G]]
func realBlock(values []complex128, y complex128) {
	values[0] = complex(real(y), 0)
	values[1] = complex(-imag(y), 0)
	values[2] = complex(imag(y), 0)
	values[3] = complex(real(y), 0)
}

func (b *GridBus) VectorSize(mode component.Mode) (int, bool) {
	switch mode {
	case component.Jacobian:
		if b.IsReference() {
			return 0, false
		}
		return 2, true
	case component.ResidualEval, component.FaultEval:
		return 2, true
	case component.Generator:
		return 1, true
	case component.DCFlow:
		if b.IsReference() {
			return 0, false
		}
		return 1, true
	case component.XVecToBus, component.XDotVecToBus:
		return 2, true
	}
	return 0, false
}

func (b *GridBus) VectorValues(mode component.Mode, values []complex128) bool {
	size, ok := b.VectorSize(mode)
	if !ok {
		return false
	}
	component.CheckBlock(values, size, 1)

	switch mode {
	case component.Jacobian:
		p, q := b.powerMismatch()
		values[0] = complex(p, 0)
		values[1] = complex(q, 0)
	case component.ResidualEval:
		r := b.currentMismatch(b.ybus)
		values[0] = complex(real(r), 0)
		values[1] = complex(imag(r), 0)
	case component.FaultEval:
		r := b.currentMismatch(b.ybus + b.fault)
		values[0] = complex(real(r), 0)
		values[1] = complex(imag(r), 0)
	case component.Generator:
		values[0] = b.sgen
	case component.DCFlow:
		values[0] = complex(real(b.onlineGeneration())-b.pl, 0)
	case component.XVecToBus:
		values[0] = complex(real(b.v), 0)
		values[1] = complex(imag(b.v), 0)
	case component.XDotVecToBus:
		values[0] = complex(real(b.dv), 0)
		values[1] = complex(imag(b.dv), 0)
	}
	return true
}

// powerMismatch returns (P - P0, Q - Q0) including the bus self terms
func (b *GridBus) powerMismatch() (float64, float64) {
	v := b.VoltageMag()
	p := v * v * real(b.ybus)
	q := -v * v * imag(b.ybus)
	for _, br := range b.branches {
		bp, bq := br.flowTerms(b)
		p += bp
		q += bq
	}
	return p - real(b.s0), q - imag(b.s0)
}

// currentMismatch returns yii·Vi + Σ yij·Vj - I0
func (b *GridBus) currentMismatch(yii complex128) complex128 {
	r := yii * b.v
	for _, br := range b.branches {
		y, other := br.coupling(b)
		r += y * other.v
	}
	return r - b.i0
}

// SetValues writes this bus's slice of a solution vector. Ghost copies are
// refreshed through UpdateBuses and reject direct writes.
func (b *GridBus) SetValues(mode component.Mode, values []complex128) error {
	if b.ghost {
		return errors.Wrapf(component.ErrGhostWrite, "bus %d mode %s", b.number, mode)
	}
	size, ok := b.VectorSize(mode)
	if !ok || len(values) != size {
		return errors.Newf("bus %d: %d values for mode %s", b.number, len(values), mode)
	}
	switch mode {
	case component.XVecToBus:
		b.v = complex(real(values[0]), real(values[1]))
	case component.XDotVecToBus:
		b.dv = complex(real(values[0]), real(values[1]))
	case component.DCFlow:
		b.dcAngle = real(values[0])
	default:
		return errors.Newf("bus %d: mode %s has no bus values", b.number, mode)
	}
	return nil
}

func (b *GridBus) StateSize() int { return stateSize }

func (b *GridBus) PackState(buf []float64) {
	buf[0], buf[1] = real(b.v), imag(b.v)
	buf[2], buf[3] = real(b.dv), imag(b.dv)
	buf[4] = b.dcAngle
}

func (b *GridBus) UnpackState(buf []float64) {
	b.v = complex(buf[0], buf[1])
	b.dv = complex(buf[2], buf[3])
	b.dcAngle = buf[4]
}
