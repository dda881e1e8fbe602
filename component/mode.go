package component

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Mode selects the equation set a component evaluates during one assembly
// pass. It is passed explicitly to every contribution call.
type Mode int

const (
	YBus         Mode = iota // Admittance matrix
	Jacobian                 // Polar power-flow Jacobian and mismatch
	ResidualEval             // Rectangular current-balance residual and Jacobian
	FaultEval                // ResidualEval with fault shunts applied
	Generator                // Generator injection vector
	DCFlow                   // DC power-flow B' matrix and real injection
	XVecToBus                // Push solution vector into buses
	XDotVecToBus             // Push time-derivative vector into buses
)

var modeNames = map[Mode]string{
	YBus:         "YBUS",
	Jacobian:     "JACOBIAN",
	ResidualEval: "RESIDUAL_EVAL",
	FaultEval:    "FAULT_EVAL",
	Generator:    "GENERATOR",
	DCFlow:       "DCFLOW",
	XVecToBus:    "XVECTOBUS",
	XDotVecToBus: "XDOTVECTOBUS",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a mode name such as "YBUS" onto a Mode
func ParseMode(name string) (Mode, error) {
	for m, s := range modeNames {
		if s == name {
			return m, nil
		}
	}
	return 0, errors.Newf("unknown mode %q", name)
}
