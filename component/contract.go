// Package component defines the contract between network components and the
// algebraic mapper. Every call receives the mode explicitly; size queries
// negotiate a block shape and value queries fill exactly that shape.
package component

import (
	"github.com/cockroachdb/errors"
)

// ErrGhostWrite is returned when a solver write targets a ghost copy.
var ErrGhostWrite = errors.New("write to ghost component rejected")

// Bus is the capability set of a bus component.
type Bus interface {
	// MatrixDiagSize reports the diagonal block shape. ok is false, with zero
	// sizes, when the bus contributes nothing in this mode.
	MatrixDiagSize(mode Mode) (isize, jsize int, ok bool)
	// MatrixDiagValues fills isize*jsize values in row-major order.
	MatrixDiagValues(mode Mode, values []complex128) bool

	VectorSize(mode Mode) (size int, ok bool)
	VectorValues(mode Mode, values []complex128) bool

	// SetValues receives this bus's slice of a solution vector.
	SetValues(mode Mode, values []complex128) error
}

// Branch is the capability set of a branch component. Forward blocks couple
// From-bus rows to To-bus columns, reverse blocks the opposite.
type Branch interface {
	MatrixForwardSize(mode Mode) (isize, jsize int, ok bool)
	MatrixForwardValues(mode Mode, values []complex128) bool
	MatrixReverseSize(mode Mode) (isize, jsize int, ok bool)
	MatrixReverseValues(mode Mode, values []complex128) bool
}

// Loader components read their parameters once at network construction.
type Loader interface {
	Load(data *DataCollection)
}

// StateCodec components can serialise the state their ghost copies need.
type StateCodec interface {
	StateSize() int
	PackState(buf []float64)
	UnpackState(buf []float64)
}

// Ghoster components are told whether they are a ghost copy.
type Ghoster interface {
	SetGhost(ghost bool)
}

// CheckBlock panics when a value buffer does not hold the negotiated
// isize*jsize block. A mismatch means the caller skipped or mixed up the
// size negotiation, which would silently corrupt assembly.
func CheckBlock(values []complex128, isize, jsize int) {
	if len(values) != isize*jsize {
		panic(errors.AssertionFailedf("value buffer holds %d entries, negotiated %dx%d",
			len(values), isize, jsize))
	}
}
