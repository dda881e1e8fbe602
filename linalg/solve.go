package linalg

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxCondition is the largest condition number SolveReal accepts
const DefaultMaxCondition = 1e14

// SolveReal solves Re(a)·x = Re(b) by LU factorization. Singular and
// numerically singular systems return an error marked ErrNoSolution.
func SolveReal(a *Matrix, b *Vector, maxCond float64) (*Vector, error) {
	rows, cols := a.Dims()
	if rows != cols {
		return nil, errors.Newf("solve needs a square matrix, have %dx%d", rows, cols)
	}
	if b.Len() != rows {
		return nil, errors.Newf("right-hand side has %d entries for %d rows", b.Len(), rows)
	}
	if rows == 0 {
		return NewVector(nil), nil
	}
	if maxCond <= 0 {
		maxCond = DefaultMaxCondition
	}

	var lu mat.LU
	lu.Factorize(a.CSR())
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCond {
		return nil, singular(cond)
	}

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, b.Real()); err != nil {
		var c mat.Condition
		if errors.As(err, &c) {
			return nil, singular(float64(c))
		}
		return nil, errors.Mark(errors.Wrap(err, "lu solve"), ErrNoSolution)
	}
	return VectorFromReal(&x), nil
}

func singular(cond float64) error {
	return errors.Mark(errors.Wrapf(ErrSingular, "condition number %g", cond), ErrNoSolution)
}
