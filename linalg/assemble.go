// Package linalg holds the distributed matrices and vectors the mapper
// assembles into, and the dense solve used by the screening evaluator.
package linalg

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
)

var (
	// ErrNoSolution marks any failure to produce a solution from an assembled
	// system. Callers test for it with errors.Is.
	ErrNoSolution = errors.New("linalg: no solution")
	// ErrSingular is returned for singular or numerically singular systems.
	// It is also marked as ErrNoSolution.
	ErrSingular = errors.New("linalg: singular matrix")
	// ErrFinalized is returned when an assembler is finalized twice.
	ErrFinalized = errors.New("linalg: assembler already finalized")
)

// Triple is one matrix contribution in global indices
type Triple struct {
	Row, Col int
	Value    complex128
}

// Pair is one vector contribution in global indices
type Pair struct {
	Index int
	Value complex128
}

// MatrixAssembler queues locally computed entries of a distributed matrix.
// Contributions to the same position are summed.
type MatrixAssembler struct {
	comm       comm.Comm
	rows, cols int
	triples    []Triple
	done       bool
}

func NewMatrixAssembler(c comm.Comm, rows, cols int) *MatrixAssembler {
	return &MatrixAssembler{comm: c, rows: rows, cols: cols}
}

// Add queues one entry. Indices outside the matrix are a programming error.
func (a *MatrixAssembler) Add(row, col int, v complex128) {
	if a.done {
		panic(errors.AssertionFailedf("add to finalized matrix"))
	}
	if row < 0 || row >= a.rows || col < 0 || col >= a.cols {
		panic(errors.AssertionFailedf("entry (%d,%d) outside %dx%d matrix", row, col, a.rows, a.cols))
	}
	a.triples = append(a.triples, Triple{Row: row, Col: col, Value: v})
}

// AddBlock queues an isize x jsize row-major block whose first entry lands
// at (row0, col0)
func (a *MatrixAssembler) AddBlock(row0, col0, isize, jsize int, values []complex128) {
	for i := 0; i < isize; i++ {
		for j := 0; j < jsize; j++ {
			a.Add(row0+i, col0+j, values[i*jsize+j])
		}
	}
}

// Len returns the number of entries queued on this rank
func (a *MatrixAssembler) Len() int { return len(a.triples) }

// Finalize gathers the entries of every rank and builds the matrix. It is
// collective and may be called once.
func (a *MatrixAssembler) Finalize(ctx context.Context) (*Matrix, error) {
	if a.done {
		return nil, ErrFinalized
	}
	a.done = true
	raw, err := a.comm.AllGather(ctx, a.triples)
	if err != nil {
		return nil, errors.Wrap(err, "gather matrix entries")
	}
	m := newMatrix(a.rows, a.cols)
	for r, p := range raw {
		ts, ok := p.([]Triple)
		if !ok && p != nil {
			return nil, errors.Wrapf(comm.ErrPayload, "rank %d sent %T", r, p)
		}
		for _, t := range ts {
			m.add(t.Row, t.Col, t.Value)
		}
	}
	return m, nil
}

// VectorAssembler queues locally computed entries of a distributed vector
type VectorAssembler struct {
	comm  comm.Comm
	size  int
	pairs []Pair
	done  bool
}

func NewVectorAssembler(c comm.Comm, size int) *VectorAssembler {
	return &VectorAssembler{comm: c, size: size}
}

func (a *VectorAssembler) Add(idx int, v complex128) {
	if a.done {
		panic(errors.AssertionFailedf("add to finalized vector"))
	}
	if idx < 0 || idx >= a.size {
		panic(errors.AssertionFailedf("entry %d outside vector of length %d", idx, a.size))
	}
	a.pairs = append(a.pairs, Pair{Index: idx, Value: v})
}

// AddBlock queues len(values) consecutive entries starting at idx0
func (a *VectorAssembler) AddBlock(idx0 int, values []complex128) {
	for k, v := range values {
		a.Add(idx0+k, v)
	}
}

func (a *VectorAssembler) Len() int { return len(a.pairs) }

// Finalize gathers the entries of every rank. Collective, once.
func (a *VectorAssembler) Finalize(ctx context.Context) (*Vector, error) {
	if a.done {
		return nil, ErrFinalized
	}
	a.done = true
	raw, err := a.comm.AllGather(ctx, a.pairs)
	if err != nil {
		return nil, errors.Wrap(err, "gather vector entries")
	}
	v := NewVector(make([]complex128, a.size))
	for r, p := range raw {
		ps, ok := p.([]Pair)
		if !ok && p != nil {
			return nil, errors.Wrapf(comm.ErrPayload, "rank %d sent %T", r, p)
		}
		for _, e := range ps {
			v.data[e.Index] += e.Value
		}
	}
	return v, nil
}

func sortTriples(ts []Triple) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Row != ts[j].Row {
			return ts[i].Row < ts[j].Row
		}
		return ts[i].Col < ts[j].Col
	})
}
