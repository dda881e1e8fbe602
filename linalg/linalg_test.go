package linalg

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/GridKernel/comm"
)

func TestFinalizeSumsContributionsFromAllRanks(t *testing.T) {
	var mu sync.Mutex
	results := make(map[int]*Matrix)
	err := comm.Run(context.Background(), 3, func(ctx context.Context, c comm.Comm) error {
		a := NewMatrixAssembler(c, 3, 3)
		r := c.Rank()
		a.Add(r, r, complex(float64(r+1), 0))
		// Every rank adds into the shared corner
		a.Add(0, 2, complex(0, 1))
		m, err := a.Finalize(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		results[r] = m
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for r, m := range results {
		assert.Equal(t, complex(1, 0), m.At(0, 0), "rank %d", r)
		assert.Equal(t, complex(3, 0), m.At(2, 2), "rank %d", r)
		assert.Equal(t, complex(0, 3), m.At(0, 2), "rank %d", r)
		assert.Equal(t, 4, m.NNZ())
	}
}

func TestFinalizeOnce(t *testing.T) {
	c := comm.NewWorld(1)[0]
	ctx := context.Background()

	a := NewMatrixAssembler(c, 1, 1)
	_, err := a.Finalize(ctx)
	require.NoError(t, err)
	_, err = a.Finalize(ctx)
	assert.ErrorIs(t, err, ErrFinalized)
	assert.Panics(t, func() { a.Add(0, 0, 1) })

	v := NewVectorAssembler(c, 2)
	_, err = v.Finalize(ctx)
	require.NoError(t, err)
	_, err = v.Finalize(ctx)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestAddOutsideMatrixPanics(t *testing.T) {
	a := NewMatrixAssembler(comm.NewWorld(1)[0], 2, 2)
	assert.Panics(t, func() { a.Add(2, 0, 1) })
	v := NewVectorAssembler(comm.NewWorld(1)[0], 2)
	assert.Panics(t, func() { v.Add(-1, 1) })
}

func TestVectorBlocks(t *testing.T) {
	v := NewVectorAssembler(comm.NewWorld(1)[0], 4)
	v.AddBlock(1, []complex128{1, 2})
	v.AddBlock(2, []complex128{3})
	out, err := v.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []complex128{0, 1, 5, 0}, out.Values())
	assert.Equal(t, 5.0, out.MaxAbs())
}

func assembled(t *testing.T, rows, cols int, entries []Triple) *Matrix {
	t.Helper()
	a := NewMatrixAssembler(comm.NewWorld(1)[0], rows, cols)
	for _, e := range entries {
		a.Add(e.Row, e.Col, e.Value)
	}
	m, err := a.Finalize(context.Background())
	require.NoError(t, err)
	return m
}

func TestCSRMatchesDense(t *testing.T) {
	m := assembled(t, 3, 3, []Triple{
		{0, 0, 4}, {0, 1, -1}, {1, 0, -1}, {1, 1, 4}, {1, 2, -1}, {2, 1, -1}, {2, 2, 4},
	})
	csr := m.CSR()
	require.NotNil(t, csr)
	assert.Equal(t, 7, csr.NNZ())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, real(m.At(i, j)), csr.At(i, j))
		}
	}
	entries := m.Entries()
	require.Len(t, entries, 7)
	assert.Equal(t, Triple{Row: 0, Col: 0, Value: 4}, entries[0])
	assert.Equal(t, Triple{Row: 2, Col: 2, Value: 4}, entries[6])
}

func TestComplexMulVec(t *testing.T) {
	m := assembled(t, 2, 2, []Triple{{0, 0, complex(0, -10)}, {0, 1, complex(0, 10)}, {1, 0, complex(0, 10)}, {1, 1, complex(0, -10)}})
	y := m.MulVec(NewVector([]complex128{1, complex(0.9, -0.1)}))
	assert.InDelta(t, 1.0, real(y.At(0)), 1e-12)
	assert.InDelta(t, -1.0, imag(y.At(0)), 1e-12)
	assert.InDelta(t, -1.0, real(y.At(1)), 1e-12)
	assert.InDelta(t, 1.0, imag(y.At(1)), 1e-12)
}

func TestSolveReal(t *testing.T) {
	m := assembled(t, 2, 2, []Triple{{0, 0, 20}, {0, 1, -10}, {1, 0, -10}, {1, 1, 20}})
	x, err := SolveReal(m, NewVector([]complex128{-0.4, -0.6}), 0)
	require.NoError(t, err)
	// 20a - 10b = -0.4, -10a + 20b = -0.6
	assert.InDelta(t, -7.0/150, real(x.At(0)), 1e-12)
	assert.InDelta(t, -8.0/150, real(x.At(1)), 1e-12)
}

func TestSolveSingularIsNoSolution(t *testing.T) {
	m := assembled(t, 2, 2, []Triple{{0, 0, 1}, {0, 1, 1}, {1, 0, 1}, {1, 1, 1}})
	_, err := SolveReal(m, NewVector([]complex128{1, 2}), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingular))
	assert.True(t, errors.Is(err, ErrNoSolution))
}

func TestSolveUsesRealPartAndRejectsEmptyRow(t *testing.T) {
	m := assembled(t, 2, 2, []Triple{{0, 0, complex(2, 5)}, {1, 1, complex(4, -1)}})
	x, err := SolveReal(m, NewVector([]complex128{1, 2}), 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, real(x.At(0)), 1e-12)
	assert.InDelta(t, 0.5, real(x.At(1)), 1e-12)

	isolated := assembled(t, 2, 2, []Triple{{0, 0, 1}})
	_, err = SolveReal(isolated, NewVector([]complex128{1, 0}), 0)
	assert.True(t, errors.Is(err, ErrNoSolution))
}

func TestSolveShapeErrors(t *testing.T) {
	m := assembled(t, 2, 3, nil)
	_, err := SolveReal(m, NewVector(make([]complex128, 2)), 0)
	assert.Error(t, err)

	empty := assembled(t, 0, 0, nil)
	x, err := SolveReal(empty, NewVector(nil), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, x.Len())
}
