package linalg

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Matrix is an assembled complex matrix, replicated on every rank
type Matrix struct {
	rows, cols int
	data       *mat.CDense
	filled     map[[2]int]bool
}

func newMatrix(rows, cols int) *Matrix {
	m := &Matrix{rows: rows, cols: cols, filled: make(map[[2]int]bool)}
	if rows > 0 && cols > 0 {
		m.data = mat.NewCDense(rows, cols, nil)
	}
	return m
}

func (m *Matrix) add(i, j int, v complex128) {
	m.data.Set(i, j, m.data.At(i, j)+v)
	m.filled[[2]int{i, j}] = true
}

func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

func (m *Matrix) At(i, j int) complex128 { return m.data.At(i, j) }

// NNZ returns the number of positions that received a contribution
func (m *Matrix) NNZ() int { return len(m.filled) }

// Entries returns the filled positions in row-major order
func (m *Matrix) Entries() []Triple {
	out := make([]Triple, 0, len(m.filled))
	for pos := range m.filled {
		out = append(out, Triple{Row: pos[0], Col: pos[1], Value: m.data.At(pos[0], pos[1])})
	}
	sortTriples(out)
	return out
}

// Real returns the real part as a dense gonum matrix
func (m *Matrix) Real() *mat.Dense {
	return m.part(func(z complex128) float64 { return real(z) })
}

// Imag returns the imaginary part as a dense gonum matrix
func (m *Matrix) Imag() *mat.Dense {
	return m.part(func(z complex128) float64 { return imag(z) })
}

func (m *Matrix) part(f func(complex128) float64) *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.rows, m.cols, nil)
	for pos := range m.filled {
		d.Set(pos[0], pos[1], f(m.data.At(pos[0], pos[1])))
	}
	return d
}

// CSR returns the real part in compressed sparse row form, or nil for an
// empty matrix
func (m *Matrix) CSR() *sparse.CSR {
	if m.rows == 0 || m.cols == 0 {
		return nil
	}
	dok := sparse.NewDOK(m.rows, m.cols)
	for pos := range m.filled {
		if v := real(m.data.At(pos[0], pos[1])); v != 0 {
			dok.Set(pos[0], pos[1], v)
		}
	}
	return dok.ToCSR()
}

// MulVec returns m·x
func (m *Matrix) MulVec(x *Vector) *Vector {
	if m.rows == 0 || m.cols == 0 {
		return NewVector(make([]complex128, m.rows))
	}
	ar, ai := m.Real(), m.Imag()
	xr, xi := x.Real(), x.Imag()

	var t1, t2, re, im mat.VecDense
	t1.MulVec(ar, xr)
	t2.MulVec(ai, xi)
	re.SubVec(&t1, &t2)
	t1.MulVec(ar, xi)
	t2.MulVec(ai, xr)
	im.AddVec(&t1, &t2)

	out := make([]complex128, m.rows)
	for i := range out {
		out[i] = complex(re.AtVec(i), im.AtVec(i))
	}
	return NewVector(out)
}
