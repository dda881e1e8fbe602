package linalg

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Vector is an assembled complex vector, replicated on every rank
type Vector struct {
	data []complex128
}

// NewVector wraps values without copying
func NewVector(values []complex128) *Vector { return &Vector{data: values} }

// VectorFromReal builds a vector with the entries of v as real parts
func VectorFromReal(v mat.Vector) *Vector {
	out := make([]complex128, v.Len())
	for i := range out {
		out[i] = complex(v.AtVec(i), 0)
	}
	return NewVector(out)
}

func (v *Vector) Len() int { return len(v.data) }

func (v *Vector) At(i int) complex128 { return v.data[i] }

// Slice returns entries [i, i+n) sharing storage with v
func (v *Vector) Slice(i, n int) []complex128 { return v.data[i : i+n] }

// Values returns a copy of the entries
func (v *Vector) Values() []complex128 { return append([]complex128(nil), v.data...) }

func (v *Vector) Real() *mat.VecDense {
	return v.part(func(z complex128) float64 { return real(z) })
}

func (v *Vector) Imag() *mat.VecDense {
	return v.part(func(z complex128) float64 { return imag(z) })
}

func (v *Vector) part(f func(complex128) float64) *mat.VecDense {
	if len(v.data) == 0 {
		return &mat.VecDense{}
	}
	out := mat.NewVecDense(len(v.data), nil)
	for i, z := range v.data {
		out.SetVec(i, f(z))
	}
	return out
}

// MaxAbs returns the largest entry magnitude
func (v *Vector) MaxAbs() float64 {
	var m float64
	for _, z := range v.data {
		if a := cmplx.Abs(z); a > m {
			m = a
		}
	}
	return m
}
