// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sparse

import (
	"gonum.org/v1/gonum/mat"
)

// IsSparse returns true if `m` carries its own nonzero structure (CSR, COO, or any Sparser).
func IsSparse(m mat.Matrix) bool {
	switch m.(type) {
	case *CSR, *COO, Sparser:
		return true
	}
	return false
}

// FromMatrix converts `m` to CSR. Sparse inputs keep exactly their stored positions, explicit
// zeros included. Any other matrix is dense: every position becomes a structural nonzero.
func FromMatrix(m mat.Matrix) *CSR {
	switch s := m.(type) {
	case *CSR:
		return s.Clone()
	case *COO:
		return s.ToCSR()
	case Sparser:
		r, c := s.Dims()
		coo := NewCOO(r, c)
		s.DoNonZero(func(i, j int, v float64) {
			coo.ri = append(coo.ri, i)
			coo.ci = append(coo.ci, j)
			coo.v = append(coo.v, v)
		})
		return coo.ToCSR()
	}
	return FromDense(m)
}

// FromDense stores every position of `m`, zeros included.
func FromDense(m mat.Matrix) *CSR {
	r, c := m.Dims()
	out := &CSR{pat: DensePattern(r, c), values: make([]float64, 0, r*c)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.values = append(out.values, m.At(i, j))
		}
	}
	return out
}

// FromNonZero stores the structure of `m`: the stored positions of a sparse input, or the
// numerically nonzero entries of a dense one.
func FromNonZero(m mat.Matrix) *CSR {
	if IsSparse(m) {
		return FromMatrix(m)
	}
	r, c := m.Dims()
	coo := NewCOO(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				coo.ri = append(coo.ri, i)
				coo.ci = append(coo.ci, j)
				coo.v = append(coo.v, v)
			}
		}
	}
	return coo.ToCSR()
}

// CSC is a compressed sparse column matrix with sorted row indices, for solvers that consume
// column-major Jacobians.
type CSC struct {
	rows, cols int
	colPtr     []int
	rowInd     []int
	values     []float64
}

// Dims returns the number of rows and columns.
func (m *CSC) Dims() (int, int) {
	return m.rows, m.cols
}

// ColPtr returns the column pointer array.
func (m *CSC) ColPtr() []int {
	return m.colPtr
}

// RowInd returns the row index array.
func (m *CSC) RowInd() []int {
	return m.rowInd
}

// Values returns the stored values in column-major order.
func (m *CSC) Values() []float64 {
	return m.values
}

// ToCSC converts the matrix to compressed column form. Structural zeros are kept.
func (m *CSR) ToCSC() *CSC {
	r, c := m.Dims()
	out := &CSC{
		rows:   r,
		cols:   c,
		colPtr: make([]int, c+1),
		rowInd: make([]int, m.NNZ()),
		values: make([]float64, m.NNZ()),
	}
	for _, j := range m.pat.colInd {
		out.colPtr[j+1]++
	}
	for j := 0; j < c; j++ {
		out.colPtr[j+1] += out.colPtr[j]
	}
	next := append([]int(nil), out.colPtr[:c]...)
	// Rows are visited in increasing order, so row indices come out sorted.
	for i := 0; i < r; i++ {
		for k := m.pat.rowPtr[i]; k < m.pat.rowPtr[i+1]; k++ {
			j := m.pat.colInd[k]
			out.rowInd[next[j]] = i
			out.values[next[j]] = m.values[k]
			next[j]++
		}
	}
	return out
}
