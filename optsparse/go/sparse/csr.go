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
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CSR is a compressed sparse row matrix: an immutable Pattern plus one value per structural
// nonzero.
type CSR struct {
	pat    *Pattern
	values []float64
}

// Sparser is implemented by sparse matrix types from other packages. Their stored entries are
// taken as the structure of the matrix.
type Sparser interface {
	mat.Matrix
	mat.NonZeroDoer
	NNZ() int
}

var (
	_ mat.Matrix      = (*CSR)(nil)
	_ mat.NonZeroDoer = (*CSR)(nil)
	_ Sparser         = (*CSR)(nil)
)

// NewCSR creates a CSR matrix from raw compressed row arrays. The slices are copied.
func NewCSR(rows, cols int, rowPtr, colInd []int, values []float64) (*CSR, error) {
	p, err := NewPattern(rows, cols, rowPtr, colInd)
	if err != nil {
		return nil, err
	}
	return WithPattern(p, values)
}

// WithPattern returns a matrix over the shared pattern `p` holding a copy of `values`. If
// `values` is nil the matrix is zero-valued.
func WithPattern(p *Pattern, values []float64) (*CSR, error) {
	if values == nil {
		return Zeros(p), nil
	}
	if len(values) != p.NNZ() {
		return nil, fmt.Errorf("%d values for %v: %w", len(values), p, ErrShape)
	}
	return &CSR{pat: p, values: append([]float64(nil), values...)}, nil
}

// Zeros returns a zero-valued matrix over the shared pattern `p`.
func Zeros(p *Pattern) *CSR {
	return &CSR{pat: p, values: make([]float64, p.NNZ())}
}

// NewEmpty returns a rows×cols matrix without stored entries.
func NewEmpty(rows, cols int) *CSR {
	return &CSR{pat: EmptyPattern(rows, cols)}
}

// Pattern returns the nonzero structure of the matrix.
func (m *CSR) Pattern() *Pattern {
	return m.pat
}

// Values returns the stored values in pattern order. The slice is the matrix storage: writing
// to it updates the matrix.
func (m *CSR) Values() []float64 {
	return m.values
}

// NNZ returns the number of structural nonzeros.
func (m *CSR) NNZ() int {
	return m.pat.NNZ()
}

// Dims returns the number of rows and columns.
func (m *CSR) Dims() (int, int) {
	return m.pat.Dims()
}

// At returns the value at (i, j). Positions outside the pattern are 0.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.pat.rows || j < 0 || j >= m.pat.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	if k := m.pat.Find(i, j); k >= 0 {
		return m.values[k]
	}
	return 0
}

// T returns the implicit transpose of the matrix.
func (m *CSR) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// DoNonZero calls `fn` for every structural nonzero in row-major order, including stored zeros.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.pat.rows; i++ {
		for k := m.pat.rowPtr[i]; k < m.pat.rowPtr[i+1]; k++ {
			fn(i, m.pat.colInd[k], m.values[k])
		}
	}
}

// Clone returns a copy of the matrix sharing the same pattern.
func (m *CSR) Clone() *CSR {
	return &CSR{pat: m.pat, values: append([]float64(nil), m.values...)}
}

// ScaleRows multiplies every stored element by the scale of its row. The pattern is unchanged,
// so elements that become zero stay structural.
func (m *CSR) ScaleRows(s []float64) error {
	if len(s) != m.pat.rows {
		return fmt.Errorf("%d row scales for %d rows: %w", len(s), m.pat.rows, ErrShape)
	}
	for i, f := range s {
		for k := m.pat.rowPtr[i]; k < m.pat.rowPtr[i+1]; k++ {
			m.values[k] *= f
		}
	}
	return nil
}

// ScaleCols multiplies every stored element by the scale of its column. The pattern is
// unchanged.
func (m *CSR) ScaleCols(s []float64) error {
	if len(s) != m.pat.cols {
		return fmt.Errorf("%d column scales for %d columns: %w", len(s), m.pat.cols, ErrShape)
	}
	for k, j := range m.pat.colInd {
		m.values[k] *= s[j]
	}
	return nil
}

// MulVec returns m·x.
func (m *CSR) MulVec(x []float64) ([]float64, error) {
	if len(x) != m.pat.cols {
		return nil, fmt.Errorf("vector of length %d for %d columns: %w", len(x), m.pat.cols, ErrShape)
	}
	y := make([]float64, m.pat.rows)
	for i := range y {
		var s float64
		for k := m.pat.rowPtr[i]; k < m.pat.rowPtr[i+1]; k++ {
			s += m.values[k] * x[m.pat.colInd[k]]
		}
		y[i] = s
	}
	return y, nil
}

// Triplets returns the stored entries as parallel row, column, value slices in row-major order.
func (m *CSR) Triplets() (rows, cols []int, vals []float64) {
	n := m.NNZ()
	rows, cols, vals = make([]int, 0, n), make([]int, 0, n), make([]float64, 0, n)
	m.DoNonZero(func(i, j int, v float64) {
		rows = append(rows, i)
		cols = append(cols, j)
		vals = append(vals, v)
	})
	return rows, cols, vals
}

// ToDense returns the matrix as a gonum dense matrix. A matrix with a zero dimension is
// returned as an empty mat.Dense.
func (m *CSR) ToDense() *mat.Dense {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(r, c, nil)
	m.DoNonZero(func(i, j int, v float64) {
		d.Set(i, j, v)
	})
	return d
}

// PermuteRows returns the matrix whose k-th row is factor[k] times row idx[k] of m. Rows may
// repeat. A nil `factor` means all ones.
func (m *CSR) PermuteRows(idx []int, factor []float64) (*CSR, error) {
	if factor != nil && len(factor) != len(idx) {
		return nil, fmt.Errorf("%d factors for %d rows: %w", len(factor), len(idx), ErrShape)
	}
	rowPtr := make([]int, len(idx)+1)
	var colInd []int
	var values []float64
	for k, i := range idx {
		if i < 0 || i >= m.pat.rows {
			return nil, fmt.Errorf("row %d of %d: %w", i, m.pat.rows, ErrIndex)
		}
		f := 1.0
		if factor != nil {
			f = factor[k]
		}
		for p := m.pat.rowPtr[i]; p < m.pat.rowPtr[i+1]; p++ {
			colInd = append(colInd, m.pat.colInd[p])
			values = append(values, f*m.values[p])
		}
		rowPtr[k+1] = len(colInd)
	}
	return &CSR{
		pat:    &Pattern{rows: len(idx), cols: m.pat.cols, rowPtr: rowPtr, colInd: colInd},
		values: values,
	}, nil
}

// VStack stacks matrices with the same number of columns on top of each other.
func VStack(ms ...*CSR) (*CSR, error) {
	if len(ms) == 0 {
		return NewEmpty(0, 0), nil
	}
	cols := ms[0].pat.cols
	rowPtr := []int{0}
	var colInd []int
	var values []float64
	for _, m := range ms {
		if m.pat.cols != cols {
			return nil, fmt.Errorf("cannot stack %d columns on %d columns: %w", m.pat.cols, cols, ErrShape)
		}
		base := len(colInd)
		colInd = append(colInd, m.pat.colInd...)
		values = append(values, m.values...)
		for i := 1; i <= m.pat.rows; i++ {
			rowPtr = append(rowPtr, base+m.pat.rowPtr[i])
		}
	}
	return &CSR{
		pat:    &Pattern{rows: len(rowPtr) - 1, cols: cols, rowPtr: rowPtr, colInd: colInd},
		values: values,
	}, nil
}
