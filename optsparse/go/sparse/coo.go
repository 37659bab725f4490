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
	"sort"

	"gonum.org/v1/gonum/mat"
)

// COO is a coordinate (triplet) matrix used to build sparse blocks incrementally. Duplicate
// positions are summed when the matrix is compressed.
type COO struct {
	rows, cols int
	ri, ci     []int
	v          []float64
}

var (
	_ mat.Matrix      = (*COO)(nil)
	_ mat.NonZeroDoer = (*COO)(nil)
)

// NewCOO creates an empty rows×cols triplet matrix.
func NewCOO(rows, cols int) *COO {
	return &COO{rows: rows, cols: cols}
}

// NewCOOFromTriplets creates a rows×cols triplet matrix from parallel slices.
func NewCOOFromTriplets(rows, cols int, ri, ci []int, v []float64) (*COO, error) {
	if len(ri) != len(ci) || len(ri) != len(v) {
		return nil, fmt.Errorf("triplet slices of lengths %d, %d, %d: %w", len(ri), len(ci), len(v), ErrShape)
	}
	c := NewCOO(rows, cols)
	for k := range ri {
		if err := c.Append(ri[k], ci[k], v[k]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append adds the entry (i, j, v). Zero values are kept as structural nonzeros.
func (c *COO) Append(i, j int, v float64) error {
	if i < 0 || i >= c.rows || j < 0 || j >= c.cols {
		return fmt.Errorf("(%d, %d) in a %dx%d matrix: %w", i, j, c.rows, c.cols, ErrIndex)
	}
	c.ri = append(c.ri, i)
	c.ci = append(c.ci, j)
	c.v = append(c.v, v)
	return nil
}

// Dims returns the number of rows and columns.
func (c *COO) Dims() (int, int) {
	return c.rows, c.cols
}

// At returns the sum of the entries stored at (i, j).
func (c *COO) At(i, j int) float64 {
	if i < 0 || i >= c.rows || j < 0 || j >= c.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	var s float64
	for k := range c.ri {
		if c.ri[k] == i && c.ci[k] == j {
			s += c.v[k]
		}
	}
	return s
}

// T returns the implicit transpose of the matrix.
func (c *COO) T() mat.Matrix {
	return mat.Transpose{Matrix: c}
}

// NNZ returns the number of distinct stored positions.
func (c *COO) NNZ() int {
	return c.ToCSR().NNZ()
}

// DoNonZero calls `fn` for every distinct stored position in row-major order with the summed
// value.
func (c *COO) DoNonZero(fn func(i, j int, v float64)) {
	c.ToCSR().DoNonZero(fn)
}

// ToCSR compresses the triplets into a CSR matrix with sorted column indices, summing
// duplicates.
func (c *COO) ToCSR() *CSR {
	order := make([]int, len(c.ri))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if c.ri[ka] != c.ri[kb] {
			return c.ri[ka] < c.ri[kb]
		}
		return c.ci[ka] < c.ci[kb]
	})
	rowPtr := make([]int, c.rows+1)
	colInd := make([]int, 0, len(order))
	values := make([]float64, 0, len(order))
	lastRow, lastCol := -1, -1
	for _, k := range order {
		i, j := c.ri[k], c.ci[k]
		if i == lastRow && j == lastCol {
			values[len(values)-1] += c.v[k]
			continue
		}
		colInd = append(colInd, j)
		values = append(values, c.v[k])
		rowPtr[i+1]++
		lastRow, lastCol = i, j
	}
	for i := 0; i < c.rows; i++ {
		rowPtr[i+1] += rowPtr[i]
	}
	return &CSR{
		pat:    &Pattern{rows: c.rows, cols: c.cols, rowPtr: rowPtr, colInd: colInd},
		values: values,
	}
}
