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

// Package sparse provides compressed sparse matrices whose nonzero structure is an explicit,
// immutable Pattern.
//
// A position that belongs to a Pattern is a structural nonzero: it stays in the matrix whatever
// value is stored there, including 0. Operations that change values (ScaleRows, ScaleCols,
// PermuteRows) never change which positions are stored.
//
// CSR and COO implement gonum's mat.Matrix and mat.NonZeroDoer so they can be passed anywhere a
// gonum matrix is accepted.
package sparse

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrShape holds the error when matrix dimensions are invalid or do not agree.
	ErrShape = errors.New("sparse: dimension mismatch")
	// ErrIndex holds the error when a row or column index is out of range.
	ErrIndex = errors.New("sparse: index out of range")
)

// Pattern is the nonzero structure of a rows×cols matrix in compressed row form. Column
// indices are strictly increasing within each row. A Pattern is never modified once built and
// may be shared between matrices.
type Pattern struct {
	rows, cols int
	rowPtr     []int
	colInd     []int
}

// NewPattern validates and returns a Pattern. `rowPtr` must have rows+1 non-decreasing entries
// starting at 0 and ending at len(colInd); the column indices of each row must be in range and
// strictly increasing. The slices are copied.
func NewPattern(rows, cols int, rowPtr, colInd []int) (*Pattern, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("shape (%d, %d): %w", rows, cols, ErrShape)
	}
	if len(rowPtr) != rows+1 || rowPtr[0] != 0 || rowPtr[rows] != len(colInd) {
		return nil, fmt.Errorf("row pointer of length %d does not describe %d rows and %d entries: %w", len(rowPtr), rows, len(colInd), ErrShape)
	}
	for i := 0; i < rows; i++ {
		if rowPtr[i+1] < rowPtr[i] || rowPtr[i+1] > len(colInd) {
			return nil, fmt.Errorf("row pointer %d at row %d is outside [%d, %d]: %w", rowPtr[i+1], i, rowPtr[i], len(colInd), ErrShape)
		}
	}
	for i := 0; i < rows; i++ {
		for k := rowPtr[i]; k < rowPtr[i+1]; k++ {
			j := colInd[k]
			if j < 0 || j >= cols {
				return nil, fmt.Errorf("column %d in row %d: %w", j, i, ErrIndex)
			}
			if k > rowPtr[i] && colInd[k-1] >= j {
				return nil, fmt.Errorf("columns of row %d are not strictly increasing: %w", i, ErrIndex)
			}
		}
	}
	return &Pattern{
		rows:   rows,
		cols:   cols,
		rowPtr: append([]int(nil), rowPtr...),
		colInd: append([]int(nil), colInd...),
	}, nil
}

// EmptyPattern returns the pattern of a rows×cols matrix without stored entries.
func EmptyPattern(rows, cols int) *Pattern {
	return &Pattern{rows: rows, cols: cols, rowPtr: make([]int, rows+1)}
}

// DensePattern returns the pattern in which every position of a rows×cols matrix is stored.
func DensePattern(rows, cols int) *Pattern {
	p := &Pattern{rows: rows, cols: cols, rowPtr: make([]int, rows+1), colInd: make([]int, 0, rows*cols)}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p.colInd = append(p.colInd, j)
		}
		p.rowPtr[i+1] = len(p.colInd)
	}
	return p
}

// Dims returns the number of rows and columns.
func (p *Pattern) Dims() (int, int) {
	return p.rows, p.cols
}

// NNZ returns the number of structural nonzeros.
func (p *Pattern) NNZ() int {
	return len(p.colInd)
}

// RowPtr returns the row pointer array. The returned slice must not be modified.
func (p *Pattern) RowPtr() []int {
	return p.rowPtr
}

// ColInd returns the column index array. The returned slice must not be modified.
func (p *Pattern) ColInd() []int {
	return p.colInd
}

// Find returns the storage position of (i, j), or -1 if it is not a structural nonzero.
func (p *Pattern) Find(i, j int) int {
	if i < 0 || i >= p.rows || j < 0 || j >= p.cols {
		return -1
	}
	start, end := p.rowPtr[i], p.rowPtr[i+1]
	k := start + sort.SearchInts(p.colInd[start:end], j)
	if k < end && p.colInd[k] == j {
		return k
	}
	return -1
}

// Equal returns true if both patterns have the same shape and the same stored positions.
func (p *Pattern) Equal(q *Pattern) bool {
	if p == q {
		return true
	}
	if p == nil || q == nil || p.rows != q.rows || p.cols != q.cols || len(p.colInd) != len(q.colInd) {
		return false
	}
	for i, v := range p.rowPtr {
		if q.rowPtr[i] != v {
			return false
		}
	}
	for i, v := range p.colInd {
		if q.colInd[i] != v {
			return false
		}
	}
	return true
}

// String returns a short description such as "3x4 (5 nonzeros)".
func (p *Pattern) String() string {
	return fmt.Sprintf("%dx%d (%d nonzeros)", p.rows, p.cols, len(p.colInd))
}
