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

package nlpmodel

import (
	"fmt"

	"github.com/optsparse/optsparse/optsparse/go/sparse"
	"gonum.org/v1/gonum/mat"
)

// ConType is a class of constraint rows.
type ConType int

const (
	// NonlinearEquality selects the rows of nonlinear constraints with equal bounds.
	NonlinearEquality ConType = iota
	// NonlinearInequality selects the other rows of nonlinear constraints.
	NonlinearInequality
	// LinearEquality selects the rows of linear constraints with equal bounds.
	LinearEquality
	// LinearInequality selects the other rows of linear constraints.
	LinearInequality
)

func (t ConType) String() string {
	switch t {
	case NonlinearEquality:
		return "ne"
	case NonlinearInequality:
		return "ni"
	case LinearEquality:
		return "le"
	case LinearInequality:
		return "li"
	}
	return fmt.Sprintf("ConType(%d)", int(t))
}

func (t ConType) linear() bool {
	return t == LinearEquality || t == LinearInequality
}

func (t ConType) equality() bool {
	return t == NonlinearEquality || t == LinearEquality
}

// Ordering maps the natural constraint rows (nonlinear then linear) to the layout a solver
// expects. Row k of the solver is Factor[k] times natural row Indices[k], and the scaled natural
// row satisfies Lower[k] <= c <= Upper[k]. A solver handling only `g(x) <= 0` uses
// Factor[k]·(c - bound) with bound = Upper[k] if Factor[k] > 0 and Lower[k] otherwise.
type Ordering struct {
	Indices []int
	Lower   []float64
	Upper   []float64
	Factor  []float64
}

// Ordering returns the rows of the constraint classes listed in `order`, each class in
// constraint declaration order. With `oneSided`, inequality rows bounded on both sides are
// emitted twice, once per bound, and unbounded sides are dropped. With `splitEquality`,
// equality rows are emitted twice with opposite factors.
func (p *Problem) Ordering(order []ConType, oneSided, splitEquality bool) (*Ordering, error) {
	if !p.consFinal {
		return nil, fmt.Errorf("Ordering before FinalizeConstraints: %w", ErrOrdering)
	}
	seen := make(map[ConType]bool, len(order))
	for _, t := range order {
		if t < NonlinearEquality || t > LinearInequality {
			return nil, fmt.Errorf("constraint type %v: %w", t, ErrInvalidArgument)
		}
		if seen[t] {
			return nil, fmt.Errorf("constraint type %v requested twice: %w", t, ErrInvalidArgument)
		}
		seen[t] = true
	}

	o := &Ordering{Indices: []int{}, Lower: []float64{}, Upper: []float64{}, Factor: []float64{}}
	if p.NumCons() == 0 {
		if p.dummyRow {
			o.add(0, 1, -Infinity, Infinity)
		}
		return o, nil
	}
	for _, t := range order {
		for _, c := range p.constraints.Values() {
			if c.linear != t.linear() {
				continue
			}
			for i := 0; i < c.n; i++ {
				b := c.Bounds(i).Scale(c.scale[i])
				if b.IsEquality() != t.equality() {
					continue
				}
				row := c.rs + i
				switch {
				case t.equality():
					o.add(row, 1, b.Lower, b.Upper)
					if splitEquality {
						o.add(row, -1, b.Lower, b.Upper)
					}
				case !oneSided:
					o.add(row, 1, b.Lower, b.Upper)
				default:
					if b.HasUpper() {
						o.add(row, 1, -Infinity, b.Upper)
					}
					if b.HasLower() {
						o.add(row, -1, b.Lower, Infinity)
					}
				}
			}
		}
	}
	return o, nil
}

func (o *Ordering) add(row int, factor, lower, upper float64) {
	o.Indices = append(o.Indices, row)
	o.Factor = append(o.Factor, factor)
	o.Lower = append(o.Lower, lower)
	o.Upper = append(o.Upper, upper)
}

// Len returns the number of solver rows.
func (o *Ordering) Len() int {
	return len(o.Indices)
}

// FactorOperator returns Factor as a diagonal matrix, or nil if there are no rows.
func (o *Ordering) FactorOperator() *mat.DiagDense {
	return diag(o.Factor)
}

// Apply returns the solver rows of the natural constraint values `c`.
func (o *Ordering) Apply(c []float64) ([]float64, error) {
	out := make([]float64, len(o.Indices))
	for k, i := range o.Indices {
		if i >= len(c) {
			return nil, fmt.Errorf("row %d of %d constraint values: %w", i, len(c), ErrShapeMismatch)
		}
		out[k] = o.Factor[k] * c[i]
	}
	return out, nil
}

// ApplyJacobian returns the solver rows of the natural constraint Jacobian `j`.
func (o *Ordering) ApplyJacobian(j *sparse.CSR) (*sparse.CSR, error) {
	out, err := j.PermuteRows(o.Indices, o.Factor)
	if err != nil {
		return nil, fmt.Errorf("reordering the Jacobian failed: %v: %w", err, ErrShapeMismatch)
	}
	return out, nil
}
