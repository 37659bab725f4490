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

// Partition selects the nonlinear or the linear constraints of a problem.
type Partition int

const (
	// Nonlinear selects the constraints evaluated by the user at every iteration. Their rows
	// come first.
	Nonlinear Partition = iota
	// Linear selects the constraints whose Jacobian is constant.
	Linear
)

func (p Partition) String() string {
	switch p {
	case Nonlinear:
		return "nonlinear"
	case Linear:
		return "linear"
	}
	return fmt.Sprintf("Partition(%d)", int(p))
}

// ConParams holds the attributes of a constraint group.
type ConParams struct {
	// Lower and Upper bound each row. A nil slice leaves that side unbounded and a single value
	// applies to every row.
	Lower []float64
	Upper []float64
	// Scale multiplies the rows. It defaults to 1.
	Scale []float64
	// Linear constraints must declare Jac, which holds their constant coefficients.
	Linear bool
	// Wrt lists the variable sets the constraint depends on. It defaults to every set.
	Wrt []string
	// Jac maps a variable set to the Jacobian block of the constraint with respect to it. Sparse
	// blocks declare exactly their stored entries; other matrices declare their nonzero
	// entries. The structure of a block never changes afterwards.
	Jac map[string]mat.Matrix
}

// Constraint is a named group of constraint rows.
type Constraint struct {
	name   string
	n      int
	linear bool
	// wrt is sorted by set offset.
	wrt []string
	// jac holds one template per set in wrt.
	jac map[string]*sparse.CSR
	// declared is true for the blocks given in ConParams.Jac.
	declared        map[string]bool
	lower, upper    []float64
	scale           []float64
	partialReturnOK bool
	// rs and re are the global rows of the constraint, assigned by FinalizeConstraints.
	rs, re int
}

// Name returns the name of the constraint.
func (c *Constraint) Name() string {
	return c.name
}

// Len returns the number of rows of the constraint.
func (c *Constraint) Len() int {
	return c.n
}

// Linear returns true for linear constraints.
func (c *Constraint) Linear() bool {
	return c.linear
}

// Partition returns the partition holding the constraint.
func (c *Constraint) Partition() Partition {
	if c.linear {
		return Linear
	}
	return Nonlinear
}

// Wrt returns the variable sets of the constraint in offset order.
func (c *Constraint) Wrt() []string {
	return append([]string(nil), c.wrt...)
}

// Block returns a copy of the Jacobian template of the constraint with respect to `set`.
func (c *Constraint) Block(set string) (*sparse.CSR, bool) {
	b, ok := c.jac[set]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Declared returns true if the block for `set` was declared explicitly.
func (c *Constraint) Declared(set string) bool {
	return c.declared[set]
}

// PartialReturnOK returns true if Jacobian submissions may omit blocks of the constraint.
func (c *Constraint) PartialReturnOK() bool {
	return c.partialReturnOK
}

// Bounds returns the bounds of row `i`.
func (c *Constraint) Bounds(i int) Bounds {
	return Bounds{c.lower[i], c.upper[i]}
}

// Scale returns a copy of the row scales.
func (c *Constraint) Scale() []float64 {
	return append([]float64(nil), c.scale...)
}

// Rows returns the half-open range of global rows assigned to the constraint. Nonlinear rows
// precede linear ones. Both values are 0 before FinalizeConstraints.
func (c *Constraint) Rows() (int, int) {
	return c.rs, c.re
}

// Objective is a named objective function.
type Objective struct {
	name  string
	scale float64
}

// Name returns the name of the objective.
func (o *Objective) Name() string {
	return o.name
}

// Scale returns the factor applied to the objective value and gradient.
func (o *Objective) Scale() float64 {
	return o.scale
}
