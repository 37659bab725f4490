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

	log "github.com/golang/glog"
	"github.com/optsparse/optsparse/optsparse/go/sparse"
	"gonum.org/v1/gonum/mat"
)

// JacobianInput is a constraint Jacobian submitted for one partition: a DenseJacobian, a
// BlockJacobian or EmptyJacobian.
type JacobianInput interface {
	isJacobianInput()
}

// DenseJacobian is the whole Jacobian of a partition, of shape (partition rows)×NumVars().
// Every entry is taken as structural.
type DenseJacobian struct {
	M mat.Matrix
}

// BlockJacobian maps a constraint name and a variable set name to a Jacobian block.
//
// Sparse blocks (implementing mat.NonZeroDoer) must store exactly the declared positions. The
// other blocks are read at the declared positions and may be nonzero only there; their number
// of nonzeros need not match the declaration, so a dense block with an explicit zero at a
// declared position is accepted. The assembled pattern is the declared one either way.
type BlockJacobian map[string]map[string]mat.Matrix

// EmptyJacobian is the submission for a partition without constraints.
type EmptyJacobian struct{}

func (DenseJacobian) isJacobianInput() {}
func (BlockJacobian) isJacobianInput() {}
func (EmptyJacobian) isJacobianInput() {}

// ProcessConstraints places the constraint values of partition `part` at their rows and
// scales them. Every constraint of the partition must be present; other names are ignored.
func (p *Problem) ProcessConstraints(part Partition, values map[string][]float64) ([]float64, error) {
	pt, err := p.partition(part)
	if err != nil {
		return nil, err
	}
	if pt.rows == 0 {
		if p.dummyRow {
			return []float64{0}, nil
		}
		return []float64{}, nil
	}
	out := make([]float64, pt.rows)
	for _, c := range pt.cons {
		v, ok := values[c.name]
		if !ok {
			return nil, fmt.Errorf("no values for constraint %q: %w", c.name, ErrMissingValue)
		}
		if len(v) != c.n {
			return nil, fmt.Errorf("%d values for constraint %q of length %d: %w", len(v), c.name, c.n, ErrShapeMismatch)
		}
		copy(out[c.rs-pt.base:], v)
	}
	for name := range values {
		if _, ok := pt.index[name]; !ok && !p.constraints.Has(name) {
			log.Warningf("%s: ignoring values of unknown constraint %q", p.name, name)
		}
	}
	for i, s := range pt.scale {
		out[i] *= s
	}
	return out, nil
}

// ProcessConstraintJacobian converts a Jacobian submission for partition `part` into the
// scaled sparse Jacobian of the partition: columns are divided by the variable scales and rows
// multiplied by the constraint scales. BlockJacobian submissions always produce the pattern
// fixed by FinalizeConstraints.
func (p *Problem) ProcessConstraintJacobian(part Partition, in JacobianInput) (*sparse.CSR, error) {
	pt, err := p.partition(part)
	if err != nil {
		return nil, err
	}
	if pt.rows == 0 {
		return p.emptyJacobian(), nil
	}
	var m *sparse.CSR
	switch in := in.(type) {
	case DenseJacobian:
		if in.M == nil {
			return nil, fmt.Errorf("nil dense Jacobian for the %v constraints: %w", part, ErrMissingValue)
		}
		if !p.denseJacobianOK {
			return nil, fmt.Errorf("dense Jacobian for the %v constraints: %w", part, ErrDenseReturnForbidden)
		}
		if r, c := in.M.Dims(); r != pt.rows || c != p.ndv {
			return nil, fmt.Errorf("dense Jacobian for the %v constraints is %dx%d, want %dx%d: %w", part, r, c, pt.rows, p.ndv, ErrShapeMismatch)
		}
		m = sparse.FromDense(in.M)
	case BlockJacobian:
		if m, err = p.gather(pt, in); err != nil {
			return nil, err
		}
	case EmptyJacobian, nil:
		return nil, fmt.Errorf("no Jacobian for %d %v constraint rows: %w", pt.rows, part, ErrMissingValue)
	default:
		return nil, fmt.Errorf("unsupported Jacobian input %T: %w", in, ErrInvalidArgument)
	}
	return p.scaledJacobian(pt, m)
}

// gather copies the blocks of `in` into an unscaled matrix over the partition pattern.
func (p *Problem) gather(pt *partition, in BlockJacobian) (*sparse.CSR, error) {
	vals := make([]float64, pt.pattern.NNZ())
	for _, c := range pt.cons {
		blocks, ok := in[c.name]
		if !ok {
			return nil, fmt.Errorf("no Jacobian for constraint %q: %w", c.name, ErrMissingValue)
		}
		for _, set := range c.wrt {
			m, ok := blocks[set]
			if !ok || m == nil {
				if !c.partialReturnOK && c.declared[set] {
					return nil, fmt.Errorf("no Jacobian block of constraint %q for %q: %w", c.name, set, ErrMissingValue)
				}
				// The stored placeholder is structurally present with zero values.
				continue
			}
			bv, err := blockValues(c, set, m)
			if err != nil {
				return nil, err
			}
			for k, slot := range pt.slots[c.name][set] {
				vals[slot] = bv[k]
			}
		}
		for set := range blocks {
			if _, ok := c.jac[set]; !ok {
				log.Warningf("%s: ignoring Jacobian block of constraint %q for %q, which is not in its wrt", p.name, c.name, set)
			}
		}
	}
	for name := range in {
		if _, ok := pt.index[name]; !ok && !p.constraints.Has(name) {
			log.Warningf("%s: ignoring Jacobian of unknown constraint %q", p.name, name)
		}
	}
	return sparse.WithPattern(pt.pattern, vals)
}

// blockValues returns the values of `m` at the positions of the template of constraint `c`
// for `set`, in template order.
func blockValues(c *Constraint, set string, m mat.Matrix) ([]float64, error) {
	tmpl := c.jac[set]
	r, cols := m.Dims()
	if tr, tc := tmpl.Dims(); r != tr || cols != tc {
		return nil, fmt.Errorf("block of constraint %q for %q is %dx%d, want %dx%d: %w", c.name, set, r, cols, tr, tc, ErrShapeMismatch)
	}
	if sparse.IsSparse(m) {
		s := sparse.FromMatrix(m)
		if !s.Pattern().Equal(tmpl.Pattern()) {
			return nil, fmt.Errorf("block of constraint %q for %q has structure %v, want %v: %w", c.name, set, s.Pattern(), tmpl.Pattern(), ErrSparsity)
		}
		return s.Values(), nil
	}
	pat := tmpl.Pattern()
	vals := make([]float64, pat.NNZ())
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			k := pat.Find(i, j)
			if k < 0 {
				if v != 0 {
					return nil, fmt.Errorf("block of constraint %q for %q has %v at undeclared position (%d, %d): %w", c.name, set, v, i, j, ErrSparsity)
				}
				continue
			}
			vals[k] = v
		}
	}
	return vals, nil
}

// scaledJacobian scales the columns of `m` by 1/xscale and its rows by the constraint scales
// of the partition, in place.
func (p *Problem) scaledJacobian(pt *partition, m *sparse.CSR) (*sparse.CSR, error) {
	if pt.rows == 0 {
		return p.emptyJacobian(), nil
	}
	if err := m.ScaleCols(p.invXScale); err != nil {
		return nil, err
	}
	if err := m.ScaleRows(pt.scale); err != nil {
		return nil, err
	}
	return m, nil
}

// emptyJacobian returns the Jacobian of a partition without rows.
func (p *Problem) emptyJacobian() *sparse.CSR {
	if !p.dummyRow {
		return sparse.NewEmpty(0, p.ndv)
	}
	m := sparse.Zeros(sparse.DensePattern(1, p.ndv))
	for k := range m.Values() {
		m.Values()[k] = dummyJacobianValue
	}
	return m
}

// EvaluateLinearConstraints returns the unscaled values A·x of every linear constraint for the
// unscaled design vector `x`.
func (p *Problem) EvaluateLinearConstraints(x []float64) (map[string][]float64, error) {
	if !p.consFinal {
		return nil, fmt.Errorf("EvaluateLinearConstraints before FinalizeConstraints: %w", ErrOrdering)
	}
	if len(x) != p.ndv {
		return nil, fmt.Errorf("design vector of length %d, want %d: %w", len(x), p.ndv, ErrShapeMismatch)
	}
	y, err := p.linearA.MulVec(x)
	if err != nil {
		return nil, err
	}
	lin := p.parts[Linear]
	out := make(map[string][]float64, len(lin.cons))
	for _, c := range lin.cons {
		out[c.name] = append([]float64(nil), y[c.rs-lin.base:c.re-lin.base]...)
	}
	return out, nil
}
