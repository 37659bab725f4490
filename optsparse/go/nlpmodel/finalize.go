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
	"github.com/optsparse/optsparse/optsparse/go/consistency"
	"github.com/optsparse/optsparse/optsparse/go/internal/ordered"
	"github.com/optsparse/optsparse/optsparse/go/sparse"
	"gonum.org/v1/gonum/mat"
)

// partition is the fixed layout of the nonlinear or the linear constraints.
type partition struct {
	kind Partition
	cons []*Constraint
	// index maps constraint names to the constraints of the partition.
	index map[string]*Constraint
	// base is the global row of the first row of the partition.
	base  int
	rows  int
	scale []float64
	// pattern is the rows×ndv structure of the partition Jacobian.
	pattern *sparse.Pattern
	// slots[con][set][k] is the position in pattern of entry k of the block template.
	slots map[string]map[string][]int
}

// FinalizeVariables merges the variable sets declared on every process, drops empty sets and
// assigns the offsets of the design vector. Further variable declarations are rejected.
// Calling it again has no effect.
func (p *Problem) FinalizeVariables() error {
	if p.varsFinal {
		return nil
	}
	sets, err := consistency.Reconcile[*VarSet](p.comm, p.root, p.sets, varSetCodec{})
	if err != nil {
		return fmt.Errorf("reconciling the variables of %q failed: %w", p.name, err)
	}

	kept := ordered.New[*VarSet]()
	groupSet := make(map[string]string)
	var dup error
	sets.Range(func(name string, s *VarSet) bool {
		if s.groups.Len() == 0 {
			log.V(1).Infof("%s: dropping empty variable set %q", p.name, name)
			return true
		}
		for _, g := range s.Groups() {
			if other, ok := groupSet[g.name]; ok {
				dup = fmt.Errorf("variable group %q declared in sets %q and %q: %w", g.name, other, name, ErrDuplicateName)
				return false
			}
			groupSet[g.name] = name
		}
		kept.Set(name, s)
		return true
	})
	if dup != nil {
		log.Errorf("%s: %v", p.name, dup)
		return dup
	}

	p.setRange = make(map[string]Range, kept.Len())
	p.groupRange = make(map[string]GroupOffset, len(groupSet))
	p.xscale = nil
	start := 0
	kept.Range(func(name string, s *VarSet) bool {
		setStart := start
		s.groups.Range(func(gname string, g *VarGroup) bool {
			p.groupRange[gname] = GroupOffset{Range: Range{start, start + g.Len()}, Scalar: g.scalar}
			for _, v := range g.vars {
				p.xscale = append(p.xscale, v.Scale)
			}
			start += g.Len()
			return true
		})
		p.setRange[name] = Range{setStart, start}
		return true
	})
	p.invXScale = make([]float64, len(p.xscale))
	for i, s := range p.xscale {
		p.invXScale[i] = 1 / s
	}
	p.ndv = start
	p.sets, p.groupSet = kept, groupSet
	p.varsFinal = true
	log.V(1).Infof("%s: %d design variables in %d sets", p.name, p.ndv, kept.Len())
	return nil
}

// FinalizeConstraints merges the constraints declared on every process, assigns their rows
// (nonlinear first) and fixes the sparsity pattern of the Jacobian. It also assembles the
// constant Jacobian of the linear constraints. Calling it again has no effect.
func (p *Problem) FinalizeConstraints() error {
	if !p.varsFinal {
		return fmt.Errorf("FinalizeConstraints before FinalizeVariables: %w", ErrOrdering)
	}
	if p.consFinal {
		return nil
	}
	cons, err := consistency.Reconcile[*Constraint](p.comm, p.root, p.constraints, constraintCodec{})
	if err != nil {
		return fmt.Errorf("reconciling the constraints of %q failed: %w", p.name, err)
	}

	var nonlinear, linear []*Constraint
	var invalid error
	cons.Range(func(name string, c *Constraint) bool {
		if invalid = p.checkConstraint(c); invalid != nil {
			return false
		}
		if c.linear {
			linear = append(linear, c)
		} else {
			nonlinear = append(nonlinear, c)
		}
		return true
	})
	if invalid != nil {
		log.Errorf("%s: %v", p.name, invalid)
		return invalid
	}

	row := 0
	for _, c := range append(append([]*Constraint(nil), nonlinear...), linear...) {
		c.rs, c.re = row, row+c.n
		row = c.re
	}
	p.denseJacobianOK = true
	for _, c := range cons.Values() {
		if len(c.wrt) != p.sets.Len() {
			p.denseJacobianOK = false
		}
	}

	nl, err := p.newPartition(Nonlinear, nonlinear, 0)
	if err != nil {
		return err
	}
	lin, err := p.newPartition(Linear, linear, nl.rows)
	if err != nil {
		return err
	}

	templates := make(BlockJacobian, len(linear))
	for _, c := range linear {
		blocks := make(map[string]mat.Matrix, len(c.wrt))
		for _, set := range c.wrt {
			blocks[set] = c.jac[set]
		}
		templates[c.name] = blocks
	}
	linearA, err := p.gather(lin, templates)
	if err != nil {
		return fmt.Errorf("assembling the linear constraints of %q failed: %w", p.name, err)
	}

	p.constraints = cons
	p.parts = [2]*partition{nl, lin}
	p.nnCon, p.nlCon = nl.rows, lin.rows
	p.linearA = linearA
	if p.linearJac, err = p.scaledJacobian(lin, linearA.Clone()); err != nil {
		return err
	}
	p.consFinal = true
	log.V(1).Infof("%s: %d nonlinear and %d linear constraint rows, dense Jacobian allowed: %v", p.name, p.nnCon, p.nlCon, p.denseJacobianOK)
	return nil
}

// Finalize calls FinalizeVariables and FinalizeConstraints.
func (p *Problem) Finalize() error {
	if err := p.FinalizeVariables(); err != nil {
		return err
	}
	return p.FinalizeConstraints()
}

// checkConstraint validates a merged constraint against the finalized variable sets.
func (p *Problem) checkConstraint(c *Constraint) error {
	wrt, err := p.resolveWrt(c.name, c.wrt)
	if err != nil {
		return err
	}
	c.wrt = wrt
	for _, set := range c.wrt {
		b, ok := c.jac[set]
		if !ok {
			return fmt.Errorf("constraint %q has no block for %q: %w", c.name, set, ErrMissingValue)
		}
		r, cols := b.Dims()
		if w := p.setRange[set].Len(); r != c.n || cols != w {
			return fmt.Errorf("block of constraint %q for %q is %dx%d, want %dx%d: %w", c.name, set, r, cols, c.n, w, ErrShapeMismatch)
		}
	}
	return nil
}

// newPartition lays out the rows of `cons`, starting at global row `base`.
func (p *Problem) newPartition(kind Partition, cons []*Constraint, base int) (*partition, error) {
	part := &partition{
		kind:  kind,
		cons:  cons,
		index: make(map[string]*Constraint, len(cons)),
		base:  base,
		slots: make(map[string]map[string][]int, len(cons)),
	}
	rowPtr := []int{0}
	var colInd []int
	for _, c := range cons {
		part.index[c.name] = c
		slots := make(map[string][]int, len(c.wrt))
		for _, set := range c.wrt {
			slots[set] = make([]int, c.jac[set].NNZ())
		}
		// Sets are sorted by offset, so the columns of every row come out increasing.
		for i := 0; i < c.n; i++ {
			for _, set := range c.wrt {
				t := c.jac[set].Pattern()
				start := p.setRange[set].Start
				for k := t.RowPtr()[i]; k < t.RowPtr()[i+1]; k++ {
					slots[set][k] = len(colInd)
					colInd = append(colInd, start+t.ColInd()[k])
				}
			}
			rowPtr = append(rowPtr, len(colInd))
		}
		part.scale = append(part.scale, c.scale...)
		part.slots[c.name] = slots
	}
	part.rows = len(rowPtr) - 1
	pat, err := sparse.NewPattern(part.rows, p.ndv, rowPtr, colInd)
	if err != nil {
		return nil, fmt.Errorf("laying out the %v constraints of %q failed: %w", kind, p.name, err)
	}
	part.pattern = pat
	return part, nil
}

// LinearJacobian returns a copy of the scaled Jacobian of the linear constraints.
func (p *Problem) LinearJacobian() (*sparse.CSR, error) {
	if !p.consFinal {
		return nil, fmt.Errorf("LinearJacobian before FinalizeConstraints: %w", ErrOrdering)
	}
	return p.linearJac.Clone(), nil
}

func (p *Problem) partition(part Partition) (*partition, error) {
	if !p.consFinal {
		return nil, fmt.Errorf("%v constraints used before FinalizeConstraints: %w", part, ErrOrdering)
	}
	if part != Nonlinear && part != Linear {
		return nil, fmt.Errorf("partition %v: %w", part, ErrInvalidArgument)
	}
	return p.parts[part], nil
}
