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
	"gonum.org/v1/gonum/mat"
)

// GradientInput is an objective gradient: a DenseGradient or a SetGradient.
type GradientInput interface {
	isGradientInput()
}

// DenseGradient is the gradient with respect to the whole design vector.
type DenseGradient []float64

// SetGradient maps variable set names to the gradient with respect to the set. Missing sets
// have a zero gradient.
type SetGradient map[string][]float64

func (DenseGradient) isGradientInput() {}
func (SetGradient) isGradientInput()   {}

// Scaling holds the diagonal scaling operators of a finalized problem. An operator is nil
// when its dimension is 0.
type Scaling struct {
	// InvX divides by the variable scales; it maps a solver gradient column to the user's.
	InvX *mat.DiagDense
	// Nonlinear and Linear multiply by the constraint scales of each partition.
	Nonlinear *mat.DiagDense
	Linear    *mat.DiagDense
}

func diag(v []float64) *mat.DiagDense {
	if len(v) == 0 {
		return nil
	}
	return mat.NewDiagDense(len(v), append([]float64(nil), v...))
}

// XScale returns a copy of the variable scales in design vector order.
func (p *Problem) XScale() ([]float64, error) {
	if !p.varsFinal {
		return nil, fmt.Errorf("XScale before FinalizeVariables: %w", ErrOrdering)
	}
	return append([]float64(nil), p.xscale...), nil
}

// ConstraintScale returns a copy of the row scales of partition `part`.
func (p *Problem) ConstraintScale(part Partition) ([]float64, error) {
	pt, err := p.partition(part)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), pt.scale...), nil
}

// ScaleOperators returns the scaling operators of the problem.
func (p *Problem) ScaleOperators() (*Scaling, error) {
	if !p.consFinal {
		return nil, fmt.Errorf("ScaleOperators before FinalizeConstraints: %w", ErrOrdering)
	}
	return &Scaling{
		InvX:      diag(p.invXScale),
		Nonlinear: diag(p.parts[Nonlinear].scale),
		Linear:    diag(p.parts[Linear].scale),
	}, nil
}

// ProcessObjective returns the value `f` of objective `name` multiplied by its scale.
func (p *Problem) ProcessObjective(name string, f float64) (float64, error) {
	o, err := p.Objective(name)
	if err != nil {
		return 0, err
	}
	return f * o.scale, nil
}

// ProcessObjectiveGradient returns the gradient of objective `name` with respect to the
// scaled design vector: divided by the variable scales, then multiplied by the objective
// scale.
func (p *Problem) ProcessObjectiveGradient(name string, in GradientInput) ([]float64, error) {
	if !p.varsFinal {
		return nil, fmt.Errorf("ProcessObjectiveGradient before FinalizeVariables: %w", ErrOrdering)
	}
	o, err := p.Objective(name)
	if err != nil {
		return nil, err
	}
	g := make([]float64, p.ndv)
	switch in := in.(type) {
	case DenseGradient:
		if len(in) != p.ndv {
			return nil, fmt.Errorf("gradient of %q has length %d, want %d: %w", name, len(in), p.ndv, ErrShapeMismatch)
		}
		copy(g, in)
	case SetGradient:
		for set, v := range in {
			r, ok := p.setRange[set]
			if !ok {
				log.Warningf("%s: ignoring gradient of %q for unknown variable set %q", p.name, name, set)
				continue
			}
			if len(v) != r.Len() {
				return nil, fmt.Errorf("gradient of %q for %q has length %d, want %d: %w", name, set, len(v), r.Len(), ErrShapeMismatch)
			}
			copy(g[r.Start:r.End], v)
		}
	case nil:
		return nil, fmt.Errorf("no gradient for %q: %w", name, ErrMissingValue)
	default:
		return nil, fmt.Errorf("unsupported gradient input %T: %w", in, ErrInvalidArgument)
	}
	for i := range g {
		g[i] *= p.invXScale[i] * o.scale
	}
	return g, nil
}

// Design is a design vector with its bounds.
type Design struct {
	X     []float64
	Lower []float64
	Upper []float64
}

// ScaledDesign returns the current design vector and its bounds multiplied by the variable
// scales. Unbounded sides stay at the Infinity sentinel.
func (p *Problem) ScaledDesign() (*Design, error) {
	if !p.varsFinal {
		return nil, fmt.Errorf("ScaledDesign before FinalizeVariables: %w", ErrOrdering)
	}
	d := &Design{
		X:     make([]float64, 0, p.ndv),
		Lower: make([]float64, 0, p.ndv),
		Upper: make([]float64, 0, p.ndv),
	}
	for _, s := range p.sets.Values() {
		for _, g := range s.Groups() {
			for _, v := range g.vars {
				b := v.Bounds.Scale(v.Scale)
				d.X = append(d.X, v.Value*v.Scale)
				d.Lower = append(d.Lower, b.Lower)
				d.Upper = append(d.Upper, b.Upper)
			}
		}
	}
	return d, nil
}

// UnscaleX divides the solver vector `xs` by the variable scales.
func (p *Problem) UnscaleX(xs []float64) ([]float64, error) {
	if !p.varsFinal {
		return nil, fmt.Errorf("UnscaleX before FinalizeVariables: %w", ErrOrdering)
	}
	if len(xs) != p.ndv {
		return nil, fmt.Errorf("design vector of length %d, want %d: %w", len(xs), p.ndv, ErrShapeMismatch)
	}
	x := make([]float64, p.ndv)
	for i, v := range xs {
		x[i] = v * p.invXScale[i]
	}
	return x, nil
}
