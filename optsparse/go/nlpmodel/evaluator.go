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
	"slices"

	"github.com/optsparse/optsparse/optsparse/go/sparse"
)

// Funcs holds the function values computed by the user at a design point.
type Funcs struct {
	// Objectives maps objective names to their values.
	Objectives map[string]float64
	// Constraints maps the names of the nonlinear constraints to their values.
	Constraints map[string][]float64
}

// Sens holds the derivatives computed by the user at a design point.
type Sens struct {
	// Gradient is the gradient of the active objective.
	Gradient GradientInput
	// Jacobian is the Jacobian of the nonlinear constraints.
	Jacobian JacobianInput
}

// ObjFunc computes the functions at the unscaled design point `x`.
type ObjFunc func(x DesignVars) (Funcs, error)

// SensFunc computes the derivatives at the unscaled design point `x`, where the functions
// `f` were computed.
type SensFunc func(x DesignVars, f Funcs) (Sens, error)

// Point is the problem evaluated at a scaled design vector, as seen by a solver.
type Point struct {
	// F is the scaled active objective.
	F float64
	// C holds the scaled constraint values, nonlinear rows then linear rows.
	C []float64
	// G is the scaled objective gradient. It is nil without a SensFunc.
	G []float64
	// J is the scaled Jacobian, nonlinear rows then linear rows. It is nil without a SensFunc.
	J *sparse.CSR
}

// Evaluator evaluates a finalized problem for a solver through user callbacks. The linear
// constraints are evaluated from their constant Jacobian.
type Evaluator struct {
	p         *Problem
	objective string
	obj       ObjFunc
	sens      SensFunc

	lastX []float64
	last  *Point
}

// NewEvaluator returns an Evaluator of `p` minimizing objective `objective`. `sens` may be nil.
func NewEvaluator(p *Problem, objective string, obj ObjFunc, sens SensFunc) (*Evaluator, error) {
	if !p.consFinal {
		return nil, fmt.Errorf("NewEvaluator before FinalizeConstraints: %w", ErrOrdering)
	}
	if _, err := p.Objective(objective); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("nil ObjFunc: %w", ErrInvalidArgument)
	}
	return &Evaluator{p: p, objective: objective, obj: obj, sens: sens}, nil
}

// Evaluate returns the problem at the scaled design vector `xs`. The result for the last
// vector is cached, and the returned Point must not be modified.
func (e *Evaluator) Evaluate(xs []float64) (*Point, error) {
	if e.last != nil && slices.Equal(xs, e.lastX) {
		return e.last, nil
	}
	p := e.p
	x, err := p.UnscaleX(xs)
	if err != nil {
		return nil, err
	}
	dv, err := p.Expand(x)
	if err != nil {
		return nil, err
	}
	funcs, err := e.obj(dv)
	if err != nil {
		return nil, fmt.Errorf("evaluating the functions failed: %w", err)
	}

	pt := &Point{}
	f, ok := funcs.Objectives[e.objective]
	if !ok {
		return nil, fmt.Errorf("no value for objective %q: %w", e.objective, ErrMissingValue)
	}
	if pt.F, err = p.ProcessObjective(e.objective, f); err != nil {
		return nil, err
	}
	if pt.C, err = e.constraints(xs, funcs); err != nil {
		return nil, err
	}

	if e.sens != nil {
		s, err := e.sens(dv, funcs)
		if err != nil {
			return nil, fmt.Errorf("evaluating the derivatives failed: %w", err)
		}
		if pt.G, err = p.ProcessObjectiveGradient(e.objective, s.Gradient); err != nil {
			return nil, err
		}
		if pt.J, err = e.jacobian(s.Jacobian); err != nil {
			return nil, err
		}
	}
	e.lastX, e.last = append([]float64(nil), xs...), pt
	return pt, nil
}

func (e *Evaluator) constraints(xs []float64, funcs Funcs) ([]float64, error) {
	p := e.p
	if p.NumCons() == 0 {
		return p.ProcessConstraints(Nonlinear, nil)
	}
	var c []float64
	if p.nnCon > 0 {
		nl, err := p.ProcessConstraints(Nonlinear, funcs.Constraints)
		if err != nil {
			return nil, err
		}
		c = append(c, nl...)
	}
	if p.nlCon > 0 {
		// The linear Jacobian is scaled on both sides, so it maps scaled x to scaled values.
		lin, err := p.linearJac.MulVec(xs)
		if err != nil {
			return nil, err
		}
		c = append(c, lin...)
	}
	return c, nil
}

func (e *Evaluator) jacobian(in JacobianInput) (*sparse.CSR, error) {
	p := e.p
	if p.NumCons() == 0 {
		return p.emptyJacobian(), nil
	}
	var parts []*sparse.CSR
	if p.nnCon > 0 {
		nl, err := p.ProcessConstraintJacobian(Nonlinear, in)
		if err != nil {
			return nil, err
		}
		parts = append(parts, nl)
	}
	if p.nlCon > 0 {
		parts = append(parts, p.linearJac.Clone())
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return sparse.VStack(parts...)
}
