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

// The rosenbrock command formulates the constrained Rosenbrock problem and evaluates it the
// way a gradient-based solver would at the starting point.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/optsparse/optsparse/optsparse/go/nlpmodel"
	"gonum.org/v1/gonum/mat"
)

var (
	scale = flag.Float64("scale", 1, "scale of the design variables")
	x0    = flag.Float64("x0", -1, "starting value of every design variable")
)

// objfunc computes f = (1-x0)^2 + 100(x1-x0^2)^2 and con = x0 + x1 - x0·x1.
func objfunc(dv nlpmodel.DesignVars) (nlpmodel.Funcs, error) {
	x := dv.Arrays["x"]
	a, b := 1-x[0], x[1]-x[0]*x[0]
	return nlpmodel.Funcs{
		Objectives:  map[string]float64{"obj": a*a + 100*b*b},
		Constraints: map[string][]float64{"con": {x[0] + x[1] - x[0]*x[1]}},
	}, nil
}

func sensfunc(dv nlpmodel.DesignVars, _ nlpmodel.Funcs) (nlpmodel.Sens, error) {
	x := dv.Arrays["x"]
	b := x[1] - x[0]*x[0]
	return nlpmodel.Sens{
		Gradient: nlpmodel.SetGradient{"x": {-2*(1-x[0]) - 400*x[0]*b, 200 * b}},
		Jacobian: nlpmodel.BlockJacobian{
			"con": {"x": mat.NewDense(1, 2, []float64{1 - x[1], 1 - x[0]})},
		},
	}, nil
}

func rosenbrock() error {
	p := nlpmodel.NewProblem("rosenbrock")
	if _, err := p.AddVarGroup("x", 2, nlpmodel.VarParams{
		Value: []float64{*x0},
		Lower: []float64{-5.12},
		Upper: []float64{5.12},
		Scale: []float64{*scale},
	}); err != nil {
		return fmt.Errorf("failed to add the design variables: %w", err)
	}
	if _, err := p.AddObj("obj"); err != nil {
		return fmt.Errorf("failed to add the objective: %w", err)
	}
	if err := p.FinalizeVariables(); err != nil {
		return err
	}
	if _, err := p.AddCon("con", nlpmodel.ConParams{Upper: []float64{0}}); err != nil {
		return fmt.Errorf("failed to add the constraint: %w", err)
	}
	if _, err := p.AddCon("sum", nlpmodel.ConParams{
		Lower:  []float64{-1},
		Linear: true,
		Jac:    map[string]mat.Matrix{"x": mat.NewDense(1, 2, []float64{1, 1})},
	}); err != nil {
		return fmt.Errorf("failed to add the linear constraint: %w", err)
	}
	if err := p.FinalizeConstraints(); err != nil {
		return err
	}

	fmt.Println(p)
	if err := p.WriteSparsity(os.Stdout); err != nil {
		return err
	}

	e, err := nlpmodel.NewEvaluator(p, "obj", objfunc, sensfunc)
	if err != nil {
		return err
	}
	design, err := p.ScaledDesign()
	if err != nil {
		return err
	}
	pt, err := e.Evaluate(design.X)
	if err != nil {
		return fmt.Errorf("failed to evaluate the starting point: %w", err)
	}
	fmt.Printf("f = %g\nc = %v\ng = %v\n", pt.F, pt.C, pt.G)
	fmt.Printf("J =\n%v\n", mat.Formatted(pt.J.ToDense()))

	// A solver accepting only g(x) <= 0 rows.
	o, err := p.Ordering([]nlpmodel.ConType{
		nlpmodel.NonlinearEquality, nlpmodel.NonlinearInequality,
		nlpmodel.LinearEquality, nlpmodel.LinearInequality,
	}, true, true)
	if err != nil {
		return err
	}
	rows, err := o.Apply(pt.C)
	if err != nil {
		return err
	}
	for k, v := range rows {
		bound := o.Upper[k]
		if o.Factor[k] < 0 {
			bound = o.Lower[k]
		}
		fmt.Printf("row %d: %g <= 0\n", k, v-o.Factor[k]*bound)
	}
	return nil
}

func main() {
	flag.Parse()
	if err := rosenbrock(); err != nil {
		glog.Exitf("rosenbrock returned with error: %v", err)
	}
}
