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

package nlpmodel_test

import (
	"fmt"

	"github.com/optsparse/optsparse/optsparse/go/nlpmodel"
	"gonum.org/v1/gonum/mat"
)

func Example() {
	p := nlpmodel.NewProblem("rosenbrock")
	if _, err := p.AddVarGroup("x", 2, nlpmodel.VarParams{Lower: []float64{-5.12}, Upper: []float64{5.12}}); err != nil {
		fmt.Printf("AddVarGroup() returned with unexpected error %v\n", err)
		return
	}
	if _, err := p.AddObj("obj"); err != nil {
		fmt.Printf("AddObj() returned with unexpected error %v\n", err)
		return
	}
	if err := p.FinalizeVariables(); err != nil {
		fmt.Printf("FinalizeVariables() returned with unexpected error %v\n", err)
		return
	}
	if _, err := p.AddCon("con", nlpmodel.ConParams{Upper: []float64{0}}); err != nil {
		fmt.Printf("AddCon() returned with unexpected error %v\n", err)
		return
	}
	if err := p.FinalizeConstraints(); err != nil {
		fmt.Printf("FinalizeConstraints() returned with unexpected error %v\n", err)
		return
	}

	jac, err := p.ProcessConstraintJacobian(nlpmodel.Nonlinear, nlpmodel.BlockJacobian{
		"con": {"x": mat.NewDense(1, 2, []float64{-3, -1})},
	})
	if err != nil {
		fmt.Printf("ProcessConstraintJacobian() returned with unexpected error %v\n", err)
		return
	}
	fmt.Printf("%d variables, %d constraints\n", p.NumVars(), p.NumCons())
	fmt.Println(jac.Pattern(), jac.Values())
	// Output:
	// 2 variables, 1 constraints
	// 1x2 (2 nonzeros) [-3 -1]
}

func ExampleOrdering() {
	p := nlpmodel.NewProblem("ordering")
	if _, err := p.AddVar("x", nlpmodel.VarParams{}); err != nil {
		fmt.Printf("AddVar() returned with unexpected error %v\n", err)
		return
	}
	if err := p.FinalizeVariables(); err != nil {
		fmt.Printf("FinalizeVariables() returned with unexpected error %v\n", err)
		return
	}
	if _, err := p.AddCon("eq", nlpmodel.ConParams{Lower: []float64{1}, Upper: []float64{1}}); err != nil {
		fmt.Printf("AddCon() returned with unexpected error %v\n", err)
		return
	}
	if err := p.FinalizeConstraints(); err != nil {
		fmt.Printf("FinalizeConstraints() returned with unexpected error %v\n", err)
		return
	}

	o, err := p.Ordering([]nlpmodel.ConType{nlpmodel.NonlinearEquality}, true, true)
	if err != nil {
		fmt.Printf("Ordering() returned with unexpected error %v\n", err)
		return
	}
	fmt.Println(o.Indices, o.Factor, o.Lower, o.Upper)
	// Output:
	// [0 0] [1 -1] [1 1] [1 1]
}
