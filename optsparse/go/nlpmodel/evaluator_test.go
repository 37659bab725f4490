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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"
)

var errCallback = errors.New("callback failed")

// newEvaluatorProblem returns a finalized problem with x (2 variables, scale 2), objective
// "obj", the nonlinear constraint "con" and the linear constraint "lin" = x0 + x1.
func newEvaluatorProblem(t *testing.T) *Problem {
	t.Helper()
	p := NewProblem("eval")
	if _, err := p.AddVarGroup("x", 2, VarParams{Scale: []float64{2}}); err != nil {
		t.Fatalf("AddVarGroup() returned with unexpected error %v", err)
	}
	if _, err := p.AddObj("obj"); err != nil {
		t.Fatalf("AddObj() returned with unexpected error %v", err)
	}
	if err := p.FinalizeVariables(); err != nil {
		t.Fatalf("FinalizeVariables() returned with unexpected error %v", err)
	}
	if _, err := p.AddCon("lin", ConParams{Upper: []float64{10}, Linear: true, Jac: map[string]mat.Matrix{"x": mat.NewDense(1, 2, []float64{1, 1})}}); err != nil {
		t.Fatalf("AddCon(lin) returned with unexpected error %v", err)
	}
	if _, err := p.AddCon("con", ConParams{Upper: []float64{0}}); err != nil {
		t.Fatalf("AddCon(con) returned with unexpected error %v", err)
	}
	if err := p.FinalizeConstraints(); err != nil {
		t.Fatalf("FinalizeConstraints() returned with unexpected error %v", err)
	}
	return p
}

// product computes f = x0·x1 and con = x0 - x1.
func product(calls *int) ObjFunc {
	return func(x DesignVars) (Funcs, error) {
		*calls++
		v := x.Arrays["x"]
		return Funcs{
			Objectives:  map[string]float64{"obj": v[0] * v[1]},
			Constraints: map[string][]float64{"con": {v[0] - v[1]}},
		}, nil
	}
}

func productSens(x DesignVars, _ Funcs) (Sens, error) {
	v := x.Arrays["x"]
	return Sens{
		Gradient: DenseGradient{v[1], v[0]},
		Jacobian: BlockJacobian{"con": {"x": mat.NewDense(1, 2, []float64{1, -1})}},
	}, nil
}

func TestEvaluator_Evaluate(t *testing.T) {
	p := newEvaluatorProblem(t)
	calls := 0
	e, err := NewEvaluator(p, "obj", product(&calls), productSens)
	if err != nil {
		t.Fatalf("NewEvaluator() returned with unexpected error %v", err)
	}

	got, err := e.Evaluate([]float64{2, 4})
	if err != nil {
		t.Fatalf("Evaluate() returned with unexpected error %v", err)
	}
	if got.F != 2 {
		t.Errorf("F = %v, want 2", got.F)
	}
	if diff := cmp.Diff([]float64{-1, 3}, got.C); diff != "" {
		t.Errorf("C returned with unexpected diff (-want+got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 0.5}, got.G); diff != "" {
		t.Errorf("G returned with unexpected diff (-want+got):\n%s", diff)
	}
	want := mat.NewDense(2, 2, []float64{0.5, -0.5, 0.5, 0.5})
	if !mat.Equal(want, got.J.ToDense()) {
		t.Errorf("J = %v, want %v", mat.Formatted(got.J.ToDense()), mat.Formatted(want))
	}

	again, err := e.Evaluate([]float64{2, 4})
	if err != nil {
		t.Fatalf("Evaluate() returned with unexpected error %v", err)
	}
	if again != got || calls != 1 {
		t.Errorf("Evaluate() at the same point called the functions %d times, want 1", calls)
	}
	if _, err := e.Evaluate([]float64{2, 2}); err != nil {
		t.Fatalf("Evaluate() returned with unexpected error %v", err)
	}
	if calls != 2 {
		t.Errorf("Evaluate() at a new point called the functions %d times, want 2", calls)
	}
}

func TestEvaluator_WithoutSens(t *testing.T) {
	p := newEvaluatorProblem(t)
	calls := 0
	e, err := NewEvaluator(p, "obj", product(&calls), nil)
	if err != nil {
		t.Fatalf("NewEvaluator() returned with unexpected error %v", err)
	}

	got, err := e.Evaluate([]float64{2, 4})
	if err != nil {
		t.Fatalf("Evaluate() returned with unexpected error %v", err)
	}
	if got.G != nil || got.J != nil {
		t.Errorf("Evaluate() without derivatives returned G = %v, J = %v, want nil", got.G, got.J)
	}
}

func TestEvaluator_Errors(t *testing.T) {
	failing := func(DesignVars) (Funcs, error) { return Funcs{}, errCallback }
	noObjective := func(DesignVars) (Funcs, error) {
		return Funcs{Constraints: map[string][]float64{"con": {0}}}, nil
	}
	failingSens := func(DesignVars, Funcs) (Sens, error) { return Sens{}, errCallback }
	calls := 0

	testCases := []struct {
		name    string
		obj     ObjFunc
		sens    SensFunc
		x       []float64
		wantErr error
	}{
		{
			name:    "FunctionsFail",
			obj:     failing,
			x:       []float64{0, 0},
			wantErr: errCallback,
		},
		{
			name:    "DerivativesFail",
			obj:     product(&calls),
			sens:    failingSens,
			x:       []float64{0, 0},
			wantErr: errCallback,
		},
		{
			name:    "MissingObjective",
			obj:     noObjective,
			x:       []float64{0, 0},
			wantErr: ErrMissingValue,
		},
		{
			name:    "Length",
			obj:     product(&calls),
			x:       []float64{0},
			wantErr: ErrShapeMismatch,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			p := newEvaluatorProblem(t)
			e, err := NewEvaluator(p, "obj", test.obj, test.sens)
			if err != nil {
				t.Fatalf("NewEvaluator() returned with unexpected error %v", err)
			}

			if _, err := e.Evaluate(test.x); !errors.Is(err, test.wantErr) {
				t.Errorf("Evaluate() returned error %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestNewEvaluator_Errors(t *testing.T) {
	calls := 0
	p := newTwoSetProblem(t)
	if _, err := NewEvaluator(p, "obj", product(&calls), nil); !errors.Is(err, ErrOrdering) {
		t.Errorf("NewEvaluator() before FinalizeConstraints returned error %v, want %v", err, ErrOrdering)
	}
	if err := p.FinalizeConstraints(); err != nil {
		t.Fatalf("FinalizeConstraints() returned with unexpected error %v", err)
	}
	if _, err := NewEvaluator(p, "none", product(&calls), nil); !errors.Is(err, ErrMissingValue) {
		t.Errorf("NewEvaluator(none) returned error %v, want %v", err, ErrMissingValue)
	}
	if _, err := NewEvaluator(p, "obj", nil, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewEvaluator(nil) returned error %v, want %v", err, ErrInvalidArgument)
	}
}
