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
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/optsparse/optsparse/optsparse/go/consistency"
	"gonum.org/v1/gonum/mat"
)

func TestFinalizeVariables_Offsets(t *testing.T) {
	p := NewProblem("test")
	if err := p.AddVarSet("empty"); err != nil {
		t.Fatalf("AddVarSet() returned with unexpected error %v", err)
	}
	groups := []struct {
		name string
		n    int
		set  string
	}{
		{"a", 2, "s"},
		{"b", 1, "t"},
		{"c", 3, "s"},
	}
	for _, g := range groups {
		if _, err := p.AddVarGroup(g.name, g.n, VarParams{VarSet: g.set, Scale: []float64{2}}); err != nil {
			t.Fatalf("AddVarGroup(%q) returned with unexpected error %v", g.name, err)
		}
	}
	if err := p.FinalizeVariables(); err != nil {
		t.Fatalf("FinalizeVariables() returned with unexpected error %v", err)
	}

	if got := p.NumVars(); got != 6 {
		t.Errorf("NumVars() = %d, want 6", got)
	}
	wantGroups := map[string]GroupOffset{
		"a": {Range: Range{0, 2}},
		"c": {Range: Range{2, 5}},
		"b": {Range: Range{5, 6}},
	}
	for name, want := range wantGroups {
		got, err := p.GroupRange(name)
		if err != nil {
			t.Fatalf("GroupRange(%q) returned with unexpected error %v", name, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("GroupRange(%q) returned with unexpected diff (-want+got):\n%s", name, diff)
		}
	}
	wantSets := map[string]Range{"s": {0, 5}, "t": {5, 6}}
	for name, want := range wantSets {
		got, err := p.SetRange(name)
		if err != nil {
			t.Fatalf("SetRange(%q) returned with unexpected error %v", name, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("SetRange(%q) returned with unexpected diff (-want+got):\n%s", name, diff)
		}
	}
	if _, err := p.SetRange("empty"); !errors.Is(err, ErrMissingValue) {
		t.Errorf("SetRange(empty) returned error %v, want %v", err, ErrMissingValue)
	}
	xs, err := p.XScale()
	if err != nil {
		t.Fatalf("XScale() returned with unexpected error %v", err)
	}
	if diff := cmp.Diff([]float64{2, 2, 2, 2, 2, 2}, xs); diff != "" {
		t.Errorf("XScale() returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func TestFinalizeConstraints_NonlinearRowsFirst(t *testing.T) {
	p := newTwoSetProblem(t)
	if _, err := p.AddConGroup("lin", 2, ConParams{
		Upper:  []float64{1},
		Linear: true,
		Jac:    map[string]mat.Matrix{"y": mat.NewDense(2, 1, []float64{1, 2})},
	}); err != nil {
		t.Fatalf("AddConGroup(lin) returned with unexpected error %v", err)
	}
	if _, err := p.AddCon("nl", ConParams{Upper: []float64{0}}); err != nil {
		t.Fatalf("AddCon(nl) returned with unexpected error %v", err)
	}
	if err := p.FinalizeConstraints(); err != nil {
		t.Fatalf("FinalizeConstraints() returned with unexpected error %v", err)
	}

	testCases := []struct {
		con       string
		wantStart int
		wantEnd   int
	}{
		{con: "nl", wantStart: 0, wantEnd: 1},
		{con: "lin", wantStart: 1, wantEnd: 3},
	}
	for _, test := range testCases {
		c, err := p.Constraint(test.con)
		if err != nil {
			t.Fatalf("Constraint(%q) returned with unexpected error %v", test.con, err)
		}
		if start, end := c.Rows(); start != test.wantStart || end != test.wantEnd {
			t.Errorf("Rows() of %q = (%d, %d), want (%d, %d)", test.con, start, end, test.wantStart, test.wantEnd)
		}
	}
	if got, want := p.NumNonlinearCons(), 1; got != want {
		t.Errorf("NumNonlinearCons() = %d, want %d", got, want)
	}
	if got, want := p.NumLinearCons(), 2; got != want {
		t.Errorf("NumLinearCons() = %d, want %d", got, want)
	}
	if got, want := p.NumCons(), 3; got != want {
		t.Errorf("NumCons() = %d, want %d", got, want)
	}
}

func TestFinalizeConstraints_DenseJacobianOK(t *testing.T) {
	testCases := []struct {
		name string
		wrt  []string
		want bool
	}{
		{name: "AllSets", wrt: nil, want: true},
		{name: "ExplicitAllSets", wrt: []string{"y", "x"}, want: true},
		{name: "Subset", wrt: []string{"x"}, want: false},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			p := newTwoSetProblem(t)
			if _, err := p.AddCon("con", ConParams{Wrt: test.wrt}); err != nil {
				t.Fatalf("AddCon() returned with unexpected error %v", err)
			}
			if got := p.DenseJacobianOK(); got {
				t.Errorf("DenseJacobianOK() before FinalizeConstraints = true, want false")
			}
			if err := p.FinalizeConstraints(); err != nil {
				t.Fatalf("FinalizeConstraints() returned with unexpected error %v", err)
			}

			if got := p.DenseJacobianOK(); got != test.want {
				t.Errorf("DenseJacobianOK() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestFinalize_Distributed(t *testing.T) {
	const ranks = 2
	var got [ranks][]string
	err := consistency.Run(ranks, func(comm consistency.Communicator) error {
		p := NewProblem("dist", WithCommunicator(comm))
		if _, err := p.AddVarGroup("x", 2, VarParams{Lower: []float64{-1}, Upper: []float64{1}}); err != nil {
			return err
		}
		if err := p.FinalizeVariables(); err != nil {
			return err
		}
		name := fmt.Sprintf("con%c", 'A'+comm.Rank())
		if _, err := p.AddCon(name, ConParams{Upper: []float64{float64(comm.Rank())}}); err != nil {
			return err
		}
		if err := p.FinalizeConstraints(); err != nil {
			return err
		}
		for _, c := range p.Constraints() {
			start, _ := c.Rows()
			got[comm.Rank()] = append(got[comm.Rank()], fmt.Sprintf("%s@%d%v", c.Name(), start, c.Bounds(0)))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Finalize() returned with unexpected error %v", err)
	}

	want := []string{"conA@0[-inf,0]", "conB@1[-inf,1]"}
	for rank, g := range got {
		if diff := cmp.Diff(want, g); diff != "" {
			t.Errorf("Constraints() on rank %d returned with unexpected diff (-want+got):\n%s", rank, diff)
		}
	}
}

func TestFinalizeVariables_DistributedDivergence(t *testing.T) {
	const ranks = 2
	var errs [ranks]error
	err := consistency.Run(ranks, func(comm consistency.Communicator) error {
		p := NewProblem("dist", WithCommunicator(comm))
		if _, err := p.AddVarGroup("x", 2, VarParams{Upper: []float64{float64(comm.Rank())}}); err != nil {
			return err
		}
		errs[comm.Rank()] = p.FinalizeVariables()
		return nil
	})
	if err != nil {
		t.Fatalf("Run() returned with unexpected error %v", err)
	}

	for rank, err := range errs {
		if !errors.Is(err, consistency.ErrDivergentDeclaration) {
			t.Errorf("FinalizeVariables() on rank %d returned error %v, want %v", rank, err, consistency.ErrDivergentDeclaration)
		}
	}
}

func TestFinalizeVariables_DistributedDisjointSets(t *testing.T) {
	const ranks = 2
	var got [ranks]map[string]Range
	err := consistency.Run(ranks, func(comm consistency.Communicator) error {
		p := NewProblem("dist", WithCommunicator(comm), WithCoordinator(1))
		set := fmt.Sprintf("s%d", comm.Rank())
		if _, err := p.AddVarGroup(set, comm.Rank()+1, VarParams{}); err != nil {
			return err
		}
		if err := p.FinalizeVariables(); err != nil {
			return err
		}
		got[comm.Rank()] = p.setRange
		return nil
	})
	if err != nil {
		t.Fatalf("FinalizeVariables() returned with unexpected error %v", err)
	}

	// The coordinator's sets come first.
	want := map[string]Range{"s1": {0, 2}, "s0": {2, 3}}
	for rank, g := range got {
		if diff := cmp.Diff(want, g); diff != "" {
			t.Errorf("set ranges on rank %d returned with unexpected diff (-want+got):\n%s", rank, diff)
		}
	}
}
