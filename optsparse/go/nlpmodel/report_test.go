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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"
)

func newReportProblem(t *testing.T) *Problem {
	t.Helper()
	p := newTwoSetProblem(t)
	if _, err := p.AddConGroup("lin", 2, ConParams{
		Upper:  []float64{4},
		Linear: true,
		Jac:    map[string]mat.Matrix{"y": mat.NewDense(2, 1, []float64{1, 2})},
	}); err != nil {
		t.Fatalf("AddConGroup(lin) returned with unexpected error %v", err)
	}
	if _, err := p.AddCon("con", ConParams{Lower: []float64{1}, Upper: []float64{1}}); err != nil {
		t.Fatalf("AddCon(con) returned with unexpected error %v", err)
	}
	if err := p.FinalizeConstraints(); err != nil {
		t.Fatalf("FinalizeConstraints() returned with unexpected error %v", err)
	}
	return p
}

func TestWriteSparsity(t *testing.T) {
	p := newReportProblem(t)

	var b strings.Builder
	if err := p.WriteSparsity(&b); err != nil {
		t.Fatalf("WriteSparsity() returned with unexpected error %v", err)
	}

	const title = "Sparsity structure of constraint Jacobian"
	border := "+" + strings.Repeat("-", 78) + "+\n"
	want := border +
		"|" + strings.Repeat(" ", 18) + title + strings.Repeat(" ", 19) + "|\n" +
		border + `          x (2)   y (1)
        +-------+-------+
con (1) |   X   |   X   |
        +=======+=======+
lin (2) |       |   X   |
        +-------+-------+
`
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("WriteSparsity() returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func TestWriteSparsity_BeforeFinalize(t *testing.T) {
	p := NewProblem("test")
	var b strings.Builder
	if err := p.WriteSparsity(&b); !errors.Is(err, ErrOrdering) {
		t.Errorf("WriteSparsity() returned error %v, want %v", err, ErrOrdering)
	}
}

func TestProblem_String(t *testing.T) {
	p := newReportProblem(t)
	got := p.String()

	for _, want := range []string{
		"Optimization Problem -- test\n" + strings.Repeat("=", 80),
		fmt.Sprintf("%-20s %14g", "obj", 1.0),
		fmt.Sprintf("%-20s %-4s %14g %14s %14s", "x_1", "c", 0.0, "-5.12", "5.12"),
		fmt.Sprintf("%-20s %-4s %14g %14s %14s", "y_0", "c", 1.0, "0", "inf"),
		fmt.Sprintf("%-20s %-4s %14s %14s", "con_0", "e", "1", "1"),
		fmt.Sprintf("%-20s %-4s %14s %14s", "lin_1", "il", "-inf", "4"),
	} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, want it to contain %q", got, want)
		}
	}
}
