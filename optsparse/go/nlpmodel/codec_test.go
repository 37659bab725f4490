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
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestExpandCollapse(t *testing.T) {
	p := newScaledProblem(t)
	x := []float64{1, 2, 3}

	got, err := p.Expand(x)
	if err != nil {
		t.Fatalf("Expand() returned with unexpected error %v", err)
	}
	want := DesignVars{
		Scalars: map[string]float64{"y": 3},
		Arrays:  map[string][]float64{"x": {1, 2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Expand() returned with unexpected diff (-want+got):\n%s", diff)
	}

	back, err := p.Collapse(got)
	if err != nil {
		t.Fatalf("Collapse() returned with unexpected error %v", err)
	}
	if diff := cmp.Diff(x, back); diff != "" {
		t.Errorf("Collapse(Expand()) returned with unexpected diff (-want+got):\n%s", diff)
	}

	got.Arrays["x"][0] = 7
	if x[0] != 1 {
		t.Errorf("Expand() returned an array aliasing its input")
	}
}

func TestExpandCollapse_Errors(t *testing.T) {
	p := newScaledProblem(t)
	if _, err := p.Expand([]float64{1, 2}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expand() returned error %v, want %v", err, ErrShapeMismatch)
	}

	testCases := []struct {
		name    string
		in      DesignVars
		wantErr error
	}{
		{
			name:    "MissingScalar",
			in:      DesignVars{Arrays: map[string][]float64{"x": {1, 2}}},
			wantErr: ErrMissingValue,
		},
		{
			name:    "MissingArray",
			in:      DesignVars{Scalars: map[string]float64{"y": 1}},
			wantErr: ErrMissingValue,
		},
		{
			name: "ArrayLength",
			in: DesignVars{
				Scalars: map[string]float64{"y": 1},
				Arrays:  map[string][]float64{"x": {1}},
			},
			wantErr: ErrShapeMismatch,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if _, err := p.Collapse(test.in); !errors.Is(err, test.wantErr) {
				t.Errorf("Collapse() returned error %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestSetDesignVars(t *testing.T) {
	testCases := []struct {
		name    string
		in      DesignVars
		want    DesignVars
		wantErr error
	}{
		{
			name: "Update",
			in: DesignVars{
				Scalars: map[string]float64{"y": 2},
				Arrays:  map[string][]float64{"x": {0, 1}},
			},
			want: DesignVars{
				Scalars: map[string]float64{"y": 2},
				Arrays:  map[string][]float64{"x": {0, 1}},
			},
		},
		{
			name: "PartialAndUnknown",
			in: DesignVars{
				Scalars: map[string]float64{"unknown": 2},
				Arrays:  map[string][]float64{"x": {0, 1}},
			},
			want: DesignVars{
				Scalars: map[string]float64{"y": 4},
				Arrays:  map[string][]float64{"x": {0, 1}},
			},
		},
		{
			name: "LengthLeavesValuesUnchanged",
			in: DesignVars{
				Scalars: map[string]float64{"y": 2},
				Arrays:  map[string][]float64{"x": {0, 1, 2}},
			},
			want: DesignVars{
				Scalars: map[string]float64{"y": 4},
				Arrays:  map[string][]float64{"x": {1.5, 1.5}},
			},
			wantErr: ErrShapeMismatch,
		},
		{
			name:    "ScalarForArray",
			in:      DesignVars{Scalars: map[string]float64{"x": 2}},
			wantErr: ErrShapeMismatch,
		},
		{
			name:    "ArrayForScalar",
			in:      DesignVars{Arrays: map[string][]float64{"y": {2}}},
			wantErr: ErrShapeMismatch,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			p := newScaledProblem(t)

			err := p.SetDesignVars(test.in)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("SetDesignVars() returned error %v, want %v", err, test.wantErr)
			}
			if test.want.Scalars == nil {
				return
			}
			if diff := cmp.Diff(test.want, p.DesignVars(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("DesignVars() returned with unexpected diff (-want+got):\n%s", diff)
			}
		})
	}
}
