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
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/optsparse/optsparse/optsparse/go/consistency"
	"github.com/optsparse/optsparse/optsparse/go/sparse"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestVarSetCodec(t *testing.T) {
	p := NewProblem("test")
	if _, err := p.AddVarGroup("a", 2, VarParams{VarSet: "s", Value: []float64{1, 2}, Lower: []float64{0}, Scale: []float64{3}}); err != nil {
		t.Fatalf("AddVarGroup(a) returned with unexpected error %v", err)
	}
	if _, err := p.AddVar("b", VarParams{VarSet: "s", Type: Discrete, Value: []float64{1}, Choices: []float64{0.5, 1.5}}); err != nil {
		t.Fatalf("AddVar(b) returned with unexpected error %v", err)
	}
	set := p.VarSets()[0]

	codec := varSetCodec{}
	enc, err := codec.Encode(set)
	if err != nil {
		t.Fatalf("Encode() returned with unexpected error %v", err)
	}
	dec, err := codec.Decode(enc)
	if err != nil {
		t.Fatalf("Decode() returned with unexpected error %v", err)
	}

	if dec.Name() != "s" {
		t.Errorf("Name() = %q, want %q", dec.Name(), "s")
	}
	for i, g := range set.Groups() {
		got := dec.Groups()[i]
		if got.Name() != g.Name() || got.Scalar() != g.Scalar() {
			t.Errorf("group %d = (%q, %v), want (%q, %v)", i, got.Name(), got.Scalar(), g.Name(), g.Scalar())
		}
		if diff := cmp.Diff(g.Variables(), got.Variables()); diff != "" {
			t.Errorf("Variables() of %q returned with unexpected diff (-want+got):\n%s", g.Name(), diff)
		}
	}
	again, err := codec.Encode(dec)
	if err != nil {
		t.Fatalf("Encode() returned with unexpected error %v", err)
	}
	if diff := cmp.Diff(enc, again, protocmp.Transform()); diff != "" {
		t.Errorf("Encode(Decode()) returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func sameBlock(a, b *sparse.CSR) bool {
	return a.Pattern().Equal(b.Pattern()) && slices.Equal(a.Values(), b.Values())
}

func TestConstraintCodec(t *testing.T) {
	p := newTwoSetProblem(t)
	c, err := p.AddConGroup("con", 2, ConParams{
		Lower:  []float64{-1, 0},
		Upper:  []float64{1},
		Scale:  []float64{2},
		Linear: true,
		Jac:    map[string]mat.Matrix{"x": mat.NewDense(2, 2, []float64{1, 0, 0, 2})},
	})
	if err != nil {
		t.Fatalf("AddConGroup() returned with unexpected error %v", err)
	}

	codec := constraintCodec{}
	enc, err := codec.Encode(c)
	if err != nil {
		t.Fatalf("Encode() returned with unexpected error %v", err)
	}
	dec, err := codec.Decode(enc)
	if err != nil {
		t.Fatalf("Decode() returned with unexpected error %v", err)
	}

	if diff := cmp.Diff(c, dec, cmp.AllowUnexported(Constraint{}), cmp.Comparer(sameBlock)); diff != "" {
		t.Errorf("Decode(Encode()) returned with unexpected diff (-want+got):\n%s", diff)
	}
	again, err := codec.Encode(dec)
	if err != nil {
		t.Fatalf("Encode() returned with unexpected error %v", err)
	}
	if diff := cmp.Diff(enc, again, protocmp.Transform()); diff != "" {
		t.Errorf("Encode(Decode()) returned with unexpected diff (-want+got):\n%s", diff)
	}
	fp1, err := consistency.Fingerprint(enc)
	if err != nil {
		t.Fatalf("Fingerprint() returned with unexpected error %v", err)
	}
	fp2, err := consistency.Fingerprint(again)
	if err != nil {
		t.Fatalf("Fingerprint() returned with unexpected error %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("Fingerprint() = %s after a round trip, want %s", fp2, fp1)
	}
}

func TestConstraintCodec_BadBlock(t *testing.T) {
	testCases := []struct {
		name   string
		rows   int
		rowPtr []int
		colInd []int
		want   error
	}{
		{name: "ColumnOutOfRange", rows: 1, rowPtr: []int{0, 1}, colInd: []int{5}, want: sparse.ErrIndex},
		{name: "RowPointerOverrun", rows: 2, rowPtr: []int{0, 2, 1}, colInd: []int{0}, want: sparse.ErrShape},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			enc := &structpb.Struct{Fields: map[string]*structpb.Value{
				"name": structpb.NewStringValue("con"),
				"n":    structpb.NewNumberValue(float64(test.rows)),
				"jac": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
					"x": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
						"rows":   structpb.NewNumberValue(float64(test.rows)),
						"cols":   structpb.NewNumberValue(2),
						"rowPtr": consistency.IntList(test.rowPtr),
						"colInd": consistency.IntList(test.colInd),
						"values": consistency.NumberList(make([]float64, len(test.colInd))),
					}}),
				}}),
			}}

			if _, err := (constraintCodec{}).Decode(enc); !errors.Is(err, test.want) {
				t.Errorf("Decode() returned error %v, want %v", err, test.want)
			}
		})
	}
}
