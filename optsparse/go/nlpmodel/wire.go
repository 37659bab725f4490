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

	"github.com/optsparse/optsparse/optsparse/go/consistency"
	"github.com/optsparse/optsparse/optsparse/go/sparse"
	"google.golang.org/protobuf/types/known/structpb"
)

// varSetCodec sends variable sets, with their groups, between processes.
type varSetCodec struct{}

func (varSetCodec) Encode(s *VarSet) (*structpb.Struct, error) {
	groups := &structpb.ListValue{}
	for _, g := range s.Groups() {
		n := len(g.vars)
		values, lower, upper, scale := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
		for i, v := range g.vars {
			values[i], lower[i], upper[i], scale[i] = v.Value, v.Bounds.Lower, v.Bounds.Upper, v.Scale
		}
		groups.Values = append(groups.Values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"name":    structpb.NewStringValue(g.name),
			"scalar":  structpb.NewBoolValue(g.scalar),
			"type":    structpb.NewNumberValue(float64(g.Type())),
			"value":   consistency.NumberList(values),
			"lower":   consistency.NumberList(lower),
			"upper":   consistency.NumberList(upper),
			"scale":   consistency.NumberList(scale),
			"choices": consistency.NumberList(g.vars[0].Choices),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":   structpb.NewStringValue(s.name),
		"groups": structpb.NewListValue(groups),
	}}, nil
}

func (varSetCodec) Decode(st *structpb.Struct) (*VarSet, error) {
	s := newVarSet(st.GetFields()["name"].GetStringValue())
	for _, gv := range st.GetFields()["groups"].GetListValue().GetValues() {
		f := gv.GetStructValue().GetFields()
		name := f["name"].GetStringValue()
		params := VarParams{
			Type:    VarType(f["type"].GetNumberValue()),
			Value:   consistency.Numbers(f["value"]),
			Lower:   consistency.Numbers(f["lower"]),
			Upper:   consistency.Numbers(f["upper"]),
			Scale:   consistency.Numbers(f["scale"]),
			VarSet:  s.name,
			Choices: consistency.Numbers(f["choices"]),
		}
		g, err := newVarGroup(name, len(params.Value), params, f["scalar"].GetBoolValue())
		if err != nil {
			return nil, fmt.Errorf("decoding variable group %q failed: %w", name, err)
		}
		s.groups.Set(name, g)
	}
	return s, nil
}

// constraintCodec sends constraints, with their Jacobian templates, between processes.
type constraintCodec struct{}

func encodeBlock(m *sparse.CSR) *structpb.Value {
	r, c := m.Dims()
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"rows":   structpb.NewNumberValue(float64(r)),
		"cols":   structpb.NewNumberValue(float64(c)),
		"rowPtr": consistency.IntList(m.Pattern().RowPtr()),
		"colInd": consistency.IntList(m.Pattern().ColInd()),
		"values": consistency.NumberList(m.Values()),
	}})
}

func decodeBlock(v *structpb.Value) (*sparse.CSR, error) {
	f := v.GetStructValue().GetFields()
	return sparse.NewCSR(
		int(f["rows"].GetNumberValue()), int(f["cols"].GetNumberValue()),
		consistency.Ints(f["rowPtr"]), consistency.Ints(f["colInd"]), consistency.Numbers(f["values"]))
}

func (constraintCodec) Encode(c *Constraint) (*structpb.Struct, error) {
	blocks := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(c.jac))}
	for set, m := range c.jac {
		blocks.Fields[set] = encodeBlock(m)
	}
	var declared []string
	for _, set := range c.wrt {
		if c.declared[set] {
			declared = append(declared, set)
		}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":     structpb.NewStringValue(c.name),
		"n":        structpb.NewNumberValue(float64(c.n)),
		"linear":   structpb.NewBoolValue(c.linear),
		"partial":  structpb.NewBoolValue(c.partialReturnOK),
		"wrt":      consistency.StringList(c.wrt),
		"declared": consistency.StringList(declared),
		"lower":    consistency.NumberList(c.lower),
		"upper":    consistency.NumberList(c.upper),
		"scale":    consistency.NumberList(c.scale),
		"jac":      structpb.NewStructValue(blocks),
	}}, nil
}

func (constraintCodec) Decode(st *structpb.Struct) (*Constraint, error) {
	f := st.GetFields()
	c := &Constraint{
		name:            f["name"].GetStringValue(),
		n:               int(f["n"].GetNumberValue()),
		linear:          f["linear"].GetBoolValue(),
		partialReturnOK: f["partial"].GetBoolValue(),
		wrt:             consistency.Strings(f["wrt"]),
		declared:        make(map[string]bool),
		lower:           consistency.Numbers(f["lower"]),
		upper:           consistency.Numbers(f["upper"]),
		scale:           consistency.Numbers(f["scale"]),
		jac:             make(map[string]*sparse.CSR),
	}
	for _, set := range consistency.Strings(f["declared"]) {
		c.declared[set] = true
	}
	for set, v := range f["jac"].GetStructValue().GetFields() {
		m, err := decodeBlock(v)
		if err != nil {
			return nil, fmt.Errorf("decoding block of constraint %q for %q failed: %w", c.name, set, err)
		}
		c.jac[set] = m
	}
	if len(c.lower) != c.n || len(c.upper) != c.n || len(c.scale) != c.n {
		return nil, fmt.Errorf("decoding constraint %q failed: %w", c.name, ErrShapeMismatch)
	}
	return c, nil
}
