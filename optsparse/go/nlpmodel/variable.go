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
	"math"

	"github.com/optsparse/optsparse/optsparse/go/internal/ordered"
)

// VarType is the kind of values a design variable takes.
type VarType int

const (
	// Continuous variables take any value within their bounds.
	Continuous VarType = iota
	// Integer variables take integral values.
	Integer
	// Discrete variables select one of a list of choices. Their value is the index of the
	// selected choice.
	Discrete
)

func (t VarType) String() string {
	switch t {
	case Continuous:
		return "c"
	case Integer:
		return "i"
	case Discrete:
		return "d"
	}
	return fmt.Sprintf("VarType(%d)", int(t))
}

// Variable is a single design variable.
type Variable struct {
	Name   string
	Type   VarType
	Value  float64
	Bounds Bounds
	Scale  float64
	// Scalar is true if the variable was declared with AddVar.
	Scalar  bool
	Choices []float64
}

// newVariable validates the attributes of a variable and returns it.
func newVariable(name string, t VarType, value, lower, upper, scale float64, scalar bool, choices []float64) (Variable, error) {
	v := Variable{
		Name:   name,
		Type:   t,
		Value:  value,
		Bounds: NewBounds(lower, upper),
		Scale:  scale,
		Scalar: scalar,
	}
	if !finite(scale) || scale <= 0 {
		return Variable{}, fmt.Errorf("variable %q has scale %v, want a finite positive value: %w", name, scale, ErrInvalidArgument)
	}
	if math.IsNaN(value) || math.IsNaN(lower) || math.IsNaN(upper) {
		return Variable{}, fmt.Errorf("variable %q has a NaN attribute: %w", name, ErrInvalidArgument)
	}
	switch t {
	case Continuous:
	case Integer:
		if math.Trunc(value) != value {
			return Variable{}, fmt.Errorf("integer variable %q has value %v: %w", name, value, ErrInvalidArgument)
		}
	case Discrete:
		if len(choices) == 0 {
			return Variable{}, fmt.Errorf("discrete variable %q has no choices: %w", name, ErrInvalidArgument)
		}
		if math.IsInf(value, 0) || math.Trunc(value) != value || value < 0 || value >= float64(len(choices)) {
			return Variable{}, fmt.Errorf("discrete variable %q has value %v, want an index into %d choices: %w", name, value, len(choices), ErrInvalidArgument)
		}
		v.Bounds = Bounds{0, float64(len(choices) - 1)}
		v.Choices = append([]float64(nil), choices...)
	default:
		return Variable{}, fmt.Errorf("variable %q has type %v: %w", name, t, ErrInvalidArgument)
	}
	if t != Discrete && len(choices) > 0 {
		return Variable{}, fmt.Errorf("variable %q of type %v has choices: %w", name, t, ErrInvalidArgument)
	}
	if v.Bounds.IsEmpty() {
		return Variable{}, fmt.Errorf("variable %q has bounds %v: %w", name, v.Bounds, ErrInvalidArgument)
	}
	return v, nil
}

// VarParams holds the attributes of a variable group. Each slice may be nil (default), hold one
// value that is applied to every variable, or hold one value per variable.
type VarParams struct {
	// Type defaults to Continuous.
	Type VarType
	// Value defaults to 0.
	Value []float64
	// Lower and Upper default to unbounded.
	Lower []float64
	Upper []float64
	// Scale defaults to 1.
	Scale []float64
	// VarSet is the variable set receiving the group. It defaults to the group name and is
	// created if needed.
	VarSet string
	// Choices lists the selectable values of a Discrete group.
	Choices []float64
}

// broadcast expands `v` to `n` values.
func broadcast(group, field string, v []float64, n int, def float64) ([]float64, error) {
	out := make([]float64, n)
	switch len(v) {
	case 0:
		for i := range out {
			out[i] = def
		}
	case 1:
		for i := range out {
			out[i] = v[0]
		}
	case n:
		copy(out, v)
	default:
		return nil, fmt.Errorf("%d %s values for %q of length %d: %w", len(v), field, group, n, ErrShapeMismatch)
	}
	return out, nil
}

func newVarGroup(name string, n int, p VarParams, scalar bool) (*VarGroup, error) {
	if n < 1 {
		return nil, fmt.Errorf("group %q has %d variables: %w", name, n, ErrInvalidArgument)
	}
	values, err := broadcast(name, "value", p.Value, n, 0)
	if err != nil {
		return nil, err
	}
	lower, err := broadcast(name, "lower", p.Lower, n, -Infinity)
	if err != nil {
		return nil, err
	}
	upper, err := broadcast(name, "upper", p.Upper, n, Infinity)
	if err != nil {
		return nil, err
	}
	scale, err := broadcast(name, "scale", p.Scale, n, 1)
	if err != nil {
		return nil, err
	}
	set := p.VarSet
	if set == "" {
		set = name
	}
	g := &VarGroup{name: name, set: set, scalar: scalar, vars: make([]Variable, n)}
	for i := range g.vars {
		v, err := newVariable(fmt.Sprintf("%s_%d", name, i), p.Type, values[i], lower[i], upper[i], scale[i], scalar, p.Choices)
		if err != nil {
			return nil, err
		}
		g.vars[i] = v
	}
	return g, nil
}

// VarGroup is a named, contiguous run of variables. Its length is fixed at creation.
type VarGroup struct {
	name   string
	set    string
	scalar bool
	vars   []Variable
}

// Name returns the name of the group.
func (g *VarGroup) Name() string {
	return g.name
}

// Set returns the name of the variable set holding the group.
func (g *VarGroup) Set() string {
	return g.set
}

// Len returns the number of variables in the group.
func (g *VarGroup) Len() int {
	return len(g.vars)
}

// Scalar returns true if the group was declared with AddVar.
func (g *VarGroup) Scalar() bool {
	return g.scalar
}

// Type returns the type shared by the variables of the group.
func (g *VarGroup) Type() VarType {
	return g.vars[0].Type
}

// Variables returns a copy of the variables of the group.
func (g *VarGroup) Variables() []Variable {
	out := make([]Variable, len(g.vars))
	copy(out, g.vars)
	return out
}

// Values returns the current values of the group.
func (g *VarGroup) Values() []float64 {
	out := make([]float64, len(g.vars))
	for i, v := range g.vars {
		out[i] = v.Value
	}
	return out
}

func (g *VarGroup) setValues(vs []float64) {
	for i := range g.vars {
		g.vars[i].Value = vs[i]
	}
}

// VarSet is a named, ordered collection of variable groups. Constraints declare their Jacobian
// structure with respect to variable sets.
type VarSet struct {
	name   string
	groups *ordered.Map[*VarGroup]
}

func newVarSet(name string) *VarSet {
	return &VarSet{name: name, groups: ordered.New[*VarGroup]()}
}

// Name returns the name of the set.
func (s *VarSet) Name() string {
	return s.name
}

// Groups returns the groups of the set in declaration order.
func (s *VarSet) Groups() []*VarGroup {
	return s.groups.Values()
}

// Len returns the number of variables in the set.
func (s *VarSet) Len() int {
	n := 0
	s.groups.Range(func(_ string, g *VarGroup) bool {
		n += g.Len()
		return true
	})
	return n
}
