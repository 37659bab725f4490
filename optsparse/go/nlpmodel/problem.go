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

// Package nlpmodel formulates sparse nonlinear constrained optimization problems for external
// solvers.
//
// A `Problem` registers variable groups (organized in variable sets), objectives and
// constraint groups. Finalization fixes a global ordering: every variable gets an offset in
// the flat design vector and every constraint row a global row, with the nonlinear rows
// before the linear ones. It also fixes the sparsity pattern of the constraint Jacobian.
//
// At every iteration the Problem converts the values returned by the user's evaluation code,
// keyed by constraint and variable set names, into scaled vectors and sparse matrices with
// that fixed pattern. Problems declared piecewise on several cooperating processes are merged
// into one identical Problem on every process during finalization.
package nlpmodel

import (
	"errors"
	"fmt"
	"math"
	"sort"

	log "github.com/golang/glog"
	"github.com/optsparse/optsparse/optsparse/go/consistency"
	"github.com/optsparse/optsparse/optsparse/go/internal/ordered"
	"github.com/optsparse/optsparse/optsparse/go/sparse"
)

var (
	// ErrDuplicateName holds the error when a name is registered twice.
	ErrDuplicateName = errors.New("nlpmodel: name already in use")
	// ErrShapeMismatch holds the error when the length or shape of a value differs from its
	// declaration.
	ErrShapeMismatch = errors.New("nlpmodel: shape mismatch")
	// ErrOrdering holds the error when an operation is called at the wrong stage, e.g. a
	// constraint declared before the variables are finalized.
	ErrOrdering = errors.New("nlpmodel: operation not allowed at this stage")
	// ErrSparsity holds the error when a Jacobian block does not have its declared structure.
	ErrSparsity = errors.New("nlpmodel: sparsity structure changed")
	// ErrMissingValue holds the error when a name is unknown or a required value is absent.
	ErrMissingValue = errors.New("nlpmodel: missing value")
	// ErrDenseReturnForbidden holds the error when a dense Jacobian is submitted while some
	// constraint does not depend on every variable set.
	ErrDenseReturnForbidden = errors.New("nlpmodel: dense Jacobian not allowed")
	// ErrInvalidArgument holds the error when an argument is outside its domain.
	ErrInvalidArgument = errors.New("nlpmodel: invalid argument")
)

// dummyJacobianValue fills the single row returned for an empty partition.
const dummyJacobianValue = 1e-50

// Option configures a Problem.
type Option func(*Problem)

// WithCommunicator sets the group of processes declaring the problem together. The default
// is consistency.Self().
func WithCommunicator(comm consistency.Communicator) Option {
	return func(p *Problem) {
		p.comm = comm
	}
}

// WithCoordinator sets the rank merging the declarations during finalization. The default
// is 0.
func WithCoordinator(rank int) Option {
	return func(p *Problem) {
		p.root = rank
	}
}

// WithJacobianRows makes partitions without constraints return one dummy row instead of no
// rows, for solvers that reject empty Jacobians.
func WithJacobianRows() Option {
	return func(p *Problem) {
		p.dummyRow = true
	}
}

// Range is the half-open range `[Start,End)` of a flat vector.
type Range struct {
	Start int
	End   int
}

// Len returns the number of elements of the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// GroupOffset is the position of a variable group in the design vector.
type GroupOffset struct {
	Range
	Scalar bool
}

// Problem is a nonlinear optimization problem under construction or finalized.
//
// The methods of a Problem must not be called concurrently. FinalizeVariables and
// FinalizeConstraints are collective: every process of the communicator must call them.
type Problem struct {
	name     string
	comm     consistency.Communicator
	root     int
	dummyRow bool

	sets        *ordered.Map[*VarSet]
	groupSet    map[string]string
	constraints *ordered.Map[*Constraint]
	objectives  *ordered.Map[*Objective]

	varsFinal  bool
	ndv        int
	setRange   map[string]Range
	groupRange map[string]GroupOffset
	xscale     []float64
	invXScale  []float64

	consFinal       bool
	nnCon, nlCon    int
	parts           [2]*partition
	denseJacobianOK bool
	// linearA holds the unscaled linear rows and linearJac the scaled ones.
	linearA   *sparse.CSR
	linearJac *sparse.CSR
}

// NewProblem returns an empty problem.
func NewProblem(name string, opts ...Option) *Problem {
	p := &Problem{
		name:        name,
		comm:        consistency.Self(),
		sets:        ordered.New[*VarSet](),
		groupSet:    make(map[string]string),
		constraints: ordered.New[*Constraint](),
		objectives:  ordered.New[*Objective](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the name of the problem.
func (p *Problem) Name() string {
	return p.name
}

// AddVarSet registers an empty variable set.
func (p *Problem) AddVarSet(name string) error {
	if p.varsFinal {
		return fmt.Errorf("variable set %q added after FinalizeVariables: %w", name, ErrOrdering)
	}
	if name == "" {
		return fmt.Errorf("empty variable set name: %w", ErrInvalidArgument)
	}
	if p.sets.Has(name) {
		return fmt.Errorf("variable set %q: %w", name, ErrDuplicateName)
	}
	p.sets.Set(name, newVarSet(name))
	return nil
}

// AddVarGroup registers a group of `n` variables.
func (p *Problem) AddVarGroup(name string, n int, params VarParams) (*VarGroup, error) {
	return p.addVarGroup(name, n, params, false)
}

// AddVar registers a single variable. Unlike a group of length 1 it is a scalar in
// DesignVars.
func (p *Problem) AddVar(name string, params VarParams) (*VarGroup, error) {
	return p.addVarGroup(name, 1, params, true)
}

func (p *Problem) addVarGroup(name string, n int, params VarParams, scalar bool) (*VarGroup, error) {
	if p.varsFinal {
		return nil, fmt.Errorf("variable group %q added after FinalizeVariables: %w", name, ErrOrdering)
	}
	if name == "" {
		return nil, fmt.Errorf("empty variable group name: %w", ErrInvalidArgument)
	}
	if _, ok := p.groupSet[name]; ok {
		return nil, fmt.Errorf("variable group %q: %w", name, ErrDuplicateName)
	}
	g, err := newVarGroup(name, n, params, scalar)
	if err != nil {
		return nil, err
	}
	s, ok := p.sets.Get(g.set)
	if !ok {
		s = newVarSet(g.set)
		p.sets.Set(g.set, s)
	}
	s.groups.Set(name, g)
	p.groupSet[name] = g.set
	return g, nil
}

// AddConGroup registers a group of `n` constraints. Variables must be finalized.
func (p *Problem) AddConGroup(name string, n int, params ConParams) (*Constraint, error) {
	if !p.varsFinal {
		return nil, fmt.Errorf("constraint %q added before FinalizeVariables: %w", name, ErrOrdering)
	}
	if p.consFinal {
		return nil, fmt.Errorf("constraint %q added after FinalizeConstraints: %w", name, ErrOrdering)
	}
	if name == "" {
		return nil, fmt.Errorf("empty constraint name: %w", ErrInvalidArgument)
	}
	if n < 1 {
		return nil, fmt.Errorf("constraint %q has %d rows: %w", name, n, ErrInvalidArgument)
	}
	if p.constraints.Has(name) {
		return nil, fmt.Errorf("constraint %q: %w", name, ErrDuplicateName)
	}
	lower, err := broadcast(name, "lower", params.Lower, n, -Infinity)
	if err != nil {
		return nil, err
	}
	upper, err := broadcast(name, "upper", params.Upper, n, Infinity)
	if err != nil {
		return nil, err
	}
	scale, err := broadcast(name, "scale", params.Scale, n, 1)
	if err != nil {
		return nil, err
	}
	for i := range lower {
		b := NewBounds(lower[i], upper[i])
		if b.IsEmpty() || math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
			return nil, fmt.Errorf("row %d of constraint %q has bounds %v: %w", i, name, b, ErrInvalidArgument)
		}
		lower[i], upper[i] = b.Lower, b.Upper
		if !finite(scale[i]) || scale[i] <= 0 {
			return nil, fmt.Errorf("row %d of constraint %q has scale %v: %w", i, name, scale[i], ErrInvalidArgument)
		}
	}
	wrt, err := p.resolveWrt(name, params.Wrt)
	if err != nil {
		return nil, err
	}
	if params.Linear && len(params.Jac) == 0 {
		return nil, fmt.Errorf("linear constraint %q has no Jacobian: %w", name, ErrMissingValue)
	}

	c := &Constraint{
		name:            name,
		n:               n,
		linear:          params.Linear,
		wrt:             wrt,
		jac:             make(map[string]*sparse.CSR, len(wrt)),
		declared:        make(map[string]bool, len(params.Jac)),
		lower:           lower,
		upper:           upper,
		scale:           scale,
		partialReturnOK: !params.Linear && len(params.Jac) == 0,
	}
	inWrt := make(map[string]bool, len(wrt))
	for _, set := range wrt {
		inWrt[set] = true
	}
	for set, m := range params.Jac {
		if !inWrt[set] {
			if !p.sets.Has(set) {
				return nil, fmt.Errorf("constraint %q declares a block for unknown variable set %q: %w", name, set, ErrMissingValue)
			}
			return nil, fmt.Errorf("constraint %q declares a block for %q, which is not in wrt %v: %w", name, set, wrt, ErrInvalidArgument)
		}
		if m == nil {
			return nil, fmt.Errorf("constraint %q declares a nil block for %q: %w", name, set, ErrInvalidArgument)
		}
		rows, cols := m.Dims()
		if w := p.setRange[set].Len(); rows != n || cols != w {
			return nil, fmt.Errorf("block of constraint %q for %q is %dx%d, want %dx%d: %w", name, set, rows, cols, n, w, ErrShapeMismatch)
		}
		c.jac[set] = sparse.FromNonZero(m)
		c.declared[set] = true
	}
	for _, set := range wrt {
		if _, ok := c.jac[set]; ok {
			continue
		}
		w := p.setRange[set].Len()
		if c.linear {
			c.jac[set] = sparse.NewEmpty(n, w)
		} else {
			c.jac[set] = sparse.Zeros(sparse.DensePattern(n, w))
		}
	}
	p.constraints.Set(name, c)
	return c, nil
}

// AddCon registers a single constraint. Variables must be finalized.
func (p *Problem) AddCon(name string, params ConParams) (*Constraint, error) {
	return p.AddConGroup(name, 1, params)
}

// resolveWrt validates the variable sets of constraint `name`, removes duplicates and sorts
// them by offset. An empty list selects every set.
func (p *Problem) resolveWrt(name string, wrt []string) ([]string, error) {
	if len(wrt) == 0 {
		return p.sets.Keys(), nil
	}
	seen := make(map[string]bool, len(wrt))
	var out []string
	for _, set := range wrt {
		if !p.sets.Has(set) {
			return nil, fmt.Errorf("constraint %q depends on unknown variable set %q: %w", name, set, ErrMissingValue)
		}
		if seen[set] {
			continue
		}
		seen[set] = true
		out = append(out, set)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return p.setRange[out[i]].Start < p.setRange[out[j]].Start
	})
	return out, nil
}

// AddObj registers an objective. The optional scale defaults to 1.
func (p *Problem) AddObj(name string, scale ...float64) (*Objective, error) {
	if name == "" {
		return nil, fmt.Errorf("empty objective name: %w", ErrInvalidArgument)
	}
	if p.objectives.Has(name) {
		return nil, fmt.Errorf("objective %q: %w", name, ErrDuplicateName)
	}
	o := &Objective{name: name, scale: 1}
	switch len(scale) {
	case 0:
	case 1:
		o.scale = scale[0]
	default:
		return nil, fmt.Errorf("objective %q has %d scales: %w", name, len(scale), ErrInvalidArgument)
	}
	if !finite(o.scale) || o.scale <= 0 {
		return nil, fmt.Errorf("objective %q has scale %v: %w", name, o.scale, ErrInvalidArgument)
	}
	p.objectives.Set(name, o)
	return o, nil
}

// DelVar removes a variable group. Its set is kept, even if it becomes empty.
func (p *Problem) DelVar(name string) error {
	if p.varsFinal {
		return fmt.Errorf("variable group %q deleted after FinalizeVariables: %w", name, ErrOrdering)
	}
	set, ok := p.groupSet[name]
	if !ok {
		log.Warningf("DelVar: no variable group %q in problem %q", name, p.name)
		return fmt.Errorf("variable group %q: %w", name, ErrMissingValue)
	}
	s, _ := p.sets.Get(set)
	s.groups.Delete(name)
	delete(p.groupSet, name)
	return nil
}

// DelVarSet removes a variable set and all its groups.
func (p *Problem) DelVarSet(name string) error {
	if p.varsFinal {
		return fmt.Errorf("variable set %q deleted after FinalizeVariables: %w", name, ErrOrdering)
	}
	s, ok := p.sets.Get(name)
	if !ok {
		log.Warningf("DelVarSet: no variable set %q in problem %q", name, p.name)
		return fmt.Errorf("variable set %q: %w", name, ErrMissingValue)
	}
	for _, g := range s.Groups() {
		delete(p.groupSet, g.name)
	}
	p.sets.Delete(name)
	return nil
}

// DelCon removes a constraint.
func (p *Problem) DelCon(name string) error {
	if p.consFinal {
		return fmt.Errorf("constraint %q deleted after FinalizeConstraints: %w", name, ErrOrdering)
	}
	if !p.constraints.Delete(name) {
		log.Warningf("DelCon: no constraint %q in problem %q", name, p.name)
		return fmt.Errorf("constraint %q: %w", name, ErrMissingValue)
	}
	return nil
}

// DelObj removes an objective.
func (p *Problem) DelObj(name string) error {
	if !p.objectives.Delete(name) {
		log.Warningf("DelObj: no objective %q in problem %q", name, p.name)
		return fmt.Errorf("objective %q: %w", name, ErrMissingValue)
	}
	return nil
}

// VarSets returns the variable sets in declaration order.
func (p *Problem) VarSets() []*VarSet {
	return p.sets.Values()
}

// VarGroup returns the variable group `name`.
func (p *Problem) VarGroup(name string) (*VarGroup, error) {
	set, ok := p.groupSet[name]
	if !ok {
		return nil, fmt.Errorf("variable group %q: %w", name, ErrMissingValue)
	}
	s, _ := p.sets.Get(set)
	g, _ := s.groups.Get(name)
	return g, nil
}

// Constraint returns the constraint `name`.
func (p *Problem) Constraint(name string) (*Constraint, error) {
	c, ok := p.constraints.Get(name)
	if !ok {
		return nil, fmt.Errorf("constraint %q: %w", name, ErrMissingValue)
	}
	return c, nil
}

// Constraints returns the constraints in declaration order.
func (p *Problem) Constraints() []*Constraint {
	return p.constraints.Values()
}

// Objective returns the objective `name`.
func (p *Problem) Objective(name string) (*Objective, error) {
	o, ok := p.objectives.Get(name)
	if !ok {
		return nil, fmt.Errorf("objective %q: %w", name, ErrMissingValue)
	}
	return o, nil
}

// Objectives returns the objectives in declaration order.
func (p *Problem) Objectives() []*Objective {
	return p.objectives.Values()
}

// NumVars returns the number of design variables. It is 0 before FinalizeVariables.
func (p *Problem) NumVars() int {
	return p.ndv
}

// NumCons returns the number of constraint rows. It is 0 before FinalizeConstraints.
func (p *Problem) NumCons() int {
	return p.nnCon + p.nlCon
}

// NumNonlinearCons returns the number of nonlinear constraint rows.
func (p *Problem) NumNonlinearCons() int {
	return p.nnCon
}

// NumLinearCons returns the number of linear constraint rows.
func (p *Problem) NumLinearCons() int {
	return p.nlCon
}

// SetRange returns the range of the design vector holding variable set `name`.
func (p *Problem) SetRange(name string) (Range, error) {
	if !p.varsFinal {
		return Range{}, fmt.Errorf("SetRange(%q) before FinalizeVariables: %w", name, ErrOrdering)
	}
	r, ok := p.setRange[name]
	if !ok {
		return Range{}, fmt.Errorf("variable set %q: %w", name, ErrMissingValue)
	}
	return r, nil
}

// GroupRange returns the position of variable group `name` in the design vector.
func (p *Problem) GroupRange(name string) (GroupOffset, error) {
	if !p.varsFinal {
		return GroupOffset{}, fmt.Errorf("GroupRange(%q) before FinalizeVariables: %w", name, ErrOrdering)
	}
	r, ok := p.groupRange[name]
	if !ok {
		return GroupOffset{}, fmt.Errorf("variable group %q: %w", name, ErrMissingValue)
	}
	return r, nil
}

// DenseJacobianOK returns true if a DenseJacobian may be submitted, i.e. every constraint
// depends on every variable set.
func (p *Problem) DenseJacobianOK() bool {
	return p.consFinal && p.denseJacobianOK
}
