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

	log "github.com/golang/glog"
)

// DesignVars is the design vector keyed by variable group name. Groups declared with AddVar
// are in Scalars, the others in Arrays.
type DesignVars struct {
	Scalars map[string]float64
	Arrays  map[string][]float64
}

func newDesignVars() DesignVars {
	return DesignVars{Scalars: make(map[string]float64), Arrays: make(map[string][]float64)}
}

// Expand splits the flat design vector `x` into its variable groups. Arrays are copies.
func (p *Problem) Expand(x []float64) (DesignVars, error) {
	if !p.varsFinal {
		return DesignVars{}, fmt.Errorf("Expand before FinalizeVariables: %w", ErrOrdering)
	}
	if len(x) != p.ndv {
		return DesignVars{}, fmt.Errorf("design vector of length %d, want %d: %w", len(x), p.ndv, ErrShapeMismatch)
	}
	d := newDesignVars()
	for name, r := range p.groupRange {
		if r.Scalar {
			d.Scalars[name] = x[r.Start]
		} else {
			d.Arrays[name] = append([]float64(nil), x[r.Start:r.End]...)
		}
	}
	return d, nil
}

// Collapse is the inverse of Expand. Every group must be present with its length.
func (p *Problem) Collapse(d DesignVars) ([]float64, error) {
	if !p.varsFinal {
		return nil, fmt.Errorf("Collapse before FinalizeVariables: %w", ErrOrdering)
	}
	x := make([]float64, p.ndv)
	for name, r := range p.groupRange {
		if r.Scalar {
			v, ok := d.Scalars[name]
			if !ok {
				return nil, fmt.Errorf("no value for scalar %q: %w", name, ErrMissingValue)
			}
			x[r.Start] = v
			continue
		}
		v, ok := d.Arrays[name]
		if !ok {
			return nil, fmt.Errorf("no values for group %q: %w", name, ErrMissingValue)
		}
		if len(v) != r.Len() {
			return nil, fmt.Errorf("%d values for group %q of length %d: %w", len(v), name, r.Len(), ErrShapeMismatch)
		}
		copy(x[r.Start:r.End], v)
	}
	return x, nil
}

// DesignVars returns the current values of every variable group.
func (p *Problem) DesignVars() DesignVars {
	d := newDesignVars()
	for _, s := range p.sets.Values() {
		for _, g := range s.Groups() {
			if g.scalar {
				d.Scalars[g.name] = g.vars[0].Value
			} else {
				d.Arrays[g.name] = g.Values()
			}
		}
	}
	return d
}

// SetDesignVars sets the values of the groups present in `d`. Unknown names are ignored.
func (p *Problem) SetDesignVars(d DesignVars) error {
	// Validate everything first so that a failure leaves the values unchanged.
	updates := make(map[*VarGroup][]float64)
	for name, v := range d.Scalars {
		g, err := p.VarGroup(name)
		if err != nil {
			log.Warningf("%s: ignoring value of unknown variable group %q", p.name, name)
			continue
		}
		if !g.scalar {
			return fmt.Errorf("scalar value for group %q of length %d: %w", name, g.Len(), ErrShapeMismatch)
		}
		updates[g] = []float64{v}
	}
	for name, v := range d.Arrays {
		g, err := p.VarGroup(name)
		if err != nil {
			log.Warningf("%s: ignoring values of unknown variable group %q", p.name, name)
			continue
		}
		if g.scalar {
			return fmt.Errorf("array value for scalar %q: %w", name, ErrShapeMismatch)
		}
		if len(v) != g.Len() {
			return fmt.Errorf("%d values for group %q of length %d: %w", len(v), name, g.Len(), ErrShapeMismatch)
		}
		updates[g] = v
	}
	for g, v := range updates {
		g.setValues(v)
	}
	return nil
}
