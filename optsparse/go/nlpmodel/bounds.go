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
)

// Infinity is the magnitude of a missing bound. Solvers are handed this finite sentinel
// rather than math.Inf; any bound at or beyond it is treated as absent.
const Infinity = 1e20

// Bounds stores the closed range `[Lower,Upper]`. A Lower of -Infinity or an Upper of
// +Infinity means that side is unbounded. If `Lower` is greater than `Upper` the range is
// empty.
type Bounds struct {
	Lower float64
	Upper float64
}

// clampBound maps values beyond the sentinel, including the IEEE infinities, onto it.
func clampBound(v float64) float64 {
	if v <= -Infinity {
		return -Infinity
	}
	if v >= Infinity {
		return Infinity
	}
	return v
}

// NewBounds returns `[lower,upper]` with both sides clamped to [-Infinity, Infinity].
func NewBounds(lower, upper float64) Bounds {
	return Bounds{clampBound(lower), clampBound(upper)}
}

// Unbounded returns `[-Infinity,Infinity]`.
func Unbounded() Bounds {
	return Bounds{-Infinity, Infinity}
}

// HasLower returns true if the range is bounded below.
func (b Bounds) HasLower() bool {
	return b.Lower > -Infinity
}

// HasUpper returns true if the range is bounded above.
func (b Bounds) HasUpper() bool {
	return b.Upper < Infinity
}

// IsEquality returns true if the range holds a single finite value.
func (b Bounds) IsEquality() bool {
	return b.Lower == b.Upper && b.HasLower() && b.HasUpper()
}

// IsEmpty returns true if no value satisfies the bounds.
func (b Bounds) IsEmpty() bool {
	return b.Lower > b.Upper
}

// Contains returns true if `v` lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	return b.Lower <= v && v <= b.Upper
}

// Scale multiplies both sides by the positive factor `s`. Unbounded sides stay at the
// sentinel.
func (b Bounds) Scale(s float64) Bounds {
	out := b
	if b.HasLower() {
		out.Lower = clampBound(b.Lower * s)
	}
	if b.HasUpper() {
		out.Upper = clampBound(b.Upper * s)
	}
	return out
}

func formatBound(v float64) string {
	switch {
	case v <= -Infinity:
		return "-inf"
	case v >= Infinity:
		return "inf"
	}
	return fmt.Sprintf("%g", v)
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%s,%s]", formatBound(b.Lower), formatBound(b.Upper))
}

// finite reports whether v is neither NaN nor an IEEE infinity.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
