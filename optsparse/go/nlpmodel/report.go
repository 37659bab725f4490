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
	"io"
	"strings"
)

// String returns a summary of the objectives, variables and constraints of the problem.
func (p *Problem) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Optimization Problem -- %s\n%s\n", p.name, strings.Repeat("=", 80))

	b.WriteString("    Objectives:\n")
	fmt.Fprintf(&b, "        %-20s %14s\n", "Name", "Scale")
	for _, o := range p.objectives.Values() {
		fmt.Fprintf(&b, "        %-20s %14g\n", o.name, o.scale)
	}

	b.WriteString("    Variables (c - continuous, i - integer, d - discrete):\n")
	fmt.Fprintf(&b, "        %-20s %-4s %14s %14s %14s\n", "Name", "Type", "Value", "Lower Bound", "Upper Bound")
	for _, s := range p.sets.Values() {
		for _, g := range s.Groups() {
			for _, v := range g.vars {
				fmt.Fprintf(&b, "        %-20s %-4v %14g %14s %14s\n", v.Name, v.Type, v.Value, formatBound(v.Bounds.Lower), formatBound(v.Bounds.Upper))
			}
		}
	}

	if p.constraints.Len() > 0 {
		b.WriteString("    Constraints (i - inequality, e - equality):\n")
		fmt.Fprintf(&b, "        %-20s %-4s %14s %14s\n", "Name", "Type", "Lower Bound", "Upper Bound")
		for _, c := range p.constraints.Values() {
			for i := 0; i < c.n; i++ {
				bnd := c.Bounds(i)
				kind := "i"
				if bnd.IsEquality() {
					kind = "e"
				}
				if c.linear {
					kind += "l"
				}
				fmt.Fprintf(&b, "        %-20s %-4s %14s %14s\n", fmt.Sprintf("%s_%d", c.name, i), kind, formatBound(bnd.Lower), formatBound(bnd.Upper))
			}
		}
	}
	return b.String()
}

// center pads `s` with spaces on both sides to width `w`.
func center(s string, w int) string {
	left := (w - len(s)) / 2
	if left < 0 {
		return s
	}
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", w-len(s)-left)
}

// WriteSparsity writes an ASCII table showing which variable sets each constraint depends on.
// Nonlinear constraints come first; a line of '=' separates them from the linear ones.
func (p *Problem) WriteSparsity(w io.Writer) error {
	if !p.varsFinal {
		return fmt.Errorf("WriteSparsity before FinalizeVariables: %w", ErrOrdering)
	}
	sets := p.sets.Values()
	widths := make([]int, len(sets))
	labels := make([]string, len(sets))
	for i, s := range sets {
		labels[i] = fmt.Sprintf("%s (%d)", s.name, s.Len())
		widths[i] = len(labels[i]) + 2
	}
	var nonlinear, linear []*Constraint
	nameWidth := 0
	for _, c := range p.constraints.Values() {
		if c.linear {
			linear = append(linear, c)
		} else {
			nonlinear = append(nonlinear, c)
		}
		nameWidth = max(nameWidth, len(fmt.Sprintf("%s (%d)", c.name, c.n)))
	}
	pad := strings.Repeat(" ", nameWidth+1)

	var b strings.Builder
	border := "+" + strings.Repeat("-", 78) + "+\n"
	b.WriteString(border)
	fmt.Fprintf(&b, "|%s|\n", center("Sparsity structure of constraint Jacobian", 78))
	b.WriteString(border)

	header := pad + " "
	for _, l := range labels {
		header += " " + l + "  "
	}
	b.WriteString(strings.TrimRight(header, " ") + "\n")
	separator := func(ch string) {
		b.WriteString(pad + "+")
		for _, wd := range widths {
			b.WriteString(strings.Repeat(ch, wd) + "+")
		}
		b.WriteString("\n")
	}
	row := func(c *Constraint) {
		fmt.Fprintf(&b, "%*s |", nameWidth, fmt.Sprintf("%s (%d)", c.name, c.n))
		for i, s := range sets {
			mark := ""
			if blk, ok := c.jac[s.name]; ok && blk.NNZ() > 0 {
				mark = "X"
			}
			b.WriteString(center(mark, widths[i]) + "|")
		}
		b.WriteString("\n")
	}

	separator("-")
	for i, c := range nonlinear {
		row(c)
		if i == len(nonlinear)-1 && len(linear) > 0 {
			separator("=")
		} else {
			separator("-")
		}
	}
	for _, c := range linear {
		row(c)
		separator("-")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
