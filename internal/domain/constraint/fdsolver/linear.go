package fdsolver

import (
	"fmt"
	"strings"
)

// Op is the relation of a linear constraint to zero.
type Op int

const (
	OpLe Op = iota // Σ a·x + c <= 0
	OpEq           // Σ a·x + c == 0
)

// Linear is the bounds-consistent constraint Σ a[i]·x[i] + c (op) 0.
//
// Propagation, for each x[k] with a[k] != 0:
//   - a[k]·x[k] <= -c - Σ_{i≠k} minContrib(i)
//   - for OpEq also a[k]·x[k] >= -c - Σ_{i≠k} maxContrib(i)
//
// and the bound on x[k] follows by sign-aware floor/ceil division.
type Linear struct {
	vars     []*IntVar
	coeffs   []int64
	constant int64
	op       Op
}

// NewLinear builds a constraint. Zero coefficients are dropped; an empty
// variable list is allowed and reduces to a test on the constant.
func NewLinear(vars []*IntVar, coeffs []int64, constant int64, op Op) (*Linear, error) {
	if len(vars) != len(coeffs) {
		return nil, fmt.Errorf("%w: %d vars, %d coefficients", ErrInvalidConstraint, len(vars), len(coeffs))
	}
	if len(vars) > MaxTerms {
		return nil, fmt.Errorf("%w: %d terms", ErrOutOfRange, len(vars))
	}
	if op != OpLe && op != OpEq {
		return nil, fmt.Errorf("%w: unknown op %d", ErrInvalidConstraint, op)
	}
	limit := MaxMagnitude * MaxCoefficient
	if constant < -limit || constant > limit {
		return nil, fmt.Errorf("%w: constant %d", ErrOutOfRange, constant)
	}
	c := &Linear{constant: constant, op: op}
	pos := make(map[*IntVar]int, len(vars))
	for i, v := range vars {
		if v == nil {
			return nil, fmt.Errorf("%w: vars[%d] is nil", ErrInvalidConstraint, i)
		}
		if coeffs[i] < -MaxCoefficient || coeffs[i] > MaxCoefficient {
			return nil, fmt.Errorf("%w: coefficient %d of %s", ErrOutOfRange, coeffs[i], v.name)
		}
		if j, seen := pos[v]; seen {
			c.coeffs[j] += coeffs[i]
			continue
		}
		pos[v] = len(c.vars)
		c.vars = append(c.vars, v)
		c.coeffs = append(c.coeffs, coeffs[i])
	}
	// Repeated variables are merged before the range check and zero terms dropped.
	kept := 0
	for i, v := range c.vars {
		a := c.coeffs[i]
		if a < -MaxCoefficient || a > MaxCoefficient {
			return nil, fmt.Errorf("%w: coefficient %d of %s", ErrOutOfRange, a, v.name)
		}
		if a == 0 {
			continue
		}
		c.vars[kept], c.coeffs[kept] = v, a
		kept++
	}
	c.vars, c.coeffs = c.vars[:kept], c.coeffs[:kept]
	return c, nil
}

// Variables returns the constrained variables.
func (c *Linear) Variables() []*IntVar {
	out := make([]*IntVar, len(c.vars))
	copy(out, c.vars)
	return out
}

// Type names the constraint kind.
func (c *Linear) Type() string {
	if c.op == OpEq {
		return "LinearEq"
	}
	return "LinearLe"
}

func (c *Linear) String() string {
	var b strings.Builder
	for i, v := range c.vars {
		if i > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%d*%s", c.coeffs[i], v.name)
	}
	if len(c.vars) == 0 {
		b.WriteString("0")
	}
	fmt.Fprintf(&b, " + %d", c.constant)
	if c.op == OpEq {
		b.WriteString(" == 0")
	} else {
		b.WriteString(" <= 0")
	}
	return b.String()
}

func minContrib(a int64, d Interval) int64 {
	if a > 0 {
		return a * d.Lo
	}
	return a * d.Hi
}

func maxContrib(a int64, d Interval) int64 {
	if a > 0 {
		return a * d.Hi
	}
	return a * d.Lo
}

// propagate narrows doms in place. It returns whether a domain changed and
// false for feasible when the constraint cannot be met.
func (c *Linear) propagate(doms []Interval) (changed, feasible bool) {
	var sumMin, sumMax int64
	for i, v := range c.vars {
		sumMin += minContrib(c.coeffs[i], doms[v.id])
		sumMax += maxContrib(c.coeffs[i], doms[v.id])
	}
	if sumMin+c.constant > 0 {
		return false, false
	}
	if c.op == OpEq && sumMax+c.constant < 0 {
		return false, false
	}

	for k, v := range c.vars {
		a := c.coeffs[k]
		d := doms[v.id]
		upper := -c.constant - (sumMin - minContrib(a, d))
		next := d
		if a > 0 {
			next = next.RemoveAbove(floorDiv(upper, a))
		} else {
			next = next.RemoveBelow(ceilDiv(upper, a))
		}
		if c.op == OpEq {
			lower := -c.constant - (sumMax - maxContrib(a, d))
			if a > 0 {
				next = next.RemoveBelow(ceilDiv(lower, a))
			} else {
				next = next.RemoveAbove(floorDiv(lower, a))
			}
		}
		if next.Empty() {
			return changed, false
		}
		if next != d {
			sumMin += minContrib(a, next) - minContrib(a, d)
			sumMax += maxContrib(a, next) - maxContrib(a, d)
			doms[v.id] = next
			changed = true
		}
	}
	return changed, true
}

// holds checks the constraint once every variable is fixed.
func (c *Linear) holds(doms []Interval) bool {
	sum := c.constant
	for i, v := range c.vars {
		sum += c.coeffs[i] * doms[v.id].Lo
	}
	if c.op == OpEq {
		return sum == 0
	}
	return sum <= 0
}
