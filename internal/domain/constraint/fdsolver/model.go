// Package fdsolver is a small finite-domain solver over integer intervals.
//
// A Model holds integer variables with interval domains and linear
// constraints in normal form Σ a·x + c ≤ 0 or Σ a·x + c = 0. Solve prunes
// domains with bounds-consistent propagation until a fixpoint and branches
// by halving the smallest open domain when propagation alone cannot decide.
//
// Importing the package registers it as the solver-backed constraint
// evaluator. Build with the nofdsolver tag to leave it out.
package fdsolver

import (
	"fmt"
	"strings"
)

// IntVar is a model variable.
type IntVar struct {
	id     int
	name   string
	domain Interval
}

// ID returns the variable index within its model.
func (v *IntVar) ID() int { return v.id }

// Name returns the variable name.
func (v *IntVar) Name() string { return v.name }

// Domain returns the initial domain.
func (v *IntVar) Domain() Interval { return v.domain }

// Model is a set of variables and the constraints posted over them.
// A Model is not safe for concurrent mutation; Solve does not mutate it.
type Model struct {
	vars        []*IntVar
	byName      map[string]*IntVar
	constraints []*Linear
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{byName: make(map[string]*IntVar)}
}

// IntVar declares a variable with domain [lo, hi].
func (m *Model) IntVar(name string, lo, hi int64) (*IntVar, error) {
	if _, dup := m.byName[name]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateVariable, name)
	}
	if lo > hi {
		return nil, fmt.Errorf("%w: %s [%d..%d]", ErrEmptyDomain, name, lo, hi)
	}
	if lo < -MaxMagnitude || hi > MaxMagnitude {
		return nil, fmt.Errorf("%w: %s [%d..%d]", ErrOutOfRange, name, lo, hi)
	}
	v := &IntVar{id: len(m.vars), name: name, domain: Interval{Lo: lo, Hi: hi}}
	m.vars = append(m.vars, v)
	m.byName[name] = v
	return v, nil
}

// Lookup returns the variable with the given name.
func (m *Model) Lookup(name string) (*IntVar, bool) {
	v, ok := m.byName[name]
	return v, ok
}

// Post adds a constraint. Its variables must belong to this model.
func (m *Model) Post(c *Linear) error {
	if c == nil {
		return fmt.Errorf("%w: nil constraint", ErrInvalidConstraint)
	}
	for _, v := range c.vars {
		if v.id >= len(m.vars) || m.vars[v.id] != v {
			return fmt.Errorf("%w: variable %s is not part of the model", ErrInvalidConstraint, v.name)
		}
	}
	m.constraints = append(m.constraints, c)
	return nil
}

// Variables returns the declared variables.
func (m *Model) Variables() []*IntVar {
	out := make([]*IntVar, len(m.vars))
	copy(out, m.vars)
	return out
}

// Constraints returns the posted constraints.
func (m *Model) Constraints() []*Linear {
	out := make([]*Linear, len(m.constraints))
	copy(out, m.constraints)
	return out
}

func (m *Model) String() string {
	var b strings.Builder
	for _, v := range m.vars {
		fmt.Fprintf(&b, "%s in %s\n", v.name, v.domain)
	}
	for _, c := range m.constraints {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}
