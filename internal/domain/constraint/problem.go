package constraint

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

// Rel is a comparison between the two sides of a constraint.
type Rel int

const (
	RelLt Rel = iota
	RelLe
	RelEq
)

// String returns the operator symbol.
func (r Rel) String() string {
	switch r {
	case RelLt:
		return "<"
	case RelLe:
		return "<="
	case RelEq:
		return "=="
	default:
		return fmt.Sprintf("Rel(%d)", int(r))
	}
}

// Constraint is the comparison Left Rel Right.
type Constraint struct {
	Left  Expr
	Rel   Rel
	Right Expr
}

// Lt returns a < b.
func Lt(a, b Expr) Constraint { return Constraint{Left: a, Rel: RelLt, Right: b} }

// Le returns a <= b.
func Le(a, b Expr) Constraint { return Constraint{Left: a, Rel: RelLe, Right: b} }

// Eq returns a == b.
func Eq(a, b Expr) Constraint { return Constraint{Left: a, Rel: RelEq, Right: b} }

// Chain relates every adjacent pair: Chain(RelLt, a, b, c) is a < b ∧ b < c.
func Chain(rel Rel, exprs ...Expr) []Constraint {
	if len(exprs) < 2 {
		return nil
	}
	out := make([]Constraint, 0, len(exprs)-1)
	for i := 1; i < len(exprs); i++ {
		out = append(out, Constraint{Left: exprs[i-1], Rel: rel, Right: exprs[i]})
	}
	return out
}

// Diff returns Left - Right, so the constraint reads Diff() Rel 0.
func (c Constraint) Diff() Expr {
	return c.Left.Minus(c.Right)
}

// Vars returns the variables referenced by either side.
func (c Constraint) Vars() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range append(c.Left.Vars(), c.Right.Vars()...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Holds evaluates the constraint under the given values.
func (c Constraint) Holds(values map[string]int64) (bool, error) {
	l, lerr := c.Left.Eval(values)
	r, rerr := c.Right.Eval(values)
	switch {
	case lerr == nil && rerr == nil:
		return c.Rel.compare(cmp.Compare(l, r))
	case lerr != nil && !errors.Is(lerr, ErrOverflow):
		return false, lerr
	case rerr != nil && !errors.Is(rerr, ErrOverflow):
		return false, rerr
	}
	// A side left the int64 range; the comparison itself is still decidable.
	lb, err := c.Left.evalBig(values)
	if err != nil {
		return false, err
	}
	rb, err := c.Right.evalBig(values)
	if err != nil {
		return false, err
	}
	return c.Rel.compare(lb.Cmp(rb))
}

// compare maps the sign of Left-Right to the truth of the relation.
func (r Rel) compare(sign int) (bool, error) {
	switch r {
	case RelLt:
		return sign < 0, nil
	case RelLe:
		return sign <= 0, nil
	case RelEq:
		return sign == 0, nil
	default:
		return false, fmt.Errorf("%w: unknown relation %v", ErrInvalidProblem, r)
	}
}

// String renders the constraint as "onset < apex".
func (c Constraint) String() string {
	return c.Left.String() + " " + c.Rel.String() + " " + c.Right.String()
}

// Binding assigns a concrete value to a variable.
type Binding struct {
	Name  string
	Value int64
}

// Problem is a set of bound variables and a conjunction of constraints over them.
// Binding order is kept so diagnostics list values the way they were bound.
type Problem struct {
	bindings    []Binding
	index       map[string]int
	constraints []Constraint
}

// NewProblem returns an empty problem.
func NewProblem() *Problem {
	return &Problem{index: make(map[string]int)}
}

// Bind assigns value to name. Binding a name twice replaces the value in place.
func (p *Problem) Bind(name string, value int64) *Problem {
	if i, ok := p.index[name]; ok {
		p.bindings[i].Value = value
		return p
	}
	p.index[name] = len(p.bindings)
	p.bindings = append(p.bindings, Binding{Name: name, Value: value})
	return p
}

// Require adds constraints to the conjunction.
func (p *Problem) Require(cs ...Constraint) *Problem {
	p.constraints = append(p.constraints, cs...)
	return p
}

// Bindings returns a copy of the bindings in bind order.
func (p *Problem) Bindings() []Binding {
	out := make([]Binding, len(p.bindings))
	copy(out, p.bindings)
	return out
}

// Constraints returns a copy of the conjunction.
func (p *Problem) Constraints() []Constraint {
	out := make([]Constraint, len(p.constraints))
	copy(out, p.constraints)
	return out
}

// Value returns the value bound to name.
func (p *Problem) Value(name string) (int64, bool) {
	i, ok := p.index[name]
	if !ok {
		return 0, false
	}
	return p.bindings[i].Value, true
}

// Values returns the bindings as a map.
func (p *Problem) Values() map[string]int64 {
	out := make(map[string]int64, len(p.bindings))
	for _, b := range p.bindings {
		out[b.Name] = b.Value
	}
	return out
}

// Validate rejects empty variable names and constraints over unbound variables.
func (p *Problem) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil problem", ErrInvalidProblem)
	}
	for _, b := range p.bindings {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("%w: empty variable name", ErrInvalidProblem)
		}
	}
	for _, c := range p.constraints {
		if c.Rel < RelLt || c.Rel > RelEq {
			return fmt.Errorf("%w: unknown relation %v", ErrInvalidProblem, c.Rel)
		}
		for _, name := range c.Vars() {
			if _, ok := p.index[name]; !ok {
				return fmt.Errorf("%w: %s in %s", ErrUnboundVariable, name, c)
			}
		}
	}
	return nil
}

// Assignments renders the bindings as "onset=5, apex=3".
func (p *Problem) Assignments() string {
	parts := make([]string, len(p.bindings))
	for i, b := range p.bindings {
		parts[i] = fmt.Sprintf("%s=%d", b.Name, b.Value)
	}
	return strings.Join(parts, ", ")
}
