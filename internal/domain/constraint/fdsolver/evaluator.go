package fdsolver

import (
	"context"
	"fmt"

	"github.com/okian/guardrail/internal/domain/constraint"
)

// Name is the registry name of this solver.
const Name = "fd"

// Evaluator answers constraint problems by binding every variable to a
// singleton domain and asking the solver for a model.
type Evaluator struct {
	solver *Solver
}

// New returns an evaluator backed by a solver built with opts.
func New(opts ...Option) *Evaluator {
	return &Evaluator{solver: NewSolver(opts...)}
}

// Name implements constraint.Evaluator.
func (e *Evaluator) Name() string { return Name }

// Satisfiable implements constraint.Evaluator.
func (e *Evaluator) Satisfiable(p *constraint.Problem) (bool, error) {
	return e.SatisfiableContext(context.Background(), p)
}

// SatisfiableContext is Satisfiable with cancellation.
func (e *Evaluator) SatisfiableContext(ctx context.Context, p *constraint.Problem) (bool, error) {
	m, err := Compile(p)
	if err != nil {
		return false, err
	}
	status, _, _, err := e.solver.Solve(ctx, m)
	switch status {
	case Sat:
		return true, nil
	case Unsat:
		return false, nil
	default:
		return false, err
	}
}

// Compile translates a bound problem into a model. Over the integers
// a < b is posted as a - b + 1 <= 0.
func Compile(p *constraint.Problem) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := NewModel()
	for _, b := range p.Bindings() {
		if _, err := m.IntVar(b.Name, b.Value, b.Value); err != nil {
			return nil, err
		}
	}
	for _, c := range p.Constraints() {
		diff := c.Diff()
		terms := diff.Terms()
		vars := make([]*IntVar, len(terms))
		coeffs := make([]int64, len(terms))
		for i, t := range terms {
			v, ok := m.Lookup(t.Var)
			if !ok {
				return nil, fmt.Errorf("%w: %s", constraint.ErrUnboundVariable, t.Var)
			}
			vars[i], coeffs[i] = v, t.Coef
		}
		k, op := diff.Constant(), OpLe
		switch c.Rel {
		case constraint.RelLt:
			k++
		case constraint.RelEq:
			op = OpEq
		}
		lin, err := NewLinear(vars, coeffs, k, op)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		if err := m.Post(lin); err != nil {
			return nil, err
		}
	}
	return m, nil
}
