package guard

import (
	"github.com/okian/guardrail/internal/domain/constraint"
)

// Defaults for the optional parameters of the checks.
const (
	DefaultSamplingTolerance = 0.02
	DefaultMinClassCount     = 5
)

// DefaultAllowedLabels returns the default label domain {0, 1}.
func DefaultAllowedLabels() []int { return []int{0, 1} }

// Option configures a Checker.
type Option func(*Checker)

// WithEvaluator sets the constraint evaluator used by the record checks.
func WithEvaluator(ev constraint.Evaluator) Option {
	return func(c *Checker) {
		if ev != nil {
			c.eval = ev
		}
	}
}

// Checker runs the record-level checks with a fixed evaluator. It holds no
// mutable state and is safe for concurrent use.
type Checker struct {
	eval constraint.Evaluator
}

// New creates a Checker. Without WithEvaluator it uses constraint.Default().
func New(opts ...Option) *Checker {
	c := &Checker{}
	for _, opt := range opts {
		opt(c)
	}
	if c.eval == nil {
		c.eval = constraint.Default()
	}
	return c
}

// Evaluator returns the evaluator in use.
func (c *Checker) Evaluator() constraint.Evaluator { return c.eval }

// satisfiable asks the configured evaluator and falls back to direct
// evaluation for problems the evaluator cannot take (for example values
// outside a solver's range).
func (c *Checker) satisfiable(p *constraint.Problem) (bool, error) {
	ok, err := c.eval.Satisfiable(p)
	if err == nil {
		return ok, nil
	}
	if _, direct := c.eval.(constraint.Direct); direct {
		return false, err
	}
	return constraint.Direct{}.Satisfiable(p)
}
