//go:build !nofdsolver

package fdsolver

import "github.com/okian/guardrail/internal/domain/constraint"

func init() { //nolint:gochecknoinits // solver registration, like database/sql drivers
	constraint.RegisterSolver(Name, func() (constraint.Evaluator, error) {
		return New(), nil
	})
}
