package constraint

import "errors"

// Sentinel errors for problem construction and evaluation.
var (
	ErrInvalidProblem    = errors.New("invalid constraint problem")
	ErrUnboundVariable   = errors.New("unbound variable")
	ErrOverflow          = errors.New("integer overflow")
	ErrSolverUnavailable = errors.New("constraint solver unavailable")
	ErrUnknownMode       = errors.New("unknown evaluator mode")
)
