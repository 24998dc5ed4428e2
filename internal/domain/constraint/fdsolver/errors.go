package fdsolver

import "errors"

var (
	ErrDuplicateVariable = errors.New("fdsolver: duplicate variable")
	ErrEmptyDomain       = errors.New("fdsolver: empty domain")
	ErrOutOfRange        = errors.New("fdsolver: value outside solver range")
	ErrInvalidConstraint = errors.New("fdsolver: invalid constraint")
	ErrNodeLimit         = errors.New("fdsolver: search node limit reached")
)
