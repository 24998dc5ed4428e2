package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrUnknownStrategy = errors.New("unknown evaluator strategy")
)
