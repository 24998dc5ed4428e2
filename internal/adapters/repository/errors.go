package repository

import "errors"

// Sentinel errors for report storage.
var (
	ErrNotFound      = errors.New("run not found")
	ErrInvalidLimit  = errors.New("invalid list limit")
	ErrInvalidReport = errors.New("report has no run id")
	ErrClosed        = errors.New("store closed")
)
