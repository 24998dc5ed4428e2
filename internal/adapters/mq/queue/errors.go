package queue

import "errors"

// Sentinel errors returned to callers that could not enqueue a job.
var (
	ErrFull   = errors.New("queue: full")
	ErrClosed = errors.New("queue: closed")
)
