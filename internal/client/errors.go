package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for API responses.
var (
	ErrNotFound     = errors.New("client: run not found")
	ErrBackpressure = errors.New("client: server is shedding load")
	ErrBadRequest   = errors.New("client: request rejected")
	ErrServer       = errors.New("client: server error")
)

// APIError is a non-2xx response decoded from the API error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the status to one of the sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == 404:
		return ErrNotFound
	case e.Status == 429:
		return ErrBackpressure
	case e.Status >= 400 && e.Status < 500:
		return ErrBadRequest
	default:
		return ErrServer
	}
}
