// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/guardrail/internal/adapters/mq/queue"
	"github.com/okian/guardrail/internal/adapters/repository"
	service "github.com/okian/guardrail/internal/app"
	"github.com/okian/guardrail/internal/domain/guard"
	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/internal/domain/runner"
)

const (
	defaultListLimit = 20
	defaultMaxList   = 500
	maxBodyBytes     = 8 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit accepts a manifest for asynchronous evaluation. key is the
	// idempotency key; an empty key never deduplicates.
	Submit(ctx context.Context, m model.Manifest, key string) (model.Submission, error)

	// Report returns the report of one run.
	Report(ctx context.Context, runID string) (model.Report, error)

	// Reports returns the most recent reports.
	Reports(ctx context.Context, limit int) ([]model.Report, error)

	// Checker evaluates the synchronous check endpoints.
	Checker() *guard.Checker
}

// Option configures the Server.
type Option func(*Server)

// WithMaxListLimit caps the limit accepted by GET /runs.
func WithMaxListLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxList = n
		}
	}
}

// WithCheckDefaults sets the parameters the check endpoints use when a
// request leaves them out.
func WithCheckDefaults(d runner.Defaults) Option {
	return func(s *Server) {
		if d.Tolerance > 0 {
			s.defaults.Tolerance = d.Tolerance
		}
		if d.MinCount > 0 {
			s.defaults.MinCount = d.MinCount
		}
		if len(d.AllowedLabels) > 0 {
			s.defaults.AllowedLabels = append([]int(nil), d.AllowedLabels...)
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	runsHandler   *RunsHandler
	checksHandler *ChecksHandler

	maxList  int
	defaults runner.Defaults
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxList: defaultMaxList,
		defaults: runner.Defaults{
			Tolerance:     guard.DefaultSamplingTolerance,
			MinCount:      guard.DefaultMinClassCount,
			AllowedLabels: guard.DefaultAllowedLabels(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.runsHandler = NewRunsHandler(deps, s.maxList)
	s.checksHandler = NewChecksHandler(deps, s.defaults)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/runs", MetricsMiddleware(s.runsHandler.HandleRuns, "runs"))
	mux.HandleFunc("/runs/", MetricsMiddleware(s.runsHandler.HandleGetRun, "run"))

	mux.HandleFunc("/checks/event-triplet", MetricsMiddleware(s.checksHandler.HandleEventTriplet, "check_event_triplet"))
	mux.HandleFunc("/checks/window", MetricsMiddleware(s.checksHandler.HandleWindow, "check_window"))
	mux.HandleFunc("/checks/sampling", MetricsMiddleware(s.checksHandler.HandleSampling, "check_sampling"))
	mux.HandleFunc("/checks/splits", MetricsMiddleware(s.checksHandler.HandleSplits, "check_splits"))
	mux.HandleFunc("/checks/classes", MetricsMiddleware(s.checksHandler.HandleClasses, "check_classes"))
	mux.HandleFunc("/checks/labels", MetricsMiddleware(s.checksHandler.HandleLabels, "check_labels"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeKindError maps an error's kind to its HTTP status.
func writeKindError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrMethodNotAllowed):
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// classify tags errors from the service layer with an API kind.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidManifest):
		return WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, repository.ErrNotFound):
		return WrapKind(op, ErrNotFound, err)
	case errors.Is(err, queue.ErrFull):
		return WrapKind(op, ErrBackpressure, err)
	case errors.Is(err, queue.ErrClosed), errors.Is(err, repository.ErrClosed), errors.Is(err, service.ErrNotStarted):
		return WrapKind(op, ErrUnavailable, err)
	default:
		return WrapKind(op, ErrInternal, err)
	}
}

// decodeJSON reads one JSON document into v, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode body: unexpected data after JSON document")
	}
	return nil
}
