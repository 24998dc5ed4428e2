package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/guardrail/internal/domain/model"
)

// IdempotencyHeader carries the idempotency key of POST /runs.
const IdempotencyHeader = "Idempotency-Key"

// RunsHandler handles run submission and report reads.
type RunsHandler struct {
	deps    Dependencies
	maxList int
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies, maxList int) *RunsHandler {
	return &RunsHandler{deps: deps, maxList: maxList}
}

// HandleRuns serves POST /runs and GET /runs.
func (h *RunsHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		writeKindError(w, NewKind("api.runs", ErrMethodNotAllowed))
	}
}

func (h *RunsHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_run"
	var m model.Manifest
	if err := decodeJSON(w, r, &m); err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" {
		key = strings.TrimSpace(m.IdempotencyKey)
	}
	if err := m.Validate(); err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, err := h.deps.Submit(r.Context(), m, key)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	w.Header().Set("Location", "/runs/"+sub.RunID)
	writeJSON(w, http.StatusAccepted, sub)
}

type listResponse struct {
	Runs  []model.Report `json:"runs"`
	Count int            `json:"count"`
}

func (h *RunsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_runs"
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > h.maxList {
			writeKindError(w, WrapKind(op, ErrBadRequest,
				errors.New("limit must be an integer in [1, "+strconv.Itoa(h.maxList)+"]")))
			return
		}
		limit = n
	}
	reports, err := h.deps.Reports(r.Context(), limit)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	writeJSON(w, http.StatusOK, listResponse{Runs: reports, Count: len(reports)})
}

// HandleGetRun serves GET /runs/{id}.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run"
	if r.Method != http.MethodGet {
		writeKindError(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeKindError(w, WrapKind(op, ErrBadRequest, errors.New("missing run id")))
		return
	}
	rep, err := h.deps.Report(r.Context(), id)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
