package api

import (
	"errors"
	"net/http"

	"github.com/okian/guardrail/internal/domain/guard"
	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/internal/domain/runner"
	"github.com/okian/guardrail/pkg/metrics"
)

// Pointer fields make omitted values a validation error instead of a zero.
type tripletRequest struct {
	Onset   *int `json:"onset" validate:"required"`
	Apex    *int `json:"apex" validate:"required"`
	Offset  *int `json:"offset" validate:"required"`
	NFrames *int `json:"n_frames" validate:"required"`
}

type windowRequest struct {
	Start   *int `json:"start" validate:"required"`
	Length  *int `json:"length" validate:"required"`
	NFrames *int `json:"n_frames" validate:"required"`
}

type samplingRequest struct {
	Frames      *int     `json:"frames" validate:"required"`
	FPS         *float64 `json:"fps" validate:"required"`
	DurationSec *float64 `json:"duration_sec" validate:"required"`
	Tolerance   *float64 `json:"tolerance,omitempty"`
}

type resultResponse struct {
	OK      bool       `json:"ok"`
	Message string     `json:"message"`
	Kind    guard.Kind `json:"kind"`
}

type invariantResponse struct {
	OK        bool   `json:"ok"`
	Invariant string `json:"invariant,omitempty"`
	Message   string `json:"message"`
}

// ChecksHandler serves the synchronous single-check endpoints.
type ChecksHandler struct {
	deps     Dependencies
	defaults runner.Defaults
}

// NewChecksHandler creates a new checks handler.
func NewChecksHandler(deps Dependencies, defaults runner.Defaults) *ChecksHandler {
	return &ChecksHandler{deps: deps, defaults: defaults}
}

// HandleEventTriplet serves POST /checks/event-triplet.
func (h *ChecksHandler) HandleEventTriplet(w http.ResponseWriter, r *http.Request) {
	var req tripletRequest
	if !h.read(w, r, "api.check_event_triplet", &req) {
		return
	}
	res := h.deps.Checker().EventTriplet(*req.Onset, *req.Apex, *req.Offset, *req.NFrames)
	writeResult(w, guard.InvariantEventTriplet, res)
}

// HandleWindow serves POST /checks/window.
func (h *ChecksHandler) HandleWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if !h.read(w, r, "api.check_window", &req) {
		return
	}
	res := h.deps.Checker().WindowBounds(*req.Start, *req.Length, *req.NFrames)
	writeResult(w, guard.InvariantWindowBounds, res)
}

// HandleSampling serves POST /checks/sampling.
func (h *ChecksHandler) HandleSampling(w http.ResponseWriter, r *http.Request) {
	var req samplingRequest
	if !h.read(w, r, "api.check_sampling", &req) {
		return
	}
	tol := h.defaults.Tolerance
	if req.Tolerance != nil {
		tol = *req.Tolerance
	}
	res := h.deps.Checker().SamplingConsistency(*req.Frames, *req.FPS, *req.DurationSec, tol)
	writeResult(w, guard.InvariantSampling, res)
}

// HandleSplits serves POST /checks/splits.
func (h *ChecksHandler) HandleSplits(w http.ResponseWriter, r *http.Request) {
	var req model.SplitAssignment
	if !h.read(w, r, "api.check_splits", &req) {
		return
	}
	writeInvariant(w, guard.InvariantDisjointSplits, guard.AssertDisjointSplits(req.Train, req.Val, req.Test))
}

// HandleClasses serves POST /checks/classes.
func (h *ChecksHandler) HandleClasses(w http.ResponseWriter, r *http.Request) {
	var req model.LabelPopulation
	if !h.read(w, r, "api.check_classes", &req) {
		return
	}
	minCount := h.defaults.MinCount
	if req.MinCount != nil {
		minCount = *req.MinCount
	}
	writeInvariant(w, guard.InvariantClassPresence, guard.MinClassPresence(req.LabelsBySplit, minCount))
}

// HandleLabels serves POST /checks/labels.
func (h *ChecksHandler) HandleLabels(w http.ResponseWriter, r *http.Request) {
	var req model.LabelDomain
	if !h.read(w, r, "api.check_labels", &req) {
		return
	}
	allowed := req.Allowed
	if len(allowed) == 0 {
		allowed = h.defaults.AllowedLabels
	}
	writeInvariant(w, guard.InvariantLabelDomain, guard.AssertLabelDomain(req.Labels, allowed))
}

// read decodes and validates a POST body, writing the error response itself.
func (h *ChecksHandler) read(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if r.Method != http.MethodPost {
		writeKindError(w, NewKind(op, ErrMethodNotAllowed))
		return false
	}
	if err := decodeJSON(w, r, v); err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return false
	}
	if err := model.Validator().Struct(v); err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, errors.New(model.DescribeValidation(err))))
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, check string, res guard.Result) {
	metrics.RecordCheck(check, res.Kind.String())
	writeJSON(w, http.StatusOK, resultResponse{OK: res.OK, Message: res.Message, Kind: res.Kind})
}

func writeInvariant(w http.ResponseWriter, check string, err error) {
	if err == nil {
		metrics.RecordCheck(check, guard.KindOK.String())
		writeJSON(w, http.StatusOK, invariantResponse{OK: true, Message: guard.MessageOK})
		return
	}
	invariant := guard.InvariantOf(err)
	metrics.RecordCheck(check, guard.KindViolation.String())
	metrics.RecordFinding(invariant)
	writeJSON(w, http.StatusUnprocessableEntity, invariantResponse{OK: false, Invariant: invariant, Message: err.Error()})
}
