// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// HoldDependencies defines the interface for hold history queries.
type HoldDependencies interface {
	RecentHolds(ctx context.Context, subjectID string, limit int) ([]HoldRecord, error)
	HoldSummary(ctx context.Context, subjectID string) (HoldSummary, error)
}

// HoldsHandler handles hold history requests for a subject.
type HoldsHandler struct {
	deps     HoldDependencies
	maxLimit int
}

// NewHoldsHandler creates a new holds handler with the given limit cap.
func NewHoldsHandler(deps HoldDependencies, maxLimit int) *HoldsHandler {
	return &HoldsHandler{deps: deps, maxLimit: maxLimit}
}

type holdsResponse struct {
	SubjectID string       `json:"subject_id"`
	Summary   HoldSummary  `json:"summary"`
	Holds     []HoldRecord `json:"holds"`
}

const defaultHoldsLimit = 20

// HandleGetHolds handles GET /holds/{subject_id}?limit=N requests. The
// response pairs the subject's recent holds with their aggregate summary.
func (h *HoldsHandler) HandleGetHolds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	subjectID := strings.TrimPrefix(r.URL.Path, "/holds/")
	if subjectID == "" || strings.Contains(subjectID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	limit := defaultHoldsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", ErrInvalidLimit)
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	holds, err := h.deps.RecentHolds(r.Context(), subjectID, limit)
	if err != nil {
		if isDisabled(err) {
			writeError(w, http.StatusNotFound, "history_disabled", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap("holds", err))
		return
	}

	summary, err := h.deps.HoldSummary(r.Context(), subjectID)
	if err != nil {
		if isDisabled(err) {
			writeError(w, http.StatusNotFound, "history_disabled", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap("holds", err))
		return
	}

	if holds == nil {
		holds = []HoldRecord{}
	}
	writeJSON(w, http.StatusOK, holdsResponse{
		SubjectID: subjectID,
		Summary:   summary,
		Holds:     holds,
	})
}
