// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/plank/internal/domain/classify"
	"github.com/okian/plank/internal/domain/pose"
)

// ClassifyDependencies defines the interface for synchronous classification
type ClassifyDependencies interface {
	Classify(f pose.Frame) classify.Result
}

// ClassifyHandler handles one-shot classification requests
type ClassifyHandler struct {
	deps ClassifyDependencies
}

// NewClassifyHandler creates a new classify handler
func NewClassifyHandler(deps ClassifyDependencies) *ClassifyHandler {
	return &ClassifyHandler{deps: deps}
}

// classifyRequest mirrors the OpenAPI schema for POST /classify.
type classifyRequest struct {
	Landmarks pose.Frame `json:"landmarks"`
}

// HandleClassify handles POST /classify requests. The frame is classified
// synchronously with no session or gate side effects; clients use this to
// calibrate camera placement before starting a timed session.
func (h *ClassifyHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	const op = "api.classify"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	// An absent or truncated landmark list classifies as "no person",
	// which is exactly what a calibrating client needs to see.
	writeJSON(w, http.StatusOK, h.deps.Classify(req.Landmarks))
}
