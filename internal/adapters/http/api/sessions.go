// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/plank/internal/domain/session"
)

// SessionDependencies defines the interface for session operations.
type SessionDependencies interface {
	SessionState(ctx context.Context, sessionID string) (session.State, bool)
	ResetSession(ctx context.Context, sessionID string) bool
}

// SessionsHandler handles session state and reset requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type resetResponse struct {
	Status string `json:"status"`
}

// HandleSessions handles GET /sessions/{session_id} and
// POST /sessions/{session_id}/reset requests.
func (h *SessionsHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")

	if rest, ok := strings.CutSuffix(path, "/reset"); ok {
		h.handleReset(w, r, rest)
		return
	}

	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	state, ok := h.deps.SessionState(r.Context(), path)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *SessionsHandler) handleReset(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if !h.deps.ResetSession(r.Context(), sessionID) {
		writeError(w, http.StatusNotFound, "not_found", ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Status: "reset"})
}
