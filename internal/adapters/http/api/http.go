// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/plank/internal/domain/classify"
	"github.com/okian/plank/internal/domain/dedupe"
	"github.com/okian/plank/internal/domain/model"
	"github.com/okian/plank/internal/domain/pose"
	"github.com/okian/plank/internal/domain/session"
	"github.com/okian/plank/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// EnqueueFrame pushes a frame for async processing. Returns false on backpressure.
	EnqueueFrame(ctx context.Context, f model.Frame) bool

	// Classify runs the classifier on a single frame with no session side effects.
	Classify(f pose.Frame) classify.Result

	// Session operations expose live tracker state.
	SessionState(ctx context.Context, sessionID string) (session.State, bool)
	ResetSession(ctx context.Context, sessionID string) bool

	// Read operations expose leaderboard data.
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, subjectID string) (Entry, error)

	// Hold history reads.
	RecentHolds(ctx context.Context, subjectID string, limit int) ([]HoldRecord, error)
	HoldSummary(ctx context.Context, subjectID string) (HoldSummary, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// HoldRecord mirrors the read shape returned by hold history queries.
type HoldRecord = types.HoldRecord

// HoldSummary mirrors the aggregate shape returned by hold history queries.
type HoldSummary = types.HoldSummary

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	framesHandler      *FramesHandler
	classifyHandler    *ClassifyHandler
	sessionsHandler    *SessionsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	holdsHandler       *HoldsHandler
	dashboardHandler   *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		framesHandler:      NewFramesHandler(deps),
		classifyHandler:    NewClassifyHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		holdsHandler:       NewHoldsHandler(deps, maxLimit),
		dashboardHandler:   newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux, deps Dependencies) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/frames", MetricsMiddleware(s.framesHandler.HandlePostFrame, "frames"))
	mux.HandleFunc("/classify", MetricsMiddleware(s.classifyHandler.HandleClassify, "classify"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.sessionsHandler.HandleSessions, "sessions"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/holds/", MetricsMiddleware(s.holdsHandler.HandleGetHolds, "holds"))
}

// frameRequest mirrors the OpenAPI schema for POST /frames.
type frameRequest struct {
	FrameID   string     `json:"frame_id"`
	SessionID string     `json:"session_id"`
	SubjectID string     `json:"subject_id"`
	TS        string     `json:"ts"`
	Landmarks pose.Frame `json:"landmarks"`
}

func (f frameRequest) validate() error {
	switch {
	case strings.TrimSpace(f.FrameID) == "":
		return errors.New("missing frame_id")
	case strings.TrimSpace(f.SessionID) == "":
		return errors.New("missing session_id")
	case strings.TrimSpace(f.SubjectID) == "":
		return errors.New("missing subject_id")
	case strings.TrimSpace(f.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, f.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	// A short or empty landmark list is a valid no-person frame, not an error.
	return nil
}

// toFrame converts a validated request into the domain frame.
func (f frameRequest) toFrame() model.Frame {
	ts, _ := time.Parse(time.RFC3339, f.TS)
	return model.Frame{
		FrameID:   f.FrameID,
		SessionID: f.SessionID,
		SubjectID: f.SubjectID,
		TS:        ts,
		Landmarks: f.Landmarks,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
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

// isNotFound allows the API to translate upstream not-found errors to 404.
// This stays generic to avoid tight coupling with specific packages.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// isDisabled detects the sink-disabled condition from upstream errors.
func isDisabled(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "disabled")
}
