package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lernhub/progress-engine/internal/application/command"
	"github.com/lernhub/progress-engine/internal/application/query"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "LernHub Progress Engine API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":      "/health",
			"submissions": "/api/v1/submissions",
			"profile":     "/api/v1/profile",
			"history":     "/api/v1/profile/history",
			"streak":      "/api/v1/profile/streak",
			"badges":      "/api/v1/profile/badges",
		},
	}
	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// submitAnswerRequest is the POST /api/v1/submissions body.
type submitAnswerRequest struct {
	QuestionID    string          `json:"question_id"`
	Answer        json.RawMessage `json:"answer"`
	AttemptNumber int             `json:"attempt_number,omitempty"`
}

// submitAnswerResponse is the grading outcome returned to the client.
// Success reports the full pipeline: a graded answer whose rewards could
// not be applied comes back success=false so clients can retry.
type submitAnswerResponse struct {
	Success         bool            `json:"success"`
	IsCorrect       bool            `json:"is_correct"`
	Verdict         string          `json:"verdict"`
	Feedback        string          `json:"feedback,omitempty"`
	AttemptFeedback string          `json:"attempt_feedback,omitempty"`
	AttemptNumber   int             `json:"attempt_number,omitempty"`
	Guest           bool            `json:"guest,omitempty"`
	RewardsSkipped  bool            `json:"rewards_skipped,omitempty"`
	XPAwarded       int             `json:"xp_awarded"`
	TotalXP         int             `json:"total_xp,omitempty"`
	Level           int             `json:"level,omitempty"`
	LeveledUp       bool            `json:"leveled_up,omitempty"`
	Events          []eventEnvelope `json:"events"`
	SubmittedAt     string          `json:"submitted_at"`
}

// eventEnvelope is the wire form of a domain event. The presentation layer
// drives celebration UI (level-up, badge unlock) off this list.
type eventEnvelope struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func envelopeEvents(events []shared.Event) []eventEnvelope {
	out := make([]eventEnvelope, 0, len(events))
	for _, e := range events {
		out = append(out, eventEnvelope{
			Type:    string(e.EventType()),
			Payload: e.Payload(),
		})
	}
	return out
}

// handleSubmitAnswer handles POST /api/v1/submissions.
// Unauthenticated callers get graded in guest mode; nothing is persisted
// for them.
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req submitAnswerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if s.deps.SubmitAnswerHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Submission handler not configured")
		return
	}

	id := identityFrom(r.Context())
	cmd := command.SubmitAnswerCommand{
		UserID:        id.UserID,
		QuestionID:    req.QuestionID,
		Answer:        req.Answer,
		AttemptNumber: req.AttemptNumber,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.SubmitAnswerHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "submit answer")
		return
	}

	resp := submitAnswerResponse{
		Success:         !result.RewardsSkipped,
		IsCorrect:       result.IsCorrect,
		Verdict:         string(result.Verdict),
		Feedback:        result.Feedback,
		AttemptFeedback: result.AttemptFeedback,
		AttemptNumber:   result.AttemptNumber,
		Guest:           result.Guest,
		RewardsSkipped:  result.RewardsSkipped,
		XPAwarded:       result.XPAwarded,
		TotalXP:         result.NewTotal,
		Level:           result.NewLevel,
		LeveledUp:       result.LeveledUp(),
		Events:          envelopeEvents(result.Events),
		SubmittedAt:     result.SubmittedAt.UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// requireUser extracts the authenticated user ID or writes a 401.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := identityFrom(r.Context())
	if id.Guest || id.UserID == "" {
		writeJSONError(w, http.StatusUnauthorized, "authentication_required", "This endpoint requires authentication")
		return "", false
	}
	return id.UserID, true
}

// handleGetProfile handles GET /api/v1/profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetRewardProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Profile handler not configured")
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	q := query.GetRewardProfileQuery{
		UserID:        userID,
		IncludeStreak: getQueryParamBool(r, "include_streak"),
	}
	result, err := s.deps.GetRewardProfileHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "get profile")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetHistory handles GET /api/v1/profile/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetXPHistoryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "History handler not configured")
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	q := query.GetXPHistoryQuery{
		UserID: userID,
		Limit:  getQueryParamInt(r, "limit", 0),
		Offset: getQueryParamInt(r, "offset", 0),
	}
	result, err := s.deps.GetXPHistoryHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "get xp history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetStreak handles GET /api/v1/profile/streak.
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStreakHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Streak handler not configured")
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.deps.GetStreakHandler.Handle(r.Context(), query.GetStreakQuery{UserID: userID})
	if err != nil {
		s.writeDomainError(w, r, err, "get streak")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetBadges handles GET /api/v1/profile/badges.
func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetBadgesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Badges handler not configured")
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.deps.GetBadgesHandler.Handle(r.Context(), query.GetBadgesQuery{UserID: userID})
	if err != nil {
		s.writeDomainError(w, r, err, "get badges")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleReconcile handles POST /api/v1/admin/reconcile.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reconciler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Reconciler not configured")
		return
	}

	repaired, err := s.deps.Reconciler.Reconcile(r.Context())
	if err != nil {
		s.logger.Error("manual reconciliation failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"repaired_profiles": repaired,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("request failed",
			logger.String("op", op),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
