package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/edupulse/risk-engine/internal/application/tracking"
	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/intervention"
	"github.com/edupulse/risk-engine/internal/domain/prediction"
	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Risk Engine API",
		"version":     "v1",
		"description": "Dropout risk scoring, alert escalation, and intervention tracking",
		"endpoints": map[string]string{
			"health":        "/health",
			"risk":          "/api/v1/students/{id}/risk",
			"alerts":        "/api/v1/students/{id}/alerts",
			"interventions": "/api/v1/students/{id}/interventions",
			"jobs":          "/api/v1/jobs",
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

// handleMetrics returns scheduler metrics as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	if s.deps.Scheduler != nil {
		if m := s.deps.Scheduler.GetMetrics(); m != nil {
			metrics["jobs"] = m.Snapshot()
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// RISK READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// predictionDTO is the wire form of a prediction.
type predictionDTO struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"student_id"`
	Probability  float64         `json:"probability"`
	RiskScore    int             `json:"risk_score"`
	RiskLevel    string          `json:"risk_level"`
	Outcome      string          `json:"outcome"`
	Factors      []shared.Factor `json:"factors,omitempty"`
	ModelVersion string          `json:"model_version"`
	ComputedAt   time.Time       `json:"computed_at"`
	ValidUntil   time.Time       `json:"valid_until"`
	IsActive     bool            `json:"is_active"`
}

func toPredictionDTO(p *prediction.Prediction) predictionDTO {
	return predictionDTO{
		ID:           p.ID,
		StudentID:    p.StudentID.String(),
		Probability:  p.Probability.Float64(),
		RiskScore:    p.RiskScore,
		RiskLevel:    p.RiskLevel.String(),
		Outcome:      string(p.Outcome),
		Factors:      p.Factors,
		ModelVersion: p.ModelVersion,
		ComputedAt:   p.ComputedAt,
		ValidUntil:   p.ValidUntil,
		IsActive:     p.IsActive,
	}
}

// handleGetRisk handles GET /api/v1/students/{id}/risk
func (s *Server) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.parseStudentID(w, r)
	if !ok {
		return
	}

	p, err := s.deps.Predictions.GetActive(r.Context(), studentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPredictionDTO(p))
}

// handleGetPredictionHistory handles GET /api/v1/students/{id}/predictions
func (s *Server) handleGetPredictionHistory(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.parseStudentID(w, r)
	if !ok {
		return
	}

	limit := getQueryParamInt(r, "limit", 20)
	history, err := s.deps.Predictions.History(r.Context(), studentID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	dtos := make([]predictionDTO, len(history))
	for i, p := range history {
		dtos[i] = toPredictionDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// alertDTO is the wire form of an alert.
type alertDTO struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"student_id"`
	Type            string     `json:"type"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	TriggerValue    float64    `json:"trigger_value"`
	Threshold       float64    `json:"threshold"`
	CurrentValue    float64    `json:"current_value"`
	EscalationLevel int        `json:"escalation_level"`
	LastEscalatedAt *time.Time `json:"last_escalated_at,omitempty"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	IsAutoGenerated bool       `json:"is_auto_generated"`
	GeneratedBy     string     `json:"generated_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toAlertDTO(a *alert.Alert) alertDTO {
	return alertDTO{
		ID:              a.ID,
		StudentID:       a.StudentID.String(),
		Type:            a.Type.String(),
		Priority:        a.Priority.String(),
		Status:          string(a.Status),
		Title:           a.Title,
		Description:     a.Description,
		TriggerValue:    a.Trigger.TriggerValue,
		Threshold:       a.Trigger.Threshold,
		CurrentValue:    a.Trigger.CurrentValue,
		EscalationLevel: a.EscalationLevel,
		LastEscalatedAt: a.LastEscalatedAt,
		AssignedTo:      a.AssignedTo.String(),
		ResolvedBy:      a.ResolvedBy.String(),
		ResolvedAt:      a.ResolvedAt,
		ResolutionNotes: a.ResolutionNotes,
		IsAutoGenerated: a.IsAutoGenerated,
		GeneratedBy:     a.GeneratedBy,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// handleGetAlert handles GET /api/v1/alerts/{id}
func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Alerts.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAlertDTO(a))
}

// handleGetStudentAlerts handles GET /api/v1/students/{id}/alerts
func (s *Server) handleGetStudentAlerts(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.parseStudentID(w, r)
	if !ok {
		return
	}

	limit := getQueryParamInt(r, "limit", 50)
	alerts, err := s.deps.Alerts.ListByStudent(r.Context(), studentID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	dtos := make([]alertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = toAlertDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// interventionDTO is the wire form of an intervention.
type interventionDTO struct {
	ID                  string                 `json:"id"`
	StudentID           string                 `json:"student_id"`
	AlertID             string                 `json:"alert_id,omitempty"`
	Type                string                 `json:"type"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description,omitempty"`
	AssignedTo          string                 `json:"assigned_to"`
	AssignedBy          string                 `json:"assigned_by"`
	StartDate           time.Time              `json:"start_date"`
	EndDate             time.Time              `json:"end_date"`
	Frequency           string                 `json:"frequency"`
	TotalSessions       int                    `json:"total_sessions"`
	Sessions            []intervention.Session `json:"sessions"`
	Progress            int                    `json:"progress"`
	Status              string                 `json:"status"`
	Outcome             string                 `json:"outcome"`
	EffectivenessRating int                    `json:"effectiveness_rating,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func toInterventionDTO(iv *intervention.Intervention) interventionDTO {
	return interventionDTO{
		ID:                  iv.ID,
		StudentID:           iv.StudentID.String(),
		AlertID:             iv.AlertID,
		Type:                string(iv.Type),
		Title:               iv.Title,
		Description:         iv.Description,
		AssignedTo:          iv.AssignedTo.String(),
		AssignedBy:          iv.AssignedBy.String(),
		StartDate:           iv.Schedule.StartDate,
		EndDate:             iv.Schedule.EndDate,
		Frequency:           string(iv.Schedule.Frequency),
		TotalSessions:       iv.Schedule.TotalSessions,
		Sessions:            iv.Sessions,
		Progress:            iv.Progress(),
		Status:              string(iv.Status),
		Outcome:             string(iv.Outcome),
		EffectivenessRating: iv.EffectivenessRating,
		CreatedAt:           iv.CreatedAt,
		UpdatedAt:           iv.UpdatedAt,
	}
}

// handleGetStudentInterventions handles GET /api/v1/students/{id}/interventions
func (s *Server) handleGetStudentInterventions(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.parseStudentID(w, r)
	if !ok {
		return
	}

	list, err := s.deps.Tracker.ListByStudent(r.Context(), studentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	dtos := make([]interventionDTO, len(list))
	for i, iv := range list {
		dtos[i] = toInterventionDTO(iv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecomputeStudent handles POST /api/v1/students/{id}/recompute
func (s *Server) handleRecomputeStudent(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.parseStudentID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Recompute.Student(r.Context(), studentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prediction":       toPredictionDTO(result.Prediction),
		"alerts_opened":    result.AlertsOpened,
		"alerts_refreshed": result.AlertsRefresh,
	})
}

// actorRequest carries the staff member performing an alert transition.
type actorRequest struct {
	UserID string `json:"user_id"`
	Notes  string `json:"notes,omitempty"`
}

// handleAcknowledgeAlert handles POST /api/v1/alerts/{id}/acknowledge
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	s.handleAlertTransition(w, r, func(alertID string, req actorRequest) (*alert.Alert, error) {
		return s.deps.Manager.Acknowledge(r.Context(), alertID, shared.UserID(req.UserID))
	})
}

// handleStartAlert handles POST /api/v1/alerts/{id}/start
func (s *Server) handleStartAlert(w http.ResponseWriter, r *http.Request) {
	s.handleAlertTransition(w, r, func(alertID string, req actorRequest) (*alert.Alert, error) {
		return s.deps.Manager.StartProgress(r.Context(), alertID, shared.UserID(req.UserID))
	})
}

// handleResolveAlert handles POST /api/v1/alerts/{id}/resolve
func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	s.handleAlertTransition(w, r, func(alertID string, req actorRequest) (*alert.Alert, error) {
		return s.deps.Manager.Resolve(r.Context(), alertID, shared.UserID(req.UserID), req.Notes)
	})
}

// handleDismissAlert handles POST /api/v1/alerts/{id}/dismiss
func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	s.handleAlertTransition(w, r, func(alertID string, req actorRequest) (*alert.Alert, error) {
		return s.deps.Manager.Dismiss(r.Context(), alertID, shared.UserID(req.UserID))
	})
}

// handleAlertTransition decodes the actor, applies the transition, and writes
// the updated alert.
func (s *Server) handleAlertTransition(w http.ResponseWriter, r *http.Request,
	apply func(alertID string, req actorRequest) (*alert.Alert, error)) {

	var req actorRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	a, err := apply(r.PathValue("id"), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAlertDTO(a))
}

// planInterventionRequest is the body of POST /api/v1/interventions.
type planInterventionRequest struct {
	StudentID     string    `json:"student_id"`
	AlertID       string    `json:"alert_id,omitempty"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	AssignedTo    string    `json:"assigned_to"`
	AssignedBy    string    `json:"assigned_by"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Frequency     string    `json:"frequency"`
	TotalSessions int       `json:"total_sessions"`
}

// handlePlanIntervention handles POST /api/v1/interventions
func (s *Server) handlePlanIntervention(w http.ResponseWriter, r *http.Request) {
	var req planInterventionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	studentID, err := shared.NewStudentID(req.StudentID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "student_id must be a valid UUID")
		return
	}

	iv, err := s.deps.Tracker.Plan(r.Context(), tracking.PlanRequest{
		StudentID:  studentID,
		AlertID:    req.AlertID,
		Type:       intervention.Type(req.Type),
		Title:      req.Title,
		AssignedTo: shared.UserID(req.AssignedTo),
		AssignedBy: shared.UserID(req.AssignedBy),
		Schedule: intervention.Schedule{
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
			Frequency:     intervention.Frequency(req.Frequency),
			TotalSessions: req.TotalSessions,
		},
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInterventionDTO(iv))
}

// recordSessionRequest is the body of POST /api/v1/interventions/{id}/sessions.
type recordSessionRequest struct {
	Date        time.Time `json:"date"`
	DurationMin int       `json:"duration_min"`
	Outcome     string    `json:"outcome"`
	Notes       string    `json:"notes,omitempty"`
	ConductedBy string    `json:"conducted_by"`
}

// handleRecordSession handles POST /api/v1/interventions/{id}/sessions
func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	var req recordSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	iv, err := s.deps.Tracker.RecordSession(r.Context(), r.PathValue("id"), intervention.Session{
		Date:        req.Date,
		DurationMin: req.DurationMin,
		Outcome:     intervention.SessionOutcome(req.Outcome),
		Notes:       req.Notes,
		ConductedBy: shared.UserID(req.ConductedBy),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInterventionDTO(iv))
}

// closeInterventionRequest is the body of cancel and rate requests.
type closeInterventionRequest struct {
	Outcome string `json:"outcome"`
	Rating  int    `json:"rating,omitempty"`
}

// handleCancelIntervention handles POST /api/v1/interventions/{id}/cancel
func (s *Server) handleCancelIntervention(w http.ResponseWriter, r *http.Request) {
	var req closeInterventionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	iv, err := s.deps.Tracker.Cancel(r.Context(), r.PathValue("id"), intervention.Outcome(req.Outcome))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInterventionDTO(iv))
}

// handleRateIntervention handles POST /api/v1/interventions/{id}/rate
func (s *Server) handleRateIntervention(w http.ResponseWriter, r *http.Request) {
	var req closeInterventionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	iv, err := s.deps.Tracker.Rate(r.Context(), r.PathValue("id"), intervention.Outcome(req.Outcome), req.Rating)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInterventionDTO(iv))
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "scheduler_unavailable", "Scheduler is not configured")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Scheduler.ListJobs())
}

// handleRunJob handles POST /api/v1/jobs/{name}/run
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "scheduler_unavailable", "Scheduler is not configured")
		return
	}

	name := r.PathValue("name")
	result, err := s.deps.Scheduler.RunNow(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrJobNotFound):
			writeJSONError(w, http.StatusNotFound, "job_not_found", err.Error())
		case errors.Is(err, scheduler.ErrJobRunning):
			writeJSONError(w, http.StatusConflict, "job_running", err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, "job_failed", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// parseStudentID validates the {id} path segment.
func (s *Server) parseStudentID(w http.ResponseWriter, r *http.Request) (shared.StudentID, bool) {
	id, err := shared.NewStudentID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_student_id", "Student ID must be a valid UUID")
		return "", false
	}
	return id, true
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return false
	}
	if len(body) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is required")
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsInvalidTransition(err):
		writeJSONError(w, http.StatusConflict, "invalid_transition", err.Error())
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case shared.IsMalformedInput(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrStudentNotActive):
		writeJSONError(w, http.StatusConflict, "student_not_active", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
