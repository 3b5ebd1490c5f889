package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/infrastructure/scheduler"
	"github.com/edupulse/risk-engine/internal/interface/http/handlers"
)

const testStudentID = shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000080")

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type stubAlertRepo struct {
	byID map[string]*alert.Alert
}

func (r *stubAlertRepo) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrAlertNotFound
	}
	return a, nil
}

func (r *stubAlertRepo) Create(ctx context.Context, a *alert.Alert) error { return nil }
func (r *stubAlertRepo) Update(ctx context.Context, a *alert.Alert) error { return nil }
func (r *stubAlertRepo) FindOpen(ctx context.Context, studentID shared.StudentID, alertType alert.Type) (*alert.Alert, error) {
	return nil, shared.ErrAlertNotFound
}
func (r *stubAlertRepo) ListNonTerminal(ctx context.Context) ([]*alert.Alert, error) {
	return nil, nil
}
func (r *stubAlertRepo) CountOpenByStudent(ctx context.Context, studentID shared.StudentID, exclude ...alert.Type) (int, error) {
	return 0, nil
}
func (r *stubAlertRepo) ListByStudent(ctx context.Context, studentID shared.StudentID, limit int) ([]*alert.Alert, error) {
	var out []*alert.Alert
	for _, a := range r.byID {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return cfg
}

func newTestServer(t *testing.T, cfg Config, deps Dependencies) *Server {
	t.Helper()
	deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, deps)
}

func (s *Server) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func newStoredAlert(t *testing.T, repo *stubAlertRepo) *alert.Alert {
	t.Helper()
	a, err := alert.New(testStudentID, alert.TypeAttendanceLow, shared.PriorityHigh,
		"Attendance critically low", "attendance 55.0% is below the 60% critical threshold",
		alert.Trigger{TriggerValue: 55, Threshold: 60, CurrentValue: 55},
		true, "risk-engine", time.Now().UTC())
	require.NoError(t, err)
	repo.byID[a.ID] = a
	return a
}

// ─────────────────────────────────────────────────────────────────────────────
// Health and status
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)

	// The Kubernetes alias serves the same handler.
	rr = s.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthEndpoint_FailingCheck(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("v1")
	checker.AddCheck("postgres", func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	s := newTestServer(t, testConfig(), Dependencies{HealthChecker: checker})

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = s.serve(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	// Liveness stays up while a dependency is down.
	rr = s.serve(httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Risk Engine API")
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := s.serve(req)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))

	rr = s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.APIKeys = []string{"k1"}
	s := newTestServer(t, cfg, Dependencies{})

	// Reads stay open.
	rr := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	// Mutations need a key.
	rr = s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/recompute_all/run", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decodeResponse(t, rr).Error.Code)

	// With a valid key the request reaches the handler, which reports the
	// missing scheduler rather than an auth failure.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/recompute_all/run", nil)
	req.Header.Set("X-API-Key", "k1")
	rr = s.serve(req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "scheduler_unavailable", decodeResponse(t, rr).Error.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	rr := s.serve(req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://dashboard.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	s := newTestServer(t, cfg, Dependencies{})

	for i := 0; i < 2; i++ {
		rr := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Read endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestGetAlert(t *testing.T) {
	repo := &stubAlertRepo{byID: make(map[string]*alert.Alert)}
	a := newStoredAlert(t, repo)
	s := newTestServer(t, testConfig(), Dependencies{Alerts: repo})

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/alerts/"+a.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeResponse(t, rr)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, a.ID, data["id"])
	assert.Equal(t, "ATTENDANCE_LOW", data["type"])
	assert.Equal(t, "High", data["priority"])
	assert.Equal(t, "Active", data["status"])
}

func TestGetAlert_NotFound(t *testing.T) {
	repo := &stubAlertRepo{byID: make(map[string]*alert.Alert)}
	s := newTestServer(t, testConfig(), Dependencies{Alerts: repo})

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/alerts/no-such-alert", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeResponse(t, rr).Error.Code)
}

func TestGetStudentAlerts(t *testing.T) {
	repo := &stubAlertRepo{byID: make(map[string]*alert.Alert)}
	newStoredAlert(t, repo)
	s := newTestServer(t, testConfig(), Dependencies{Alerts: repo})

	rr := s.serve(httptest.NewRequest(http.MethodGet,
		"/api/v1/students/"+testStudentID.String()+"/alerts", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	data, ok := decodeResponse(t, rr).Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 1)
}

func TestInvalidStudentIDRejected(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/students/not-a-uuid/risk", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_student_id", decodeResponse(t, rr).Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutation validation
// ─────────────────────────────────────────────────────────────────────────────

func TestAlertTransition_RequiresBody(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	rr := s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/alerts/a-1/acknowledge", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAlertTransition_RequiresUserID(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/a-1/acknowledge",
		strings.NewReader(`{"notes":"looking into it"}`))
	rr := s.serve(req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeResponse(t, rr).Error.Message, "user_id")
}

func TestPlanIntervention_InvalidStudentID(t *testing.T) {
	s := newTestServer(t, testConfig(), Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/interventions",
		strings.NewReader(`{"student_id":"nope","type":"counseling"}`))
	rr := s.serve(req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Job endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestJobEndpoints(t *testing.T) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timezone: time.UTC,
	})
	s := newTestServer(t, testConfig(), Dependencies{Scheduler: sched})

	rr := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	data, ok := decodeResponse(t, rr).Data.([]interface{})
	require.True(t, ok)
	assert.Empty(t, data)

	rr = s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/no-such-job/run", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "job_not_found", decodeResponse(t, rr).Error.Code)
}
