package recompute

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/risk-engine/internal/application/alerting"
	"github.com/edupulse/risk-engine/internal/application/assess"
	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/intervention"
	"github.com/edupulse/risk-engine/internal/domain/prediction"
	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/domain/student"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// fakeStore doubles as the student reader, summary write-back, and cache.
type fakeStore struct {
	mu        sync.Mutex
	signals   map[shared.StudentID]*student.Signals
	summaries map[shared.StudentID]student.RiskSummary
	cached    map[shared.StudentID]student.RiskSummary
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		signals:   make(map[shared.StudentID]*student.Signals),
		summaries: make(map[shared.StudentID]student.RiskSummary),
		cached:    make(map[shared.StudentID]student.RiskSummary),
	}
}

func (s *fakeStore) ListActiveIDs(ctx context.Context) ([]shared.StudentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]shared.StudentID, 0, len(s.signals))
	for id := range s.signals {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeStore) GetSignals(ctx context.Context, id shared.StudentID) (*student.Signals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return sig, nil
}

func (s *fakeStore) WriteRiskSummary(ctx context.Context, summary student.RiskSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.StudentID] = summary
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id shared.StudentID) (*student.RiskSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.cached[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &summary, nil
}

func (s *fakeStore) Set(ctx context.Context, summary student.RiskSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[summary.StudentID] = summary
	return nil
}

type memPredictionRepo struct {
	mu      sync.Mutex
	rows    []*prediction.Prediction
	failRec int // number of Record calls that fail with a conflict first
}

func (r *memPredictionRepo) Record(ctx context.Context, p *prediction.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRec > 0 {
		r.failRec--
		return shared.ErrPredictionConflict
	}
	for _, row := range r.rows {
		if row.StudentID == p.StudentID {
			row.IsActive = false
		}
	}
	r.rows = append(r.rows, p)
	return nil
}

func (r *memPredictionRepo) GetActive(ctx context.Context, studentID shared.StudentID) (*prediction.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.StudentID == studentID && row.IsActive {
			return row, nil
		}
	}
	return nil, shared.ErrNoActivePrediction
}

func (r *memPredictionRepo) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.IsActive && row.IsExpired(now) {
			row.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memPredictionRepo) History(ctx context.Context, studentID shared.StudentID, limit int) ([]*prediction.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*prediction.Prediction, 0)
	for i := len(r.rows) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if r.rows[i].StudentID == studentID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

type memAlertRepo struct {
	mu   sync.Mutex
	byID map[string]*alert.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{byID: make(map[string]*alert.Alert)}
}

func (r *memAlertRepo) Create(ctx context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.StudentID == a.StudentID && existing.Type == a.Type && !existing.IsTerminal() {
			return shared.ErrAlertConflict
		}
	}
	r.byID[a.ID] = a
	return nil
}

func (r *memAlertRepo) Update(ctx context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; !ok {
		return shared.ErrAlertNotFound
	}
	r.byID[a.ID] = a
	return nil
}

func (r *memAlertRepo) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrAlertNotFound
	}
	return a, nil
}

func (r *memAlertRepo) FindOpen(ctx context.Context, studentID shared.StudentID, alertType alert.Type) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.StudentID == studentID && a.Type == alertType && !a.IsTerminal() {
			return a, nil
		}
	}
	return nil, shared.ErrAlertNotFound
}

func (r *memAlertRepo) ListNonTerminal(ctx context.Context) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*alert.Alert, 0, len(r.byID))
	for _, a := range r.byID {
		if !a.IsTerminal() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAlertRepo) CountOpenByStudent(ctx context.Context, studentID shared.StudentID, exclude ...alert.Type) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
outer:
	for _, a := range r.byID {
		if a.StudentID != studentID || a.IsTerminal() {
			continue
		}
		for _, t := range exclude {
			if a.Type == t {
				continue outer
			}
		}
		count++
	}
	return count, nil
}

func (r *memAlertRepo) ListByStudent(ctx context.Context, studentID shared.StudentID, limit int) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*alert.Alert, 0)
	for _, a := range r.byID {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memInterventionRepo struct {
	mu   sync.Mutex
	byID map[string]*intervention.Intervention
}

func newMemInterventionRepo() *memInterventionRepo {
	return &memInterventionRepo{byID: make(map[string]*intervention.Intervention)}
}

func (r *memInterventionRepo) Create(ctx context.Context, iv *intervention.Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[iv.ID] = iv
	return nil
}

func (r *memInterventionRepo) Update(ctx context.Context, iv *intervention.Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[iv.ID] = iv
	return nil
}

func (r *memInterventionRepo) GetByID(ctx context.Context, id string) (*intervention.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrInterventionNotFound
	}
	return iv, nil
}

func (r *memInterventionRepo) ListByStudent(ctx context.Context, studentID shared.StudentID) ([]*intervention.Intervention, error) {
	return nil, nil
}

func (r *memInterventionRepo) ListOverdue(ctx context.Context, now time.Time) ([]*intervention.Intervention, error) {
	return nil, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) countOf(eventType shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type harness struct {
	svc         *Service
	store       *fakeStore
	predictions *memPredictionRepo
	alerts      *memAlertRepo
	publisher   *capturePublisher
	clock       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:       newFakeStore(),
		predictions: &memPredictionRepo{},
		alerts:      newMemAlertRepo(),
		publisher:   &capturePublisher{},
		clock:       time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return h.clock }

	cuts := shared.RiskCuts{Medium: 0.33, High: 0.66}
	manager := alerting.NewManager(h.alerts, newMemInterventionRepo(), h.publisher,
		alerting.Windows{Critical: 2 * time.Hour, High: 24 * time.Hour, Medium: 72 * time.Hour},
		logger).WithClock(clock)

	h.svc = NewService(
		assess.NewExtractor(h.store),
		assess.NewWeightedScorer(cuts),
		assess.NewEvaluator(assess.Thresholds{
			AttendanceWarn:     75,
			AttendanceCrit:     60,
			GradeDeclineStreak: 2,
			HighCut:            0.66,
			CriticalCut:        0.85,
			CriticalOpenAlerts: 2,
		}),
		h.predictions,
		h.alerts,
		manager,
		h.store,
		h.store,
		h.store,
		h.publisher,
		logger,
		Config{Validity: 24 * time.Hour, Concurrency: 4},
	).WithClock(clock)
	return h
}

func (h *harness) addStudent(id shared.StudentID, sig student.Signals) {
	sig.StudentID = id
	if sig.Status == "" {
		sig.Status = student.StatusActive
	}
	h.store.signals[id] = &sig
}

func riskySignals() student.Signals {
	return student.Signals{
		Status:                student.StatusActive,
		AttendanceRate:        40,
		CurrentCGPA:           1.0,
		GradeTrend:            shared.TrendDeclining,
		Semester:              2,
		RecentGrades:          []float64{70, 60, 45},
		FeeStatus:             shared.FeeDefaulted,
		DisciplinaryIncidents: 3,
		Displaced:             true,
		Age:                   19,
	}
}

// moderateSignals fires the attendance, grade, and fee rules while keeping
// the dropout probability under the critical cut.
func moderateSignals() student.Signals {
	return student.Signals{
		Status:         student.StatusActive,
		AttendanceRate: 65,
		CurrentCGPA:    2.2,
		GradeTrend:     shared.TrendStable,
		Semester:       3,
		RecentGrades:   []float64{70, 60, 45},
		FeeStatus:      shared.FeeDefaulted,
		Age:            21,
	}
}

func healthySignals() student.Signals {
	return student.Signals{
		Status:         student.StatusActive,
		AttendanceRate: 95,
		CurrentCGPA:    3.8,
		GradeTrend:     shared.TrendImproving,
		Semester:       4,
		RecentGrades:   []float64{88, 90, 92},
		FeeStatus:      shared.FeePaid,
		HasScholarship: true,
		Age:            20,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Single student
// ─────────────────────────────────────────────────────────────────────────────

func TestStudent_RiskyPipeline(t *testing.T) {
	h := newHarness(t)
	id := shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000040")
	h.addStudent(id, riskySignals())

	res, err := h.svc.Student(context.Background(), id)
	require.NoError(t, err)

	require.NotNil(t, res.Prediction)
	assert.Equal(t, shared.RiskHigh, res.Prediction.RiskLevel)
	assert.Equal(t, prediction.OutcomeDropout, res.Prediction.Outcome)
	assert.Equal(t, h.clock.Add(24*time.Hour), res.Prediction.ValidUntil)

	// Attendance, grades, fees, and the probability rule all fire.
	assert.Equal(t, 4, res.AlertsOpened)
	assert.Equal(t, 0, res.AlertsRefresh)

	// The write-back and cache both hold the new summary.
	assert.Equal(t, res.Prediction.RiskScore, h.store.summaries[id].RiskScore)
	assert.Equal(t, shared.RiskHigh, h.store.cached[id].RiskLevel)

	assert.Equal(t, 1, h.publisher.countOf(shared.EventPredictionRecorded))
	assert.Equal(t, 4, h.publisher.countOf(shared.EventAlertOpened))
}

func TestStudent_HealthyOpensNothing(t *testing.T) {
	h := newHarness(t)
	id := shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000041")
	h.addStudent(id, healthySignals())

	res, err := h.svc.Student(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, shared.RiskLow, res.Prediction.RiskLevel)
	assert.Equal(t, 0, res.AlertsOpened)
	assert.Empty(t, h.alerts.byID)
}

func TestStudent_RerunDedups(t *testing.T) {
	h := newHarness(t)
	id := shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000042")
	h.addStudent(id, moderateSignals())
	ctx := context.Background()

	first, err := h.svc.Student(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 3, first.AlertsOpened)

	h.clock = h.clock.Add(24 * time.Hour)
	second, err := h.svc.Student(ctx, id)
	require.NoError(t, err)

	// Same findings land on the same open rows.
	assert.Equal(t, 0, second.AlertsOpened)
	assert.Equal(t, 3, second.AlertsRefresh)
	assert.Len(t, h.alerts.byID, 3)

	// The old prediction is superseded, not kept active.
	active, err := h.predictions.GetActive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second.Prediction.ID, active.ID)
	hist, err := h.predictions.History(ctx, id, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestStudent_RecordConflictRetried(t *testing.T) {
	h := newHarness(t)
	id := shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000043")
	h.addStudent(id, healthySignals())
	h.predictions.failRec = 1

	res, err := h.svc.Student(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, res.Prediction)
}

func TestStudent_InactiveFails(t *testing.T) {
	h := newHarness(t)
	id := shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000044")
	sig := healthySignals()
	sig.Status = student.StatusGraduated
	h.addStudent(id, sig)

	_, err := h.svc.Student(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrStudentNotActive)
}

func TestStudent_CriticalCombination(t *testing.T) {
	h := newHarness(t)
	id := shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000045")
	h.addStudent(id, riskySignals())
	ctx := context.Background()

	// First run opens the pile of ordinary alerts.
	_, err := h.svc.Student(ctx, id)
	require.NoError(t, err)

	// Second run sees them as open context and adds the critical alert.
	second, err := h.svc.Student(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, second.AlertsOpened)

	critical, err := h.alerts.FindOpen(ctx, id, alert.TypeCritical)
	require.NoError(t, err)
	assert.Equal(t, shared.PriorityCritical, critical.Priority)
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch
// ─────────────────────────────────────────────────────────────────────────────

func TestAll(t *testing.T) {
	h := newHarness(t)
	h.addStudent("aaaaaaaa-bbbb-cccc-dddd-eeee00000050", riskySignals())
	h.addStudent("aaaaaaaa-bbbb-cccc-dddd-eeee00000051", healthySignals())
	inactive := healthySignals()
	inactive.Status = student.StatusSuspended
	h.addStudent("aaaaaaaa-bbbb-cccc-dddd-eeee00000052", inactive)

	stats, err := h.svc.All(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Scored)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 4, stats.AlertsOpened)
	assert.Equal(t, 1, h.publisher.countOf(shared.EventRecomputeCompleted))
}

func TestAll_EmptyRoster(t *testing.T) {
	h := newHarness(t)

	stats, err := h.svc.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchStats{Total: 0, Duration: stats.Duration}, stats)
	assert.Equal(t, 1, h.publisher.countOf(shared.EventRecomputeCompleted))
}
