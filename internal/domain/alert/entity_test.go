package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

const testStudentID = shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000001")

func newTestAlert(t *testing.T, priority shared.Priority, now time.Time) *Alert {
	t.Helper()
	a, err := New(testStudentID, TypeAttendanceLow, priority,
		"Attendance below expected", "attendance 70.0% is below the 75% threshold",
		Trigger{TriggerValue: 70, Threshold: 75, CurrentValue: 70},
		true, "risk-engine", now)
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	a := newTestAlert(t, shared.PriorityMedium, now)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, 0, a.EscalationLevel)
	assert.Nil(t, a.LastEscalatedAt)
	assert.True(t, a.IsAutoGenerated)
	assert.Equal(t, now, a.CreatedAt)
}

func TestNew_Validation(t *testing.T) {
	now := time.Now()

	_, err := New("", TypeAttendanceLow, shared.PriorityMedium, "t", "d", Trigger{}, true, "x", now)
	assert.True(t, shared.IsMalformedInput(err))

	_, err = New(testStudentID, Type("BOGUS"), shared.PriorityMedium, "t", "d", Trigger{}, true, "x", now)
	assert.True(t, shared.IsMalformedInput(err))

	_, err = New(testStudentID, TypeAttendanceLow, shared.Priority("Urgent"), "t", "d", Trigger{}, true, "x", now)
	assert.True(t, shared.IsMalformedInput(err))
}

func TestLifecycle_HappyPath(t *testing.T) {
	now := time.Now()
	a := newTestAlert(t, shared.PriorityMedium, now)

	require.NoError(t, a.Acknowledge("counselor-1", now.Add(time.Minute)))
	assert.Equal(t, StatusAcknowledged, a.Status)
	assert.Equal(t, shared.UserID("counselor-1"), a.AssignedTo)

	require.NoError(t, a.StartProgress("counselor-1", now.Add(2*time.Minute)))
	assert.Equal(t, StatusInProgress, a.Status)

	require.NoError(t, a.Resolve("counselor-1", "met with student", now.Add(time.Hour)))
	assert.Equal(t, StatusResolved, a.Status)
	assert.True(t, a.IsTerminal())
	assert.Equal(t, "met with student", a.ResolutionNotes)
	require.NotNil(t, a.ResolvedAt)
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	now := time.Now()

	a := newTestAlert(t, shared.PriorityMedium, now)

	// StartProgress straight from Active is not allowed.
	err := a.StartProgress("counselor-1", now)
	assert.True(t, shared.IsInvalidTransition(err))

	// Acknowledging twice fails the second time.
	require.NoError(t, a.Acknowledge("counselor-1", now))
	err = a.Acknowledge("counselor-2", now)
	assert.ErrorIs(t, err, shared.ErrAlertNotActive)

	// Terminal alerts reject every mutation.
	require.NoError(t, a.Dismiss("counselor-1", now))
	assert.ErrorIs(t, a.Acknowledge("counselor-1", now), shared.ErrAlertTerminal)
	assert.ErrorIs(t, a.StartProgress("counselor-1", now), shared.ErrAlertTerminal)
	assert.ErrorIs(t, a.Resolve("counselor-1", "", now), shared.ErrAlertTerminal)
	assert.ErrorIs(t, a.Dismiss("counselor-1", now), shared.ErrAlertTerminal)
	assert.ErrorIs(t, a.Refresh(shared.PriorityHigh, 50, now), shared.ErrAlertTerminal)
}

func TestDismissFromAnyNonTerminal(t *testing.T) {
	now := time.Now()

	for _, setup := range []func(*Alert){
		func(a *Alert) {},
		func(a *Alert) { _ = a.Acknowledge("u", now) },
		func(a *Alert) { _ = a.Acknowledge("u", now); _ = a.StartProgress("u", now) },
	} {
		a := newTestAlert(t, shared.PriorityMedium, now)
		setup(a)
		require.NoError(t, a.Dismiss("head-of-year", now))
		assert.Equal(t, StatusDismissed, a.Status)
	}
}

func TestRefresh_PreservesStatusAndEscalation(t *testing.T) {
	now := time.Now()
	a := newTestAlert(t, shared.PriorityMedium, now)
	require.NoError(t, a.Acknowledge("counselor-1", now))
	a.EscalationLevel = 2

	require.NoError(t, a.Refresh(shared.PriorityHigh, 58.5, now.Add(time.Hour)))

	assert.Equal(t, StatusAcknowledged, a.Status)
	assert.Equal(t, 2, a.EscalationLevel)
	assert.Equal(t, shared.PriorityHigh, a.Priority)
	assert.Equal(t, 58.5, a.Trigger.CurrentValue)
	assert.Equal(t, 70.0, a.Trigger.TriggerValue) // first measurement stays
}

func TestEscalation_WindowTiming(t *testing.T) {
	created := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	a := newTestAlert(t, shared.PriorityHigh, created)

	// One hour before the window elapses: not due, Escalate is a no-op.
	early := created.Add(23 * time.Hour)
	assert.False(t, a.EscalationDue(early, window))
	res, err := a.Escalate(early, window)
	require.NoError(t, err)
	assert.False(t, res.Escalated)
	assert.Equal(t, 0, a.EscalationLevel)

	// Past the window: escalates to level 1.
	late := created.Add(25 * time.Hour)
	assert.True(t, a.EscalationDue(late, window))
	res, err = a.Escalate(late, window)
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.False(t, res.PriorityRaised)
	assert.Equal(t, 1, a.EscalationLevel)
	require.NotNil(t, a.LastEscalatedAt)
	assert.Equal(t, late, *a.LastEscalatedAt)

	// The window now anchors on the last escalation, not creation.
	assert.False(t, a.EscalationDue(late.Add(23*time.Hour), window))
	assert.True(t, a.EscalationDue(late.Add(24*time.Hour), window))
}

func TestEscalation_PriorityBumpAtMaxLevel(t *testing.T) {
	created := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	window := 2 * time.Hour
	a := newTestAlert(t, shared.PriorityHigh, created)

	now := created
	for i := 1; i < MaxEscalationLevel; i++ {
		now = now.Add(window)
		res, err := a.Escalate(now, window)
		require.NoError(t, err)
		assert.True(t, res.Escalated)
		assert.False(t, res.PriorityRaised)
	}
	assert.Equal(t, shared.PriorityHigh, a.Priority)

	// Reaching the max level while still unacknowledged raises the priority.
	now = now.Add(window)
	res, err := a.Escalate(now, window)
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.True(t, res.PriorityRaised)
	assert.Equal(t, MaxEscalationLevel, a.EscalationLevel)
	assert.Equal(t, shared.PriorityCritical, a.Priority)

	// At the cap, nothing further happens.
	now = now.Add(window)
	assert.False(t, a.EscalationDue(now, window))
	res, err = a.Escalate(now, window)
	require.NoError(t, err)
	assert.False(t, res.Escalated)
	assert.Equal(t, MaxEscalationLevel, a.EscalationLevel)
}

func TestEscalation_NoBumpWhenAcknowledged(t *testing.T) {
	created := time.Now()
	window := 2 * time.Hour
	a := newTestAlert(t, shared.PriorityHigh, created)
	require.NoError(t, a.Acknowledge("counselor-1", created))
	a.EscalationLevel = MaxEscalationLevel - 1

	res, err := a.Escalate(created.Add(3*time.Hour), window)
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.False(t, res.PriorityRaised)
	assert.Equal(t, shared.PriorityHigh, a.Priority)
}

func TestEscalation_ZeroWindowDisables(t *testing.T) {
	created := time.Now()
	a := newTestAlert(t, shared.PriorityLow, created)

	assert.False(t, a.EscalationDue(created.Add(1000*time.Hour), 0))
	res, err := a.Escalate(created.Add(1000*time.Hour), 0)
	require.NoError(t, err)
	assert.False(t, res.Escalated)
}

func TestEscalation_TerminalFails(t *testing.T) {
	now := time.Now()
	a := newTestAlert(t, shared.PriorityHigh, now)
	require.NoError(t, a.Resolve("u", "", now))

	_, err := a.Escalate(now.Add(48*time.Hour), time.Hour)
	assert.ErrorIs(t, err, shared.ErrAlertTerminal)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusResolved.IsTerminal())
	assert.True(t, StatusDismissed.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.False(t, StatusAcknowledged.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())

	assert.ElementsMatch(t,
		[]Status{StatusActive, StatusAcknowledged, StatusInProgress},
		NonTerminalStatuses())
}
