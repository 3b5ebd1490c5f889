package messaging

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/notification"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

const notifierStudentID = shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000070")

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
	return nil, nil
}

type stubDispatcher struct {
	sent []notification.Message
	fail bool
}

func (d *stubDispatcher) Dispatch(ctx context.Context, alertID string, msg notification.Message) notification.DeliveryRecord {
	d.sent = append(d.sent, msg)
	rec := notification.DeliveryRecord{
		ID:        uuid.NewString(),
		AlertID:   alertID,
		Recipient: msg.Recipient,
		Channel:   msg.Channel,
		Status:    notification.DeliverySent,
		SentAt:    time.Now(),
	}
	if d.fail {
		rec.Status = notification.DeliveryFailed
		rec.Error = "gateway unreachable"
	}
	return rec
}

type memDeliveryLog struct {
	records []notification.DeliveryRecord
}

func (l *memDeliveryLog) Append(ctx context.Context, rec notification.DeliveryRecord) error {
	l.records = append(l.records, rec)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type notifierHarness struct {
	notifier   *AlertNotifier
	alerts     *stubAlertRepo
	dispatcher *stubDispatcher
	deliveries *memDeliveryLog
	clock      time.Time
}

func newNotifierHarness(t *testing.T) *notifierHarness {
	t.Helper()
	h := &notifierHarness{
		alerts:     &stubAlertRepo{byID: make(map[string]*alert.Alert)},
		dispatcher: &stubDispatcher{},
		deliveries: &memDeliveryLog{},
		clock:      time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	h.notifier = NewAlertNotifier(h.alerts, h.dispatcher, h.deliveries, AlertNotifierConfig{
		DefaultRecipient: "academic-office",
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).WithClock(func() time.Time { return h.clock })
	return h
}

func (h *notifierHarness) addAlert(t *testing.T, createdAt time.Time) *alert.Alert {
	t.Helper()
	a, err := alert.New(notifierStudentID, alert.TypeAttendanceLow, shared.PriorityHigh,
		"Attendance critically low", "attendance 55.0% is below the 60% critical threshold",
		alert.Trigger{TriggerValue: 55, Threshold: 60, CurrentValue: 55},
		true, "risk-engine", createdAt)
	require.NoError(t, err)
	h.alerts.byID[a.ID] = a
	return a
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestNotifier_OpenedEvent(t *testing.T) {
	h := newNotifierHarness(t)
	a := h.addAlert(t, h.clock)

	bus := newSyncBus()
	defer bus.Close()
	require.NoError(t, h.notifier.Register(bus))

	require.NoError(t, bus.Publish(shared.NewAlertOpenedEvent(
		a.ID, a.StudentID.String(), a.Type.String(), a.Priority, true)))

	require.Len(t, h.dispatcher.sent, 1)
	msg := h.dispatcher.sent[0]
	assert.Equal(t, shared.UserID("academic-office"), msg.Recipient)
	assert.Equal(t, notification.ChannelEmail, msg.Channel)
	assert.Equal(t, "[High] Attendance critically low", msg.Subject)
	assert.Equal(t, a.ID, msg.Metadata["alert_id"])

	require.Len(t, h.deliveries.records, 1)
	assert.Equal(t, notification.DeliverySent, h.deliveries.records[0].Status)
	assert.Equal(t, a.ID, h.deliveries.records[0].AlertID)
}

func TestNotifier_AssignedRecipientWins(t *testing.T) {
	h := newNotifierHarness(t)
	a := h.addAlert(t, h.clock)
	require.NoError(t, a.Acknowledge("counselor-1", h.clock))

	bus := newSyncBus()
	defer bus.Close()
	require.NoError(t, h.notifier.Register(bus))

	require.NoError(t, bus.Publish(shared.NewAlertOpenedEvent(
		a.ID, a.StudentID.String(), a.Type.String(), a.Priority, true)))

	require.Len(t, h.dispatcher.sent, 1)
	assert.Equal(t, shared.UserID("counselor-1"), h.dispatcher.sent[0].Recipient)
}

func TestNotifier_EscalatedEvent(t *testing.T) {
	h := newNotifierHarness(t)
	a := h.addAlert(t, h.clock.Add(-26*time.Hour))
	_, err := a.Escalate(h.clock, 24*time.Hour)
	require.NoError(t, err)

	bus := newSyncBus()
	defer bus.Close()
	require.NoError(t, h.notifier.Register(bus))

	require.NoError(t, bus.Publish(shared.NewAlertEscalatedEvent(
		a.ID, a.StudentID.String(), a.Type.String(), a.Priority, a.EscalationLevel, false)))

	require.Len(t, h.dispatcher.sent, 1)
	msg := h.dispatcher.sent[0]
	assert.Equal(t, "[High] Escalated (level 1): Attendance critically low", msg.Subject)
	assert.Contains(t, msg.Body, "Open for 26 hours")
	assert.Equal(t, 1, msg.Metadata["escalation_level"])
}

func TestNotifier_TerminalAlertSkipped(t *testing.T) {
	h := newNotifierHarness(t)
	a := h.addAlert(t, h.clock)
	require.NoError(t, a.Resolve("counselor-1", "", h.clock))

	bus := newSyncBus()
	defer bus.Close()
	require.NoError(t, h.notifier.Register(bus))

	require.NoError(t, bus.Publish(shared.NewAlertOpenedEvent(
		a.ID, a.StudentID.String(), a.Type.String(), a.Priority, true)))

	assert.Empty(t, h.dispatcher.sent)
	assert.Empty(t, h.deliveries.records)
}

func TestNotifier_MissingAlertIgnored(t *testing.T) {
	h := newNotifierHarness(t)

	bus := newSyncBus()
	defer bus.Close()
	require.NoError(t, h.notifier.Register(bus))

	// The handler swallows the lookup failure; publishing must not error.
	require.NoError(t, bus.Publish(shared.NewAlertOpenedEvent(
		"no-such-alert", notifierStudentID.String(),
		alert.TypeAttendanceLow.String(), shared.PriorityHigh, true)))

	assert.Empty(t, h.dispatcher.sent)
}

func TestNotifier_FailedDispatchStillLogged(t *testing.T) {
	h := newNotifierHarness(t)
	h.dispatcher.fail = true
	a := h.addAlert(t, h.clock)

	bus := newSyncBus()
	defer bus.Close()
	require.NoError(t, h.notifier.Register(bus))

	require.NoError(t, bus.Publish(shared.NewAlertOpenedEvent(
		a.ID, a.StudentID.String(), a.Type.String(), a.Priority, true)))

	require.Len(t, h.deliveries.records, 1)
	assert.Equal(t, notification.DeliveryFailed, h.deliveries.records[0].Status)
	assert.Equal(t, "gateway unreachable", h.deliveries.records[0].Error)
}
