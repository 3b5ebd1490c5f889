// Package alerting owns the alert lifecycle: opening with dedup, manual
// transitions, and the escalation sweep. It is the only writer of alert rows.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/risk-engine/internal/application/assess"
	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/intervention"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// WINDOWS
// ═══════════════════════════════════════════════════════════════════════════

// Windows maps alert priority to the response window after which an
// unresolved alert escalates. A zero window disables escalation.
type Windows struct {
	Critical time.Duration
	High     time.Duration
	Medium   time.Duration
	Low      time.Duration
}

// For returns the window for a priority.
func (w Windows) For(p shared.Priority) time.Duration {
	switch p {
	case shared.PriorityCritical:
		return w.Critical
	case shared.PriorityHigh:
		return w.High
	case shared.PriorityMedium:
		return w.Medium
	case shared.PriorityLow:
		return w.Low
	default:
		return 0
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// MANAGER
// ═══════════════════════════════════════════════════════════════════════════

// Manager coordinates alert persistence, dedup, events, and the follow-up
// intervention suggested for critical alerts.
type Manager struct {
	alerts        alert.Repository
	interventions intervention.Repository
	publisher     shared.EventPublisher
	windows       Windows
	logger        *slog.Logger
	now           func() time.Time
}

// NewManager creates an alert lifecycle manager.
func NewManager(
	alerts alert.Repository,
	interventions intervention.Repository,
	publisher shared.EventPublisher,
	windows Windows,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		alerts:        alerts,
		interventions: interventions,
		publisher:     publisher,
		windows:       windows,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests and the scheduler.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Opening
// ─────────────────────────────────────────────────────────────────────────────

// OpenResult reports what Open did with a finding.
type OpenResult struct {
	Alert *alert.Alert

	// Created is true for a new alert, false when an existing open alert
	// for the same (student, type) absorbed the finding.
	Created bool
}

// Open turns a rule finding into at most one open alert per (student, type).
// When the slot already holds a non-terminal alert, that alert is refreshed
// in place: its priority and current measurement are updated, its status and
// escalation state are preserved. A concurrent-create conflict is retried
// once against the winner's row.
func (m *Manager) Open(ctx context.Context, studentID shared.StudentID,
	f assess.Finding, autoGenerated bool, generatedBy string) (OpenResult, error) {

	res, err := m.openOnce(ctx, studentID, f, autoGenerated, generatedBy)
	if errors.Is(err, shared.ErrAlertConflict) {
		// Another writer won the slot between our lookup and insert.
		// The open alert now exists, so the refresh path must succeed.
		m.logger.Debug("alert create conflict, retrying as refresh",
			slog.String("student_id", studentID.String()),
			slog.String("alert_type", f.Type.String()))
		res, err = m.openOnce(ctx, studentID, f, autoGenerated, generatedBy)
	}
	return res, err
}

func (m *Manager) openOnce(ctx context.Context, studentID shared.StudentID,
	f assess.Finding, autoGenerated bool, generatedBy string) (OpenResult, error) {

	now := m.now()

	existing, err := m.alerts.FindOpen(ctx, studentID, f.Type)
	switch {
	case err == nil:
		if err := existing.Refresh(f.Priority, f.CurrentValue, now); err != nil {
			return OpenResult{}, err
		}
		if err := m.alerts.Update(ctx, existing); err != nil {
			return OpenResult{}, err
		}
		m.publish(shared.NewGenericEvent(shared.EventAlertUpdated, existing.ID))
		return OpenResult{Alert: existing, Created: false}, nil

	case errors.Is(err, shared.ErrAlertNotFound):
		// Slot is free, fall through to create.

	default:
		return OpenResult{}, err
	}

	created, err := alert.New(studentID, f.Type, f.Priority, f.Title, f.Description,
		alert.Trigger{TriggerValue: f.TriggerValue, Threshold: f.Threshold, CurrentValue: f.CurrentValue},
		autoGenerated, generatedBy, now)
	if err != nil {
		return OpenResult{}, err
	}
	if err := m.alerts.Create(ctx, created); err != nil {
		return OpenResult{}, err
	}

	m.publish(shared.NewAlertOpenedEvent(created.ID, studentID.String(),
		created.Type.String(), created.Priority, autoGenerated))

	if created.Priority == shared.PriorityCritical {
		m.suggestIntervention(ctx, created, now)
	}
	return OpenResult{Alert: created, Created: true}, nil
}

// Counseling follow-up shape for critical alerts.
const (
	suggestedSessions = 4
	suggestedSpan     = 28 * 24 * time.Hour
)

// suggestIntervention plans a counseling follow-up for a critical alert.
// Best effort: a failure is logged and the alert stands on its own.
func (m *Manager) suggestIntervention(ctx context.Context, a *alert.Alert, now time.Time) {
	iv, err := intervention.New(a.StudentID, a.ID, intervention.TypeCounseling,
		fmt.Sprintf("Follow-up for %s", a.Title),
		a.AssignedTo, shared.SystemUserID,
		intervention.Schedule{
			StartDate:     now,
			EndDate:       now.Add(suggestedSpan),
			Frequency:     intervention.FreqWeekly,
			TotalSessions: suggestedSessions,
		}, now)
	if err != nil {
		m.logger.Warn("failed to build suggested intervention",
			slog.String("alert_id", a.ID), slog.Any("error", err))
		return
	}
	if err := m.interventions.Create(ctx, iv); err != nil {
		m.logger.Warn("failed to store suggested intervention",
			slog.String("alert_id", a.ID), slog.Any("error", err))
		return
	}
	m.publish(shared.NewInterventionSuggestedEvent(a.ID, a.StudentID.String(), a.Type.String()))
}

// ─────────────────────────────────────────────────────────────────────────────
// Manual transitions
// ─────────────────────────────────────────────────────────────────────────────

// Acknowledge moves an active alert to Acknowledged and assigns it.
func (m *Manager) Acknowledge(ctx context.Context, alertID string, userID shared.UserID) (*alert.Alert, error) {
	return m.transition(ctx, alertID, shared.EventAlertUpdated, func(a *alert.Alert) error {
		return a.Acknowledge(userID, m.now())
	})
}

// StartProgress moves an acknowledged alert to InProgress.
func (m *Manager) StartProgress(ctx context.Context, alertID string, userID shared.UserID) (*alert.Alert, error) {
	return m.transition(ctx, alertID, shared.EventAlertUpdated, func(a *alert.Alert) error {
		return a.StartProgress(userID, m.now())
	})
}

// Resolve closes an alert as handled.
func (m *Manager) Resolve(ctx context.Context, alertID string, userID shared.UserID, notes string) (*alert.Alert, error) {
	return m.transition(ctx, alertID, shared.EventAlertResolved, func(a *alert.Alert) error {
		return a.Resolve(userID, notes, m.now())
	})
}

// Dismiss closes an alert as not actionable.
func (m *Manager) Dismiss(ctx context.Context, alertID string, userID shared.UserID) (*alert.Alert, error) {
	return m.transition(ctx, alertID, shared.EventAlertDismissed, func(a *alert.Alert) error {
		return a.Dismiss(userID, m.now())
	})
}

func (m *Manager) transition(ctx context.Context, alertID string,
	eventType shared.EventType, apply func(*alert.Alert) error) (*alert.Alert, error) {

	a, err := m.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := apply(a); err != nil {
		return nil, err
	}
	if err := m.alerts.Update(ctx, a); err != nil {
		return nil, err
	}
	m.publish(shared.NewGenericEvent(eventType, a.ID))
	return a, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Escalation sweep
// ─────────────────────────────────────────────────────────────────────────────

// SweepStats summarizes one escalation sweep.
type SweepStats struct {
	Examined  int
	Escalated int
	Raised    int
	Failed    int
}

// Sweep walks every non-terminal alert and escalates the ones that have aged
// past their priority's window. Per-alert failures are counted and logged,
// never abort the sweep.
func (m *Manager) Sweep(ctx context.Context) (SweepStats, error) {
	open, err := m.alerts.ListNonTerminal(ctx)
	if err != nil {
		return SweepStats{}, err
	}

	stats := SweepStats{Examined: len(open)}
	now := m.now()

	for _, a := range open {
		window := m.windows.For(a.Priority)
		if !a.EscalationDue(now, window) {
			continue
		}

		result, err := a.Escalate(now, window)
		if err != nil || !result.Escalated {
			continue
		}
		if err := m.alerts.Update(ctx, a); err != nil {
			stats.Failed++
			m.logger.Error("failed to persist escalation",
				slog.String("alert_id", a.ID), slog.Any("error", err))
			continue
		}

		stats.Escalated++
		if result.PriorityRaised {
			stats.Raised++
			if a.Priority == shared.PriorityCritical {
				m.suggestIntervention(ctx, a, now)
			}
		}
		m.publish(shared.NewAlertEscalatedEvent(a.ID, a.StudentID.String(),
			a.Type.String(), a.Priority, a.EscalationLevel, result.PriorityRaised))
	}
	return stats, nil
}

func (m *Manager) publish(event shared.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(event); err != nil {
		m.logger.Warn("failed to publish event",
			slog.String("event_type", string(event.EventType())),
			slog.Any("error", err))
	}
}
