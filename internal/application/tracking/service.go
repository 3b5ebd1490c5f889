// Package tracking is the application service for interventions: planning
// them, recording sessions, and flagging the ones that run past their
// end date.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/risk-engine/internal/application/alerting"
	"github.com/edupulse/risk-engine/internal/application/assess"
	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/intervention"
	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/pkg/timeutil"
)

// Tracker coordinates intervention persistence and follow-up alerts.
type Tracker struct {
	interventions intervention.Repository
	alerts        alert.Repository
	manager       *alerting.Manager
	publisher     shared.EventPublisher
	logger        *slog.Logger
	now           func() time.Time
}

// NewTracker creates the intervention tracker.
func NewTracker(
	interventions intervention.Repository,
	alerts alert.Repository,
	manager *alerting.Manager,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		interventions: interventions,
		alerts:        alerts,
		manager:       manager,
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests and the scheduler.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// PlanRequest describes a new intervention.
type PlanRequest struct {
	StudentID  shared.StudentID
	AlertID    string // optional backlink
	Type       intervention.Type
	Title      string
	AssignedTo shared.UserID
	AssignedBy shared.UserID
	Schedule   intervention.Schedule
}

// Plan creates a planned intervention, optionally linked to an alert.
// When linked, the alert must exist and be non-terminal.
func (t *Tracker) Plan(ctx context.Context, req PlanRequest) (*intervention.Intervention, error) {
	if req.AlertID != "" {
		a, err := t.alerts.GetByID(ctx, req.AlertID)
		if err != nil {
			return nil, err
		}
		if a.IsTerminal() {
			return nil, shared.ErrAlertTerminal
		}
	}

	iv, err := intervention.New(req.StudentID, req.AlertID, req.Type, req.Title,
		req.AssignedTo, req.AssignedBy, req.Schedule, t.now())
	if err != nil {
		return nil, err
	}
	if err := t.interventions.Create(ctx, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// CreateFromAlert plans an intervention for an alert's student, taking the
// student and assignee from the alert itself.
func (t *Tracker) CreateFromAlert(ctx context.Context, alertID string,
	itype intervention.Type, title string, assignedBy shared.UserID,
	sched intervention.Schedule) (*intervention.Intervention, error) {

	a, err := t.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.IsTerminal() {
		return nil, shared.ErrAlertTerminal
	}
	return t.Plan(ctx, PlanRequest{
		StudentID:  a.StudentID,
		AlertID:    a.ID,
		Type:       itype,
		Title:      title,
		AssignedTo: a.AssignedTo,
		AssignedBy: assignedBy,
		Schedule:   sched,
	})
}

// RecordSession appends a conducted session. Completing the final session
// publishes an intervention.completed event.
func (t *Tracker) RecordSession(ctx context.Context, interventionID string,
	session intervention.Session) (*intervention.Intervention, error) {

	iv, err := t.interventions.GetByID(ctx, interventionID)
	if err != nil {
		return nil, err
	}
	if err := iv.RecordSession(session, t.now()); err != nil {
		return nil, err
	}
	if err := t.interventions.Update(ctx, iv); err != nil {
		return nil, err
	}
	if iv.Status == intervention.StatusCompleted {
		t.publish(shared.NewGenericEvent(shared.EventInterventionCompleted, iv.ID))
	}
	return iv, nil
}

// Cancel closes an intervention without completing it.
func (t *Tracker) Cancel(ctx context.Context, interventionID string,
	outcome intervention.Outcome) (*intervention.Intervention, error) {

	iv, err := t.interventions.GetByID(ctx, interventionID)
	if err != nil {
		return nil, err
	}
	if err := iv.Cancel(outcome, t.now()); err != nil {
		return nil, err
	}
	if err := t.interventions.Update(ctx, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// Rate records the overall outcome and effectiveness of an intervention.
func (t *Tracker) Rate(ctx context.Context, interventionID string,
	outcome intervention.Outcome, rating int) (*intervention.Intervention, error) {

	iv, err := t.interventions.GetByID(ctx, interventionID)
	if err != nil {
		return nil, err
	}
	if err := iv.Rate(outcome, rating); err != nil {
		return nil, err
	}
	if err := t.interventions.Update(ctx, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// ListByStudent returns a student's interventions, newest first.
func (t *Tracker) ListByStudent(ctx context.Context, studentID shared.StudentID) ([]*intervention.Intervention, error) {
	return t.interventions.ListByStudent(ctx, studentID)
}

// FlagOverdue opens a follow-up alert for every open intervention that ran
// past its end date. Dedup keeps repeat flags from stacking: at most one open
// follow-up alert exists per student. Returns how many alerts were opened.
func (t *Tracker) FlagOverdue(ctx context.Context) (int, error) {
	overdue, err := t.interventions.ListOverdue(ctx, t.now())
	if err != nil {
		return 0, err
	}

	opened := 0
	for _, iv := range overdue {
		res, err := t.manager.Open(ctx, iv.StudentID, assess.Finding{
			Type:         alert.TypeFollowUpRequired,
			Priority:     shared.PriorityMedium,
			TriggerValue: float64(iv.Progress()),
			Threshold:    100,
			CurrentValue: float64(iv.Progress()),
			Title:        "Intervention overdue",
			Description: fmt.Sprintf("intervention %s passed its end date %s ago without closure",
				iv.Title, timeutil.HumanDuration(t.now().Sub(iv.Schedule.EndDate))),
		}, true, "intervention-tracker")
		if err != nil {
			t.logger.Error("failed to flag overdue intervention",
				slog.String("intervention_id", iv.ID), slog.Any("error", err))
			continue
		}
		if res.Created {
			opened++
		}
	}
	return opened, nil
}

func (t *Tracker) publish(event shared.Event) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(event); err != nil {
		t.logger.Warn("failed to publish event",
			slog.String("event_type", string(event.EventType())),
			slog.Any("error", err))
	}
}
