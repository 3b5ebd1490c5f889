// Package alert holds the alert entity and its lifecycle state machine.
//
// States: Active -> {Acknowledged, Dismissed}; Acknowledged -> {InProgress,
// Resolved, Dismissed}; InProgress -> {Resolved, Dismissed}. Resolved and
// Dismissed are terminal: a terminal alert is never mutated again.
//
// Dedup invariant: for a given (student, alert type) at most one alert may be
// in a non-terminal status. The storage layer enforces this with a partial
// unique index; this package enforces the transitions.
package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ALERT TYPE
// ═══════════════════════════════════════════════════════════════════════════

// Type is the closed category of a detected risk condition.
type Type string

const (
	TypeAttendanceLow      Type = "ATTENDANCE_LOW"
	TypeGradesDeclining    Type = "GRADES_DECLINING"
	TypeFeeOverdue         Type = "FEE_OVERDUE"
	TypeBehavioralIssue    Type = "BEHAVIORAL_ISSUE"
	TypeRiskScoreHigh      Type = "RISK_SCORE_HIGH"
	TypeInterventionNeeded Type = "INTERVENTION_NEEDED"
	TypeFollowUpRequired   Type = "FOLLOW_UP_REQUIRED"
	TypeAcademicProbation  Type = "ACADEMIC_PROBATION"
	TypeCritical           Type = "CRITICAL_ALERT"
)

// IsValid checks the alert type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeAttendanceLow, TypeGradesDeclining, TypeFeeOverdue,
		TypeBehavioralIssue, TypeRiskScoreHigh, TypeInterventionNeeded,
		TypeFollowUpRequired, TypeAcademicProbation, TypeCritical:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// ═══════════════════════════════════════════════════════════════════════════
// STATUS
// ═══════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive       Status = "Active"
	StatusAcknowledged Status = "Acknowledged"
	StatusInProgress   Status = "InProgress"
	StatusResolved     Status = "Resolved"
	StatusDismissed    Status = "Dismissed"
)

// IsValid checks the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusInProgress, StatusResolved, StatusDismissed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// NonTerminalStatuses lists the statuses that count toward the dedup key.
func NonTerminalStatuses() []Status {
	return []Status{StatusActive, StatusAcknowledged, StatusInProgress}
}

// ═══════════════════════════════════════════════════════════════════════════
// ENTITY
// ═══════════════════════════════════════════════════════════════════════════

// MaxEscalationLevel caps how many times an unresolved alert can escalate.
const MaxEscalationLevel = 3

// Trigger carries the rule measurement that opened (or refreshed) an alert.
type Trigger struct {
	// TriggerValue is the measurement at the moment the rule first fired.
	TriggerValue float64

	// Threshold is the configured rule threshold that was crossed.
	Threshold float64

	// CurrentValue is the most recent measurement; refreshed on dedup hits.
	CurrentValue float64
}

// Alert is a detected risk condition for one student.
type Alert struct {
	ID        string
	StudentID shared.StudentID
	Type      Type
	Priority  shared.Priority
	Status    Status

	Title       string
	Description string
	Trigger     Trigger

	// Escalation
	EscalationLevel int
	LastEscalatedAt *time.Time

	// Assignment / resolution
	AssignedTo      shared.UserID
	ResolvedBy      shared.UserID
	ResolvedAt      *time.Time
	ResolutionNotes string

	IsAutoGenerated bool
	GeneratedBy     string // system component or staff user that raised it

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an alert in Active status.
func New(studentID shared.StudentID, alertType Type, priority shared.Priority,
	title, description string, trig Trigger, autoGenerated bool, generatedBy string,
	now time.Time) (*Alert, error) {

	if studentID.IsEmpty() {
		return nil, shared.NewDomainError("alert", "New", shared.ErrEmptyValue, "student ID is required")
	}
	if !alertType.IsValid() {
		return nil, shared.NewDomainError("alert", "New", shared.ErrInvalidInput, "unknown alert type")
	}
	if !priority.IsValid() {
		return nil, shared.NewDomainError("alert", "New", shared.ErrInvalidInput, "unknown priority")
	}

	return &Alert{
		ID:              uuid.NewString(),
		StudentID:       studentID,
		Type:            alertType,
		Priority:        priority,
		Status:          StatusActive,
		Title:           title,
		Description:     description,
		Trigger:         trig,
		IsAutoGenerated: autoGenerated,
		GeneratedBy:     generatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsTerminal reports whether the alert is in a final status.
func (a *Alert) IsTerminal() bool {
	return a.Status.IsTerminal()
}

// ─────────────────────────────────────────────────────────────────────────────
// Transitions
// ─────────────────────────────────────────────────────────────────────────────

// Refresh updates the live measurement and priority of an already-open alert.
// Used on the dedup path: the same rule firing again must not create a second
// row, only keep the existing one current. Status is left untouched.
func (a *Alert) Refresh(priority shared.Priority, currentValue float64, now time.Time) error {
	if a.IsTerminal() {
		return shared.ErrAlertTerminal
	}
	a.Priority = priority
	a.Trigger.CurrentValue = currentValue
	a.UpdatedAt = now
	return nil
}

// Acknowledge moves Active -> Acknowledged and assigns the alert.
func (a *Alert) Acknowledge(userID shared.UserID, now time.Time) error {
	if a.Status != StatusActive {
		if a.IsTerminal() {
			return shared.ErrAlertTerminal
		}
		return shared.ErrAlertNotActive
	}
	a.Status = StatusAcknowledged
	a.AssignedTo = userID
	a.UpdatedAt = now
	return nil
}

// StartProgress moves Acknowledged -> InProgress.
func (a *Alert) StartProgress(userID shared.UserID, now time.Time) error {
	if a.Status != StatusAcknowledged {
		if a.IsTerminal() {
			return shared.ErrAlertTerminal
		}
		return shared.NewDomainError("alert", "StartProgress", shared.ErrStateTransition,
			"alert must be acknowledged first")
	}
	a.Status = StatusInProgress
	if userID.IsValid() {
		a.AssignedTo = userID
	}
	a.UpdatedAt = now
	return nil
}

// Resolve moves any non-terminal status to Resolved.
func (a *Alert) Resolve(userID shared.UserID, notes string, now time.Time) error {
	if a.IsTerminal() {
		return shared.ErrAlertTerminal
	}
	a.Status = StatusResolved
	a.ResolvedBy = userID
	a.ResolvedAt = &now
	a.ResolutionNotes = notes
	a.UpdatedAt = now
	return nil
}

// Dismiss moves any non-terminal status to Dismissed.
func (a *Alert) Dismiss(userID shared.UserID, now time.Time) error {
	if a.IsTerminal() {
		return shared.ErrAlertTerminal
	}
	a.Status = StatusDismissed
	a.ResolvedBy = userID
	a.ResolvedAt = &now
	a.UpdatedAt = now
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Escalation
// ─────────────────────────────────────────────────────────────────────────────

// EscalationResult reports what Escalate changed.
type EscalationResult struct {
	// Escalated is true when the level was incremented.
	Escalated bool

	// PriorityRaised is true when reaching the max level without any
	// acknowledgement bumped the priority one step.
	PriorityRaised bool
}

// escalationAnchor is the reference time for the escalation window:
// the last escalation, or creation time for a never-escalated alert.
func (a *Alert) escalationAnchor() time.Time {
	if a.LastEscalatedAt != nil {
		return *a.LastEscalatedAt
	}
	return a.CreatedAt
}

// EscalationDue reports whether the alert has aged past its window.
// A zero window disables escalation for the priority entirely.
func (a *Alert) EscalationDue(now time.Time, window time.Duration) bool {
	if a.IsTerminal() || window <= 0 {
		return false
	}
	if a.EscalationLevel >= MaxEscalationLevel {
		return false
	}
	return !now.Before(a.escalationAnchor().Add(window))
}

// Escalate increments the escalation level if the window has elapsed.
// Terminal alerts fail with a state-transition error; an alert that is simply
// not yet due is a no-op, because the hourly sweep calls this for every open
// alert. Reaching the max level while still unacknowledged raises the
// priority one step, capped at Critical.
func (a *Alert) Escalate(now time.Time, window time.Duration) (EscalationResult, error) {
	if a.IsTerminal() {
		return EscalationResult{}, shared.ErrAlertTerminal
	}
	if !a.EscalationDue(now, window) {
		return EscalationResult{}, nil
	}

	a.EscalationLevel++
	escalatedAt := now
	a.LastEscalatedAt = &escalatedAt
	a.UpdatedAt = now

	result := EscalationResult{Escalated: true}
	if a.EscalationLevel == MaxEscalationLevel && a.Status == StatusActive {
		a.Priority = a.Priority.Bump()
		result.PriorityRaised = true
	}
	return result, nil
}
