// Package intervention tracks remedial activities linked to students and,
// optionally, to the alert that motivated them. Interventions are recorded
// to completion and cancelled rather than deleted.
package intervention

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ENUMS
// ═══════════════════════════════════════════════════════════════════════════

// Type is the category of remedial activity.
type Type string

const (
	TypeAcademicSupport   Type = "Academic Support"
	TypeCounseling        Type = "Counseling Session"
	TypeFinancialAid      Type = "Financial Aid"
	TypePeerMentoring     Type = "Peer Mentoring"
	TypeFamilyConference  Type = "Family Conference"
	TypeExtraClasses      Type = "Extra Classes"
	TypeBehavioralSupport Type = "Behavioral Support"
	TypeCareerGuidance    Type = "Career Guidance"
	TypeMedicalSupport    Type = "Medical Support"
	TypeCustom            Type = "Custom"
)

// IsValid checks the intervention type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeAcademicSupport, TypeCounseling, TypeFinancialAid, TypePeerMentoring,
		TypeFamilyConference, TypeExtraClasses, TypeBehavioralSupport,
		TypeCareerGuidance, TypeMedicalSupport, TypeCustom:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of an intervention.
type Status string

const (
	StatusPlanned   Status = "Planned"
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusOnHold    Status = "OnHold"
)

// IsClosed reports whether no further sessions may be recorded.
func (s Status) IsClosed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Frequency is how often sessions are scheduled.
type Frequency string

const (
	FreqOneTime  Frequency = "One-time"
	FreqDaily    Frequency = "Daily"
	FreqWeekly   Frequency = "Weekly"
	FreqBiweekly Frequency = "Bi-weekly"
	FreqMonthly  Frequency = "Monthly"
)

// Outcome is the overall result of an intervention.
type Outcome string

const (
	OutcomeSuccessful          Outcome = "Successful"
	OutcomePartiallySuccessful Outcome = "PartiallySuccessful"
	OutcomeUnsuccessful        Outcome = "Unsuccessful"
	OutcomeOngoing             Outcome = "Ongoing"
)

// SessionOutcome grades a single session.
type SessionOutcome string

const (
	SessionExcellent    SessionOutcome = "Excellent"
	SessionGood         SessionOutcome = "Good"
	SessionSatisfactory SessionOutcome = "Satisfactory"
	SessionPoor         SessionOutcome = "Poor"
	SessionNoShow       SessionOutcome = "No Show"
)

// ═══════════════════════════════════════════════════════════════════════════
// ENTITY
// ═══════════════════════════════════════════════════════════════════════════

// Session is one conducted meeting within an intervention.
type Session struct {
	Date        time.Time      `json:"date"`
	DurationMin int            `json:"duration_min"`
	Outcome     SessionOutcome `json:"outcome"`
	Notes       string         `json:"notes"`
	ConductedBy shared.UserID  `json:"conducted_by"`
}

// Schedule describes the planned shape of an intervention.
type Schedule struct {
	StartDate     time.Time
	EndDate       time.Time
	Frequency     Frequency
	TotalSessions int
}

// Validate checks the schedule is internally consistent.
func (s Schedule) Validate() error {
	if s.TotalSessions < 1 {
		return shared.ErrInvalidSchedule
	}
	if s.EndDate.Before(s.StartDate) {
		return shared.ErrInvalidSchedule
	}
	return nil
}

// Intervention is a tracked remedial activity for one student.
// Invariants: status becomes Completed only once len(Sessions) reaches
// TotalSessions; the first recorded session advances Planned to Active.
type Intervention struct {
	ID        string
	StudentID shared.StudentID
	AlertID   string // optional backlink to the motivating alert

	Type        Type
	Title       string
	Description string

	AssignedTo shared.UserID
	AssignedBy shared.UserID

	Schedule Schedule
	Sessions []Session

	Status              Status
	Outcome             Outcome
	EffectivenessRating int // 1-5, zero until rated

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a planned intervention.
func New(studentID shared.StudentID, alertID string, itype Type, title string,
	assignedTo, assignedBy shared.UserID, sched Schedule, now time.Time) (*Intervention, error) {

	if studentID.IsEmpty() {
		return nil, shared.NewDomainError("intervention", "New", shared.ErrEmptyValue, "student ID is required")
	}
	if !itype.IsValid() {
		return nil, shared.NewDomainError("intervention", "New", shared.ErrInvalidInput, "unknown intervention type")
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}

	return &Intervention{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		AlertID:    alertID,
		Type:       itype,
		Title:      title,
		AssignedTo: assignedTo,
		AssignedBy: assignedBy,
		Schedule:   sched,
		Sessions:   make([]Session, 0, sched.TotalSessions),
		Status:     StatusPlanned,
		Outcome:    OutcomeOngoing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RecordSession appends a session and advances the status:
// Planned -> Active on the first session, -> Completed when the planned
// session count is reached. Recording against a closed intervention fails.
func (iv *Intervention) RecordSession(s Session, now time.Time) error {
	if iv.Status.IsClosed() {
		return shared.ErrInterventionClosed
	}

	iv.Sessions = append(iv.Sessions, s)
	iv.UpdatedAt = now

	if len(iv.Sessions) >= iv.Schedule.TotalSessions {
		iv.Status = StatusCompleted
	} else if iv.Status == StatusPlanned {
		iv.Status = StatusActive
	}
	return nil
}

// Progress returns completion as a percentage, capped at 100.
func (iv *Intervention) Progress() int {
	if iv.Schedule.TotalSessions == 0 {
		return 0
	}
	pct := int(math.Round(float64(len(iv.Sessions)) / float64(iv.Schedule.TotalSessions) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// IsOverdue reports whether the end date has passed without closure.
func (iv *Intervention) IsOverdue(now time.Time) bool {
	return timeutil.Overdue(iv.Schedule.EndDate, now) && !iv.Status.IsClosed()
}

// Cancel closes the intervention without completing it.
func (iv *Intervention) Cancel(outcome Outcome, now time.Time) error {
	if iv.Status.IsClosed() {
		return shared.ErrInterventionClosed
	}
	iv.Status = StatusCancelled
	iv.Outcome = outcome
	iv.UpdatedAt = now
	return nil
}

// Hold pauses an active or planned intervention.
func (iv *Intervention) Hold(now time.Time) error {
	if iv.Status.IsClosed() {
		return shared.ErrInterventionClosed
	}
	iv.Status = StatusOnHold
	iv.UpdatedAt = now
	return nil
}

// Rate records the overall outcome and effectiveness once work has concluded.
func (iv *Intervention) Rate(outcome Outcome, rating int) error {
	if rating < 1 || rating > 5 {
		return shared.NewDomainError("intervention", "Rate", shared.ErrValueOutOfRange,
			"effectiveness rating must be between 1 and 5")
	}
	iv.Outcome = outcome
	iv.EffectivenessRating = rating
	return nil
}
