// Package student holds the read model of the externally owned student record.
// The student store is the source of truth; this engine only reads signals
// and writes back the denormalized risk summary.
package student

import (
	"time"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Status is the enrollment status reported by the student store.
type Status string

const (
	StatusActive     Status = "Active"
	StatusInactive   Status = "Inactive"
	StatusGraduated  Status = "Graduated"
	StatusDroppedOut Status = "DroppedOut"
	StatusSuspended  Status = "Suspended"
)

// IsValid checks the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusGraduated, StatusDroppedOut, StatusSuspended:
		return true
	default:
		return false
	}
}

// Signals is the snapshot of a student's risk-relevant inputs as read from
// the student store. All fields are read-mostly; the engine never mutates them.
type Signals struct {
	StudentID shared.StudentID
	Status    Status

	// Academic
	AttendanceRate float64 // 0-100
	CurrentCGPA    float64 // 0-4.0
	GradeTrend     shared.GradeTrend
	Semester       int
	RecentGrades   []float64 // most recent last; used for decline detection

	// Financial
	FeeStatus      shared.FeeStatus
	HasScholarship bool

	// Behavioral / demographic flags
	DisciplinaryIncidents int
	SpecialNeeds          bool
	Displaced             bool
	Age                   int

	// Observation metadata
	ObservedAt time.Time
}

// IsActive reports whether the student is eligible for risk assessment.
func (s Signals) IsActive() bool {
	return s.Status == StatusActive
}

// RiskSummary is the denormalized score written back to the student store
// after each recompute. It is the only permitted write-back.
type RiskSummary struct {
	StudentID  shared.StudentID `json:"student_id"`
	RiskScore  int              `json:"risk_score"` // 0-100
	RiskLevel  shared.RiskLevel `json:"risk_level"`
	AssessedAt time.Time        `json:"assessed_at"`
}
