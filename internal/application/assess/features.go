// Package assess implements the scoring pipeline: feature extraction,
// risk scoring, and rule evaluation. Everything here is deterministic for
// fixed inputs; wall-clock time is always passed in by the caller.
package assess

import (
	"context"
	"math"

	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/domain/student"
)

// Missing marks a numeric feature that the student record does not carry.
// The scorer imputes a neutral default instead of failing, because real
// student records are routinely incomplete.
var Missing = math.NaN()

// IsMissing reports whether a numeric feature was absent from the record.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// FeatureVector is the fixed-schema input to the risk scorer.
type FeatureVector struct {
	StudentID shared.StudentID

	// Academic
	AttendanceRate float64 // 0-100, Missing when no attendance records exist
	CurrentCGPA    float64 // 0-4.0, Missing before first grading
	GradeTrend     shared.GradeTrend
	Semester       int
	RecentGrades   []float64

	// Financial
	FeeStatus      shared.FeeStatus
	HasScholarship bool

	// Behavioral / demographic
	DisciplinaryIncidents int
	SpecialNeeds          bool
	Displaced             bool
	Age                   int
}

// Validate rejects vectors whose values are outside the schema's ranges.
// Missing values are legal; malformed ones are not.
func (f FeatureVector) Validate() error {
	if f.StudentID.IsEmpty() {
		return shared.ErrMalformedFeatures
	}
	if !IsMissing(f.AttendanceRate) && (f.AttendanceRate < 0 || f.AttendanceRate > 100) {
		return shared.ErrMalformedFeatures
	}
	if !IsMissing(f.CurrentCGPA) && (f.CurrentCGPA < 0 || f.CurrentCGPA > 4.0) {
		return shared.ErrMalformedFeatures
	}
	if f.GradeTrend != "" && !f.GradeTrend.IsValid() {
		return shared.ErrMalformedFeatures
	}
	if f.FeeStatus != "" && !f.FeeStatus.IsValid() {
		return shared.ErrMalformedFeatures
	}
	if f.DisciplinaryIncidents < 0 || f.Semester < 0 || f.Age < 0 {
		return shared.ErrMalformedFeatures
	}
	return nil
}

// Extractor assembles feature vectors from the external student store.
type Extractor struct {
	students student.Reader
}

// NewExtractor creates a feature extractor over the student reader port.
func NewExtractor(students student.Reader) *Extractor {
	return &Extractor{students: students}
}

// Extract reads a student's current signals and builds the feature vector.
// Fails with shared.ErrStudentNotFound for unknown students and
// shared.ErrStudentNotActive for students no longer enrolled; batch callers
// treat the latter as a skip, not a failure.
func (e *Extractor) Extract(ctx context.Context, id shared.StudentID) (*FeatureVector, error) {
	sig, err := e.students.GetSignals(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sig.IsActive() {
		return nil, shared.ErrStudentNotActive
	}

	fv := fromSignals(sig)
	if err := fv.Validate(); err != nil {
		return nil, err
	}
	return fv, nil
}

// fromSignals maps the store snapshot onto the fixed feature schema.
// Zero-value markers from the store become explicit Missing values so the
// scorer can distinguish "no data" from a genuine zero.
func fromSignals(sig *student.Signals) *FeatureVector {
	fv := &FeatureVector{
		StudentID:             sig.StudentID,
		AttendanceRate:        sig.AttendanceRate,
		CurrentCGPA:           sig.CurrentCGPA,
		GradeTrend:            sig.GradeTrend,
		Semester:              sig.Semester,
		RecentGrades:          sig.RecentGrades,
		FeeStatus:             sig.FeeStatus,
		HasScholarship:        sig.HasScholarship,
		DisciplinaryIncidents: sig.DisciplinaryIncidents,
		SpecialNeeds:          sig.SpecialNeeds,
		Displaced:             sig.Displaced,
		Age:                   sig.Age,
	}

	// The store reports zero for never-recorded values; a student with no
	// attendance records has an unknown rate, not a 0% one.
	if sig.AttendanceRate == 0 && len(sig.RecentGrades) == 0 && sig.CurrentCGPA == 0 {
		fv.AttendanceRate = Missing
		fv.CurrentCGPA = Missing
	}
	return fv
}
