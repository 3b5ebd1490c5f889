// Package prediction holds the versioned record of scoring runs.
// A prediction is immutable once recorded: it is deactivated when superseded
// or past its validity horizon, never edited.
package prediction

import (
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Outcome is the binary label derived from the dropout probability.
type Outcome string

const (
	OutcomeDropout  Outcome = "Dropout"
	OutcomeContinue Outcome = "Continue"
)

// Prediction is one scoring run for one student.
// Invariant: at most one prediction per student has IsActive=true.
type Prediction struct {
	ID        string
	StudentID shared.StudentID

	Probability shared.Probability
	RiskScore   int // 0-100, Probability rounded to percent
	RiskLevel   shared.RiskLevel
	Outcome     Outcome

	// Ranked explanations, descending by absolute importance.
	Factors []shared.Factor

	ModelVersion string
	ComputedAt   time.Time
	ValidUntil   time.Time
	IsActive     bool
}

// New creates a prediction from a scoring result.
func New(studentID shared.StudentID, prob shared.Probability, level shared.RiskLevel,
	factors []shared.Factor, modelVersion string, now time.Time, validity time.Duration) (*Prediction, error) {

	if studentID.IsEmpty() {
		return nil, shared.NewDomainError("prediction", "New", shared.ErrEmptyValue, "student ID is required")
	}
	if !prob.IsValid() {
		return nil, shared.ErrInvalidProbability
	}
	if !level.IsValid() {
		return nil, shared.NewDomainError("prediction", "New", shared.ErrInvalidInput, "unknown risk level")
	}
	if modelVersion == "" {
		return nil, shared.NewDomainError("prediction", "New", shared.ErrEmptyValue, "model version is required")
	}

	outcome := OutcomeContinue
	if level == shared.RiskHigh {
		outcome = OutcomeDropout
	}

	return &Prediction{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Probability:  prob,
		RiskScore:    prob.Percent(),
		RiskLevel:    level,
		Outcome:      outcome,
		Factors:      shared.RankFactors(factors),
		ModelVersion: modelVersion,
		ComputedAt:   now,
		ValidUntil:   now.Add(validity),
		IsActive:     true,
	}, nil
}

// IsExpired reports whether the prediction is past its validity horizon.
func (p *Prediction) IsExpired(now time.Time) bool {
	return now.After(p.ValidUntil)
}

// TopRiskFactors returns up to limit factors that push risk upward.
func (p *Prediction) TopRiskFactors(limit int) []shared.Factor {
	top := make([]shared.Factor, 0, limit)
	for _, f := range p.Factors {
		if f.Impact != shared.ImpactPositive {
			continue
		}
		top = append(top, f)
		if len(top) == limit {
			break
		}
	}
	return top
}

// Summary condenses the prediction for the student risk write-back.
type Summary struct {
	RiskLevel  shared.RiskLevel `json:"risk_level"`
	RiskScore  int              `json:"risk_score"`
	TopFactors []string         `json:"top_factors"`
}

// Summarize builds a compact summary with the top three risk factors.
func (p *Prediction) Summarize() Summary {
	top := p.TopRiskFactors(3)
	names := make([]string, len(top))
	for i, f := range top {
		names[i] = f.Name
	}
	return Summary{
		RiskLevel:  p.RiskLevel,
		RiskScore:  p.RiskScore,
		TopFactors: names,
	}
}
