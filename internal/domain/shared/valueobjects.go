// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// StudentID identifies a student record in the external student store.
// The engine treats it as opaque beyond UUID-shape validation.
type StudentID string

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the student ID is a valid UUID.
func (s StudentID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return s == ""
}

// NewStudentID creates a new StudentID with validation.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.ToLower(strings.TrimSpace(id)))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewStudentID", ErrInvalidID, "invalid student ID format")
	}
	return sid, nil
}

// UserID identifies a staff user (counselor, advisor) in the external system.
type UserID string

// SystemUserID attributes automated actions that no staff user performed.
const SystemUserID UserID = "system"

// IsValid checks that the user ID is not empty.
func (u UserID) IsValid() bool {
	return len(strings.TrimSpace(string(u))) > 0
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// ═══════════════════════════════════════════════════════════════════════════
// Probability Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Probability is a dropout probability in [0,1].
type Probability float64

// IsValid checks the probability is a finite value in [0,1].
func (p Probability) IsValid() bool {
	f := float64(p)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0 && f <= 1
}

// Float64 returns the underlying float value.
func (p Probability) Float64() float64 {
	return float64(p)
}

// Percent returns the probability as a rounded 0-100 score.
func (p Probability) Percent() int {
	return int(math.Round(float64(p) * 100))
}

// NewProbability creates a Probability with validation.
func NewProbability(v float64) (Probability, error) {
	p := Probability(v)
	if !p.IsValid() {
		return 0, ErrInvalidProbability
	}
	return p, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Risk Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// RiskLevel is the coarse bucket derived from a dropout probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// IsValid checks the risk level is a known bucket.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r RiskLevel) String() string {
	return string(r)
}

// RiskCuts holds the bucket cut points on the probability scale.
type RiskCuts struct {
	Medium float64 // below this: Low
	High   float64 // below this: Medium; at or above: High
}

// Bucket maps a probability to a risk level using these cut points.
func (c RiskCuts) Bucket(p Probability) RiskLevel {
	switch {
	case p.Float64() < c.Medium:
		return RiskLow
	case p.Float64() < c.High:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Priority Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Priority is an alert priority.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// IsValid checks the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p Priority) String() string {
	return string(p)
}

// Rank returns a numeric order (Low=0 .. Critical=3) for comparisons.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return -1
	}
}

// Bump raises the priority one level, capped at Critical.
func (p Priority) Bump() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityCritical
	}
}

// MaxPriority returns the higher of two priorities.
func MaxPriority(a, b Priority) Priority {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// ═══════════════════════════════════════════════════════════════════════════
// Factor Value Object (scoring explanations)
// ═══════════════════════════════════════════════════════════════════════════

// FactorImpact is the direction in which a factor pushes the dropout risk.
type FactorImpact string

const (
	ImpactPositive FactorImpact = "positive" // increases dropout risk
	ImpactNegative FactorImpact = "negative" // decreases dropout risk
	ImpactNeutral  FactorImpact = "neutral"
)

// IsValid checks the impact direction is known.
func (i FactorImpact) IsValid() bool {
	switch i {
	case ImpactPositive, ImpactNegative, ImpactNeutral:
		return true
	default:
		return false
	}
}

// Factor is one ranked contribution to a risk score.
type Factor struct {
	Name       string       `json:"name"`
	Importance float64      `json:"importance"`
	Impact     FactorImpact `json:"impact"`
}

// RankFactors sorts factors descending by absolute importance.
// Ties are broken by factor name so rankings are deterministic.
func RankFactors(factors []Factor) []Factor {
	ranked := make([]Factor, len(factors))
	copy(ranked, factors)
	sort.SliceStable(ranked, func(i, j int) bool {
		ai, aj := math.Abs(ranked[i].Importance), math.Abs(ranked[j].Importance)
		if ai != aj {
			return ai > aj
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// ═══════════════════════════════════════════════════════════════════════════
// Fee Status Value Object
// ═══════════════════════════════════════════════════════════════════════════

// FeeStatus is the student's fee payment state as reported by the student store.
type FeeStatus string

const (
	FeePaid      FeeStatus = "Paid"
	FeePending   FeeStatus = "Pending"
	FeeDefaulted FeeStatus = "Defaulted"
	FeePartial   FeeStatus = "Partial"
)

// IsValid checks the fee status is known.
func (f FeeStatus) IsValid() bool {
	switch f {
	case FeePaid, FeePending, FeeDefaulted, FeePartial:
		return true
	default:
		return false
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Trend Value Object
// ═══════════════════════════════════════════════════════════════════════════

// GradeTrend summarizes the direction of recent grades.
type GradeTrend string

const (
	TrendImproving GradeTrend = "improving"
	TrendStable    GradeTrend = "stable"
	TrendDeclining GradeTrend = "declining"
)

// IsValid checks the trend is known.
func (t GradeTrend) IsValid() bool {
	switch t {
	case TrendImproving, TrendStable, TrendDeclining:
		return true
	default:
		return false
	}
}
