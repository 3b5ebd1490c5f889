package assess

import (
	"math"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Result is the output of one scoring run.
type Result struct {
	Probability shared.Probability
	RiskLevel   shared.RiskLevel

	// Factors are ranked descending by absolute importance, ties broken
	// by name, so explanations are stable across runs.
	Factors []shared.Factor
}

// Scorer converts a feature vector into a dropout probability with ranked
// factor explanations. Implementations must be pure and deterministic for a
// fixed model version: any classifier that satisfies this contract can be
// plugged in without touching the rest of the engine.
type Scorer interface {
	// Score evaluates the features. It must never fail solely because
	// features are missing; only a malformed vector is an error.
	Score(features FeatureVector) (Result, error)

	// ModelVersion identifies the scoring model for prediction records.
	ModelVersion() string
}

// ═══════════════════════════════════════════════════════════════════════════
// WEIGHTED SCORER
// ═══════════════════════════════════════════════════════════════════════════

// Neutral imputation defaults for missing features.
const (
	neutralAttendance = 85.0
	neutralCGPA       = 2.5
)

// WeightedScorer is the default rule-weighted model: each signal contributes
// a signed weight, the sum is squashed through a logistic curve. It exists to
// make the engine usable without a trained classifier, not to be clever.
type WeightedScorer struct {
	cuts shared.RiskCuts
}

// NewWeightedScorer creates the default scorer with the given bucket cuts.
func NewWeightedScorer(cuts shared.RiskCuts) *WeightedScorer {
	return &WeightedScorer{cuts: cuts}
}

// ModelVersion implements Scorer.
func (s *WeightedScorer) ModelVersion() string {
	return "weighted-v1"
}

// Score implements Scorer.
func (s *WeightedScorer) Score(f FeatureVector) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	factors := make([]shared.Factor, 0, 8)
	sum := 0.0

	add := func(name string, contribution float64) {
		impact := shared.ImpactNeutral
		switch {
		case contribution > 0.01:
			impact = shared.ImpactPositive
		case contribution < -0.01:
			impact = shared.ImpactNegative
		}
		factors = append(factors, shared.Factor{
			Name:       name,
			Importance: math.Abs(contribution),
			Impact:     impact,
		})
		sum += contribution
	}

	attendance := f.AttendanceRate
	if IsMissing(attendance) {
		attendance = neutralAttendance
	}
	// 85% attendance is neutral; each point below adds risk.
	add("attendance_rate", (neutralAttendance-attendance)*0.045)

	cgpa := f.CurrentCGPA
	if IsMissing(cgpa) {
		cgpa = neutralCGPA
	}
	add("current_cgpa", (neutralCGPA-cgpa)*0.55)

	switch f.GradeTrend {
	case shared.TrendDeclining:
		add("grade_trend", 0.7)
	case shared.TrendImproving:
		add("grade_trend", -0.4)
	default:
		add("grade_trend", 0)
	}

	switch f.FeeStatus {
	case shared.FeeDefaulted:
		add("fee_status", 0.9)
	case shared.FeePartial:
		add("fee_status", 0.3)
	case shared.FeePaid:
		add("fee_status", -0.2)
	default: // Pending or missing
		add("fee_status", 0)
	}

	if f.HasScholarship {
		add("scholarship", -0.35)
	} else {
		add("scholarship", 0)
	}

	add("disciplinary_incidents", math.Min(float64(f.DisciplinaryIncidents), 5)*0.25)

	if f.Displaced {
		add("displaced", 0.3)
	} else {
		add("displaced", 0)
	}

	if f.SpecialNeeds {
		add("special_needs", 0.15)
	} else {
		add("special_needs", 0)
	}

	// Logistic squash centered so a fully neutral vector lands near 0.2.
	prob := 1.0 / (1.0 + math.Exp(-(sum - 1.4)))

	p, err := shared.NewProbability(prob)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Probability: p,
		RiskLevel:   s.cuts.Bucket(p),
		Factors:     shared.RankFactors(factors),
	}, nil
}
