package assess

import (
	"fmt"

	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Finding is one alert condition detected by the rule table.
type Finding struct {
	Type         alert.Type
	Priority     shared.Priority
	TriggerValue float64
	Threshold    float64
	CurrentValue float64
	Title        string
	Description  string
}

// Thresholds holds the configurable rule cut-offs.
type Thresholds struct {
	// AttendanceWarn fires AttendanceLow at Medium priority.
	AttendanceWarn float64
	// AttendanceCrit fires AttendanceLow at High priority.
	AttendanceCrit float64

	// GradeDeclineStreak is how many consecutive drops count as declining.
	GradeDeclineStreak int

	// HighCut fires RiskScoreHigh when the dropout probability reaches it.
	HighCut float64
	// CriticalCut, together with CriticalOpenAlerts other open alerts,
	// fires CriticalAlert.
	CriticalCut        float64
	CriticalOpenAlerts int
}

// Evaluator is the ordered, explicit rule table. Every rule is a pure
// predicate over the inputs: identical signals always produce the identical
// finding set. Dedup against already-open alerts is the lifecycle manager's
// job, not this component's.
type Evaluator struct {
	t Thresholds
}

// NewEvaluator creates a rule evaluator with the given thresholds.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{t: t}
}

// Evaluate runs every rule against the student's current state.
// probability is the active prediction's dropout probability; callers with
// no active prediction pass a negative value to disable the score rules.
// openAlerts counts the student's currently open alerts of other types.
func (e *Evaluator) Evaluate(f FeatureVector, probability float64, openAlerts int) []Finding {
	findings := make([]Finding, 0, 4)

	// Rule 1-2: attendance shortfall. The critical threshold wins when both match.
	if !IsMissing(f.AttendanceRate) {
		switch {
		case f.AttendanceRate < e.t.AttendanceCrit:
			findings = append(findings, Finding{
				Type:         alert.TypeAttendanceLow,
				Priority:     shared.PriorityHigh,
				TriggerValue: f.AttendanceRate,
				Threshold:    e.t.AttendanceCrit,
				CurrentValue: f.AttendanceRate,
				Title:        "Attendance critically low",
				Description:  fmt.Sprintf("attendance %.1f%% is below the %.0f%% critical threshold", f.AttendanceRate, e.t.AttendanceCrit),
			})
		case f.AttendanceRate < e.t.AttendanceWarn:
			findings = append(findings, Finding{
				Type:         alert.TypeAttendanceLow,
				Priority:     shared.PriorityMedium,
				TriggerValue: f.AttendanceRate,
				Threshold:    e.t.AttendanceWarn,
				CurrentValue: f.AttendanceRate,
				Title:        "Attendance below expected",
				Description:  fmt.Sprintf("attendance %.1f%% is below the %.0f%% threshold", f.AttendanceRate, e.t.AttendanceWarn),
			})
		}
	}

	// Rule 3: consecutive grade decline.
	if streak := declineStreak(f.RecentGrades); streak >= e.t.GradeDeclineStreak && e.t.GradeDeclineStreak > 0 {
		findings = append(findings, Finding{
			Type:         alert.TypeGradesDeclining,
			Priority:     shared.PriorityMedium,
			TriggerValue: float64(streak),
			Threshold:    float64(e.t.GradeDeclineStreak),
			CurrentValue: float64(streak),
			Title:        "Grades declining",
			Description:  fmt.Sprintf("%d consecutive declining grades", streak),
		})
	}

	// Rule 4: fee default.
	if f.FeeStatus == shared.FeeDefaulted {
		findings = append(findings, Finding{
			Type:         alert.TypeFeeOverdue,
			Priority:     shared.PriorityHigh,
			TriggerValue: 1,
			Threshold:    1,
			CurrentValue: 1,
			Title:        "Fees defaulted",
			Description:  "fee status is Defaulted",
		})
	}

	// Rule 5: high dropout probability.
	if probability >= e.t.HighCut && probability >= 0 {
		findings = append(findings, Finding{
			Type:         alert.TypeRiskScoreHigh,
			Priority:     shared.PriorityHigh,
			TriggerValue: probability,
			Threshold:    e.t.HighCut,
			CurrentValue: probability,
			Title:        "Dropout risk high",
			Description:  fmt.Sprintf("dropout probability %.2f at or above the %.2f cut", probability, e.t.HighCut),
		})
	}

	// Rule 6: critical combination. Very high probability plus an existing
	// pile-up of open alerts for the same student.
	if probability >= e.t.CriticalCut && probability >= 0 && openAlerts >= e.t.CriticalOpenAlerts {
		findings = append(findings, Finding{
			Type:         alert.TypeCritical,
			Priority:     shared.PriorityCritical,
			TriggerValue: probability,
			Threshold:    e.t.CriticalCut,
			CurrentValue: float64(openAlerts),
			Title:        "Critical dropout risk",
			Description: fmt.Sprintf("dropout probability %.2f with %d other open alerts",
				probability, openAlerts),
		})
	}

	return findings
}

// declineStreak counts consecutive strictly-decreasing grades at the tail
// of the series (most recent grade last).
func declineStreak(grades []float64) int {
	streak := 0
	for i := len(grades) - 1; i > 0; i-- {
		if grades[i] < grades[i-1] {
			streak++
		} else {
			break
		}
	}
	return streak
}
