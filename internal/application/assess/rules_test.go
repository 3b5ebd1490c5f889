package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

func testThresholds() Thresholds {
	return Thresholds{
		AttendanceWarn:     75,
		AttendanceCrit:     60,
		GradeDeclineStreak: 2,
		HighCut:            0.66,
		CriticalCut:        0.85,
		CriticalOpenAlerts: 2,
	}
}

func findingTypes(fs []Finding) []alert.Type {
	types := make([]alert.Type, len(fs))
	for i, f := range fs {
		types[i] = f.Type
	}
	return types
}

func TestEvaluate_CleanStudent(t *testing.T) {
	e := NewEvaluator(testThresholds())
	fs := e.Evaluate(goodVector(), 0.05, 0)
	assert.Empty(t, fs)
}

func TestEvaluate_AttendanceTiers(t *testing.T) {
	e := NewEvaluator(testThresholds())

	fv := goodVector()
	fv.AttendanceRate = 70
	fs := e.Evaluate(fv, 0.05, 0)
	require.Len(t, fs, 1)
	assert.Equal(t, alert.TypeAttendanceLow, fs[0].Type)
	assert.Equal(t, shared.PriorityMedium, fs[0].Priority)
	assert.Equal(t, 75.0, fs[0].Threshold)

	// Below the critical cut the same rule fires at High, once.
	fv.AttendanceRate = 55
	fs = e.Evaluate(fv, 0.05, 0)
	require.Len(t, fs, 1)
	assert.Equal(t, alert.TypeAttendanceLow, fs[0].Type)
	assert.Equal(t, shared.PriorityHigh, fs[0].Priority)
	assert.Equal(t, 60.0, fs[0].Threshold)

	// Missing attendance produces nothing.
	fv.AttendanceRate = Missing
	fs = e.Evaluate(fv, 0.05, 0)
	assert.Empty(t, fs)
}

func TestEvaluate_GradeDecline(t *testing.T) {
	e := NewEvaluator(testThresholds())

	fv := goodVector()
	fv.RecentGrades = []float64{90, 80, 70}
	fs := e.Evaluate(fv, 0.05, 0)
	require.Len(t, fs, 1)
	assert.Equal(t, alert.TypeGradesDeclining, fs[0].Type)
	assert.Equal(t, 2.0, fs[0].TriggerValue)

	// A recovery at the tail resets the streak.
	fv.RecentGrades = []float64{90, 70, 75}
	assert.Empty(t, e.Evaluate(fv, 0.05, 0))

	// A single drop is below the streak threshold.
	fv.RecentGrades = []float64{90, 80}
	assert.Empty(t, e.Evaluate(fv, 0.05, 0))
}

func TestEvaluate_MultipleFindings(t *testing.T) {
	e := NewEvaluator(testThresholds())

	fv := goodVector()
	fv.AttendanceRate = 55
	fv.FeeStatus = shared.FeeDefaulted

	fs := e.Evaluate(fv, 0.8, 0)
	assert.ElementsMatch(t,
		[]alert.Type{alert.TypeAttendanceLow, alert.TypeFeeOverdue, alert.TypeRiskScoreHigh},
		findingTypes(fs))

	// 0.8 sits below the critical cut, so no critical finding yet.
	assert.NotContains(t, findingTypes(fs), alert.TypeCritical)
}

func TestEvaluate_CriticalCombination(t *testing.T) {
	e := NewEvaluator(testThresholds())
	fv := goodVector()

	// Very high probability alone is not critical.
	fs := e.Evaluate(fv, 0.9, 1)
	assert.NotContains(t, findingTypes(fs), alert.TypeCritical)

	// With enough other open alerts it is.
	fs = e.Evaluate(fv, 0.9, 2)
	require.Contains(t, findingTypes(fs), alert.TypeCritical)
	for _, f := range fs {
		if f.Type == alert.TypeCritical {
			assert.Equal(t, shared.PriorityCritical, f.Priority)
		}
	}
}

func TestEvaluate_NoPredictionDisablesScoreRules(t *testing.T) {
	e := NewEvaluator(testThresholds())
	fv := goodVector()
	fv.FeeStatus = shared.FeeDefaulted

	fs := e.Evaluate(fv, -1, 5)
	assert.Equal(t, []alert.Type{alert.TypeFeeOverdue}, findingTypes(fs))
}

func TestDeclineStreak(t *testing.T) {
	assert.Equal(t, 0, declineStreak(nil))
	assert.Equal(t, 0, declineStreak([]float64{80}))
	assert.Equal(t, 0, declineStreak([]float64{80, 80}))
	assert.Equal(t, 1, declineStreak([]float64{80, 70}))
	assert.Equal(t, 3, declineStreak([]float64{90, 85, 80, 75}))
	assert.Equal(t, 2, declineStreak([]float64{70, 90, 85, 80}))
}
