package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

const testStudentID = shared.StudentID("aaaaaaaa-bbbb-cccc-dddd-eeee00000003")

var testFactors = []shared.Factor{
	{Name: "attendance_rate", Importance: 0.9, Impact: shared.ImpactPositive},
	{Name: "cgpa", Importance: 0.6, Impact: shared.ImpactPositive},
	{Name: "scholarship", Importance: -0.35, Impact: shared.ImpactNegative},
	{Name: "fee_status", Importance: 0.3, Impact: shared.ImpactPositive},
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	p, err := New(testStudentID, 0.72, shared.RiskHigh, testFactors, "weighted-v1", now, 24*time.Hour)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 72, p.RiskScore)
	assert.Equal(t, OutcomeDropout, p.Outcome)
	assert.True(t, p.IsActive)
	assert.Equal(t, now.Add(24*time.Hour), p.ValidUntil)

	// Factors come back ranked by absolute importance.
	assert.Equal(t, "attendance_rate", p.Factors[0].Name)
	assert.Equal(t, "cgpa", p.Factors[1].Name)
	assert.Equal(t, "scholarship", p.Factors[2].Name)
}

func TestNew_OutcomeFollowsRiskLevel(t *testing.T) {
	now := time.Now()

	for _, tc := range []struct {
		level shared.RiskLevel
		want  Outcome
	}{
		{shared.RiskLow, OutcomeContinue},
		{shared.RiskMedium, OutcomeContinue},
		{shared.RiskHigh, OutcomeDropout},
	} {
		p, err := New(testStudentID, 0.5, tc.level, nil, "weighted-v1", now, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.Outcome, "level %s", tc.level)
	}
}

func TestNew_Validation(t *testing.T) {
	now := time.Now()

	_, err := New("", 0.5, shared.RiskLow, nil, "weighted-v1", now, time.Hour)
	assert.True(t, shared.IsMalformedInput(err))

	_, err = New(testStudentID, 1.5, shared.RiskLow, nil, "weighted-v1", now, time.Hour)
	assert.ErrorIs(t, err, shared.ErrInvalidProbability)

	_, err = New(testStudentID, 0.5, shared.RiskLevel("Extreme"), nil, "weighted-v1", now, time.Hour)
	assert.True(t, shared.IsMalformedInput(err))

	_, err = New(testStudentID, 0.5, shared.RiskLow, nil, "", now, time.Hour)
	assert.True(t, shared.IsMalformedInput(err))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	p, err := New(testStudentID, 0.3, shared.RiskLow, nil, "weighted-v1", now, 24*time.Hour)
	require.NoError(t, err)

	assert.False(t, p.IsExpired(now))
	assert.False(t, p.IsExpired(now.Add(24*time.Hour)))
	assert.True(t, p.IsExpired(now.Add(24*time.Hour+time.Second)))
}

func TestTopRiskFactors(t *testing.T) {
	now := time.Now()
	p, err := New(testStudentID, 0.72, shared.RiskHigh, testFactors, "weighted-v1", now, time.Hour)
	require.NoError(t, err)

	top := p.TopRiskFactors(2)
	require.Len(t, top, 2)
	assert.Equal(t, "attendance_rate", top[0].Name)
	assert.Equal(t, "cgpa", top[1].Name)

	// Negative-impact factors never appear, even with room left.
	all := p.TopRiskFactors(10)
	require.Len(t, all, 3)
	for _, f := range all {
		assert.Equal(t, shared.ImpactPositive, f.Impact)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	p, err := New(testStudentID, 0.72, shared.RiskHigh, testFactors, "weighted-v1", now, time.Hour)
	require.NoError(t, err)

	s := p.Summarize()
	assert.Equal(t, shared.RiskHigh, s.RiskLevel)
	assert.Equal(t, 72, s.RiskScore)
	assert.Equal(t, []string{"attendance_rate", "cgpa", "fee_status"}, s.TopFactors)
}
