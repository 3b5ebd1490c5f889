package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	ce, err := ParseCronExpression("0 8 * * *")
	require.NoError(t, err)
	assert.Equal(t, "0 8 * * *", ce.String())

	_, err = ParseCronExpression("0 8 * *")
	assert.Error(t, err)

	_, err = ParseCronExpression("61 8 * * *")
	assert.Error(t, err)

	_, err = ParseCronExpression("x 8 * * *")
	assert.Error(t, err)
}

func TestCronNext_Daily(t *testing.T) {
	ce := MustParseCronExpression("0 8 * * *")

	// Before 08:00 the slot is later the same day.
	after := time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), ce.Next(after))

	// At or past 08:00 the slot rolls to the next day.
	after = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNext_EveryFiveMinutes(t *testing.T) {
	ce := MustParseCronExpression("*/5 * * * *")

	after := time.Date(2026, 3, 10, 8, 2, 10, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 5, 0, 0, time.UTC), ce.Next(after))

	after = time.Date(2026, 3, 10, 8, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 10, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNext_Hourly(t *testing.T) {
	ce := MustParseCronExpression("0 * * * *")

	after := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNext_Weekday(t *testing.T) {
	// 09:00 on Mondays only. March 10 2026 is a Tuesday.
	ce := MustParseCronExpression("0 9 * * 1")

	after := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	next := ce.Next(after)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), next)
}

func TestCronNext_ListAndRange(t *testing.T) {
	ce := MustParseCronExpression("0 8,12,16 * * *")
	after := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), ce.Next(after))

	ce = MustParseCronExpression("30 9-17 * * *")
	after = time.Date(2026, 3, 10, 17, 31, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC), ce.Next(after))
}

func TestMustParseCronExpression_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseCronExpression("not a cron") })
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(time.Hour)

	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Hour), s.Next(at))
	assert.Equal(t, "@every 1h0m0s", s.String())
}
