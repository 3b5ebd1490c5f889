// Package timeutil provides small time helpers shared by the domain and the
// notification layer.
package timeutil

import (
	"fmt"
	"time"
)

// Overdue reports whether deadline has passed at now. A zero deadline never
// counts as overdue.
func Overdue(deadline, now time.Time) bool {
	return !deadline.IsZero() && now.After(deadline)
}

// HumanDuration renders a duration for notification text: "45 minutes",
// "3 hours", "2 days". Durations under a minute render as "moments".
func HumanDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Minute:
		return "moments"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 48*time.Hour:
		return plural(int(d.Round(time.Hour).Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
