package alert

import (
	"context"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Repository persists alerts and enforces the open-alert dedup invariant.
type Repository interface {
	// Create inserts a new alert. When another non-terminal alert already
	// exists for the same (student, type), including one created by a
	// concurrent writer, it fails with shared.ErrAlertConflict.
	Create(ctx context.Context, a *Alert) error

	// Update persists changes to an existing alert.
	Update(ctx context.Context, a *Alert) error

	// GetByID returns an alert by ID, or shared.ErrAlertNotFound.
	GetByID(ctx context.Context, id string) (*Alert, error)

	// FindOpen returns the non-terminal alert for (student, type),
	// or shared.ErrAlertNotFound when the slot is free.
	FindOpen(ctx context.Context, studentID shared.StudentID, alertType Type) (*Alert, error)

	// ListNonTerminal returns every alert eligible for the escalation sweep.
	ListNonTerminal(ctx context.Context) ([]*Alert, error)

	// CountOpenByStudent counts a student's non-terminal alerts, excluding
	// the given types. Feeds the CriticalAlert rule.
	CountOpenByStudent(ctx context.Context, studentID shared.StudentID, exclude ...Type) (int, error)

	// ListByStudent returns a student's alerts, newest first.
	ListByStudent(ctx context.Context, studentID shared.StudentID, limit int) ([]*Alert, error)
}
