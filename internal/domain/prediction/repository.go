package prediction

import (
	"context"
	"time"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Repository persists predictions and enforces the single-active invariant.
type Repository interface {
	// Record inserts p as the active prediction for its student, atomically
	// deactivating any prior active prediction. Concurrent writers for the
	// same student serialize at the storage boundary; a loser of that race
	// gets shared.ErrPredictionConflict.
	Record(ctx context.Context, p *Prediction) error

	// GetActive returns the active prediction for a student, or
	// shared.ErrNoActivePrediction when none exists.
	GetActive(ctx context.Context, studentID shared.StudentID) (*Prediction, error)

	// ExpireStale deactivates all active predictions whose validity horizon
	// is before now. Idempotent; returns the number deactivated.
	ExpireStale(ctx context.Context, now time.Time) (int, error)

	// History returns the most recent predictions for a student, newest first.
	History(ctx context.Context, studentID shared.StudentID, limit int) ([]*Prediction, error)
}
