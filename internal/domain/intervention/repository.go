package intervention

import (
	"context"
	"time"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Repository persists interventions.
type Repository interface {
	// Create inserts a new intervention.
	Create(ctx context.Context, iv *Intervention) error

	// Update persists changes (sessions, status, outcome).
	Update(ctx context.Context, iv *Intervention) error

	// GetByID returns an intervention, or shared.ErrInterventionNotFound.
	GetByID(ctx context.Context, id string) (*Intervention, error)

	// ListByStudent returns a student's interventions, newest first.
	ListByStudent(ctx context.Context, studentID shared.StudentID) ([]*Intervention, error)

	// ListOverdue returns open interventions whose end date is before now.
	ListOverdue(ctx context.Context, now time.Time) ([]*Intervention, error)
}
