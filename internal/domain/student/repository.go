package student

import (
	"context"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// Reader is the inbound port to the external student store.
type Reader interface {
	// ListActiveIDs returns the IDs of all students with Active status.
	ListActiveIDs(ctx context.Context) ([]shared.StudentID, error)

	// GetSignals reads the current risk signals for a student.
	// Returns shared.ErrStudentNotFound for unknown IDs.
	GetSignals(ctx context.Context, id shared.StudentID) (*Signals, error)
}

// SummaryWriter writes the denormalized risk summary back to the student store.
type SummaryWriter interface {
	// WriteRiskSummary updates riskScore/riskLevel on the student record.
	WriteRiskSummary(ctx context.Context, summary RiskSummary) error
}

// SummaryCache caches the latest risk summary for dashboard reads.
type SummaryCache interface {
	// Get returns the cached summary or shared.ErrNotFound on a miss.
	Get(ctx context.Context, id shared.StudentID) (*RiskSummary, error)

	// Set stores a summary.
	Set(ctx context.Context, summary RiskSummary) error
}
