package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/risk-engine/internal/domain/prediction"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// ExpirePredictionsJob deactivates predictions that have outlived their
// validity window. Runs alongside the daily recompute so a student whose
// scoring failed does not keep serving a stale score forever.
type ExpirePredictionsJob struct {
	predictions prediction.Repository
	publisher   shared.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewExpirePredictionsJob creates a new ExpirePredictionsJob.
func NewExpirePredictionsJob(predictions prediction.Repository, publisher shared.EventPublisher, logger *slog.Logger) *ExpirePredictionsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirePredictionsJob{
		predictions: predictions,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (j *ExpirePredictionsJob) WithClock(now func() time.Time) *ExpirePredictionsJob {
	j.now = now
	return j
}

// Name returns the job name.
func (j *ExpirePredictionsJob) Name() string {
	return "expire_predictions"
}

// Description returns a human-readable description.
func (j *ExpirePredictionsJob) Description() string {
	return "Deactivates predictions past their validity window"
}

// Run executes the expiry pass.
func (j *ExpirePredictionsJob) Run(ctx context.Context) error {
	count, err := j.predictions.ExpireStale(ctx, j.now())
	if err != nil {
		return fmt.Errorf("prediction expiry failed: %w", err)
	}

	if count > 0 {
		j.logger.Info("stale predictions expired", "count", count)

		if j.publisher != nil {
			event := shared.NewGenericEvent(shared.EventPredictionExpired, "batch")
			if err := j.publisher.Publish(event); err != nil {
				j.logger.Warn("failed to publish expiry event", "error", err)
			}
		}
	}

	return nil
}
