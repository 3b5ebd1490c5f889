// Package jobs contains the scheduled jobs of the risk engine: the daily
// recompute, the hourly escalation sweep, and the prediction expiry pass.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/risk-engine/internal/application/recompute"
)

// RecomputeAllJob runs the daily risk recompute across the active cohort.
type RecomputeAllJob struct {
	service *recompute.Service
	timeout time.Duration
	logger  *slog.Logger
}

// NewRecomputeAllJob creates a new RecomputeAllJob.
func NewRecomputeAllJob(service *recompute.Service, logger *slog.Logger) *RecomputeAllJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecomputeAllJob{
		service: service,
		logger:  logger,
	}
}

// WithTimeout caps a single batch run. Zero means no cap.
func (j *RecomputeAllJob) WithTimeout(d time.Duration) *RecomputeAllJob {
	j.timeout = d
	return j
}

// Name returns the job name.
func (j *RecomputeAllJob) Name() string {
	return "recompute_all"
}

// Description returns a human-readable description.
func (j *RecomputeAllJob) Description() string {
	return "Recomputes dropout risk for all active students and opens alerts"
}

// Run executes the recompute.
// Per-student failures are counted inside the batch, not returned; the job
// errors only when the batch itself cannot run.
func (j *RecomputeAllJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	stats, err := j.service.All(ctx)
	if err != nil {
		return fmt.Errorf("recompute batch failed: %w", err)
	}

	j.logger.Info("recompute batch finished",
		"total", stats.Total,
		"scored", stats.Scored,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"alerts_opened", stats.AlertsOpened,
		"duration", stats.Duration.String(),
	)

	if stats.Failed > 0 {
		j.logger.Warn("recompute batch had failures", "failed", stats.Failed)
	}

	return nil
}
