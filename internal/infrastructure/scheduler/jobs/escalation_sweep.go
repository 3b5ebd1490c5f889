package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edupulse/risk-engine/internal/application/alerting"
	"github.com/edupulse/risk-engine/internal/application/tracking"
)

// EscalationSweepJob walks all open alerts every hour and escalates the ones
// that have aged past their response window. It also flags interventions that
// ran past their end date.
type EscalationSweepJob struct {
	manager *alerting.Manager
	tracker *tracking.Tracker
	logger  *slog.Logger
}

// NewEscalationSweepJob creates a new EscalationSweepJob.
func NewEscalationSweepJob(manager *alerting.Manager, tracker *tracking.Tracker, logger *slog.Logger) *EscalationSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EscalationSweepJob{
		manager: manager,
		tracker: tracker,
		logger:  logger,
	}
}

// Name returns the job name.
func (j *EscalationSweepJob) Name() string {
	return "escalation_sweep"
}

// Description returns a human-readable description.
func (j *EscalationSweepJob) Description() string {
	return "Escalates overdue alerts and flags overdue interventions"
}

// Run executes the sweep.
func (j *EscalationSweepJob) Run(ctx context.Context) error {
	stats, err := j.manager.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("escalation sweep failed: %w", err)
	}

	j.logger.Info("escalation sweep finished",
		"examined", stats.Examined,
		"escalated", stats.Escalated,
		"priority_raised", stats.Raised,
		"failed", stats.Failed,
	)

	flagged, err := j.tracker.FlagOverdue(ctx)
	if err != nil {
		return fmt.Errorf("overdue intervention pass failed: %w", err)
	}
	if flagged > 0 {
		j.logger.Info("overdue interventions flagged", "count", flagged)
	}

	return nil
}
