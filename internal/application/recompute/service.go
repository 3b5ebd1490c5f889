// Package recompute runs the full per-student assessment pipeline:
// extract signals, score, record the prediction, evaluate rules, and open
// alerts. The batch entry point fans out over all active students.
package recompute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/edupulse/risk-engine/internal/application/alerting"
	"github.com/edupulse/risk-engine/internal/application/assess"
	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/prediction"
	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/domain/student"
)

// GeneratedBy tags alerts and predictions produced by the automated pipeline.
const GeneratedBy = "risk-engine"

// Service wires the assessment pipeline together.
type Service struct {
	extractor   *assess.Extractor
	scorer      assess.Scorer
	evaluator   *assess.Evaluator
	predictions prediction.Repository
	alerts      alert.Repository
	manager     *alerting.Manager
	students    student.Reader
	writeback   student.SummaryWriter
	cache       student.SummaryCache
	publisher   shared.EventPublisher
	logger      *slog.Logger

	validity    time.Duration
	concurrency int
	now         func() time.Time
}

// Config carries the service's tunables.
type Config struct {
	// Validity is how long a recorded prediction stays active before the
	// expiry job deactivates it.
	Validity time.Duration

	// Concurrency caps how many students are assessed in parallel.
	Concurrency int
}

// NewService creates the recompute service.
func NewService(
	extractor *assess.Extractor,
	scorer assess.Scorer,
	evaluator *assess.Evaluator,
	predictions prediction.Repository,
	alerts alert.Repository,
	manager *alerting.Manager,
	students student.Reader,
	writeback student.SummaryWriter,
	cache student.SummaryCache,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Service{
		extractor:   extractor,
		scorer:      scorer,
		evaluator:   evaluator,
		predictions: predictions,
		alerts:      alerts,
		manager:     manager,
		students:    students,
		writeback:   writeback,
		cache:       cache,
		publisher:   publisher,
		logger:      logger,
		validity:    cfg.Validity,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests and the scheduler.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Single student
// ─────────────────────────────────────────────────────────────────────────────

// StudentResult reports one student's assessment.
type StudentResult struct {
	StudentID     shared.StudentID
	Prediction    *prediction.Prediction
	AlertsOpened  int
	AlertsRefresh int
}

// Student runs the pipeline for one student. A student who is no longer
// active fails with shared.ErrStudentNotActive; batch callers count that as
// a skip. Rerunning with unchanged signals opens no new alerts: every
// finding lands on its already-open row via the dedup path.
func (s *Service) Student(ctx context.Context, id shared.StudentID) (StudentResult, error) {
	res := StudentResult{StudentID: id}

	fv, err := s.extractor.Extract(ctx, id)
	if err != nil {
		return res, err
	}

	scored, err := s.scorer.Score(*fv)
	if err != nil {
		return res, err
	}

	pred, err := prediction.New(id, scored.Probability, scored.RiskLevel,
		scored.Factors, s.scorer.ModelVersion(), s.now(), s.validity)
	if err != nil {
		return res, err
	}
	if err := s.record(ctx, pred); err != nil {
		return res, err
	}
	res.Prediction = pred
	s.publish(shared.NewGenericEvent(shared.EventPredictionRecorded, pred.ID))

	// Open alerts of other types feed the critical-combination rule;
	// the critical alert itself must not count toward its own trigger.
	openCount, err := s.alerts.CountOpenByStudent(ctx, id, alert.TypeCritical)
	if err != nil {
		return res, err
	}

	for _, f := range s.evaluator.Evaluate(*fv, scored.Probability.Float64(), openCount) {
		opened, err := s.manager.Open(ctx, id, f, true, GeneratedBy)
		if err != nil {
			s.logger.Error("failed to open alert",
				slog.String("student_id", id.String()),
				slog.String("alert_type", f.Type.String()),
				slog.Any("error", err))
			continue
		}
		if opened.Created {
			res.AlertsOpened++
		} else {
			res.AlertsRefresh++
		}
	}

	s.writeSummary(ctx, pred)
	return res, nil
}

// record inserts the prediction, retrying once when a concurrent run for the
// same student wins the active slot first.
func (s *Service) record(ctx context.Context, p *prediction.Prediction) error {
	err := s.predictions.Record(ctx, p)
	if errors.Is(err, shared.ErrPredictionConflict) {
		s.logger.Debug("prediction record conflict, retrying",
			slog.String("student_id", p.StudentID.String()))
		err = s.predictions.Record(ctx, p)
	}
	return err
}

// writeSummary pushes the denormalized score to the student store and cache.
// Both writes are best effort: the prediction is already durable.
func (s *Service) writeSummary(ctx context.Context, p *prediction.Prediction) {
	summary := student.RiskSummary{
		StudentID:  p.StudentID,
		RiskScore:  p.RiskScore,
		RiskLevel:  p.RiskLevel,
		AssessedAt: p.ComputedAt,
	}
	if err := s.writeback.WriteRiskSummary(ctx, summary); err != nil {
		s.logger.Warn("risk summary write-back failed",
			slog.String("student_id", p.StudentID.String()), slog.Any("error", err))
	}
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, summary); err != nil {
		s.logger.Warn("risk summary cache update failed",
			slog.String("student_id", p.StudentID.String()), slog.Any("error", err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch
// ─────────────────────────────────────────────────────────────────────────────

// BatchStats summarizes one full recompute run.
type BatchStats struct {
	Total        int
	Scored       int
	Skipped      int
	Failed       int
	AlertsOpened int
	Duration     time.Duration
}

// All assesses every active student with bounded parallelism. One student's
// failure never aborts the batch; it is counted and logged. Inactive students
// discovered mid-run count as skips.
func (s *Service) All(ctx context.Context) (BatchStats, error) {
	started := s.now()

	ids, err := s.students.ListActiveIDs(ctx)
	if err != nil {
		return BatchStats{}, err
	}

	var (
		mu    sync.Mutex
		stats = BatchStats{Total: len(ids)}
		sem   = make(chan struct{}, s.concurrency)
		wg    sync.WaitGroup
	)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id shared.StudentID) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := s.Student(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stats.Scored++
				stats.AlertsOpened += res.AlertsOpened
			case errors.Is(err, shared.ErrStudentNotActive):
				stats.Skipped++
			default:
				stats.Failed++
				s.logger.Error("student assessment failed",
					slog.String("student_id", id.String()), slog.Any("error", err))
			}
		}(id)
	}
	wg.Wait()

	stats.Duration = s.now().Sub(started)
	s.publish(shared.NewRecomputeCompletedEvent(
		stats.Total, stats.Scored, stats.Skipped, stats.Failed, stats.AlertsOpened))

	s.logger.Info("recompute batch finished",
		slog.Int("total", stats.Total),
		slog.Int("scored", stats.Scored),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int("alerts_opened", stats.AlertsOpened),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

func (s *Service) publish(event shared.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("failed to publish event",
			slog.String("event_type", string(event.EventType())),
			slog.Any("error", err))
	}
}
