package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edupulse/risk-engine/internal/domain/prediction"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREDICTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PredictionRepository implements prediction.Repository for PostgreSQL.
type PredictionRepository struct {
	conn *Connection
}

// NewPredictionRepository creates a new PredictionRepository.
func NewPredictionRepository(conn *Connection) *PredictionRepository {
	return &PredictionRepository{conn: conn}
}

// Record deactivates the student's current active prediction and inserts p
// as the new one, in a single transaction. The partial unique index on
// (student_id) WHERE is_active backstops the invariant: a concurrent writer
// losing the race gets shared.ErrPredictionConflict.
func (r *PredictionRepository) Record(ctx context.Context, p *prediction.Prediction) error {
	factorsJSON, err := json.Marshal(p.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE predictions SET is_active = FALSE WHERE student_id = $1 AND is_active`,
			p.StudentID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to deactivate prior prediction: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO predictions (
				id, student_id, probability, risk_score, risk_level, outcome,
				factors, model_version, computed_at, valid_until, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			p.ID,
			p.StudentID.String(),
			p.Probability.Float64(),
			p.RiskScore,
			p.RiskLevel.String(),
			string(p.Outcome),
			factorsJSON,
			p.ModelVersion,
			p.ComputedAt,
			p.ValidUntil,
			p.IsActive,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPredictionConflict
		}
		return fmt.Errorf("failed to record prediction: %w", err)
	}

	return nil
}

// GetActive returns the active prediction for a student.
func (r *PredictionRepository) GetActive(ctx context.Context, studentID shared.StudentID) (*prediction.Prediction, error) {
	query := `
		SELECT id, student_id, probability, risk_score, risk_level, outcome,
			   factors, model_version, computed_at, valid_until, is_active
		FROM predictions
		WHERE student_id = $1 AND is_active
	`

	row := r.conn.QueryRow(ctx, query, studentID.String())
	p, err := scanPrediction(row)
	if IsNoRows(err) {
		return nil, shared.ErrNoActivePrediction
	}
	return p, err
}

// ExpireStale deactivates active predictions past their validity horizon.
func (r *PredictionRepository) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	result, err := r.conn.Exec(ctx,
		`UPDATE predictions SET is_active = FALSE WHERE is_active AND valid_until < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire predictions: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// History returns the most recent predictions for a student, newest first.
func (r *PredictionRepository) History(ctx context.Context, studentID shared.StudentID, limit int) ([]*prediction.Prediction, error) {
	query := `
		SELECT id, student_id, probability, risk_score, risk_level, outcome,
			   factors, model_version, computed_at, valid_until, is_active
		FROM predictions
		WHERE student_id = $1
		ORDER BY computed_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, studentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction history: %w", err)
	}
	defer rows.Close()

	var predictions []*prediction.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}

// scanPrediction scans a prediction from a row.
func scanPrediction(row pgx.Row) (*prediction.Prediction, error) {
	var p prediction.Prediction
	var studentID, riskLevel, outcome string
	var probability float64
	var factorsJSON []byte

	err := row.Scan(
		&p.ID,
		&studentID,
		&probability,
		&p.RiskScore,
		&riskLevel,
		&outcome,
		&factorsJSON,
		&p.ModelVersion,
		&p.ComputedAt,
		&p.ValidUntil,
		&p.IsActive,
	)
	if err != nil {
		return nil, err
	}

	p.StudentID = shared.StudentID(studentID)
	p.Probability = shared.Probability(probability)
	p.RiskLevel = shared.RiskLevel(riskLevel)
	p.Outcome = prediction.Outcome(outcome)
	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &p.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
		}
	}

	return &p, nil
}
