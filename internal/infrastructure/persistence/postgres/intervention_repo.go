package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edupulse/risk-engine/internal/domain/intervention"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVENTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// InterventionRepository implements intervention.Repository for PostgreSQL.
type InterventionRepository struct {
	conn *Connection
}

// NewInterventionRepository creates a new InterventionRepository.
func NewInterventionRepository(conn *Connection) *InterventionRepository {
	return &InterventionRepository{conn: conn}
}

const interventionColumns = `
	id, student_id, alert_id, intervention_type, title, description,
	assigned_to, assigned_by, start_date, end_date, frequency, total_sessions,
	sessions, status, outcome, effectiveness_rating, created_at, updated_at
`

// Create inserts a new intervention.
func (r *InterventionRepository) Create(ctx context.Context, iv *intervention.Intervention) error {
	sessionsJSON, err := json.Marshal(iv.Sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	query := `
		INSERT INTO interventions (` + interventionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var alertID *string
	if iv.AlertID != "" {
		alertID = &iv.AlertID
	}

	_, err = r.conn.Exec(ctx, query,
		iv.ID,
		iv.StudentID.String(),
		alertID,
		string(iv.Type),
		iv.Title,
		iv.Description,
		iv.AssignedTo.String(),
		iv.AssignedBy.String(),
		iv.Schedule.StartDate,
		iv.Schedule.EndDate,
		string(iv.Schedule.Frequency),
		iv.Schedule.TotalSessions,
		sessionsJSON,
		string(iv.Status),
		string(iv.Outcome),
		iv.EffectivenessRating,
		iv.CreatedAt,
		iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create intervention: %w", err)
	}

	return nil
}

// Update persists changes (sessions, status, outcome).
func (r *InterventionRepository) Update(ctx context.Context, iv *intervention.Intervention) error {
	sessionsJSON, err := json.Marshal(iv.Sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	query := `
		UPDATE interventions SET
			assigned_to = $1,
			sessions = $2,
			status = $3,
			outcome = $4,
			effectiveness_rating = $5,
			updated_at = $6
		WHERE id = $7
	`

	result, err := r.conn.Exec(ctx, query,
		iv.AssignedTo.String(),
		sessionsJSON,
		string(iv.Status),
		string(iv.Outcome),
		iv.EffectivenessRating,
		iv.UpdatedAt,
		iv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update intervention: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrInterventionNotFound
	}

	return nil
}

// GetByID returns an intervention by ID.
func (r *InterventionRepository) GetByID(ctx context.Context, id string) (*intervention.Intervention, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+interventionColumns+` FROM interventions WHERE id = $1`, id)

	iv, err := scanIntervention(row)
	if IsNoRows(err) {
		return nil, shared.ErrInterventionNotFound
	}
	return iv, err
}

// ListByStudent returns a student's interventions, newest first.
func (r *InterventionRepository) ListByStudent(ctx context.Context, studentID shared.StudentID) ([]*intervention.Intervention, error) {
	query := `
		SELECT ` + interventionColumns + `
		FROM interventions
		WHERE student_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, studentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query student interventions: %w", err)
	}
	defer rows.Close()

	return scanInterventions(rows)
}

// ListOverdue returns open interventions whose end date is before now.
func (r *InterventionRepository) ListOverdue(ctx context.Context, now time.Time) ([]*intervention.Intervention, error) {
	query := `
		SELECT ` + interventionColumns + `
		FROM interventions
		WHERE end_date < $1 AND status NOT IN ('Completed', 'Cancelled')
		ORDER BY end_date ASC
	`

	rows, err := r.conn.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue interventions: %w", err)
	}
	defer rows.Close()

	return scanInterventions(rows)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanIntervention scans a single intervention from a row.
func scanIntervention(row pgx.Row) (*intervention.Intervention, error) {
	var iv intervention.Intervention
	var studentID, itype, frequency, status, outcome, assignedTo, assignedBy string
	var alertID *string
	var sessionsJSON []byte

	err := row.Scan(
		&iv.ID,
		&studentID,
		&alertID,
		&itype,
		&iv.Title,
		&iv.Description,
		&assignedTo,
		&assignedBy,
		&iv.Schedule.StartDate,
		&iv.Schedule.EndDate,
		&frequency,
		&iv.Schedule.TotalSessions,
		&sessionsJSON,
		&status,
		&outcome,
		&iv.EffectivenessRating,
		&iv.CreatedAt,
		&iv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	iv.StudentID = shared.StudentID(studentID)
	if alertID != nil {
		iv.AlertID = *alertID
	}
	iv.Type = intervention.Type(itype)
	iv.Schedule.Frequency = intervention.Frequency(frequency)
	iv.Status = intervention.Status(status)
	iv.Outcome = intervention.Outcome(outcome)
	iv.AssignedTo = shared.UserID(assignedTo)
	iv.AssignedBy = shared.UserID(assignedBy)
	if len(sessionsJSON) > 0 {
		if err := json.Unmarshal(sessionsJSON, &iv.Sessions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
		}
	}

	return &iv, nil
}

// scanInterventions scans multiple interventions from rows.
func scanInterventions(rows pgx.Rows) ([]*intervention.Intervention, error) {
	var interventions []*intervention.Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}
		interventions = append(interventions, iv)
	}
	return interventions, rows.Err()
}
