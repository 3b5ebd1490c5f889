package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ALERT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AlertRepository implements alert.Repository for PostgreSQL.
type AlertRepository struct {
	conn *Connection
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(conn *Connection) *AlertRepository {
	return &AlertRepository{conn: conn}
}

const alertColumns = `
	id, student_id, alert_type, priority, status,
	title, description, trigger_value, threshold, current_value,
	escalation_level, last_escalated_at,
	assigned_to, resolved_by, resolved_at, resolution_notes,
	is_auto_generated, generated_by, created_at, updated_at
`

// Create inserts a new alert. The partial unique index on (student_id,
// alert_type) over open statuses turns a concurrent duplicate into
// shared.ErrAlertConflict.
func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.conn.Exec(ctx, query,
		a.ID,
		a.StudentID.String(),
		a.Type.String(),
		a.Priority.String(),
		string(a.Status),
		a.Title,
		a.Description,
		a.Trigger.TriggerValue,
		a.Trigger.Threshold,
		a.Trigger.CurrentValue,
		a.EscalationLevel,
		a.LastEscalatedAt,
		a.AssignedTo.String(),
		a.ResolvedBy.String(),
		a.ResolvedAt,
		a.ResolutionNotes,
		a.IsAutoGenerated,
		a.GeneratedBy,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlertConflict
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// Update persists changes to an existing alert.
func (r *AlertRepository) Update(ctx context.Context, a *alert.Alert) error {
	query := `
		UPDATE alerts SET
			priority = $1,
			status = $2,
			current_value = $3,
			escalation_level = $4,
			last_escalated_at = $5,
			assigned_to = $6,
			resolved_by = $7,
			resolved_at = $8,
			resolution_notes = $9,
			updated_at = $10
		WHERE id = $11
	`

	result, err := r.conn.Exec(ctx, query,
		a.Priority.String(),
		string(a.Status),
		a.Trigger.CurrentValue,
		a.EscalationLevel,
		a.LastEscalatedAt,
		a.AssignedTo.String(),
		a.ResolvedBy.String(),
		a.ResolvedAt,
		a.ResolutionNotes,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrAlertNotFound
	}

	return nil
}

// GetByID returns an alert by ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)

	a, err := scanAlert(row)
	if IsNoRows(err) {
		return nil, shared.ErrAlertNotFound
	}
	return a, err
}

// FindOpen returns the non-terminal alert holding the (student, type) slot.
func (r *AlertRepository) FindOpen(ctx context.Context, studentID shared.StudentID, alertType alert.Type) (*alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE student_id = $1 AND alert_type = $2 AND status IN (` + openStatusList() + `)
	`

	row := r.conn.QueryRow(ctx, query, studentID.String(), alertType.String())
	a, err := scanAlert(row)
	if IsNoRows(err) {
		return nil, shared.ErrAlertNotFound
	}
	return a, err
}

// ListNonTerminal returns every alert eligible for the escalation sweep.
func (r *AlertRepository) ListNonTerminal(ctx context.Context) ([]*alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status IN (` + openStatusList() + `)
		ORDER BY created_at ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// CountOpenByStudent counts a student's non-terminal alerts, excluding the
// given types.
func (r *AlertRepository) CountOpenByStudent(ctx context.Context, studentID shared.StudentID, exclude ...alert.Type) (int, error) {
	query := `
		SELECT COUNT(*) FROM alerts
		WHERE student_id = $1 AND status IN (` + openStatusList() + `)
	`
	args := []interface{}{studentID.String()}

	if len(exclude) > 0 {
		placeholders := make([]string, len(exclude))
		for i, t := range exclude {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, t.String())
		}
		query += " AND alert_type NOT IN (" + strings.Join(placeholders, ", ") + ")"
	}

	var count int
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open alerts: %w", err)
	}
	return count, nil
}

// ListByStudent returns a student's alerts, newest first.
func (r *AlertRepository) ListByStudent(ctx context.Context, studentID shared.StudentID, limit int) ([]*alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, studentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query student alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// openStatusList renders the non-terminal statuses as a SQL literal list,
// matching the predicate of the partial unique index.
func openStatusList() string {
	statuses := alert.NonTerminalStatuses()
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}

// scanAlert scans a single alert from a row.
func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var a alert.Alert
	var studentID, alertType, priority, status, assignedTo, resolvedBy string
	var lastEscalatedAt, resolvedAt *time.Time

	err := row.Scan(
		&a.ID,
		&studentID,
		&alertType,
		&priority,
		&status,
		&a.Title,
		&a.Description,
		&a.Trigger.TriggerValue,
		&a.Trigger.Threshold,
		&a.Trigger.CurrentValue,
		&a.EscalationLevel,
		&lastEscalatedAt,
		&assignedTo,
		&resolvedBy,
		&resolvedAt,
		&a.ResolutionNotes,
		&a.IsAutoGenerated,
		&a.GeneratedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.StudentID = shared.StudentID(studentID)
	a.Type = alert.Type(alertType)
	a.Priority = shared.Priority(priority)
	a.Status = alert.Status(status)
	a.AssignedTo = shared.UserID(assignedTo)
	a.ResolvedBy = shared.UserID(resolvedBy)
	a.LastEscalatedAt = lastEscalatedAt
	a.ResolvedAt = resolvedAt

	return &a, nil
}

// scanAlerts scans multiple alerts from rows.
func scanAlerts(rows pgx.Rows) ([]*alert.Alert, error) {
	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
