package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentStore implements student.Reader and student.SummaryWriter against the
// shared students table. The student record system owns the signal columns;
// the engine owns only risk_score, risk_level, and risk_assessed_at.
type StudentStore struct {
	conn *Connection
}

// NewStudentStore creates a new StudentStore.
func NewStudentStore(conn *Connection) *StudentStore {
	return &StudentStore{conn: conn}
}

// ListActiveIDs returns the IDs of all students with Active status.
func (s *StudentStore) ListActiveIDs(ctx context.Context) ([]shared.StudentID, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id FROM students WHERE status = $1 ORDER BY id`,
		string(student.StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active students: %w", err)
	}
	defer rows.Close()

	var ids []shared.StudentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids = append(ids, shared.StudentID(id))
	}

	return ids, rows.Err()
}

// GetSignals reads the current risk signals for a student.
func (s *StudentStore) GetSignals(ctx context.Context, id shared.StudentID) (*student.Signals, error) {
	query := `
		SELECT id, status, attendance_rate, current_cgpa, grade_trend, semester,
			   recent_grades, fee_status, has_scholarship, disciplinary_incidents,
			   special_needs, displaced, age, observed_at
		FROM students
		WHERE id = $1
	`

	var sig student.Signals
	var sid, status, gradeTrend, feeStatus string
	var gradesJSON []byte

	err := s.conn.QueryRow(ctx, query, id.String()).Scan(
		&sid,
		&status,
		&sig.AttendanceRate,
		&sig.CurrentCGPA,
		&gradeTrend,
		&sig.Semester,
		&gradesJSON,
		&feeStatus,
		&sig.HasScholarship,
		&sig.DisciplinaryIncidents,
		&sig.SpecialNeeds,
		&sig.Displaced,
		&sig.Age,
		&sig.ObservedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read student signals: %w", err)
	}

	sig.StudentID = shared.StudentID(sid)
	sig.Status = student.Status(status)
	sig.GradeTrend = shared.GradeTrend(gradeTrend)
	sig.FeeStatus = shared.FeeStatus(feeStatus)
	if len(gradesJSON) > 0 {
		if err := json.Unmarshal(gradesJSON, &sig.RecentGrades); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recent grades: %w", err)
		}
	}

	return &sig, nil
}

// WriteRiskSummary updates the denormalized risk columns on the student row.
func (s *StudentStore) WriteRiskSummary(ctx context.Context, summary student.RiskSummary) error {
	result, err := s.conn.Exec(ctx, `
		UPDATE students
		SET risk_score = $1, risk_level = $2, risk_assessed_at = $3, updated_at = NOW()
		WHERE id = $4
	`,
		summary.RiskScore,
		summary.RiskLevel.String(),
		summary.AssessedAt,
		summary.StudentID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to write risk summary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}
