package postgres

import (
	"context"
	"fmt"

	"github.com/edupulse/risk-engine/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY LOG IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryLog implements notification.DeliveryLog for PostgreSQL.
// One row per dispatch attempt, independent of alert state.
type DeliveryLog struct {
	conn *Connection
}

// NewDeliveryLog creates a new DeliveryLog.
func NewDeliveryLog(conn *Connection) *DeliveryLog {
	return &DeliveryLog{conn: conn}
}

// Append stores a delivery record.
func (l *DeliveryLog) Append(ctx context.Context, rec notification.DeliveryRecord) error {
	_, err := l.conn.Exec(ctx, `
		INSERT INTO alert_deliveries (id, alert_id, recipient, channel, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rec.ID,
		rec.AlertID,
		rec.Recipient.String(),
		rec.Channel.String(),
		string(rec.Status),
		rec.Error,
		rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append delivery record: %w", err)
	}

	return nil
}
