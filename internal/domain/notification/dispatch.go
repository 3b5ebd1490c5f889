// Package notification defines the outbound port to the notification gateway.
// Delivery is best-effort and fire-and-forget: a failed dispatch is recorded,
// never propagated back into the alert state machine.
package notification

import (
	"context"
	"time"

	"github.com/edupulse/risk-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// CHANNEL
// ═══════════════════════════════════════════════════════════════════════════

// Channel is the delivery method for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in-app"
)

// IsValid checks the channel is known.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c Channel) String() string {
	return string(c)
}

// ═══════════════════════════════════════════════════════════════════════════
// DELIVERY
// ═══════════════════════════════════════════════════════════════════════════

// DeliveryStatus tracks the fate of one dispatch attempt.
// It lives independently of alert status: sent, delivered, and failed
// dispatches all leave the alert untouched.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Message is the payload handed to the gateway.
type Message struct {
	Recipient shared.UserID  `json:"recipient"`
	Channel   Channel        `json:"channel"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DeliveryRecord is the stored result of a dispatch attempt.
type DeliveryRecord struct {
	ID        string
	AlertID   string
	Recipient shared.UserID
	Channel   Channel
	Status    DeliveryStatus
	Error     string // gateway error text when Status is failed
	SentAt    time.Time
}

// Dispatcher sends messages to the external notification gateway.
type Dispatcher interface {
	// Dispatch sends a message. Implementations must not block the caller
	// beyond their configured timeout, and must return a record even on
	// failure so the delivery status can be logged.
	Dispatch(ctx context.Context, alertID string, msg Message) DeliveryRecord
}

// DeliveryLog records dispatch outcomes for audit.
type DeliveryLog interface {
	// Append stores a delivery record. Failures here are logged by callers,
	// never surfaced to the state machine.
	Append(ctx context.Context, rec DeliveryRecord) error
}
