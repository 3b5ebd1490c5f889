package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/risk-engine/internal/domain/alert"
	"github.com/edupulse/risk-engine/internal/domain/notification"
	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ALERT NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// AlertNotifier turns alert lifecycle events into outbound notifications.
// It subscribes to opened and escalated events, loads the alert, and hands a
// message to the gateway. Dispatch is fire-and-forget: failures are recorded
// in the delivery log and logged, never returned to the publisher.
type AlertNotifier struct {
	alerts           alert.Repository
	dispatcher       notification.Dispatcher
	deliveries       notification.DeliveryLog
	defaultRecipient shared.UserID
	timeout          time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

// AlertNotifierConfig configures an AlertNotifier.
type AlertNotifierConfig struct {
	// DefaultRecipient receives notifications for unassigned alerts.
	DefaultRecipient string

	// DispatchTimeout bounds one dispatch attempt end to end.
	DispatchTimeout time.Duration

	Logger *slog.Logger
}

// NewAlertNotifier creates a new AlertNotifier.
func NewAlertNotifier(
	alerts alert.Repository,
	dispatcher notification.Dispatcher,
	deliveries notification.DeliveryLog,
	cfg AlertNotifierConfig,
) *AlertNotifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	if cfg.DefaultRecipient == "" {
		cfg.DefaultRecipient = "academic-office"
	}

	return &AlertNotifier{
		alerts:           alerts,
		dispatcher:       dispatcher,
		deliveries:       deliveries,
		defaultRecipient: shared.UserID(cfg.DefaultRecipient),
		timeout:          cfg.DispatchTimeout,
		logger:           cfg.Logger,
		now:              time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests.
func (n *AlertNotifier) WithClock(now func() time.Time) *AlertNotifier {
	n.now = now
	return n
}

// Register subscribes the notifier to the alert events it handles.
func (n *AlertNotifier) Register(subscriber shared.EventSubscriber) error {
	if err := subscriber.Subscribe(shared.EventAlertOpened, n.handle); err != nil {
		return fmt.Errorf("failed to subscribe to alert opened: %w", err)
	}
	if err := subscriber.Subscribe(shared.EventAlertEscalated, n.handle); err != nil {
		return fmt.Errorf("failed to subscribe to alert escalated: %w", err)
	}
	return nil
}

// handle processes one alert event.
func (n *AlertNotifier) handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	a, err := n.alerts.GetByID(ctx, event.AggregateID())
	if err != nil {
		n.logger.Warn("notifier could not load alert",
			"alert_id", event.AggregateID(),
			"event_type", event.EventType(),
			"error", err,
		)
		return nil
	}

	// The sweep may have resolved the alert between publish and handling.
	if a.IsTerminal() {
		return nil
	}

	msg := n.buildMessage(a, event.EventType())

	rec := n.dispatcher.Dispatch(ctx, a.ID, msg)
	if rec.Status == notification.DeliveryFailed {
		n.logger.Warn("alert notification dispatch failed",
			"alert_id", a.ID,
			"recipient", rec.Recipient,
			"error", rec.Error,
		)
	}

	if err := n.deliveries.Append(ctx, rec); err != nil {
		n.logger.Error("failed to record delivery",
			"alert_id", a.ID,
			"delivery_id", rec.ID,
			"error", err,
		)
	}

	return nil
}

// buildMessage renders the notification payload for an alert event.
func (n *AlertNotifier) buildMessage(a *alert.Alert, eventType shared.EventType) notification.Message {
	recipient := a.AssignedTo
	if !recipient.IsValid() {
		recipient = n.defaultRecipient
	}

	subject := fmt.Sprintf("[%s] %s", a.Priority, a.Title)
	body := a.Description
	if eventType == shared.EventAlertEscalated {
		subject = fmt.Sprintf("[%s] Escalated (level %d): %s", a.Priority, a.EscalationLevel, a.Title)
		body = fmt.Sprintf("%s\n\nOpen for %s without resolution, past its response window.",
			a.Description, timeutil.HumanDuration(n.now().Sub(a.CreatedAt)))
	}

	return notification.Message{
		Recipient: recipient,
		Channel:   notification.ChannelEmail,
		Subject:   subject,
		Body:      body,
		Metadata: map[string]any{
			"alert_id":         a.ID,
			"student_id":       a.StudentID.String(),
			"alert_type":       a.Type.String(),
			"priority":         a.Priority.String(),
			"escalation_level": a.EscalationLevel,
			"event":            string(eventType),
		},
	}
}
