// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events carry state changes out of the engine core;
// the notification dispatcher subscribes to the alert events.
const (
	// Prediction events
	EventPredictionRecorded EventType = "prediction.recorded"
	EventPredictionExpired  EventType = "prediction.expired"

	// Alert events
	EventAlertOpened    EventType = "alert.opened"
	EventAlertUpdated   EventType = "alert.updated"
	EventAlertEscalated EventType = "alert.escalated"
	EventAlertResolved  EventType = "alert.resolved"
	EventAlertDismissed EventType = "alert.dismissed"

	// Intervention events
	EventInterventionSuggested EventType = "intervention.suggested"
	EventInterventionCompleted EventType = "intervention.completed"

	// System events
	EventRecomputeCompleted EventType = "system.recompute_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// GenericEvent is a minimal event for transitions that need no extra payload.
type GenericEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e GenericEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"aggregate_id": e.AggregateId,
	}
}

// NewGenericEvent creates an event carrying only its type and aggregate ID.
func NewGenericEvent(eventType EventType, aggregateID string) GenericEvent {
	return GenericEvent{BaseEvent: NewBaseEvent(eventType, aggregateID)}
}

// ═══════════════════════════════════════════════════════════════════════════
// Alert Events
// ═══════════════════════════════════════════════════════════════════════════

// AlertOpenedEvent is emitted when a new alert is created.
type AlertOpenedEvent struct {
	BaseEvent
	AlertID   string   `json:"alert_id"`
	StudentID string   `json:"student_id"`
	AlertType string   `json:"alert_type"`
	Priority  Priority `json:"priority"`
	AutoGen   bool     `json:"auto_generated"`
}

// Payload implements Event interface.
func (e AlertOpenedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id":       e.AlertID,
		"student_id":     e.StudentID,
		"alert_type":     e.AlertType,
		"priority":       string(e.Priority),
		"auto_generated": e.AutoGen,
	}
}

// NewAlertOpenedEvent creates a new AlertOpenedEvent.
func NewAlertOpenedEvent(alertID, studentID, alertType string, priority Priority, autoGen bool) AlertOpenedEvent {
	return AlertOpenedEvent{
		BaseEvent: NewBaseEvent(EventAlertOpened, alertID),
		AlertID:   alertID,
		StudentID: studentID,
		AlertType: alertType,
		Priority:  priority,
		AutoGen:   autoGen,
	}
}

// AlertEscalatedEvent is emitted when an alert ages past its response window.
type AlertEscalatedEvent struct {
	BaseEvent
	AlertID        string   `json:"alert_id"`
	StudentID      string   `json:"student_id"`
	AlertType      string   `json:"alert_type"`
	Priority       Priority `json:"priority"`
	Level          int      `json:"level"`
	PriorityRaised bool     `json:"priority_raised"`
}

// Payload implements Event interface.
func (e AlertEscalatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id":        e.AlertID,
		"student_id":      e.StudentID,
		"alert_type":      e.AlertType,
		"priority":        string(e.Priority),
		"level":           e.Level,
		"priority_raised": e.PriorityRaised,
	}
}

// NewAlertEscalatedEvent creates a new AlertEscalatedEvent.
func NewAlertEscalatedEvent(alertID, studentID, alertType string, priority Priority, level int, raised bool) AlertEscalatedEvent {
	return AlertEscalatedEvent{
		BaseEvent:      NewBaseEvent(EventAlertEscalated, alertID),
		AlertID:        alertID,
		StudentID:      studentID,
		AlertType:      alertType,
		Priority:       priority,
		Level:          level,
		PriorityRaised: raised,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Intervention Events
// ═══════════════════════════════════════════════════════════════════════════

// InterventionSuggestedEvent is emitted when a critical alert warrants
// a remedial intervention.
type InterventionSuggestedEvent struct {
	BaseEvent
	AlertID   string `json:"alert_id"`
	StudentID string `json:"student_id"`
	AlertType string `json:"alert_type"`
}

// Payload implements Event interface.
func (e InterventionSuggestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id":   e.AlertID,
		"student_id": e.StudentID,
		"alert_type": e.AlertType,
	}
}

// NewInterventionSuggestedEvent creates a new InterventionSuggestedEvent.
func NewInterventionSuggestedEvent(alertID, studentID, alertType string) InterventionSuggestedEvent {
	return InterventionSuggestedEvent{
		BaseEvent: NewBaseEvent(EventInterventionSuggested, alertID),
		AlertID:   alertID,
		StudentID: studentID,
		AlertType: alertType,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// RecomputeCompletedEvent is emitted after a full recompute batch finishes.
type RecomputeCompletedEvent struct {
	BaseEvent
	Total   int `json:"total"`
	Scored  int `json:"scored"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Alerts  int `json:"alerts_opened"`
}

// Payload implements Event interface.
func (e RecomputeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"total":         e.Total,
		"scored":        e.Scored,
		"skipped":       e.Skipped,
		"failed":        e.Failed,
		"alerts_opened": e.Alerts,
	}
}

// NewRecomputeCompletedEvent creates a new RecomputeCompletedEvent.
func NewRecomputeCompletedEvent(total, scored, skipped, failed, alerts int) RecomputeCompletedEvent {
	return RecomputeCompletedEvent{
		BaseEvent: NewBaseEvent(EventRecomputeCompleted, "recompute"),
		Total:     total,
		Scored:    scored,
		Skipped:   skipped,
		Failed:    failed,
		Alerts:    alerts,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
