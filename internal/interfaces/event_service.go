package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventAuditCreated carries the new *models.AuditRecord
	EventAuditCreated EventType = "audit_created"
	// EventAuditUpdated carries the *models.AuditRecord after a mutation
	EventAuditUpdated EventType = "audit_updated"
	// EventAuditDeleted carries the deleted record id as a string
	EventAuditDeleted EventType = "audit_deleted"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe registers a handler and returns a function that removes it
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func(), err error)

	// Publish an event to all subscribers without waiting
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
