package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs audit events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case *models.AuditRecord:
			logEvent = logEvent.
				Str("audit_id", payload.ID).
				Int("progress", payload.Progress)
			if payload.Error != "" {
				logEvent = logEvent.Str("error", payload.Error)
			}
		case string:
			logEvent = logEvent.Str("audit_id", payload)
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all audit event types.
// The returned function removes every subscription.
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) (func(), error) {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventAuditCreated,
		interfaces.EventAuditUpdated,
		interfaces.EventAuditDeleted,
	}

	unsubscribers := make([]func(), 0, len(eventTypes))
	unsubscribeAll := func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}

	for _, eventType := range eventTypes {
		unsub, err := eventService.Subscribe(eventType, subscriber)
		if err != nil {
			unsubscribeAll()
			return nil, fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
		unsubscribers = append(unsubscribers, unsub)
	}

	logger.Debug().Int("event_types", len(eventTypes)).Msg("Logger subscribed to audit events")
	return unsubscribeAll, nil
}
