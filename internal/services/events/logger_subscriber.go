package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		for _, key := range []string{"run_id", "report_id", "stage"} {
			if value, ok := event.Payload[key].(string); ok && value != "" {
				logEvent = logEvent.Str(key, value)
			}
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	for _, eventType := range interfaces.AllEventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	return nil
}
