package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
)

var (
	// ErrUnknownEventType is returned for event types the pipeline never publishes
	ErrUnknownEventType = errors.New("unknown pipeline event type")

	// ErrBusClosed is returned by Subscribe and Publish after Close
	ErrBusClosed = errors.New("event bus closed")
)

// Service is the in-process bus for pipeline events. Subscribers are limited to
// the types in interfaces.AllEventTypes; a failing subscriber is logged with the
// run and report it concerned and never aborts the pipeline.
type Service struct {
	known       map[interfaces.EventType]bool
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	mu          sync.RWMutex
	closed      bool
	logger      arbor.ILogger
}

// NewService creates the pipeline event bus with the debug logger subscribed to every event
func NewService(logger arbor.ILogger) interfaces.EventService {
	known := make(map[interfaces.EventType]bool, len(interfaces.AllEventTypes))
	for _, eventType := range interfaces.AllEventTypes {
		known[eventType] = true
	}

	s := &Service{
		known:       known,
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:      logger,
	}
	if err := SubscribeLoggerToAllEvents(s, logger); err != nil {
		logger.Warn().Err(err).Msg("Failed to subscribe event logger")
	}
	return s
}

// Subscribe registers a handler for one pipeline event type
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler for %s cannot be nil", eventType)
	}
	if !s.known[eventType] {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrBusClosed
	}
	s.subscribers[eventType] = append(s.subscribers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("Pipeline event subscriber added")

	return nil
}

// subscribersFor snapshots the handlers for an event so delivery runs without the lock
func (s *Service) subscribersFor(event interfaces.Event) ([]interfaces.EventHandler, error) {
	if !s.known[event.Type] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, event.Type)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrBusClosed
	}
	handlers := make([]interfaces.EventHandler, len(s.subscribers[event.Type]))
	copy(handlers, s.subscribers[event.Type])
	return handlers, nil
}

// deliver runs one handler and logs its failure against the run and report in the payload
func (s *Service) deliver(ctx context.Context, handler interfaces.EventHandler, event interfaces.Event) error {
	err := handler(ctx, event)
	if err == nil {
		return nil
	}

	logEvent := s.logger.Warn().
		Err(err).
		Str("event_type", string(event.Type))
	for _, key := range []string{"run_id", "report_id"} {
		if value, ok := event.Payload[key].(string); ok && value != "" {
			logEvent = logEvent.Str(key, value)
		}
	}
	logEvent.Msg("Pipeline event subscriber failed")

	return fmt.Errorf("%s subscriber: %w", event.Type, err)
}

// Publish hands the event to each subscriber on its own goroutine and returns immediately
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	handlers, err := s.subscribersFor(event)
	if err != nil {
		return err
	}

	for _, handler := range handlers {
		h := handler
		common.SafeGo(s.logger, "event:"+string(event.Type), func() {
			_ = s.deliver(ctx, h, event)
		})
	}
	return nil
}

// PublishSync delivers the event to every subscriber and waits for all of them.
// The orchestrator uses it so stage and report events reach the status tracker
// and websocket clients in run order. Subscriber errors are joined.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers, err := s.subscribersFor(event)
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, handler := range handlers {
		wg.Add(1)
		go func(h interfaces.EventHandler) {
			defer wg.Done()
			if err := s.deliver(ctx, h, event); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(handler)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close drops every subscriber; later Subscribe and Publish calls return ErrBusClosed
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.closed = true
	s.logger.Debug().Msg("Pipeline event bus closed")

	return nil
}
