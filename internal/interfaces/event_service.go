package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventPipelineStarted is published when a pipeline run begins.
	// Payload: run_id, force
	EventPipelineStarted EventType = "pipeline_started"

	// EventStageChanged is published when a pipeline run enters a new stage.
	// Payload: run_id, stage
	EventStageChanged EventType = "stage_changed"

	// EventReportConverted is published after a report's derived text is stored.
	// Payload: run_id, report_id, derived_text_ref, pages, chunks
	EventReportConverted EventType = "report_converted"

	// EventReportConversionFailed is published when a report could not be converted.
	// Payload: run_id, report_id, error, fatal
	EventReportConversionFailed EventType = "report_conversion_failed"

	// EventEvaluationCompleted is published after an evaluation artifact is persisted.
	// Payload: run_id, evaluations, documents
	EventEvaluationCompleted EventType = "evaluation_completed"

	// EventPipelineCompleted is published when a pipeline run ends.
	// Payload: run_id, report (*models.RunReport), error
	EventPipelineCompleted EventType = "pipeline_completed"
)

// AllEventTypes lists every event the pipeline publishes
var AllEventTypes = []EventType{
	EventPipelineStarted,
	EventStageChanged,
	EventReportConverted,
	EventReportConversionFailed,
	EventEvaluationCompleted,
	EventPipelineCompleted,
}

// Event represents a system event
type Event struct {
	Type    EventType
	Payload map[string]interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish sends an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync sends an event to all subscribers and waits for them
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
