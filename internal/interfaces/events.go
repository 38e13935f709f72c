package interfaces

import "context"

// EventType identifies a category of application event
type EventType string

const (
	// EventRunStarted fires when a pipeline run begins
	EventRunStarted EventType = "run_started"
	// EventStepProgress fires on step status or progress transitions
	EventStepProgress EventType = "step_progress"
	// EventRunFinished fires when a run reaches a terminal state
	EventRunFinished EventType = "run_finished"
	// EventFileError fires when a per-file operation fails inside a step
	EventFileError EventType = "file_error"
	// EventCatalogRefreshed fires after a provider model catalog refresh
	EventCatalogRefreshed EventType = "catalog_refreshed"
)

// Event is a typed payload published to subscribers
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventHandler processes a published event
type EventHandler func(ctx context.Context, event Event) error

// EventService is a simple in-process pub/sub bus
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler)
	Publish(ctx context.Context, event Event)
}
