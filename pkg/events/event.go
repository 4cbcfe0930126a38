package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "ADAPTER_LOADED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to a bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Adapter lifecycle event codes.
const (
	AdapterLoaded     = "ADAPTER_LOADED"
	AdapterLoadFailed = "ADAPTER_LOAD_FAILED"
	AdapterUnloaded   = "ADAPTER_UNLOADED"
)

func NewAdapterEvent(eventType, adapterID string, data map[string]interface{}) BaseEvent {
	payload := map[string]interface{}{"adapter_id": adapterID}
	for k, v := range data {
		payload[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       payload,
		OccurredAt: time.Now(),
	}
}
