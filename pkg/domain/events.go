package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRequest  EventType = "request"
	EventResponse EventType = "response"
	EventDelivery EventType = "delivery"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// RequestEvent is emitted when a dispatch starts and when it finishes.
type RequestEvent struct {
	EventBase
	Agent      string        `json:"agent"`
	InstanceID string        `json:"instance_id"`
	Method     string        `json:"method,omitempty"`
	Code       int           `json:"code,omitempty"` // 0 on success
	Duration   time.Duration `json:"duration,omitempty"`
}

// DeliveryEvent is emitted once per update event handed to a consumer.
type DeliveryEvent struct {
	EventBase
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Target    string `json:"target"`
	Attempts  int    `json:"attempts"`
	Processed bool   `json:"processed"`
	Err       error  `json:"-"`
}

// LifecycleHooks defines callbacks for dispatcher and update observability.
type LifecycleHooks struct {
	OnRequest  func(context.Context, *RequestEvent)
	OnResponse func(context.Context, *RequestEvent)
	OnDelivery func(context.Context, *DeliveryEvent)
}
