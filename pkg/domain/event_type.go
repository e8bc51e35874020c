package domain

import dErrors "registrar/pkg/domain-errors"

// EventType is the kind of vital event a record registers.
type EventType string

const (
	EventBirth    EventType = "birth"
	EventDeath    EventType = "death"
	EventMarriage EventType = "marriage"
)

// ParseEventType validates a raw event type string.
func ParseEventType(raw string) (EventType, error) {
	switch EventType(raw) {
	case EventBirth, EventDeath, EventMarriage:
		return EventType(raw), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown event type: "+raw)
}

// EventTypes lists all supported vital event types in a stable order.
func EventTypes() []EventType {
	return []EventType{EventBirth, EventDeath, EventMarriage}
}
