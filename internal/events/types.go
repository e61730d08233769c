// Package events defines the change notification surface of oscbridge:
// a publish-subscribe bus plus the event types emitted by the OSC client.
package events

import (
	"github.com/google/uuid"

	"github.com/oscbridge-project/oscbridge/internal/osc"
)

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Per-type parameter change events, fired once per actual value
	// change observed on the receive path.
	EventFloatParameterChanged EventType = "float_parameter_changed"
	EventIntParameterChanged   EventType = "int_parameter_changed"
	EventBoolParameterChanged  EventType = "bool_parameter_changed"

	// EventParameterChanged fires alongside every typed change event.
	EventParameterChanged EventType = "parameter_changed"

	// EventAvatarChanged fires when an /avatar/change message with a
	// parseable GUID is received.
	EventAvatarChanged EventType = "avatar_changed"
)

// Event is a single notification published through the bus.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ParameterChangedPayload carries a generic parameter change.
type ParameterChangedPayload struct {
	Name  string    `json:"name"`
	Value osc.Value `json:"-"`
}

// FloatParameterPayload carries a float32 parameter change.
type FloatParameterPayload struct {
	Name  string  `json:"name"`
	Value float32 `json:"value"`
}

// IntParameterPayload carries an int32 parameter change.
type IntParameterPayload struct {
	Name  string `json:"name"`
	Value int32  `json:"value"`
}

// BoolParameterPayload carries a bool parameter change.
type BoolParameterPayload struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// AvatarChangedPayload carries the parsed avatar identity.
type AvatarChangedPayload struct {
	ID  uuid.UUID `json:"id"`
	Raw string    `json:"raw"`
}
