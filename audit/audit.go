package audit

import (
	"fmt"
	"io"
)

// Source declares the general area that the audit event was raised from
type Source interface {
	ID() int
	String() string
}

// EventType defines a specific event from the Source
type EventType interface {
	ID() int
	String() string
}

// Auditor defines an interface that can receive information about audit events
type Auditor interface {
	// Call at shutdown to cleanly close the audit destination
	io.Closer

	// Call Event to record a new Auditable event
	Event(e Event)
}

// Event defines an abstract source of the details of an audit event
type Event interface {
	// Identity returns the identity of the source that triggered this event, typically the host ID
	Identity() string
	// ContextID correlates this event with the handshake it was raised from, typically the device UDID
	ContextID() string
	// Source indicates the area that the event was triggered by
	Source() Source
	// EventType indicates the specific event that occured
	EventType() EventType
	// Message contains any additional information about this event that is eventType specific
	Message() string
}

// EventInfo provides a default impl of Event
type EventInfo struct {
	identity  string
	contextID string
	src       Source
	eventType EventType
	message   string
}

// New returns a newly constructed Event instance
//
// identity     identity of the source, typically the host ID
// contextID    correlates the event with the handshake it came from, typically the device UDID
// src          the source of the event, typically one of the specific APIs, or built-in integrations
// event        the specific event that happend
// message/vals additional info to be captured, will be event specific
func New(identity, contextID string, src Source, event EventType, message string, vals ...interface{}) Event {
	return &EventInfo{
		identity:  identity,
		contextID: contextID,
		src:       src,
		eventType: event,
		message:   fmt.Sprintf(message, vals...),
	}
}

// Identity returns the source [typically the host ID] that triggered this event
func (e *EventInfo) Identity() string {
	return e.identity
}

// ContextID returns the handshake correlation value this event was raised in
func (e *EventInfo) ContextID() string {
	return e.contextID
}

// Source returns the area that generated the event
func (e *EventInfo) Source() Source {
	return e.src
}

// EventType returns the specific event
func (e *EventInfo) EventType() EventType {
	return e.eventType
}

// Message returns any additional per eventType information to be captured
func (e *EventInfo) Message() string {
	return e.message
}
